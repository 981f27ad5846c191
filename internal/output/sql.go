// internal/output/sql.go
package output

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/valpere/BrandLocator/internal/config"
	apperrors "github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/utils"
	"github.com/valpere/BrandLocator/pkg/types"
)

// dialect captures the per-driver differences the exporter cares about.
type dialect struct {
	driver    string
	keyType   string
	textType  string
	floatType string
	jsonType  string
	quote     func(string) string
	bind      func(n int) string
	upsert    func(cols []string) string
}

var dialects = map[string]dialect{
	"sqlite3": {
		driver: "sqlite3", keyType: "TEXT", textType: "TEXT", floatType: "REAL", jsonType: "TEXT",
		quote:  doubleQuote,
		bind:   func(int) string { return "?" },
		upsert: onConflictUpdate,
	},
	"postgres": {
		driver: "postgres", keyType: "TEXT", textType: "TEXT", floatType: "DOUBLE PRECISION", jsonType: "JSONB",
		quote:  doubleQuote,
		bind:   func(n int) string { return fmt.Sprintf("$%d", n) },
		upsert: onConflictUpdate,
	},
	"mysql": {
		driver: "mysql", keyType: "VARCHAR(191)", textType: "VARCHAR(512)", floatType: "DOUBLE", jsonType: "JSON",
		quote: func(s string) string { return "`" + s + "`" },
		bind:  func(int) string { return "?" },
		upsert: func(cols []string) string {
			sets := make([]string, len(cols))
			for i, c := range cols {
				sets[i] = fmt.Sprintf("`%s` = VALUES(`%s`)", c, c)
			}
			return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
		},
	},
}

func doubleQuote(s string) string { return `"` + s + `"` }

func onConflictUpdate(cols []string) string {
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf(`"%s" = excluded."%s"`, c, c)
	}
	return ` ON CONFLICT ("identity_key") DO UPDATE SET ` + strings.Join(sets, ", ")
}

// sqlColumns are the stores table columns after identity_key.
var sqlColumns = []string{
	"name", "address_line", "city", "state", "postal_code", "country",
	"latitude", "longitude", "brand_count", "brands", "payload", "updated_at",
}

// SQLExporter upserts stores into a table keyed by identity key, with a
// companion <table>_brands table holding one row per store and brand.
type SQLExporter struct {
	db        *sql.DB
	dialect   dialect
	table     string
	batchSize int
	truncate  bool
	logger    utils.Logger
}

// NewSQLExporter opens the database named by cfg and ensures the tables exist.
func NewSQLExporter(ctx context.Context, cfg config.DatabaseConfig, logger utils.Logger) (*SQLExporter, error) {
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindConfig, "output.sql", "unsupported SQL driver: %s", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, apperrors.Newf(apperrors.KindConfig, "output.sql", "database DSN is required")
	}
	if err := ValidateSQLIdentifier(cfg.Table); err != nil {
		return nil, apperrors.New(apperrors.KindConfig, "output.sql", err)
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	dsn := cfg.DSN
	if d.driver == "sqlite3" {
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, apperrors.New(apperrors.KindOutput, "output.sql", fmt.Errorf("failed to create database directory: %w", err))
			}
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_busy_timeout=5000&_journal_mode=WAL"
		}
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, apperrors.New(apperrors.KindOutput, "output.sql", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.New(apperrors.KindOutput, "output.sql", fmt.Errorf("failed to ping %s database: %w", d.driver, err))
	}
	if d.driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 500
	}
	e := &SQLExporter{
		db:        db,
		dialect:   d,
		table:     cfg.Table,
		batchSize: batch,
		truncate:  cfg.Truncate,
		logger:    logger.WithFields(map[string]interface{}{"driver": d.driver, "table": cfg.Table}),
	}
	if err := e.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return e, nil
}

func (e *SQLExporter) brandsTable() string { return e.table + "_brands" }

func (e *SQLExporter) createTables(ctx context.Context) error {
	d := e.dialect
	stores := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		identity_key %s PRIMARY KEY,
		name %s, address_line %s, city %s, state %s, postal_code %s, country %s,
		latitude %s, longitude %s,
		brand_count INTEGER NOT NULL,
		brands TEXT NOT NULL,
		payload %s,
		updated_at TIMESTAMP NOT NULL
	)`, d.quote(e.table), d.keyType,
		d.textType, d.textType, d.textType, d.textType, d.textType, d.textType,
		d.floatType, d.floatType, d.jsonType)

	brands := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		identity_key %s NOT NULL,
		brand %s NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (identity_key, brand)
	)`, d.quote(e.brandsTable()), d.keyType, d.keyType)

	for _, stmt := range []string{stores, brands} {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return apperrors.New(apperrors.KindOutput, "output.sql", fmt.Errorf("failed to create table: %w", err))
		}
	}
	return nil
}

// Export upserts every store. Each batch commits in its own transaction.
func (e *SQLExporter) Export(ctx context.Context, dir *types.MergedDirectory) error {
	if e.truncate {
		for _, t := range []string{e.brandsTable(), e.table} {
			if _, err := e.db.ExecContext(ctx, "DELETE FROM "+e.dialect.quote(t)); err != nil {
				return apperrors.New(apperrors.KindOutput, "output.sql", err)
			}
		}
	}

	now := time.Now().UTC()
	for start := 0; start < len(dir.Stores); start += e.batchSize {
		end := start + e.batchSize
		if end > len(dir.Stores) {
			end = len(dir.Stores)
		}
		if err := e.exportBatch(ctx, dir.Stores[start:end], now); err != nil {
			return apperrors.New(apperrors.KindOutput, "output.sql", fmt.Errorf("failed to insert batch %d-%d: %w", start, end-1, err))
		}
	}
	e.logger.WithField("stores", len(dir.Stores)).Info("exported directory")
	return nil
}

func (e *SQLExporter) insertStoreSQL() string {
	d := e.dialect
	cols := append([]string{"identity_key"}, sqlColumns...)
	quoted := make([]string, len(cols))
	binds := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.quote(c)
		binds[i] = d.bind(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)%s",
		d.quote(e.table), strings.Join(quoted, ", "), strings.Join(binds, ", "), d.upsert(sqlColumns))
}

func (e *SQLExporter) exportBatch(ctx context.Context, stores []*types.CanonicalStoreRecord, now time.Time) error {
	d := e.dialect
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	upsert, err := tx.PrepareContext(ctx, e.insertStoreSQL())
	if err != nil {
		return err
	}
	defer upsert.Close()

	unlink, err := tx.PrepareContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE identity_key = %s",
		d.quote(e.brandsTable()), d.bind(1)))
	if err != nil {
		return err
	}
	defer unlink.Close()

	link, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (identity_key, brand, position) VALUES (%s, %s, %s)",
		d.quote(e.brandsTable()), d.bind(1), d.bind(2), d.bind(3)))
	if err != nil {
		return err
	}
	defer link.Close()

	for _, store := range stores {
		row := NewStoreRow(store)
		if _, err := upsert.ExecContext(ctx,
			row.IdentityKey, row.Name, row.AddressLine, row.City, row.State, row.PostalCode, row.Country,
			coordValue(row.Latitude), coordValue(row.Longitude), row.BrandCount,
			strings.Join(row.Brands, "; "), row.Payload, now,
		); err != nil {
			return fmt.Errorf("upsert %s: %w", row.IdentityKey, err)
		}
		if _, err := unlink.ExecContext(ctx, row.IdentityKey); err != nil {
			return err
		}
		for pos, brand := range row.Brands {
			if _, err := link.ExecContext(ctx, row.IdentityKey, brand, pos); err != nil {
				return fmt.Errorf("link %s to %s: %w", row.IdentityKey, brand, err)
			}
		}
	}
	return tx.Commit()
}

// DB exposes the connection for read-back.
func (e *SQLExporter) DB() *sql.DB { return e.db }

// Close closes the database connection.
func (e *SQLExporter) Close() error {
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	return err
}
