// internal/output/types.go
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/valpere/BrandLocator/pkg/types"
)

// Format names a directory export format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatExcel   Format = "xlsx"
	FormatSQLite  Format = "sqlite3"
	FormatPostgre Format = "postgres"
	FormatMySQL   Format = "mysql"
	FormatMongoDB Format = "mongodb"
)

// ValidFormats returns all valid export formats
func ValidFormats() []Format {
	return []Format{FormatJSON, FormatCSV, FormatExcel, FormatSQLite, FormatPostgre, FormatMySQL, FormatMongoDB}
}

// IsValid checks if the format is supported
func (f Format) IsValid() bool {
	for _, valid := range ValidFormats() {
		if f == valid {
			return true
		}
	}
	return false
}

// Exporter writes a merged directory to one destination.
type Exporter interface {
	Export(ctx context.Context, dir *types.MergedDirectory) error
	Close() error
}

// StoreColumns is the flat column order used by tabular exports.
var StoreColumns = []string{
	"identity_key", "name", "address_line", "city", "state", "postal_code",
	"country", "latitude", "longitude", "brand_count", "brands",
}

// StoreRow is a store flattened for tabular exports. Enrichment payloads stay
// in Payload as JSON text.
type StoreRow struct {
	IdentityKey string
	Name        string
	AddressLine string
	City        string
	State       string
	PostalCode  string
	Country     string
	Latitude    *float64
	Longitude   *float64
	BrandCount  int
	Brands      []string
	Payload     string
}

// NewStoreRow flattens a canonical store.
func NewStoreRow(store *types.CanonicalStoreRecord) StoreRow {
	rec := types.RecordFromPayload(types.PlatformUnknown, store.Extra)
	row := StoreRow{
		IdentityKey: store.IdentityKey,
		Name:        store.Name,
		AddressLine: store.AddressLine,
		City:        store.City,
		State:       store.State,
		PostalCode:  rec.PostalCode,
		Country:     rec.Country,
		Latitude:    rec.Latitude,
		Longitude:   rec.Longitude,
		BrandCount:  len(store.Brands),
		Brands:      append([]string{}, store.Brands...),
		Payload:     "{}",
	}
	if len(store.Extra) > 0 {
		if data, err := json.Marshal(store.Extra); err == nil {
			row.Payload = string(data)
		}
	}
	return row
}

// Strings renders the row in StoreColumns order.
func (r StoreRow) Strings() []string {
	return []string{
		r.IdentityKey, r.Name, r.AddressLine, r.City, r.State, r.PostalCode,
		r.Country, formatCoord(r.Latitude), formatCoord(r.Longitude),
		strconv.Itoa(r.BrandCount), strings.Join(r.Brands, "; "),
	}
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func coordValue(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

var sqlIdentifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// reservedWords covers keywords that cannot name a table in any supported
// dialect without quoting.
var reservedWords = map[string]bool{
	"ALL": true, "AND": true, "AS": true, "BY": true, "CASE": true, "CHECK": true,
	"COLUMN": true, "CREATE": true, "DELETE": true, "DISTINCT": true, "DROP": true,
	"FROM": true, "GROUP": true, "INDEX": true, "INSERT": true, "INTO": true,
	"JOIN": true, "KEY": true, "NOT": true, "NULL": true, "ORDER": true, "PRIMARY": true,
	"SELECT": true, "TABLE": true, "UNION": true, "UPDATE": true, "USER": true,
	"VALUES": true, "WHERE": true,
}

// MaxIdentifierLength is the shortest identifier limit across the SQL
// dialects (MySQL and PostgreSQL both stop near 64).
const MaxIdentifierLength = 63

// ValidateSQLIdentifier checks that a table name is safe to interpolate.
func ValidateSQLIdentifier(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(identifier) > MaxIdentifierLength {
		return fmt.Errorf("identifier %q exceeds %d characters", identifier, MaxIdentifierLength)
	}
	if !sqlIdentifierRegex.MatchString(identifier) {
		return fmt.Errorf("identifier %q contains invalid characters", identifier)
	}
	if reservedWords[strings.ToUpper(identifier)] {
		return fmt.Errorf("identifier %q is a reserved word", identifier)
	}
	return nil
}
