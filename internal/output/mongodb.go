// internal/output/mongodb.go
package output

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/valpere/BrandLocator/internal/config"
	apperrors "github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/utils"
	"github.com/valpere/BrandLocator/pkg/types"
)

// MongoExporter upserts one document per store, keyed by identity key.
type MongoExporter struct {
	client     *mongo.Client
	collection *mongo.Collection
	batchSize  int
	truncate   bool
	logger     utils.Logger
}

// NewMongoExporter connects to the server in cfg.DSN and prepares indexes.
func NewMongoExporter(ctx context.Context, cfg config.DatabaseConfig, logger utils.Logger) (*MongoExporter, error) {
	if cfg.DSN == "" {
		return nil, apperrors.Newf(apperrors.KindConfig, "output.mongodb", "MongoDB connection string is required")
	}
	if cfg.Database == "" {
		return nil, apperrors.Newf(apperrors.KindConfig, "output.mongodb", "MongoDB database name is required")
	}
	if cfg.Table == "" {
		return nil, apperrors.Newf(apperrors.KindConfig, "output.mongodb", "MongoDB collection name is required")
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	clientOptions := options.Client().
		ApplyURI(cfg.DSN).
		SetServerSelectionTimeout(10 * time.Second)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, apperrors.New(apperrors.KindOutput, "output.mongodb", fmt.Errorf("failed to connect to MongoDB: %w", err))
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, apperrors.New(apperrors.KindOutput, "output.mongodb", fmt.Errorf("failed to ping MongoDB: %w", err))
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 500
	}
	e := &MongoExporter{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Table),
		batchSize:  batch,
		truncate:   cfg.Truncate,
		logger:     logger.WithFields(map[string]interface{}{"database": cfg.Database, "collection": cfg.Table}),
	}
	if err := e.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return e, nil
}

func (e *MongoExporter) createIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "brands", Value: 1}}, Options: options.Index().SetName("brands")},
		{Keys: bson.D{{Key: "state", Value: 1}, {Key: "city", Value: 1}}, Options: options.Index().SetName("state_city")},
		{Keys: bson.D{{Key: "brand_count", Value: -1}}, Options: options.Index().SetName("brand_count")},
	}
	created, err := e.collection.Indexes().CreateMany(ctx, models)
	if err != nil {
		return apperrors.New(apperrors.KindOutput, "output.mongodb", fmt.Errorf("failed to create indexes: %w", err))
	}
	e.logger.Debugf("ensured indexes %v", created)
	return nil
}

// StoreDocument builds the document stored for a canonical store. The
// identity key becomes _id; passthrough payload fields sit alongside the
// canonical ones.
func StoreDocument(store *types.CanonicalStoreRecord, updatedAt time.Time) bson.M {
	doc := make(bson.M, len(store.Extra)+9)
	for k, v := range store.Extra {
		doc[k] = v
	}
	brands := append([]string{}, store.Brands...)
	doc["_id"] = store.IdentityKey
	doc["identity_key"] = store.IdentityKey
	doc["name"] = store.Name
	doc["address_line"] = store.AddressLine
	doc["city"] = store.City
	doc["state"] = store.State
	doc["brands"] = brands
	doc["brand_count"] = len(brands)
	doc["updated_at"] = updatedAt
	return doc
}

// Export replaces every store document, inserting the ones not yet present.
func (e *MongoExporter) Export(ctx context.Context, dir *types.MergedDirectory) error {
	if e.truncate {
		if _, err := e.collection.DeleteMany(ctx, bson.M{}); err != nil {
			return apperrors.New(apperrors.KindOutput, "output.mongodb", err)
		}
	}

	now := time.Now().UTC()
	var upserted, modified int64
	for start := 0; start < len(dir.Stores); start += e.batchSize {
		end := start + e.batchSize
		if end > len(dir.Stores) {
			end = len(dir.Stores)
		}
		models := make([]mongo.WriteModel, 0, end-start)
		for _, store := range dir.Stores[start:end] {
			models = append(models, mongo.NewReplaceOneModel().
				SetFilter(bson.M{"_id": store.IdentityKey}).
				SetReplacement(StoreDocument(store, now)).
				SetUpsert(true))
		}
		result, err := e.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
		if err != nil {
			return apperrors.New(apperrors.KindOutput, "output.mongodb", fmt.Errorf("failed to upsert batch %d-%d: %w", start, end-1, err))
		}
		upserted += result.UpsertedCount
		modified += result.ModifiedCount
	}

	e.logger.WithFields(map[string]interface{}{
		"stores":   len(dir.Stores),
		"inserted": upserted,
		"modified": modified,
	}).Info("exported directory")
	return nil
}

// Close disconnects from the server.
func (e *MongoExporter) Close() error {
	if e.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := e.client.Disconnect(ctx)
	e.client = nil
	return err
}
