// internal/adapters/adapter.go

// Package adapters retrieves raw location records from store locator
// platform APIs given a detected instance identifier.
package adapters

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/valpere/BrandLocator/internal/config"
	apperrors "github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/scraper"
	"github.com/valpere/BrandLocator/internal/utils"
	"github.com/valpere/BrandLocator/pkg/types"
)

// Adapter fetches every location a platform instance publishes.
type Adapter interface {
	Platform() types.Platform
	Strategy() types.Strategy
	Fetch(ctx context.Context, instanceID string) ([]types.RawLocationRecord, error)
}

// Registry maps platforms to their adapters.
type Registry struct {
	adapters map[types.Platform]Adapter
}

// NewRegistry builds the adapters for every supported platform.
func NewRegistry(cfg config.PlatformsConfig, f scraper.Fetcher, logger utils.Logger) *Registry {
	logger = orNop(logger)
	r := &Registry{adapters: make(map[types.Platform]Adapter)}
	r.Register(NewStoreRocket(cfg.StoreRocket.Endpoints, f, logger))
	r.Register(NewStockist(cfg.Stockist, f, logger))
	r.Register(NewStorePoint(cfg.StorePoint.Endpoints, f, logger))
	r.Register(NewStoremapper(cfg.Storemapper.Endpoints, f, logger))
	return r
}

// Register adds or replaces the adapter for its platform.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Platform()] = a
}

// Get returns the adapter for platform.
func (r *Registry) Get(platform types.Platform) (Adapter, bool) {
	a, ok := r.adapters[platform]
	return a, ok
}

// Fetch runs the adapter for a detected source.
func (r *Registry) Fetch(ctx context.Context, src types.StoreLocatorSource) ([]types.RawLocationRecord, error) {
	if !src.Detected() {
		return nil, apperrors.Newf(apperrors.KindDetectionFailed, "adapters.fetch", "no platform detected for %s", src.URL)
	}
	a, ok := r.Get(src.Platform)
	if !ok {
		return nil, apperrors.Newf(apperrors.KindDetectionFailed, "adapters.fetch", "no adapter for platform %q", src.Platform)
	}
	return a.Fetch(ctx, src.InstanceID)
}

// expandEndpoint substitutes the instance id into an endpoint template,
// path-escaped before the query and query-escaped inside it.
func expandEndpoint(template, instanceID string) string {
	path, query, hasQuery := strings.Cut(template, "?")
	path = strings.ReplaceAll(path, "{id}", url.PathEscape(instanceID))
	if !hasQuery {
		return path
	}
	return path + "?" + strings.ReplaceAll(query, "{id}", url.QueryEscape(instanceID))
}

// toRecords lifts payloads into records, dropping entries that carry neither
// a name nor an id.
func toRecords(platform types.Platform, payloads []map[string]interface{}) []types.RawLocationRecord {
	records := make([]types.RawLocationRecord, 0, len(payloads))
	for _, p := range payloads {
		rec := types.RecordFromPayload(platform, p)
		if !rec.HasIdentity() {
			continue
		}
		records = append(records, rec)
	}
	return records
}

func requireInstanceID(platform types.Platform, instanceID string) error {
	if strings.TrimSpace(instanceID) == "" {
		return apperrors.Newf(apperrors.KindDetectionFailed, string(platform)+".fetch", "instance id is required")
	}
	return nil
}

func orNop(logger utils.Logger) utils.Logger {
	if logger == nil {
		return utils.NewNopLogger()
	}
	return logger
}

func opName(platform types.Platform, step string) string {
	return fmt.Sprintf("%s.%s", platform, step)
}
