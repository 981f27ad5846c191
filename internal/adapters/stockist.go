// internal/adapters/stockist.go
package adapters

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/valpere/BrandLocator/internal/config"
	apperrors "github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/scraper"
	"github.com/valpere/BrandLocator/internal/utils"
	"github.com/valpere/BrandLocator/pkg/types"
)

// RegionObserver is told how many locations each region query returned.
type RegionObserver interface {
	ObserveRegion(platform, region string, returned, unique int, err error)
}

// StockistAdapter implements the geographic-sampling strategy. The search
// API caps results per query and has no pagination, so the adapter queries
// each configured region with a large radius and unions the results by
// platform id. Coverage is approximate: a location outside every radius is
// missed.
type StockistAdapter struct {
	cfg      config.StockistConfig
	fetcher  scraper.Fetcher
	pacer    *utils.RateLimiter
	logger   utils.Logger
	observer RegionObserver
}

// NewStockist returns the Stockist geo-sampling adapter.
func NewStockist(cfg config.StockistConfig, f scraper.Fetcher, logger utils.Logger) *StockistAdapter {
	return &StockistAdapter{
		cfg:     cfg,
		fetcher: f,
		pacer:   utils.NewPacer(cfg.RegionDelay),
		logger:  orNop(logger).WithField("platform", string(types.PlatformStockist)),
	}
}

// SetObserver registers a per-region observer (metrics).
func (a *StockistAdapter) SetObserver(o RegionObserver) {
	a.observer = o
}

func (a *StockistAdapter) Platform() types.Platform { return types.PlatformStockist }

func (a *StockistAdapter) Strategy() types.Strategy { return types.StrategyGeoSampling }

// Fetch queries every region sequentially, spaced by the region delay. A
// failed region is logged and skipped. Records without a platform id are
// kept and deduplicated by name, address and city.
func (a *StockistAdapter) Fetch(ctx context.Context, instanceID string) ([]types.RawLocationRecord, error) {
	if err := requireInstanceID(types.PlatformStockist, instanceID); err != nil {
		return nil, err
	}

	endpoint := expandEndpoint(a.cfg.Endpoint, instanceID)
	log := a.logger.WithField("instance_id", instanceID)

	seen := make(map[string]bool)
	var records []types.RawLocationRecord
	var failures []error

	for _, region := range a.cfg.Regions {
		if err := a.pacer.Wait(ctx); err != nil {
			return nil, apperrors.Endpoint(opName(types.PlatformStockist, "search"), string(types.PlatformStockist), endpoint, 0, err)
		}

		payloads, err := a.searchRegion(ctx, endpoint, instanceID, region)
		rlog := log.WithField("region", region.Name)
		if err != nil {
			rlog.Warnf("region query failed: %v", err)
			failures = append(failures, err)
			if a.observer != nil {
				a.observer.ObserveRegion(string(types.PlatformStockist), region.Name, 0, len(records), err)
			}
			continue
		}

		for _, rec := range toRecords(types.PlatformStockist, payloads) {
			key := rec.DedupeKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			records = append(records, rec)
		}

		rlog.WithFields(map[string]interface{}{
			"returned": len(payloads),
			"unique":   len(records),
		}).Info("region searched")
		if a.observer != nil {
			a.observer.ObserveRegion(string(types.PlatformStockist), region.Name, len(payloads), len(records), nil)
		}
	}

	if len(a.cfg.Regions) > 0 && len(failures) == len(a.cfg.Regions) {
		return nil, apperrors.Join(failures...)
	}
	if len(records) == 0 {
		log.Warn("geo-sampling returned zero locations")
		return nil, apperrors.Empty(opName(types.PlatformStockist, "search"), string(types.PlatformStockist), endpoint)
	}

	log.Infof("geo-sampling complete: %d unique locations from %d regions", len(records), len(a.cfg.Regions))
	return records, nil
}

func (a *StockistAdapter) searchRegion(ctx context.Context, endpoint, instanceID string, region config.Region) ([]map[string]interface{}, error) {
	params := map[string]string{
		"tag":       instanceID,
		"latitude":  strconv.FormatFloat(region.Lat, 'f', -1, 64),
		"longitude": strconv.FormatFloat(region.Lon, 'f', -1, 64),
		"distance":  strconv.Itoa(a.cfg.RadiusKM),
		"sort":      a.cfg.Sort,
	}

	body, err := a.fetcher.Get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, apperrors.Malformed(opName(types.PlatformStockist, "decode"), string(types.PlatformStockist), endpoint, err)
	}
	return ExtractLocations(v), nil
}
