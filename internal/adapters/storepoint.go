// internal/adapters/storepoint.go
package adapters

import (
	"context"

	apperrors "github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/scraper"
	"github.com/valpere/BrandLocator/internal/utils"
	"github.com/valpere/BrandLocator/pkg/types"
)

// StorePointAdapter implements the prefixed/JSONP-tolerant strategy. It
// tries candidate endpoints in order and decodes each body leniently.
type StorePointAdapter struct {
	endpoints []string
	fetcher   scraper.Fetcher
	logger    utils.Logger
}

// NewStorePoint returns the StorePoint adapter.
func NewStorePoint(endpoints []string, f scraper.Fetcher, logger utils.Logger) *StorePointAdapter {
	return &StorePointAdapter{
		endpoints: endpoints,
		fetcher:   f,
		logger:    orNop(logger).WithField("platform", string(types.PlatformStorePoint)),
	}
}

func (a *StorePointAdapter) Platform() types.Platform { return types.PlatformStorePoint }

func (a *StorePointAdapter) Strategy() types.Strategy { return types.StrategyPrefixedAPI }

// Fetch returns the records of the first endpoint that yields any. When no
// endpoint does, the result is an empty list and a nil error: the API simply
// has no data for this instance.
func (a *StorePointAdapter) Fetch(ctx context.Context, instanceID string) ([]types.RawLocationRecord, error) {
	if err := requireInstanceID(types.PlatformStorePoint, instanceID); err != nil {
		return nil, err
	}
	log := a.logger.WithField("instance_id", instanceID)

	for _, tpl := range a.endpoints {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Endpoint(opName(types.PlatformStorePoint, "fetch"), string(types.PlatformStorePoint), "", 0, err)
		}

		endpoint := expandEndpoint(tpl, instanceID)
		elog := log.WithField("endpoint", endpoint)

		body, err := a.fetcher.Get(ctx, endpoint, nil)
		if err != nil {
			elog.Warnf("endpoint unavailable: %v", err)
			continue
		}

		v, err := DecodeLenient(body)
		if err != nil {
			elog.Warnf("unparseable response: %v", apperrors.Malformed(opName(types.PlatformStorePoint, "decode"), string(types.PlatformStorePoint), endpoint, err))
			continue
		}

		records := toRecords(types.PlatformStorePoint, ExtractLocations(v))
		if len(records) == 0 {
			elog.Info("endpoint returned zero locations")
			continue
		}

		elog.Infof("fetched %d locations", len(records))
		return records, nil
	}

	log.Warn("no StorePoint endpoint returned locations")
	return []types.RawLocationRecord{}, nil
}
