// internal/adapters/storerocket.go
package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/scraper"
	"github.com/valpere/BrandLocator/internal/utils"
	"github.com/valpere/BrandLocator/pkg/types"
)

// DirectAdapter implements the single-call full-dump strategy: one request
// returns every location, there is no pagination.
type DirectAdapter struct {
	platform  types.Platform
	endpoints []string
	decode    func(body []byte) ([]map[string]interface{}, error)
	fetcher   scraper.Fetcher
	logger    utils.Logger
}

type storeRocketResponse struct {
	Success bool `json:"success"`
	Results struct {
		Locations []map[string]interface{} `json:"locations"`
	} `json:"results"`
}

// NewStoreRocket returns the StoreRocket adapter. The API reports a success
// flag and nests locations under results.
func NewStoreRocket(endpoints []string, f scraper.Fetcher, logger utils.Logger) *DirectAdapter {
	return &DirectAdapter{
		platform:  types.PlatformStoreRocket,
		endpoints: endpoints,
		fetcher:   f,
		logger:    orNop(logger).WithField("platform", string(types.PlatformStoreRocket)),
		decode: func(body []byte) ([]map[string]interface{}, error) {
			var resp storeRocketResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, err
			}
			if !resp.Success {
				return nil, errUnsuccessful
			}
			return resp.Results.Locations, nil
		},
	}
}

// NewStoremapper returns the Storemapper adapter, which lists all stores
// under a top-level "stores" key.
func NewStoremapper(endpoints []string, f scraper.Fetcher, logger utils.Logger) *DirectAdapter {
	return &DirectAdapter{
		platform:  types.PlatformStoremapper,
		endpoints: endpoints,
		fetcher:   f,
		logger:    orNop(logger).WithField("platform", string(types.PlatformStoremapper)),
		decode: func(body []byte) ([]map[string]interface{}, error) {
			var resp struct {
				Stores []map[string]interface{} `json:"stores"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, err
			}
			return resp.Stores, nil
		},
	}
}

var errUnsuccessful = fmt.Errorf("response reported success=false")

func (a *DirectAdapter) Platform() types.Platform { return a.platform }

func (a *DirectAdapter) Strategy() types.Strategy { return types.StrategyDirectAPI }

// Fetch issues one request to the first configured endpoint.
func (a *DirectAdapter) Fetch(ctx context.Context, instanceID string) ([]types.RawLocationRecord, error) {
	if err := requireInstanceID(a.platform, instanceID); err != nil {
		return nil, err
	}
	if len(a.endpoints) == 0 {
		return nil, apperrors.Newf(apperrors.KindConfig, opName(a.platform, "fetch"), "no endpoint configured")
	}

	endpoint := expandEndpoint(a.endpoints[0], instanceID)
	log := a.logger.WithField("instance_id", instanceID)

	body, err := a.fetcher.Get(ctx, endpoint, nil)
	if err != nil {
		log.Warnf("request failed: %v", err)
		return nil, err
	}

	payloads, err := a.decode(body)
	if err == errUnsuccessful {
		log.Warn("API reported failure")
		return nil, apperrors.Empty(opName(a.platform, "fetch"), string(a.platform), endpoint)
	}
	if err != nil {
		return nil, apperrors.Malformed(opName(a.platform, "decode"), string(a.platform), endpoint, err)
	}

	records := toRecords(a.platform, payloads)
	if len(records) == 0 {
		log.Warn("API returned zero locations")
		return nil, apperrors.Empty(opName(a.platform, "fetch"), string(a.platform), endpoint)
	}

	log.Infof("fetched %d locations", len(records))
	return records, nil
}
