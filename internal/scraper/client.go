// internal/scraper/client.go
package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/utils"
)

// Fetcher retrieves remote documents. Adapters and the detector depend on
// this rather than on *Client so tests can substitute a fake.
type Fetcher interface {
	// Get returns the body of a 2xx response. Transport failures and other
	// statuses are EndpointUnavailable errors.
	Get(ctx context.Context, rawURL string, params map[string]string) ([]byte, error)
}

// RequestObserver receives one callback per completed request.
type RequestObserver interface {
	ObserveRequest(host string, status int, elapsed time.Duration, err error)
}

// ClientConfig defines configuration options for the HTTP client
type ClientConfig struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	// RequestDelay is the minimum gap between consecutive requests made
	// through this client. Zero disables pacing.
	RequestDelay time.Duration
}

// Client is a sequential, politely paced HTTP client. It never retries: a
// failed or timed-out call is reported to the caller as failed.
type Client struct {
	http     *resty.Client
	limiter  *utils.RateLimiter
	logger   utils.Logger
	observer RequestObserver
}

// NewClient creates a new HTTP client with the specified configuration
func NewClient(config ClientConfig, logger utils.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = getDefaultUserAgents()[0]
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	client := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "application/json, text/javascript, text/html;q=0.9, */*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.5")
	client.SetHeaders(config.Headers)

	return &Client{
		http:    client,
		limiter: utils.NewPacer(config.RequestDelay),
		logger:  logger,
	}
}

// SetObserver registers a request observer (metrics).
func (c *Client) SetObserver(o RequestObserver) {
	c.observer = o
}

// Get performs a paced GET request and returns the body of a 2xx response.
func (c *Client) Get(ctx context.Context, rawURL string, params map[string]string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, apperrors.Endpoint("http.get", "", rawURL, 0, fmt.Errorf("invalid URL"))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.Endpoint("http.get", "", rawURL, 0, err)
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(rawURL)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	if err == nil && !resp.IsSuccess() {
		err = fmt.Errorf("unexpected status %s", resp.Status())
	}
	if c.observer != nil {
		c.observer.ObserveRequest(u.Host, status, elapsed, err)
	}

	log := c.logger.WithFields(map[string]interface{}{
		"host":    u.Host,
		"status":  status,
		"elapsed": elapsed.Round(time.Millisecond).String(),
	})
	if err != nil {
		log.Debugf("GET %s failed: %v", u.Path, err)
		return nil, apperrors.Endpoint("http.get", "", rawURL, status, err)
	}
	log.Debugf("GET %s", u.Path)

	return resp.Body(), nil
}

// GetPage fetches an HTML page.
func (c *Client) GetPage(ctx context.Context, rawURL string) (string, error) {
	body, err := c.Get(ctx, rawURL, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetJSON fetches rawURL and strictly decodes the body into v.
func GetJSON(ctx context.Context, f Fetcher, rawURL string, params map[string]string, v interface{}) error {
	body, err := f.Get(ctx, rawURL, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.Malformed("http.decode", "", rawURL, err)
	}
	return nil
}

// getDefaultUserAgents returns realistic desktop user agent strings
func getDefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	}
}
