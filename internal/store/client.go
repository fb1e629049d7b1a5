package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/blueprint-desktop/exthost/internal/infrastructure/config"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/monitoring"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/resilience"
)

var (
	ErrNotFound    = errors.New("store: extension not found")
	ErrUnavailable = errors.New("store: unavailable")
)

// Client talks to the extension store API. Requests flow through a
// rate limiter and a circuit breaker; listing responses are cached
// with a TTL so repeated UI refreshes stay off the network.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	cache   *lru.LRU[string, []byte]
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// New creates a store client from configuration
func New(cfg config.StoreConfig, log *logging.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "Blueprint-ExtHost/1.0")
	restyClient.SetTransport(&retryablehttp.RoundTripper{Client: retryClient})

	breaker := resilience.New("store", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
	})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond))
	}

	return &Client{
		resty:   restyClient,
		limiter: limiter,
		breaker: breaker,
		cache:   lru.NewLRU[string, []byte](cfg.CacheSize, nil, cfg.CacheTTL),
		log:     log.Component("store"),
	}
}

// WithMetrics adds metrics tracking to the client
func (c *Client) WithMetrics(metrics *monitoring.Metrics) *Client {
	c.metrics = metrics
	return c
}

// BreakerState returns the current circuit breaker state
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// do executes one HTTP request through the limiter and breaker.
// Responses with 5xx status count as breaker failures.
func (c *Client) do(ctx context.Context, operation string, req func() (*resty.Response, error)) (*resty.Response, error) {
	resp, err := c.execute(ctx, req)
	if c.metrics != nil {
		c.metrics.RecordStoreRequest(operation, monitoring.StatusLabel(err))
	}
	return resp, err
}

func (c *Client) execute(ctx context.Context, req func() (*resty.Response, error)) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("store rate limit: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := req()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= 500 {
			return nil, fmt.Errorf("store returned %s", resp.Status())
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			return nil, ErrUnavailable
		}
		return nil, err
	}

	return result.(*resty.Response), nil
}

// getJSON fetches a path and decodes the response body. Cacheable
// paths are served from the TTL cache when possible.
func (c *Client) getJSON(ctx context.Context, operation, path string, out interface{}, cacheable bool) error {
	if cacheable {
		if data, ok := c.cache.Get(path); ok {
			return unmarshal(data, out)
		}
	}

	resp, err := c.do(ctx, operation, func() (*resty.Response, error) {
		return c.resty.R().SetContext(ctx).Get(path)
	})
	if err != nil {
		return err
	}

	if resp.StatusCode() == 404 {
		return ErrNotFound
	}
	if resp.IsError() {
		return fmt.Errorf("store returned %s", resp.Status())
	}

	data := resp.Body()
	if err := unmarshal(data, out); err != nil {
		return err
	}

	if cacheable {
		c.cache.Add(path, data)
	}
	return nil
}
