package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/blueprint-desktop/exthost/internal/bridge"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
)

const (
	defaultBodyLimit = 5 << 20 // 5 MiB
	defaultTimeout   = 30 * time.Second
	requestsPerSec   = 20
)

// Only idempotent-ish verbs plus POST; extensions have no business
// issuing DELETE or PUT through the proxy.
var allowedMethods = map[string]bool{
	http.MethodGet:  true,
	http.MethodHead: true,
	http.MethodPost: true,
}

// Provider proxies HTTP fetches for sandboxed extensions. Responses
// are capped in size and requests are rate limited across all
// extensions sharing the runtime.
type Provider struct {
	client    *resty.Client
	limiter   *rate.Limiter
	bodyLimit int64
	log       *logging.Logger
}

// New creates a network provider with default limits
func New(log *logging.Logger) *Provider {
	client := resty.New().
		SetTimeout(defaultTimeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetHeader("User-Agent", "Blueprint-Extension/1.0")

	return &Provider{
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(requestsPerSec), requestsPerSec),
		bodyLimit: defaultBodyLimit,
		log:       log.Component("provider.network"),
	}
}

// WithBodyLimit overrides the response size cap
func (p *Provider) WithBodyLimit(limit int64) *Provider {
	p.bodyLimit = limit
	return p
}

// Execute runs a network operation
func (p *Provider) Execute(ctx context.Context, call *bridge.Call) (interface{}, error) {
	switch call.Method {
	case "fetch":
		return p.fetch(ctx, call)
	default:
		return nil, fmt.Errorf("unknown network method: %s", call.Method)
	}
}

func (p *Provider) fetch(ctx context.Context, call *bridge.Call) (interface{}, error) {
	rawURL, err := call.String(0)
	if err != nil {
		return nil, err
	}
	opts := call.OptionalMap(1)

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", parsed.Scheme)
	}

	method := http.MethodGet
	if m, ok := opts["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	if !allowedMethods[method] {
		return nil, fmt.Errorf("method not allowed: %s", method)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := p.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)

	if headers, ok := opts["headers"].(map[string]interface{}); ok {
		for name, value := range headers {
			if s, ok := value.(string); ok {
				req.SetHeader(name, s)
			}
		}
	}
	if body, ok := opts["body"].(string); ok && method == http.MethodPost {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", parsed.Host, err)
	}
	defer resp.RawBody().Close()

	data, err := io.ReadAll(io.LimitReader(resp.RawBody(), p.bodyLimit+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(data)) > p.bodyLimit {
		return nil, fmt.Errorf("response exceeds %d byte limit", p.bodyLimit)
	}

	p.log.Debug("Proxied fetch",
		zap.String("extension_id", call.ExtensionID),
		zap.String("method", method),
		zap.String("host", parsed.Host),
		zap.Int("status", resp.StatusCode()),
		zap.Int("bytes", len(data)))

	headers := make(map[string]string)
	for name, values := range resp.Header() {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	return map[string]interface{}{
		"status":  resp.StatusCode(),
		"headers": headers,
		"body":    string(data),
	}, nil
}
