// Package ncbi provides a shared base HTTP client for NCBI E-utilities.
// The eutils and mesh clients embed it to share rate limiting, common
// parameters, and response size guards.
package ncbi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/henrybloomingdale/srtoolkit/internal/metrics"
)

const (
	// DefaultBaseURL is the NCBI E-utilities base URL.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	// DefaultTool identifies this application to NCBI.
	DefaultTool = "srtoolkit"
	// DefaultEmail is the contact email sent to NCBI.
	DefaultEmail = "srtoolkit@users.noreply.github.com"
	// DefaultMaxResults is the esearch retmax used when a caller gives none.
	DefaultMaxResults = 100
	// DefaultTimeout bounds a single HTTP round trip.
	DefaultTimeout = 30 * time.Second

	// Rate limits per NCBI policy.
	RateWithoutKey = 3  // requests per second without API key
	RateWithKey    = 10 // requests per second with API key

	// DefaultMaxResponseBytes is the maximum response body size (50 MB).
	DefaultMaxResponseBytes int64 = 50 * 1024 * 1024
)

// Config is the explicit client configuration.
type Config struct {
	APIKey     string        `mapstructure:"api_key" yaml:"api_key" validate:"omitempty,printascii"`
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`
	MaxResults int           `mapstructure:"max_results" yaml:"max_results" validate:"gte=1"`
	Tool       string        `mapstructure:"tool" yaml:"tool"`
	Email      string        `mapstructure:"email" yaml:"email" validate:"omitempty,email"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
}

// Options converts the config into client options. Zero values keep the
// client defaults.
func (cfg Config) Options() []Option {
	var opts []Option
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, WithAPIKey(cfg.APIKey))
	}
	if cfg.MaxResults > 0 {
		opts = append(opts, WithMaxResults(cfg.MaxResults))
	}
	if cfg.Tool != "" {
		opts = append(opts, WithTool(cfg.Tool))
	}
	if cfg.Email != "" {
		opts = append(opts, WithEmail(cfg.Email))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	return opts
}

// BaseClient is a shared HTTP client for NCBI E-utilities with proper
// rate limiting, common parameter injection, and response size guards.
type BaseClient struct {
	BaseURL    string
	APIKey     string
	Tool       string
	Email      string
	MaxResults int
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	MaxBytes   int64
	Logger     *slog.Logger
}

// Response is a successful E-utilities response.
type Response struct {
	Body        []byte
	ContentType string
}

// Option configures a BaseClient.
type Option func(*BaseClient)

// WithBaseURL sets the base URL for requests.
func WithBaseURL(u string) Option {
	return func(c *BaseClient) { c.BaseURL = u }
}

// WithAPIKey sets the NCBI API key and adjusts the rate limit accordingly.
func WithAPIKey(key string) Option {
	return func(c *BaseClient) {
		c.APIKey = key
		if key != "" {
			c.Limiter = rate.NewLimiter(rate.Limit(RateWithKey), 1)
		}
	}
}

// WithTool sets the tool parameter for NCBI requests.
func WithTool(tool string) Option {
	return func(c *BaseClient) { c.Tool = tool }
}

// WithEmail sets the email parameter for NCBI requests.
func WithEmail(email string) Option {
	return func(c *BaseClient) { c.Email = email }
}

// WithMaxResults sets the default esearch retmax.
func WithMaxResults(n int) Option {
	return func(c *BaseClient) { c.MaxResults = n }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *BaseClient) { c.HTTPClient = hc }
}

// WithMaxResponseBytes sets the maximum allowed response body size.
func WithMaxResponseBytes(n int64) Option {
	return func(c *BaseClient) { c.MaxBytes = n }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *BaseClient) { c.Logger = l }
}

// NewBaseClient creates a new NCBI base client with the given options.
func NewBaseClient(opts ...Option) *BaseClient {
	c := &BaseClient{
		BaseURL:    DefaultBaseURL,
		Tool:       DefaultTool,
		Email:      DefaultEmail,
		MaxResults: DefaultMaxResults,
		MaxBytes:   DefaultMaxResponseBytes,
		Limiter:    rate.NewLimiter(rate.Limit(RateWithoutKey), 1),
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		Logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DoGet performs a rate-limited GET request and returns only the body.
func (c *BaseClient) DoGet(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	resp, err := c.Do(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Do performs a rate-limited GET request with common NCBI parameters and
// response size limits. Any status other than 200 is an error; there is
// no retry.
func (c *BaseClient) Do(ctx context.Context, endpoint string, params url.Values) (*Response, error) {
	if params == nil {
		params = url.Values{}
	}
	// Add common NCBI params once per request.
	if c.APIKey != "" {
		params.Set("api_key", c.APIKey)
	}
	if c.Tool != "" {
		params.Set("tool", c.Tool)
	}
	if c.Email != "" {
		params.Set("email", c.Email)
	}

	u, err := url.JoinPath(c.BaseURL, endpoint)
	if err != nil {
		return nil, fmt.Errorf("building URL: %w", err)
	}
	fullURL := u + "?" + params.Encode()

	// Wait for rate limiter token (respects context cancellation).
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	c.logger().DebugContext(ctx, "ncbi request",
		"endpoint", endpoint,
		"db", params.Get("db"),
		"has_api_key", c.APIKey != "")

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		metrics.RecordNCBIRequest(endpoint, "transport_error", time.Since(start).Seconds())
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()
	metrics.RecordNCBIRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("NCBI rate limit exceeded (HTTP 429) for %s; consider an API key via --api-key or NCBI_API_KEY", endpoint)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NCBI returned HTTP %d for %s", resp.StatusCode, endpoint)
	}

	// Guard against unbounded reads: read up to MaxBytes+1 to detect oversized responses.
	r := io.LimitReader(resp.Body, c.MaxBytes+1)
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if int64(len(body)) > c.MaxBytes {
		return nil, fmt.Errorf("response exceeds maximum size of %d bytes", c.MaxBytes)
	}

	return &Response{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func (c *BaseClient) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
