package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/revline/algateway/resilience"
)

// Limits for a single search.
const (
	DefaultResults = 5
	MaxResults     = 10
	maxBodyBytes   = 1 << 20
)

// Sentinel errors for web search.
var (
	// ErrNotConfigured reports a missing endpoint or API key. No I/O happens.
	ErrNotConfigured = errors.New("websearch: provider not configured")

	// ErrEmptyQuery reports a blank query.
	ErrEmptyQuery = errors.New("websearch: query is empty")
)

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("websearch: provider returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if retried.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Result is one search hit.
type Result struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text,omitempty"`
}

// Config configures Client.
type Config struct {
	Endpoint string
	APIKey   string

	// Timeout bounds each attempt. Default: 10s.
	Timeout time.Duration

	// RatePerSecond limits outbound requests. Zero disables limiting.
	RatePerSecond float64

	// MaxAttempts includes the first try. Default: 2.
	MaxAttempts int

	HTTPClient *http.Client
}

// Client calls a web-search provider that accepts {query, num_results}.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	exec     *resilience.Executor
	breaker  *resilience.CircuitBreaker
}

// New creates a Client. Missing endpoint or key returns ErrNotConfigured.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "websearch",
		MaxFailures:  5,
		ResetTimeout: 30 * time.Second,
		IsFailure:    isTransient,
	})
	opts := []resilience.ExecutorOption{
		resilience.WithCircuitBreaker(breaker),
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Jitter:       true,
			RetryIf:      isTransient,
		})),
		resilience.WithTimeout(cfg.Timeout),
	}
	if cfg.RatePerSecond > 0 {
		opts = append(opts, resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:        cfg.RatePerSecond,
			Burst:       int(cfg.RatePerSecond) + 1,
			WaitOnLimit: true,
		})))
	}

	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     hc,
		exec:     resilience.NewExecutor(opts...),
		breaker:  breaker,
	}, nil
}

// BreakerState exposes the provider circuit state for health checks.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// Search runs query and returns up to numResults hits.
func (c *Client) Search(ctx context.Context, query string, numResults int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if numResults <= 0 {
		numResults = DefaultResults
	}
	if numResults > MaxResults {
		numResults = MaxResults
	}

	body, err := json.Marshal(map[string]any{"query": query, "num_results": numResults})
	if err != nil {
		return nil, fmt.Errorf("websearch: encode request: %w", err)
	}

	var results []Result
	err = c.exec.Execute(ctx, func(ctx context.Context) error {
		var err error
		results, err = c.do(ctx, body)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(results) > numResults {
		results = results[:numResults]
	}
	return results, nil
}

func (c *Client) do(ctx context.Context, body []byte) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("websearch: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("websearch: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(data)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}

	var decoded struct {
		Results []Result `json:"results"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("websearch: decode response: %w", err)
	}
	if decoded.Results == nil {
		decoded.Results = []Result{}
	}
	return decoded.Results, nil
}

// isTransient reports errors worth retrying and counting against the breaker.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
