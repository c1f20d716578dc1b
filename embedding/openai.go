package embedding

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/revline/algateway/resilience"
)

// OpenAIConfig configures the OpenAI-compatible embedding provider.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // Default: https://api.openai.com/v1
	Model      string // Default: text-embedding-3-small
	Timeout    time.Duration
	HTTPClient *http.Client

	// MaxConcurrent bounds in-flight requests. Default: 8.
	MaxConcurrent int

	// Breaker guards the provider. Nil creates one with default settings.
	// A supplied breaker should use IsProviderFailure.
	Breaker *resilience.CircuitBreaker
}

// OpenAIProvider calls an OpenAI-compatible /embeddings endpoint.
type OpenAIProvider struct {
	client *openai.Client
	model  openai.EmbeddingModel
	exec   *resilience.Executor
}

// NewOpenAIProvider creates the provider. An empty API key returns ErrNotConfigured.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	breaker := cfg.Breaker
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:         "embedding",
			MaxFailures:  5,
			ResetTimeout: 30 * time.Second,
			IsFailure:    IsProviderFailure,
		})
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(oc),
		model:  openai.EmbeddingModel(cfg.Model),
		exec: resilience.NewExecutor(
			resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
				MaxConcurrent: cfg.MaxConcurrent,
				MaxWait:       cfg.Timeout,
			})),
			resilience.WithCircuitBreaker(breaker),
			resilience.WithTimeout(cfg.Timeout),
		),
	}, nil
}

// Embed requests one embedding for text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) (Result, error) {
	var res Result
	err := p.exec.Execute(ctx, func(ctx context.Context) error {
		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: p.model,
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return errors.New("no embedding data in response")
		}
		model := string(resp.Model)
		if model == "" {
			model = string(p.model)
		}
		res = Result{Vector: resp.Data[0].Embedding, Model: model}
		return nil
	})
	return res, err
}

// IsProviderFailure counts server-side and transport failures against a
// breaker. Client errors such as a bad key, and callers that gave up, do not
// trip it.
func IsProviderFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500 || apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= 500 || reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return true
}

var _ Provider = (*OpenAIProvider)(nil)
