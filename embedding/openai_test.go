package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/revline/algateway/resilience"
)

func newEmbeddingServer(t *testing.T, status int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s, want /embeddings", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream broke","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.25, 0.5, 0.75}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIProvider_Embed(t *testing.T) {
	var calls atomic.Int32
	srv := newEmbeddingServer(t, http.StatusOK, &calls)

	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/", Model: "text-embedding-3-small"})
	if err != nil {
		t.Fatalf("NewOpenAIProvider() error = %v", err)
	}

	res, err := p.Embed(context.Background(), "what is bump steer")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(res.Vector) != 3 || res.Vector[2] != 0.75 {
		t.Errorf("Vector = %v", res.Vector)
	}
	if res.Model != "text-embedding-3-small" {
		t.Errorf("Model = %q", res.Model)
	}
}

func TestOpenAIProvider_MissingKey(t *testing.T) {
	if _, err := NewOpenAIProvider(OpenAIConfig{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("error = %v, want ErrNotConfigured", err)
	}
}

func TestOpenAIProvider_ServerErrorsTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := newEmbeddingServer(t, http.StatusInternalServerError, &calls)

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
		IsFailure:    IsProviderFailure,
	})
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Breaker: breaker})
	if err != nil {
		t.Fatalf("NewOpenAIProvider() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := p.Embed(context.Background(), "x"); err == nil {
			t.Fatal("Embed() should fail on 500")
		}
	}
	_, err = p.Embed(context.Background(), "x")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("third call error = %v, want ErrCircuitOpen", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server calls = %d, want 2", calls.Load())
	}
}

func TestClient_WithOpenAIProvider(t *testing.T) {
	var calls atomic.Int32
	srv := newEmbeddingServer(t, http.StatusOK, &calls)
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewOpenAIProvider() error = %v", err)
	}
	c := NewClient(p)

	for i := 0; i < 3; i++ {
		if _, err := c.Embed(context.Background(), "Cold Air Intake"); err != nil {
			t.Fatalf("Embed() error = %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("server calls = %d, want 1", calls.Load())
	}
}

func TestIsProviderFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusBadGateway}, true},
		{"rate limited", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, true},
		{"bad key", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}, false},
		{"bad request", &openai.RequestError{HTTPStatusCode: http.StatusBadRequest}, false},
		{"caller cancelled", fmt.Errorf("embed: %w", context.Canceled), false},
		{"timeout", context.DeadlineExceeded, true},
		{"transport", errors.New("connection refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsProviderFailure(tt.err); got != tt.want {
				t.Errorf("IsProviderFailure(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestOpenAIProvider_ClientErrorsKeepBreakerClosed(t *testing.T) {
	var calls atomic.Int32
	srv := newEmbeddingServer(t, http.StatusUnauthorized, &calls)

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: time.Hour,
		IsFailure:    IsProviderFailure,
	})
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL, Breaker: breaker})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if _, err := p.Embed(context.Background(), "x"); errors.Is(err, resilience.ErrCircuitOpen) {
			t.Fatalf("call %d: circuit opened on a client error", i)
		}
	}
	if calls.Load() != 4 || breaker.State() != resilience.StateClosed {
		t.Errorf("calls = %d, state = %v", calls.Load(), breaker.State())
	}
}
