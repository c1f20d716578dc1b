package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestNew_NotConfigured(t *testing.T) {
	tests := []Config{
		{},
		{Endpoint: "http://x"},
		{APIKey: "k"},
	}
	for _, cfg := range tests {
		if _, err := New(cfg); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("New(%+v) error = %v, want ErrNotConfigured", cfg, err)
		}
	}
}

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("x-api-key") != "secret" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		var req struct {
			Query      string `json:"query"`
			NumResults int    `json:"num_results"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Query != "2025 wrx recall" || req.NumResults != 3 {
			t.Errorf("request = %+v", req)
		}
		_, _ = w.Write([]byte(`{"results":[
			{"title":"a","url":"https://a","text":"x"},
			{"title":"b","url":"https://b"},
			{"title":"c","url":"https://c"},
			{"title":"d","url":"https://d"}]}`))
	}))
	defer srv.Close()

	c, err := New(Config{Endpoint: srv.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	results, err := c.Search(context.Background(), "  2025 wrx recall ", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 || results[0].Title != "a" || results[0].Text != "x" {
		t.Errorf("results = %+v", results)
	}
}

func TestClient_SearchClampsResults(t *testing.T) {
	var got atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			NumResults int32 `json:"num_results"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		got.Store(req.NumResults)
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c, _ := New(Config{Endpoint: srv.URL, APIKey: "k"})
	if _, err := c.Search(context.Background(), "q", 50); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got.Load() != MaxResults {
		t.Errorf("num_results = %d, want %d", got.Load(), MaxResults)
	}
	if _, err := c.Search(context.Background(), "q", 0); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got.Load() != DefaultResults {
		t.Errorf("num_results = %d, want %d", got.Load(), DefaultResults)
	}
}

func TestClient_EmptyQuery(t *testing.T) {
	c, _ := New(Config{Endpoint: "http://127.0.0.1:1", APIKey: "k"})
	if _, err := c.Search(context.Background(), "   ", 3); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("error = %v, want ErrEmptyQuery", err)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"title":"ok","url":"u"}]}`))
	}))
	defer srv.Close()

	c, _ := New(Config{Endpoint: srv.URL, APIKey: "k", MaxAttempts: 2})
	results, err := c.Search(context.Background(), "q", 1)
	if err != nil || len(results) != 1 {
		t.Fatalf("Search() = %v, %v", results, err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestClient_ClientErrorsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`bad key`))
	}))
	defer srv.Close()

	c, _ := New(Config{Endpoint: srv.URL, APIKey: "k", MaxAttempts: 3})
	_, err := c.Search(context.Background(), "q", 1)

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Fatalf("error = %v, want StatusError 401", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}
