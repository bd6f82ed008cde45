package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/livequote/internal/cache"
	"github.com/rickgao/livequote/internal/version"
)

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("http://localhost:8000/")

		if c.baseURL != "http://localhost:8000" {
			t.Errorf("baseURL = %q, want trailing slash trimmed", c.baseURL)
		}
		if c.httpClient.Timeout != 10*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 10*time.Second)
		}
		if c.maxRetries != 0 {
			t.Errorf("maxRetries = %d, want 0", c.maxRetries)
		}
		if c.userAgent != version.UserAgent() {
			t.Errorf("userAgent = %q, want %q", c.userAgent, version.UserAgent())
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
		if c.cache != nil {
			t.Error("cache should be nil by default")
		}
	})

	t.Run("with multiple options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		mem := cache.NewMemory()
		c := NewClient("http://localhost:8000",
			WithTimeout(15*time.Second),
			WithRetries(3, 500*time.Millisecond),
			WithLogger(logger),
			WithCache(mem, time.Minute),
			WithUserAgent("test-agent"),
		)
		if c.httpClient.Timeout != 15*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 15*time.Second)
		}
		if c.maxRetries != 3 || c.retryBackoff != 500*time.Millisecond {
			t.Errorf("retries = %d/%v, want 3/500ms", c.maxRetries, c.retryBackoff)
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
		if c.cache == nil || c.cacheTTL != time.Minute {
			t.Error("cache not set correctly")
		}
		if c.userAgent != "test-agent" {
			t.Errorf("userAgent = %q", c.userAgent)
		}
	})

	t.Run("with custom HTTP client", func(t *testing.T) {
		customClient := &http.Client{Timeout: 3 * time.Second}
		c := NewClient("http://localhost:8000", WithHTTPClient(customClient))
		if c.httpClient != customClient {
			t.Error("custom HTTP client not set")
		}
	})
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 404, Message: "Historical data not found"}
	if err.Error() != "quote api error 404: Historical data not found" {
		t.Errorf("Error() = %q", err.Error())
	}

	tests := []struct {
		code     int
		expected bool
	}{
		{500, true},
		{502, true},
		{503, true},
		{429, true},
		{400, false},
		{404, false},
		{499, false},
	}
	for _, tt := range tests {
		err := &APIError{StatusCode: tt.code}
		if got := err.IsRetryable(); got != tt.expected {
			t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
		}
	}
}

func TestDoRequest(t *testing.T) {
	t.Run("headers", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Accept") != "application/json" {
				t.Errorf("Accept header = %q", r.Header.Get("Accept"))
			}
			if r.Header.Get("User-Agent") != "test-agent" {
				t.Errorf("User-Agent header = %q", r.Header.Get("User-Agent"))
			}
			w.Write([]byte(`{"status": "ok"}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithUserAgent("test-agent"))
		body, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != `{"status": "ok"}` {
			t.Errorf("body = %q", string(body))
		}
	})

	t.Run("detail message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail": "Live price not available."}`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %T", err)
		}
		if apiErr.StatusCode != 404 || apiErr.Message != "Live price not available." {
			t.Errorf("unexpected error %+v", apiErr)
		}
	})

	t.Run("plain error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("upstream down"))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "Bad Gateway" {
			t.Errorf("unexpected error %v", err)
		}
	})
}

func TestDoWithRetry(t *testing.T) {
	t.Run("no retry by default", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})

	t.Run("retries retryable errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`[]`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls.Load() != 3 {
			t.Errorf("calls = %d, want 3", calls.Load())
		}
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, time.Millisecond))
		c.doWithRetry(context.Background(), http.MethodGet, "/test", nil)
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(2, time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != 500 {
			t.Errorf("expected wrapped 500, got %v", err)
		}
	})
}

const indicesBody = `[
	{"name": "Nifty 50", "symbol": "^NSEI", "price": 22150.5, "change": 120.25, "percent_change": 0.55},
	{"name": "Dow Jones", "symbol": "^DJI", "price": 38500, "change": -50, "percent_change": -0.13},
	{"name": "India VIX", "symbol": "^INDIAVIX", "price": null, "change": null, "percent_change": null}
]`

func TestFetchQuotes_Overview(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/indices/summary" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(indicesBody))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	quotes, err := c.FetchQuotes(context.Background(), OverviewChannel)
	if err != nil {
		t.Fatalf("FetchQuotes failed: %v", err)
	}

	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes (null price skipped), got %d", len(quotes))
	}
	if quotes[0].Symbol != "^NSEI" || quotes[0].Name != "Nifty 50" {
		t.Errorf("unexpected first quote %+v", quotes[0])
	}
	if quotes[0].Price.String() != "22150.5" {
		t.Errorf("price = %s, want 22150.5", quotes[0].Price)
	}
	if quotes[1].PercentChange.String() != "-0.13" {
		t.Errorf("percent change = %s, want -0.13", quotes[1].PercentChange)
	}
}

func TestFetchQuotes_Symbol(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCount int
		wantName  string
		wantPct   string
	}{
		{
			name:      "quote object",
			body:      `{"profile": {"companyName": "Apple Inc.", "currency": "USD"}, "quote": {"symbol": "AAPL", "name": "Apple Inc.", "price": 189.25, "change": 1.5, "changesPercentage": 0.8, "volume": 51000000}}`,
			wantCount: 1,
			wantName:  "Apple Inc.",
			wantPct:   "0.8",
		},
		{
			name:      "quote list form",
			body:      `{"quote": [{"symbol": "AAPL", "price": 189.25, "change": 1.5, "changesPercentage": 0.8}], "profile": {"companyName": "Apple Inc."}}`,
			wantCount: 1,
			wantName:  "Apple Inc.",
			wantPct:   "0.8",
		},
		{
			name:      "quote fetch failed",
			body:      `{"quote": {"error": "Failed to fetch quote data."}}`,
			wantCount: 0,
		},
		{
			name:      "empty quote list",
			body:      `{"quote": []}`,
			wantCount: 0,
		},
		{
			name:      "no quote",
			body:      `{"profile": {}}`,
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/stocks/AAPL/all" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewClient(server.URL)
			quotes, err := c.FetchQuotes(context.Background(), "AAPL")
			if err != nil {
				t.Fatalf("FetchQuotes failed: %v", err)
			}
			if len(quotes) != tt.wantCount {
				t.Fatalf("expected %d quotes, got %d", tt.wantCount, len(quotes))
			}
			if tt.wantCount == 0 {
				return
			}

			q := quotes[0]
			if q.Symbol != "AAPL" {
				t.Errorf("symbol = %q", q.Symbol)
			}
			if q.Name != tt.wantName {
				t.Errorf("name = %q, want %q", q.Name, tt.wantName)
			}
			if q.PercentChange.String() != tt.wantPct {
				t.Errorf("percent change = %s, want %s", q.PercentChange, tt.wantPct)
			}
		})
	}
}

func TestFetchQuotes_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL)
	_, err := c.FetchQuotes(context.Background(), "AAPL")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
}

func TestFetchQuotes_Cache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(indicesBody))
	}))
	defer server.Close()

	c := NewClient(server.URL, WithCache(cache.NewMemory(), time.Minute))

	for i := 0; i < 3; i++ {
		quotes, err := c.FetchQuotes(context.Background(), OverviewChannel)
		if err != nil {
			t.Fatalf("FetchQuotes %d failed: %v", i, err)
		}
		if len(quotes) != 2 {
			t.Fatalf("FetchQuotes %d returned %d quotes", i, len(quotes))
		}
	}

	if calls.Load() != 1 {
		t.Errorf("server calls = %d, want 1", calls.Load())
	}
}

func TestFetchQuotes_ContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient(server.URL)
	if _, err := c.FetchQuotes(ctx, OverviewChannel); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
