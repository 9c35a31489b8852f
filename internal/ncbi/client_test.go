package ncbi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewBaseClient_Defaults(t *testing.T) {
	c := NewBaseClient()
	if c.BaseURL != DefaultBaseURL {
		t.Errorf("expected base URL %q, got %q", DefaultBaseURL, c.BaseURL)
	}
	if c.Tool != DefaultTool {
		t.Errorf("expected tool %q, got %q", DefaultTool, c.Tool)
	}
	if c.Email != DefaultEmail {
		t.Errorf("expected email %q, got %q", DefaultEmail, c.Email)
	}
	if c.MaxResults != DefaultMaxResults {
		t.Errorf("expected max results %d, got %d", DefaultMaxResults, c.MaxResults)
	}
	if c.MaxBytes != DefaultMaxResponseBytes {
		t.Errorf("expected max bytes %d, got %d", DefaultMaxResponseBytes, c.MaxBytes)
	}
	if c.Limiter == nil {
		t.Error("expected non-nil limiter")
	}
}

func TestConfigOptions(t *testing.T) {
	cfg := Config{
		APIKey:     "cfg-key",
		BaseURL:    "http://localhost:9999",
		MaxResults: 250,
		Tool:       "my-tool",
		Email:      "test@example.com",
		Timeout:    5 * time.Second,
	}
	c := NewBaseClient(cfg.Options()...)

	if c.APIKey != "cfg-key" {
		t.Errorf("expected API key %q, got %q", "cfg-key", c.APIKey)
	}
	if c.BaseURL != "http://localhost:9999" {
		t.Errorf("expected base URL %q, got %q", "http://localhost:9999", c.BaseURL)
	}
	if c.MaxResults != 250 {
		t.Errorf("expected max results 250, got %d", c.MaxResults)
	}
	if c.HTTPClient.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", c.HTTPClient.Timeout)
	}
	if c.Limiter.Limit() != RateWithKey {
		t.Errorf("expected keyed rate %d, got %v", RateWithKey, c.Limiter.Limit())
	}
}

func TestConfigOptions_ZeroKeepsDefaults(t *testing.T) {
	c := NewBaseClient(Config{}.Options()...)
	if c.BaseURL != DefaultBaseURL {
		t.Errorf("expected default base URL, got %q", c.BaseURL)
	}
	if c.MaxResults != DefaultMaxResults {
		t.Errorf("expected default max results, got %d", c.MaxResults)
	}
	if c.APIKey != "" {
		t.Errorf("expected no API key, got %q", c.APIKey)
	}
}

func TestDo_CommonParams(t *testing.T) {
	var receivedParams map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedParams = make(map[string]string)
		for k, v := range r.URL.Query() {
			receivedParams[k] = v[0]
		}
		w.Header().Set("Content-Type", "text/xml; charset=UTF-8")
		w.Write([]byte(`<ok/>`))
	}))
	defer srv.Close()

	c := NewBaseClient(
		WithBaseURL(srv.URL),
		WithAPIKey("my-api-key"),
		WithTool("srtoolkit"),
		WithEmail("user@example.com"),
	)

	resp, err := c.Do(context.Background(), "efetch.fcgi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedParams["api_key"] != "my-api-key" {
		t.Errorf("expected api_key %q, got %q", "my-api-key", receivedParams["api_key"])
	}
	if receivedParams["tool"] != "srtoolkit" {
		t.Errorf("expected tool %q, got %q", "srtoolkit", receivedParams["tool"])
	}
	if receivedParams["email"] != "user@example.com" {
		t.Errorf("expected email %q, got %q", "user@example.com", receivedParams["email"])
	}
	if !strings.Contains(resp.ContentType, "xml") {
		t.Errorf("expected xml content type, got %q", resp.ContentType)
	}
}

// Without a key the request must carry the same parameters minus api_key.
func TestDo_NoAPIKeyKeepsShape(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k := range r.URL.Query() {
			keys = append(keys, k)
		}
		w.Write([]byte(`OK`))
	}))
	defer srv.Close()

	c := NewBaseClient(WithBaseURL(srv.URL))
	params := map[string][]string{"db": {"pubmed"}}
	if _, err := c.DoGet(context.Background(), "esearch.fcgi", params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sort.Strings(keys)
	want := []string{"db", "email", "tool"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("expected params %v, got %v", want, keys)
	}
}

func TestDo_RateLimitSequential(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping rate limit test in short mode")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`OK`))
	}))
	defer srv.Close()

	// Client without API key: max 3 req/sec
	c := NewBaseClient(WithBaseURL(srv.URL))

	start := time.Now()
	for i := 0; i < 4; i++ {
		if _, err := c.DoGet(context.Background(), "test.fcgi", nil); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	// 4 requests at 3/sec should take at least ~900ms (3 intervals of 333ms)
	if elapsed < 900*time.Millisecond {
		t.Errorf("rate limiting too fast: 4 requests completed in %v (expected >= 900ms)", elapsed)
	}
}

// With rate=3/sec and burst=1 no more than 4 requests may land in any
// 1-second window, even when 10 goroutines share the client.
func TestDo_ConcurrentRateLimitNoKey(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrent rate limit test in short mode")
	}

	var mu sync.Mutex
	var timestamps []time.Time

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		timestamps = append(timestamps, time.Now())
		mu.Unlock()
		w.Write([]byte(`OK`))
	}))
	defer srv.Close()

	c := NewBaseClient(WithBaseURL(srv.URL))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.DoGet(context.Background(), "test.fcgi", nil)
		}()
	}
	wg.Wait()

	if len(timestamps) != 10 {
		t.Fatalf("expected 10 requests, got %d", len(timestamps))
	}

	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i].Before(timestamps[j])
	})

	for i := 0; i < len(timestamps); i++ {
		count := 1
		for j := i + 1; j < len(timestamps); j++ {
			if timestamps[j].Sub(timestamps[i]) < time.Second {
				count++
			}
		}
		if count > 4 {
			t.Errorf("rate limit violated: %d requests within 1 second starting at index %d (max 4 expected)", count, i)
			for k, ts := range timestamps {
				t.Logf("  request %d: %v", k, ts.Sub(timestamps[0]))
			}
			break
		}
	}
}

func TestDo_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("X", 2048)))
	}))
	defer srv.Close()

	c := NewBaseClient(
		WithBaseURL(srv.URL),
		WithAPIKey("test"),
		WithMaxResponseBytes(1024),
	)

	_, err := c.DoGet(context.Background(), "test.fcgi", nil)
	if err == nil {
		t.Fatal("expected error for oversized response, got nil")
	}
	if !strings.Contains(err.Error(), "exceeds maximum size") {
		t.Errorf("expected 'exceeds maximum size' error, got: %v", err)
	}
}

func TestDo_ResponseWithinLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("small response"))
	}))
	defer srv.Close()

	c := NewBaseClient(
		WithBaseURL(srv.URL),
		WithAPIKey("test"),
		WithMaxResponseBytes(1024),
	)

	body, err := c.DoGet(context.Background(), "test.fcgi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "small response" {
		t.Errorf("expected 'small response', got %q", string(body))
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	c := NewBaseClient(
		WithBaseURL("http://127.0.0.1:1"),
		WithAPIKey("test"),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.DoGet(ctx, "test.fcgi", nil)
	if err == nil {
		t.Error("expected error from cancelled context, got nil")
	}
}

func TestDo_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewBaseClient(WithBaseURL(srv.URL), WithAPIKey("test"))
	_, err := c.DoGet(context.Background(), "test.fcgi", nil)
	if err == nil {
		t.Error("expected error for HTTP 500, got nil")
	}
}

func TestDo_HTTP429NoRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewBaseClient(WithBaseURL(srv.URL), WithAPIKey("test"))
	_, err := c.DoGet(context.Background(), "test.fcgi", nil)
	if err == nil {
		t.Fatal("expected error for HTTP 429, got nil")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected '429' in error message, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 request, got %d", calls)
	}
}

func TestDo_URLJoinPath(t *testing.T) {
	// Ensure trailing slash on base URL doesn't cause double-slash
	var receivedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedPath = r.URL.Path
		w.Write([]byte(`OK`))
	}))
	defer srv.Close()

	c := NewBaseClient(WithBaseURL(srv.URL+"/"), WithAPIKey("test"))
	if _, err := c.DoGet(context.Background(), "esearch.fcgi", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Contains(receivedPath, "//") {
		t.Errorf("double slash in path: %q", receivedPath)
	}
}
