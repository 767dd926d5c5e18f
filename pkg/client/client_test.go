package client

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/oneapi-client/internal/testutil"
	"github.com/Sternrassler/oneapi-client/pkg/models"
	"github.com/Sternrassler/oneapi-client/pkg/pagination"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const testAPIKey = "test-api-key"

func testConfig(mock *testutil.MockAPI, apiKey string) Config {
	logger := zerolog.Nop()

	cfg := DefaultConfig(apiKey)
	cfg.BaseURL = mock.URL()
	cfg.Logger = &logger
	return cfg
}

func newTestClient(t *testing.T, mock *testutil.MockAPI, apiKey string) *Client {
	t.Helper()

	c, err := New(testConfig(mock, apiKey))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("key")

	if cfg.Credentials.APIKey != "key" {
		t.Errorf("APIKey = %q, want key", cfg.Credentials.APIKey)
	}
	if cfg.BaseURL != "https://the-one-api.dev/v2/" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.PageSize != 1000 {
		t.Errorf("PageSize = %d, want 1000", cfg.PageSize)
	}
	if cfg.Transport == nil {
		t.Error("Transport should default to a gzip transport")
	}
	if cfg.SharedCacheTTL != 5*time.Minute {
		t.Errorf("SharedCacheTTL = %v, want 5m", cfg.SharedCacheTTL)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			config: DefaultConfig("key"),
		},
		{
			name:   "empty base url falls back to default",
			config: Config{Credentials: Credentials{APIKey: "key"}, PageSize: 10},
		},
		{
			name:        "missing api key",
			config:      DefaultConfig(""),
			expectError: true,
			errorMsg:    "api key is required",
		},
		{
			name: "zero page size",
			config: Config{
				Credentials: Credentials{APIKey: "key"},
				BaseURL:     "https://the-one-api.dev/v2/",
			},
			expectError: true,
			errorMsg:    "page_size must be > 0",
		},
		{
			name: "relative base url",
			config: Config{
				Credentials: Credentials{APIKey: "key"},
				BaseURL:     "the-one-api.dev/v2/",
				PageSize:    10,
			},
			expectError: true,
			errorMsg:    "base url must be absolute",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got nil")
				} else if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Error = %q, want it to contain %q", err.Error(), tt.errorMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			c.Close()
		})
	}
}

func TestNew_NoRequests(t *testing.T) {
	mock := testutil.NewMockAPI(testAPIKey)
	defer mock.Close()

	newTestClient(t, mock, "any-key-at-all")

	if n := mock.GetRequestCount(); n != 0 {
		t.Errorf("New issued %d requests", n)
	}
}

func TestClient_FixedCollections(t *testing.T) {
	mock := testutil.NewMockAPI(testAPIKey)
	defer mock.Close()
	mock.SetCollection("movie", testutil.MovieDocs(3))
	mock.SetCollection("quote", testutil.QuoteDocs("movie-1", 5))

	c := newTestClient(t, mock, testAPIKey)
	ctx := context.Background()

	if c.Movies() != c.Movies() {
		t.Error("Movies() returned different collections")
	}
	if got := c.Movies().URL(); got != mock.URL()+"movie/" {
		t.Errorf("Movies().URL() = %q", got)
	}

	movies, err := c.Movies().Count(ctx)
	if err != nil {
		t.Fatalf("Movies().Count failed: %v", err)
	}
	quotes, err := c.Quotes().Count(ctx)
	if err != nil {
		t.Fatalf("Quotes().Count failed: %v", err)
	}
	if movies != 3 || quotes != 5 {
		t.Errorf("counts = (%d, %d), want (3, 5)", movies, quotes)
	}

	want := []string{"/v2/movie/?page=1&limit=1000", "/v2/quote/?page=1&limit=1000"}
	if diff := cmp.Diff(want, mock.Requests()); diff != "" {
		t.Errorf("requests (-want +got):\n%s", diff)
	}
}

func TestClient_QuotesForMovieMemoised(t *testing.T) {
	mock := testutil.NewMockAPI(testAPIKey)
	defer mock.Close()
	mock.SetCollection("movie/m1/quote", testutil.QuoteDocs("m1", 4))
	mock.SetCollection("movie/m2/quote", testutil.QuoteDocs("m2", 1))

	c := newTestClient(t, mock, testAPIKey)

	first, err := c.QuotesForMovie("m1", 2)
	if err != nil {
		t.Fatalf("QuotesForMovie failed: %v", err)
	}
	again, err := c.QuotesForMovie("m1", 50)
	if err != nil {
		t.Fatalf("QuotesForMovie failed: %v", err)
	}
	if first != again {
		t.Fatal("QuotesForMovie returned a new collection for the same movie")
	}

	other, err := c.QuotesForMovie("m2", 0)
	if err != nil {
		t.Fatalf("QuotesForMovie failed: %v", err)
	}
	if other == first {
		t.Error("different movies share a collection")
	}

	// The page size of the first call sticks.
	if _, err := again.Count(context.Background()); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if diff := cmp.Diff([]string{"/v2/movie/m1/quote/?page=1&limit=2"}, mock.Requests()); diff != "" {
		t.Errorf("requests (-want +got):\n%s", diff)
	}
	if got := other.URL(); got != mock.URL()+"movie/m2/quote/" {
		t.Errorf("URL() = %q", got)
	}
}

func TestClient_QuotesForMovieOf(t *testing.T) {
	mock := testutil.NewMockAPI(testAPIKey)
	defer mock.Close()

	c := newTestClient(t, mock, testAPIKey)

	byID, err := c.QuotesForMovie("m1", 0)
	if err != nil {
		t.Fatalf("QuotesForMovie failed: %v", err)
	}
	byMovie, err := c.QuotesForMovieOf(models.Movie{MovieID: "m1", Name: "The Fellowship of the Ring"}, 0)
	if err != nil {
		t.Fatalf("QuotesForMovieOf failed: %v", err)
	}
	if byID != byMovie {
		t.Error("QuotesForMovieOf bypassed the registry")
	}
}

func TestClient_QuotesForMovieConcurrent(t *testing.T) {
	mock := testutil.NewMockAPI(testAPIKey)
	defer mock.Close()

	c := newTestClient(t, mock, testAPIKey)

	const workers = 16
	results := make([]*pagination.Collection[models.Quote], workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			quotes, err := c.QuotesForMovie("m1", 0)
			if err != nil {
				t.Errorf("QuotesForMovie failed: %v", err)
				return
			}
			results[i] = quotes
		}(i)
	}
	wg.Wait()

	for i, quotes := range results {
		if quotes != results[0] {
			t.Errorf("worker %d got a different collection", i)
		}
	}
}

func TestClient_QuotesForMovieRequiresID(t *testing.T) {
	mock := testutil.NewMockAPI(testAPIKey)
	defer mock.Close()

	c := newTestClient(t, mock, testAPIKey)

	if _, err := c.QuotesForMovie("", 0); err == nil {
		t.Error("QuotesForMovie(\"\") succeeded")
	}
}

func TestClient_RateLimit(t *testing.T) {
	mock := testutil.NewMockAPI(testAPIKey)
	defer mock.Close()
	mock.SetCollection("movie", testutil.MovieDocs(1))
	mock.SetHeader("X-RateLimit-Limit", "100")
	mock.SetHeader("X-RateLimit-Remaining", "97")
	mock.SetHeader("X-RateLimit-Reset", "1760000000")

	c := newTestClient(t, mock, testAPIKey)

	if c.RateLimit().Known() {
		t.Error("rate limit known before any request")
	}

	if _, err := c.Movies().Count(context.Background()); err != nil {
		t.Fatalf("Count failed: %v", err)
	}

	state := c.RateLimit()
	if state.Limit != 100 || state.Remaining != 97 {
		t.Errorf("state = %+v, want limit 100 remaining 97", state)
	}
	if !state.ResetAt.Equal(time.Unix(1760000000, 0)) {
		t.Errorf("ResetAt = %v", state.ResetAt)
	}
}

func TestClient_SharedResponseCache(t *testing.T) {
	mock := testutil.NewMockAPI(testAPIKey)
	defer mock.Close()
	mock.SetCollection("movie", testutil.MovieDocs(4))

	server := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	cfg := testConfig(mock, testAPIKey)
	cfg.Redis = redisClient

	first, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer first.Close()

	if _, err := first.Movies().Count(context.Background()); err != nil {
		t.Fatalf("Count failed: %v", err)
	}

	second, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer second.Close()

	count, err := second.Movies().Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 4 {
		t.Errorf("Count() = %d, want 4", count)
	}
	if n := mock.GetRequestCount(); n != 1 {
		t.Errorf("request count = %d, want 1", n)
	}
}

func TestClient_CustomTransport(t *testing.T) {
	mock := testutil.NewMockAPI(testAPIKey)
	defer mock.Close()
	mock.SetCollection("movie", testutil.MovieDocs(1))

	var mu sync.Mutex
	seen := 0
	cfg := testConfig(mock, testAPIKey)
	cfg.Transport = roundTripFunc(func(r *http.Request) (*http.Response, error) {
		mu.Lock()
		seen++
		mu.Unlock()
		return http.DefaultTransport.RoundTrip(r)
	})

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if _, err := c.Movies().Count(context.Background()); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if seen != 1 {
		t.Errorf("transport saw %d requests, want 1", seen)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestClient_CloseReleasesMovieQuoteGauge(t *testing.T) {
	mock := testutil.NewMockAPI(testAPIKey)
	defer mock.Close()

	before := promtest.ToFloat64(movieQuoteCollections)

	for i := 0; i < 3; i++ {
		c, err := New(testConfig(mock, testAPIKey))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		for _, id := range []string{"m1", "m2"} {
			if _, err := c.QuotesForMovie(id, 0); err != nil {
				t.Fatalf("QuotesForMovie failed: %v", err)
			}
		}
		if got := promtest.ToFloat64(movieQuoteCollections) - before; got != 2 {
			t.Errorf("client %d: gauge delta = %v, want 2", i, got)
		}

		c.Close()
		// A second Close must not subtract again.
		c.Close()

		if got := promtest.ToFloat64(movieQuoteCollections); got != before {
			t.Errorf("client %d: gauge after Close = %v, want %v", i, got, before)
		}
	}
}
