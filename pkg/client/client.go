// Package client provides the entry point to The One API: one lazily paged,
// caching collection per endpoint, sharing credentials, rate limit tracking and
// an optional Redis response cache.
package client

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/Sternrassler/oneapi-client/pkg/cache"
	"github.com/Sternrassler/oneapi-client/pkg/logging"
	"github.com/Sternrassler/oneapi-client/pkg/models"
	"github.com/Sternrassler/oneapi-client/pkg/pagination"
	"github.com/Sternrassler/oneapi-client/pkg/ratelimit"
	"github.com/Sternrassler/oneapi-client/pkg/transport"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultPageSize is the number of items requested per page.
const DefaultPageSize = 1000

// Routes of the fixed collections.
const (
	RouteMovies = "movie"
	RouteQuotes = "quote"

	// routeMovieQuotes labels every per-movie quote collection in metrics and logs.
	routeMovieQuotes = "movie/{id}/quote"
)

var movieQuoteCollections = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "oneapi_movie_quote_collections",
	Help: "Number of per-movie quote collections held by open clients",
})

// Credentials authenticate against the API.
type Credentials struct {
	// APIKey is the bearer token issued by the-one-api.dev (REQUIRED).
	APIKey string
}

// Config holds the client configuration.
type Config struct {
	Credentials Credentials

	// BaseURL is the API root, e.g. "https://the-one-api.dev/v2/"
	BaseURL string

	// PageSize is the number of items requested per page
	PageSize int

	// Transport carries every request. Each collection gets its own http.Client
	// over it. Defaults to a gzip-aware http.DefaultTransport.
	Transport http.RoundTripper

	// Redis enables the shared response cache (optional)
	Redis          *redis.Client
	SharedCacheTTL time.Duration

	// Logger overrides the component logger derived from the global logger
	Logger *zerolog.Logger
}

// DefaultConfig returns a configuration for the public API.
func DefaultConfig(apiKey string) Config {
	return Config{
		Credentials:    Credentials{APIKey: apiKey},
		BaseURL:        transport.DefaultBaseURL,
		PageSize:       DefaultPageSize,
		Transport:      gzhttp.Transport(http.DefaultTransport),
		SharedCacheTTL: cache.DefaultTTL,
	}
}

// Client owns the movie and quote collections and a registry of per-movie quote
// collections. The registry is safe for concurrent use; each collection is not,
// see package pagination.
type Client struct {
	config      Config
	logger      zerolog.Logger
	rateLimiter *ratelimit.Tracker
	responses   *cache.Manager

	movies *pagination.Collection[models.Movie]
	quotes *pagination.Collection[models.Quote]

	mu          sync.Mutex
	movieQuotes map[string]*pagination.Collection[models.Quote]
}

// New creates a new client. The API key is not checked against the server; a wrong
// key surfaces as an authentication error on the first request.
func New(cfg Config) (*Client, error) {
	if cfg.Credentials.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("page_size must be > 0 (got %d)", cfg.PageSize)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = transport.DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}

	logger := logging.NewLogger("oneapi-client")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	c := &Client{
		config:      cfg,
		logger:      logger,
		rateLimiter: ratelimit.NewTracker(logger),
		movieQuotes: make(map[string]*pagination.Collection[models.Quote]),
	}

	if cfg.Redis != nil {
		c.responses = cache.NewManager(cfg.Redis)
	}

	if c.movies, err = newCollection[models.Movie](c, RouteMovies, RouteMovies, cfg.PageSize); err != nil {
		return nil, err
	}
	if c.quotes, err = newCollection[models.Quote](c, RouteQuotes, RouteQuotes, cfg.PageSize); err != nil {
		return nil, err
	}

	logger.Debug().
		Str("base_url", cfg.BaseURL).
		Int("page_size", cfg.PageSize).
		Bool("shared_cache", c.responses != nil).
		Msg("Client created")

	return c, nil
}

// Movies returns the collection of all movies.
func (c *Client) Movies() *pagination.Collection[models.Movie] {
	return c.movies
}

// Quotes returns the collection of all quotes.
func (c *Client) Quotes() *pagination.Collection[models.Quote] {
	return c.quotes
}

// QuotesForMovie returns the quotes of one movie. The collection is created on the
// first call for movieID and returned unchanged afterwards, so pageSize only counts
// on that first call; pageSize <= 0 selects the client's page size. Entries are never
// evicted.
func (c *Client) QuotesForMovie(movieID string, pageSize int) (*pagination.Collection[models.Quote], error) {
	if movieID == "" {
		return nil, fmt.Errorf("movie id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if quotes, ok := c.movieQuotes[movieID]; ok {
		return quotes, nil
	}

	if pageSize <= 0 {
		pageSize = c.config.PageSize
	}

	route := RouteMovies + "/" + url.PathEscape(movieID) + "/" + RouteQuotes
	quotes, err := newCollection[models.Quote](c, route, routeMovieQuotes, pageSize)
	if err != nil {
		return nil, err
	}

	c.movieQuotes[movieID] = quotes
	movieQuoteCollections.Inc()
	return quotes, nil
}

// QuotesForMovieOf is QuotesForMovie for a movie already at hand.
func (c *Client) QuotesForMovieOf(movie models.Movie, pageSize int) (*pagination.Collection[models.Quote], error) {
	return c.QuotesForMovie(movie.ID(), pageSize)
}

// RateLimit returns the last quota reported by the API.
func (c *Client) RateLimit() ratelimit.State {
	return c.rateLimiter.State()
}

// Close releases the idle connections of every collection and forgets the per-movie
// quote collections. Collections already handed out keep their cached items.
func (c *Client) Close() error {
	c.movies.Close()
	c.quotes.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, quotes := range c.movieQuotes {
		quotes.Close()
	}
	movieQuoteCollections.Sub(float64(len(c.movieQuotes)))
	clear(c.movieQuotes)
	return nil
}

func newCollection[T models.Item](c *Client, route, label string, pageSize int) (*pagination.Collection[T], error) {
	collectionURL, err := transport.ResolveRoute(c.config.BaseURL, route)
	if err != nil {
		return nil, fmt.Errorf("resolve route %q: %w", route, err)
	}

	opts := transport.FetcherOptions{
		APIKey:      c.config.Credentials.APIKey,
		Route:       label,
		HTTPClient:  &http.Client{Transport: c.config.Transport},
		Logger:      c.logger,
		RateLimiter: c.rateLimiter,
		CacheTTL:    c.config.SharedCacheTTL,
	}
	if c.responses != nil {
		opts.ResponseCache = c.responses
	}

	fetcher, err := transport.NewFetcher(opts)
	if err != nil {
		return nil, fmt.Errorf("create fetcher for %q: %w", route, err)
	}

	return pagination.NewCollection[T](collectionURL, fetcher, pageSize, c.logger), nil
}
