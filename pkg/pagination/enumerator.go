package pagination

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/Sternrassler/oneapi-client/pkg/models"
	"github.com/Sternrassler/oneapi-client/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for enumeration.
var (
	pagesLoadedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oneapi_pages_loaded_total",
		Help: "Total listing pages loaded by route",
	}, []string{"route"})

	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oneapi_lookups_total",
		Help: "Total lookups by id by route and result",
	}, []string{"route", "result"})
)

// Lookup results.
const (
	lookupCacheHit = "cache_hit"
	lookupFetched  = "fetched"
	lookupNotFound = "not_found"
	lookupError    = "error"
)

// Stats is a snapshot of an enumerator's state.
type Stats struct {
	Position    int
	PagesLoaded int
	TotalPages  int
	TotalItems  int
	CachedItems int
	CachedIDs   int
}

// Enumerator is a cursor over a paged listing. Pages are fetched on demand and
// cached for the lifetime of the enumerator; Reset rewinds the cursor only.
//
// An Enumerator is not safe for concurrent use.
type Enumerator[T models.Item] struct {
	collectionURL *url.URL
	fetcher       *transport.Fetcher
	pageSize      int
	logger        zerolog.Logger

	store       *store[T]
	initialized bool
	position    int
	pagesLoaded int
	totalPages  int
	totalItems  int
}

func newEnumerator[T models.Item](collectionURL *url.URL, fetcher *transport.Fetcher, pageSize int, logger zerolog.Logger) *Enumerator[T] {
	return &Enumerator[T]{
		collectionURL: collectionURL,
		fetcher:       fetcher,
		pageSize:      pageSize,
		logger:        logger,
		store:         newStore[T](),
		position:      -1,
	}
}

// Next advances the cursor. It returns false once the sequence is exhausted.
//
// The first call loads page 1. Every call then loads the following page, if any
// remain, before stepping, so the cache runs up to one page ahead of the cursor.
// On error the cursor and caches are unchanged and Next may be called again.
func (e *Enumerator[T]) Next(ctx context.Context) (bool, error) {
	if err := e.ensureInitialized(ctx); err != nil {
		return false, err
	}
	if err := e.loadNextPageIfNeeded(ctx); err != nil {
		return false, err
	}

	if e.position < e.store.len()-1 {
		e.position++
		return true, nil
	}
	return false, nil
}

// Current returns the item under the cursor. It fails with an invalid state error
// until Next has returned true.
func (e *Enumerator[T]) Current() (T, error) {
	if e.position < 0 {
		var zero T
		return zero, &transport.Error{
			Kind:    transport.KindInvalidState,
			Message: "the enumerator has not been started",
		}
	}
	return e.store.at(e.position), nil
}

// Count returns the total number of items in the listing. Only the first page is
// ever needed to answer.
func (e *Enumerator[T]) Count(ctx context.Context) (int, error) {
	if err := e.ensureInitialized(ctx); err != nil {
		return 0, err
	}
	return e.totalItems, nil
}

// Reset rewinds the cursor before the first item. Cached pages are kept.
func (e *Enumerator[T]) Reset() {
	e.position = -1
}

// Get returns the item with the given id. Items already seen are served from cache;
// otherwise the single document is fetched and indexed, without entering the
// ordered sequence. A lookup the API rejects with a non-2xx status is reported as
// not found (false, nil). Authentication, malformed response, cancellation and
// transport errors (no response at all) are returned.
func (e *Enumerator[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	route := e.fetcher.Route()

	if item, ok := e.store.lookup(id); ok {
		lookupsTotal.WithLabelValues(route, lookupCacheHit).Inc()
		return item, true, nil
	}

	env, err := transport.Fetch[T](ctx, e.fetcher, transport.ItemURL(e.collectionURL, id))
	if err != nil {
		if isStatusFailure(err) {
			lookupsTotal.WithLabelValues(route, lookupNotFound).Inc()
			e.logger.Debug().Str("route", route).Str("id", id).Msg("Item not found")
			return zero, false, nil
		}
		lookupsTotal.WithLabelValues(route, lookupError).Inc()
		return zero, false, err
	}

	if len(env.Items) == 0 {
		lookupsTotal.WithLabelValues(route, lookupNotFound).Inc()
		return zero, false, nil
	}

	item := env.Items[0]
	e.store.index(item)
	lookupsTotal.WithLabelValues(route, lookupFetched).Inc()
	return item, true, nil
}

// isStatusFailure reports whether err is a request the API answered with a non-2xx
// status other than 401.
func isStatusFailure(err error) bool {
	var apiErr *transport.Error
	return errors.As(err, &apiErr) && apiErr.Kind == transport.KindRequestFailed && apiErr.StatusCode != 0
}

// Stats returns a snapshot of the enumerator's state.
func (e *Enumerator[T]) Stats() Stats {
	return Stats{
		Position:    e.position,
		PagesLoaded: e.pagesLoaded,
		TotalPages:  e.totalPages,
		TotalItems:  e.totalItems,
		CachedItems: e.store.len(),
		CachedIDs:   len(e.store.byID),
	}
}

// ensureInitialized loads page 1 exactly once.
func (e *Enumerator[T]) ensureInitialized(ctx context.Context) error {
	if e.initialized {
		return nil
	}

	env, err := e.loadPage(ctx, 1)
	if err != nil {
		return err
	}

	e.initialized = true
	e.totalPages = env.Pages
	e.totalItems = env.Total
	// An empty listing may report zero pages.
	e.pagesLoaded = min(1, env.Pages)
	e.store.appendPage(env.Items)

	e.logger.Info().
		Str("route", e.fetcher.Route()).
		Int("total", e.totalItems).
		Int("pages", e.totalPages).
		Msg("Collection initialized")

	return nil
}

// loadNextPageIfNeeded loads the page after the last loaded one, if any remain.
func (e *Enumerator[T]) loadNextPageIfNeeded(ctx context.Context) error {
	if e.pagesLoaded >= e.totalPages {
		return nil
	}

	env, err := e.loadPage(ctx, e.pagesLoaded+1)
	if err != nil {
		return err
	}

	e.pagesLoaded++
	e.store.appendPage(env.Items)
	return nil
}

func (e *Enumerator[T]) loadPage(ctx context.Context, page int) (*transport.Envelope[T], error) {
	target := transport.AddParameter(e.collectionURL, "page", strconv.Itoa(page))
	target = transport.AddParameter(target, "limit", strconv.Itoa(e.pageSize))

	env, err := transport.Fetch[T](ctx, e.fetcher, target)
	if err != nil {
		return nil, err
	}

	pagesLoadedTotal.WithLabelValues(e.fetcher.Route()).Inc()
	e.logger.Debug().
		Str("route", e.fetcher.Route()).
		Int("page", page).
		Int("pages", env.Pages).
		Int("items", len(env.Items)).
		Msg("Page loaded")

	return env, nil
}
