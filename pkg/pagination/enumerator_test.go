package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/oneapi-client/internal/testutil"
	"github.com/Sternrassler/oneapi-client/pkg/models"
	"github.com/Sternrassler/oneapi-client/pkg/transport"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
)

const testAPIKey = "test-api-key"

func newTestCollection[T models.Item](t *testing.T, baseURL, apiKey, route string, pageSize int) *Collection[T] {
	t.Helper()

	collectionURL, err := transport.ResolveRoute(baseURL, route)
	if err != nil {
		t.Fatalf("ResolveRoute failed: %v", err)
	}

	fetcher, err := transport.NewFetcher(transport.FetcherOptions{
		APIKey: apiKey,
		Route:  route,
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewFetcher failed: %v", err)
	}

	c := NewCollection[T](collectionURL, fetcher, pageSize, zerolog.Nop())
	t.Cleanup(c.Close)
	return c
}

func newMovieAPI(t *testing.T, n int) *testutil.MockAPI {
	t.Helper()

	mock := testutil.NewMockAPI(testAPIKey)
	mock.SetCollection("movie", testutil.MovieDocs(n))
	t.Cleanup(mock.Close)
	return mock
}

// walk drains the enumerator and returns the ids it produced.
func walk[T models.Item](t *testing.T, e *Enumerator[T]) []string {
	t.Helper()

	var ids []string
	for {
		ok, err := e.Next(context.Background())
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ok {
			return ids
		}
		item, err := e.Current()
		if err != nil {
			t.Fatalf("Current failed: %v", err)
		}
		ids = append(ids, item.ID())
	}
}

func TestEnumerator_PaginationScenario(t *testing.T) {
	mock := newMovieAPI(t, 4)
	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 2)
	ctx := context.Background()

	count, err := movies.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 4 {
		t.Errorf("Count() = %d, want 4", count)
	}
	if diff := cmp.Diff([]string{"/v2/movie/?page=1&limit=2"}, mock.Requests()); diff != "" {
		t.Errorf("requests after Count (-want +got):\n%s", diff)
	}

	ids := walk(t, movies.Enumerate())
	if diff := cmp.Diff([]string{"movie-1", "movie-2", "movie-3", "movie-4"}, ids); diff != "" {
		t.Errorf("walk (-want +got):\n%s", diff)
	}

	want := []string{"/v2/movie/?page=1&limit=2", "/v2/movie/?page=2&limit=2"}
	if diff := cmp.Diff(want, mock.Requests()); diff != "" {
		t.Errorf("requests after walk (-want +got):\n%s", diff)
	}
	if n := mock.CountRequests("/v2/movie/?page=3"); n != 0 {
		t.Errorf("page 3 requested %d times", n)
	}
}

func TestEnumerator_CountWithoutFullWalk(t *testing.T) {
	mock := newMovieAPI(t, 25)
	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 5)

	count, err := movies.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 25 {
		t.Errorf("Count() = %d, want 25", count)
	}
	if n := mock.GetRequestCount(); n != 1 {
		t.Errorf("request count = %d, want 1", n)
	}

	stats := movies.Stats()
	if stats.PagesLoaded != 1 || stats.TotalPages != 5 || stats.CachedItems != 5 {
		t.Errorf("unexpected stats after Count: %+v", stats)
	}

	// Counting again is free.
	if _, err := movies.Count(context.Background()); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n := mock.GetRequestCount(); n != 1 {
		t.Errorf("request count after second Count = %d, want 1", n)
	}
}

func TestEnumerator_IdempotentRestart(t *testing.T) {
	mock := newMovieAPI(t, 7)
	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 3)

	first := walk(t, movies.Enumerate())
	requests := mock.GetRequestCount()

	second := walk(t, movies.Enumerate())

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second walk differs (-first +second):\n%s", diff)
	}
	if len(second) != 7 {
		t.Errorf("walk yielded %d items, want 7", len(second))
	}
	if n := mock.GetRequestCount(); n != requests {
		t.Errorf("second walk issued %d requests", n-requests)
	}
}

func TestEnumerator_ExhaustedIsTerminal(t *testing.T) {
	mock := newMovieAPI(t, 3)
	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 2)
	e := movies.Enumerate()

	walk(t, e)
	requests := mock.GetRequestCount()

	for i := 0; i < 3; i++ {
		ok, err := e.Next(context.Background())
		if err != nil || ok {
			t.Fatalf("Next after exhaustion = (%v, %v), want (false, nil)", ok, err)
		}
	}
	if n := mock.GetRequestCount(); n != requests {
		t.Errorf("exhausted enumerator issued %d requests", n-requests)
	}

	// The cursor stays on the last item.
	item, err := e.Current()
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if item.ID() != "movie-3" {
		t.Errorf("Current() = %q, want movie-3", item.ID())
	}
}

func TestEnumerator_EmptyCollection(t *testing.T) {
	mock := newMovieAPI(t, 0)
	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 10)

	if ids := walk(t, movies.Enumerate()); len(ids) != 0 {
		t.Errorf("walk yielded %v, want nothing", ids)
	}
	count, err := movies.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d, want 0", count)
	}
	if n := mock.GetRequestCount(); n != 1 {
		t.Errorf("request count = %d, want 1", n)
	}
	if s := movies.Stats(); s.PagesLoaded > s.TotalPages {
		t.Errorf("PagesLoaded = %d exceeds TotalPages = %d", s.PagesLoaded, s.TotalPages)
	}
}

func TestEnumerator_EmptyCollectionWithoutPages(t *testing.T) {
	mock := newMovieAPI(t, 0)
	mock.SetHandler("/v2/movie/", testutil.NewMalformedHandler(`{"docs":[],"total":0,"limit":10,"page":1,"pages":0}`))
	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 10)

	if ids := walk(t, movies.Enumerate()); len(ids) != 0 {
		t.Errorf("walk yielded %v, want nothing", ids)
	}
	if ids := walk(t, movies.Enumerate()); len(ids) != 0 {
		t.Errorf("second walk yielded %v, want nothing", ids)
	}

	s := movies.Stats()
	if s.PagesLoaded != 0 || s.TotalPages != 0 {
		t.Errorf("PagesLoaded = %d, TotalPages = %d, want 0 and 0", s.PagesLoaded, s.TotalPages)
	}
	if n := mock.GetRequestCount(); n != 1 {
		t.Errorf("request count = %d, want 1", n)
	}
}

func TestEnumerator_CurrentBeforeNext(t *testing.T) {
	mock := newMovieAPI(t, 2)
	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 2)

	_, err := movies.Enumerate().Current()
	if !errors.Is(err, transport.ErrInvalidState) {
		t.Errorf("Current() error = %v, want ErrInvalidState", err)
	}
	if n := mock.GetRequestCount(); n != 0 {
		t.Errorf("Current issued %d requests", n)
	}
}

func TestEnumerator_GetFromCache(t *testing.T) {
	mock := newMovieAPI(t, 4)
	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 2)
	ctx := context.Background()

	walk(t, movies.Enumerate())
	requests := mock.GetRequestCount()

	movie, found, err := movies.Get(ctx, "movie-3")
	if err != nil || !found {
		t.Fatalf("Get = (%v, %v), want found", found, err)
	}
	if movie.Name != "Movie 3" {
		t.Errorf("Name = %q, want Movie 3", movie.Name)
	}
	if n := mock.GetRequestCount(); n != requests {
		t.Errorf("cached Get issued %d requests", n-requests)
	}
}

func TestEnumerator_GetBeforeEnumeration(t *testing.T) {
	mock := newMovieAPI(t, 4)
	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 2)
	ctx := context.Background()

	movie, found, err := movies.Get(ctx, "movie-4")
	if err != nil || !found {
		t.Fatalf("Get = (%v, %v), want found", found, err)
	}
	if movie.ID() != "movie-4" {
		t.Errorf("ID() = %q, want movie-4", movie.ID())
	}
	if diff := cmp.Diff([]string{"/v2/movie/movie-4"}, mock.Requests()); diff != "" {
		t.Errorf("requests (-want +got):\n%s", diff)
	}

	stats := movies.Stats()
	if stats.PagesLoaded != 0 || stats.CachedItems != 0 || stats.CachedIDs != 1 {
		t.Errorf("lookup should only index the item: %+v", stats)
	}

	// A second lookup is served from the index.
	if _, _, err := movies.Get(ctx, "movie-4"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if n := mock.GetRequestCount(); n != 1 {
		t.Errorf("request count = %d, want 1", n)
	}

	// The looked-up item does not disturb listing order.
	ids := walk(t, movies.Enumerate())
	if diff := cmp.Diff([]string{"movie-1", "movie-2", "movie-3", "movie-4"}, ids); diff != "" {
		t.Errorf("walk (-want +got):\n%s", diff)
	}
}

func TestEnumerator_GetMissing(t *testing.T) {
	mock := newMovieAPI(t, 4)
	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 2)
	ctx := context.Background()

	_, found, err := movies.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get before walk returned error: %v", err)
	}
	if found {
		t.Error("Get before walk found a nonexistent id")
	}

	walk(t, movies.Enumerate())

	_, found, err = movies.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get after walk returned error: %v", err)
	}
	if found {
		t.Error("Get after walk found a nonexistent id")
	}
}

func TestEnumerator_GetUnreachable(t *testing.T) {
	mock := newMovieAPI(t, 2)
	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 2)
	mock.Close()

	_, found, err := movies.Get(context.Background(), "movie-1")
	if found {
		t.Error("Get found an item with the API unreachable")
	}
	if !errors.Is(err, transport.ErrRequestFailed) {
		t.Fatalf("Get error = %v, want ErrRequestFailed", err)
	}

	var apiErr *transport.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 0 {
		t.Errorf("Get error = %#v, want a transport failure without status", err)
	}
}

func TestEnumerator_GetEmptyEnvelope(t *testing.T) {
	mock := newMovieAPI(t, 1)
	mock.SetHandler("/v2/movie/ghost", testutil.NewMalformedHandler(`{"docs":[],"total":0,"limit":1000,"page":1,"pages":1}`))
	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 2)

	_, found, err := movies.Get(context.Background(), "ghost")
	if err != nil || found {
		t.Errorf("Get = (%v, %v), want (false, nil)", found, err)
	}
}

func TestEnumerator_GetMalformedIsError(t *testing.T) {
	mock := newMovieAPI(t, 1)
	mock.SetHandler("/v2/movie/broken", testutil.NewMalformedHandler(`{"docs":[{"_id":"broken"}],"total":1,"limit":1,"page":1,"pages":1}`))
	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 2)

	_, found, err := movies.Get(context.Background(), "broken")
	if !errors.Is(err, transport.ErrMalformedResponse) {
		t.Errorf("Get error = %v, want ErrMalformedResponse", err)
	}
	if found {
		t.Error("Get reported found on error")
	}
}

func TestEnumerator_AuthenticationFailure(t *testing.T) {
	mock := newMovieAPI(t, 4)
	movies := newTestCollection[models.Movie](t, mock.URL(), "wrong-key", "movie", 2)
	ctx := context.Background()

	if _, err := movies.Enumerate().Next(ctx); !errors.Is(err, transport.ErrAuthentication) {
		t.Errorf("Next error = %v, want ErrAuthentication", err)
	}
	_, err := movies.Count(ctx)
	if !errors.Is(err, transport.ErrAuthentication) {
		t.Errorf("Count error = %v, want ErrAuthentication", err)
	}
	if kind := transport.KindOf(err); kind != transport.KindAuthentication {
		t.Errorf("KindOf = %q, want %q", kind, transport.KindAuthentication)
	}
	if _, _, err := movies.Get(ctx, "movie-1"); !errors.Is(err, transport.ErrAuthentication) {
		t.Errorf("Get error = %v, want ErrAuthentication", err)
	}
}

func TestEnumerator_MalformedPage(t *testing.T) {
	mock := newMovieAPI(t, 0)
	mock.SetHandler("/v2/movie/", testutil.NewMalformedHandler(`{"docs":[],"total":4,"limit":2,"page":1}`))
	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 2)

	_, err := movies.Enumerate().Next(context.Background())
	if !errors.Is(err, transport.ErrMalformedResponse) {
		t.Errorf("Next error = %v, want ErrMalformedResponse", err)
	}
	if movies.Stats().PagesLoaded != 0 {
		t.Error("malformed page should not count as loaded")
	}
}

func TestEnumerator_RequestFailedPropagatesFromNext(t *testing.T) {
	mock := newMovieAPI(t, 0)
	mock.SetHandler("/v2/movie/", testutil.NewStatusHandler(http.StatusInternalServerError, "Something went wrong."))
	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 2)

	_, err := movies.Enumerate().Next(context.Background())
	if !errors.Is(err, transport.ErrRequestFailed) {
		t.Fatalf("Next error = %v, want ErrRequestFailed", err)
	}

	var apiErr *transport.Error
	if !errors.As(err, &apiErr) {
		t.Fatal("error is not a *transport.Error")
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", apiErr.StatusCode)
	}
	if apiErr.URL == "" {
		t.Error("URL not recorded on error")
	}
}

func TestEnumerator_FailedPageKeepsProgress(t *testing.T) {
	mock := testutil.NewMockAPI(testAPIKey)
	t.Cleanup(mock.Close)

	docs := testutil.MovieDocs(6)
	var failPage3 atomic.Bool
	failPage3.Store(true)

	mock.SetHandler("/v2/movie/", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 3 && failPage3.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		start := (page - 1) * 2
		_ = json.NewEncoder(w).Encode(map[string]any{
			"docs":  docs[start : start+2],
			"total": 6,
			"limit": 2,
			"page":  page,
			"pages": 3,
		})
	})

	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 2)
	e := movies.Enumerate()
	ctx := context.Background()

	// First Next loads pages 1 and 2; the second tries page 3 and fails.
	if ok, err := e.Next(ctx); !ok || err != nil {
		t.Fatalf("first Next = (%v, %v)", ok, err)
	}
	if _, err := e.Next(ctx); !errors.Is(err, transport.ErrRequestFailed) {
		t.Fatalf("second Next error = %v, want ErrRequestFailed", err)
	}

	stats := e.Stats()
	if stats.PagesLoaded != 2 || stats.CachedItems != 4 || stats.Position != 0 {
		t.Errorf("state after failure: %+v", stats)
	}

	failPage3.Store(false)

	ids := []string{"movie-1"}
	for {
		ok, err := e.Next(ctx)
		if err != nil {
			t.Fatalf("Next after recovery failed: %v", err)
		}
		if !ok {
			break
		}
		item, _ := e.Current()
		ids = append(ids, item.ID())
	}

	want := []string{"movie-1", "movie-2", "movie-3", "movie-4", "movie-5", "movie-6"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("walk after retry (-want +got):\n%s", diff)
	}
	if n := mock.CountRequests("/v2/movie/?page=1&"); n != 1 {
		t.Errorf("page 1 requested %d times, want 1", n)
	}
}

func TestEnumerator_DuplicateIDsKeepFirst(t *testing.T) {
	mock := testutil.NewMockAPI(testAPIKey)
	t.Cleanup(mock.Close)
	mock.SetCollection("movie", []map[string]any{
		testutil.MovieDoc("a", "First A"),
		testutil.MovieDoc("b", "B"),
		testutil.MovieDoc("a", "Second A"),
		testutil.MovieDoc("c", "C"),
	})

	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 2)

	ids := walk(t, movies.Enumerate())
	if diff := cmp.Diff([]string{"a", "b", "a", "c"}, ids); diff != "" {
		t.Errorf("walk (-want +got):\n%s", diff)
	}

	movie, found, err := movies.Get(context.Background(), "a")
	if err != nil || !found {
		t.Fatalf("Get = (%v, %v)", found, err)
	}
	if movie.Name != "First A" {
		t.Errorf("Name = %q, want First A", movie.Name)
	}
	if stats := movies.Stats(); stats.CachedIDs != 3 || stats.CachedItems != 4 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestEnumerator_Cancelled(t *testing.T) {
	mock := newMovieAPI(t, 4)
	mock.SetDelay(time.Second)
	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 2)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := movies.Enumerate().Next(ctx)
	if !errors.Is(err, transport.ErrCancelled) {
		t.Fatalf("Next error = %v, want ErrCancelled", err)
	}
	if stats := movies.Stats(); stats.PagesLoaded != 0 {
		t.Errorf("cancelled load should leave state untouched: %+v", stats)
	}

	// A cancelled lookup is an error, not a miss.
	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	if _, _, err := movies.Get(cancelled, "movie-1"); !errors.Is(err, transport.ErrCancelled) {
		t.Errorf("Get error = %v, want ErrCancelled", err)
	}

	// Retrying afresh succeeds.
	mock.SetDelay(0)
	if ids := walk(t, movies.Enumerate()); len(ids) != 4 {
		t.Errorf("walk after cancel yielded %d items, want 4", len(ids))
	}
}

func TestEnumerator_SendsBearerToken(t *testing.T) {
	mock := newMovieAPI(t, 1)
	movies := newTestCollection[models.Movie](t, mock.URL(), testAPIKey, "movie", 2)

	if _, err := movies.Count(context.Background()); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if got := mock.LastAuthHeader(); got != "Bearer "+testAPIKey {
		t.Errorf("Authorization = %q", got)
	}
}

func TestEnumerator_ScopedRoute(t *testing.T) {
	mock := testutil.NewMockAPI(testAPIKey)
	t.Cleanup(mock.Close)
	mock.SetCollection("movie/m1/quote", testutil.QuoteDocs("m1", 3))

	quotes := newTestCollection[models.Quote](t, mock.URL(), testAPIKey, "movie/m1/quote", 2)

	ids := walk(t, quotes.Enumerate())
	if diff := cmp.Diff([]string{"m1-quote-1", "m1-quote-2", "m1-quote-3"}, ids); diff != "" {
		t.Errorf("walk (-want +got):\n%s", diff)
	}
	if n := mock.CountRequests("/v2/movie/m1/quote/?page="); n != 2 {
		t.Errorf("scoped page requests = %d, want 2", n)
	}
}
