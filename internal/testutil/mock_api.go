// Package testutil provides testing utilities for The One API client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// APIPrefix is the path prefix served by MockAPI, mirroring the real API's /v2/.
const APIPrefix = "/v2/"

// MockAPI is a configurable mock of The One API for testing.
//
// Collections are registered by route ("movie", "movie/<id>/quote"). Listing requests
// are paged by the page and limit query parameters; requests for <route>/<id> return a
// single-document envelope, or 500 with a failure envelope when the id is unknown,
// which is what the real API does.
type MockAPI struct {
	server *httptest.Server

	mu          sync.RWMutex
	apiKey      string
	collections map[string][]map[string]any
	handlers    map[string]http.HandlerFunc
	headers     map[string]string
	delay       time.Duration

	// Tracking
	requests       []string
	lastAuthHeader string
}

// NewMockAPI creates a new mock API server accepting apiKey as bearer token.
func NewMockAPI(apiKey string) *MockAPI {
	mock := &MockAPI{
		apiKey:      apiKey,
		collections: make(map[string][]map[string]any),
		handlers:    make(map[string]http.HandlerFunc),
		headers:     make(map[string]string),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serveHTTP))
	return mock
}

// URL returns the base URL of the mock API, including the /v2/ prefix.
func (m *MockAPI) URL() string {
	return m.server.URL + APIPrefix
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetCollection registers the documents served under route.
func (m *MockAPI) SetCollection(route string, docs []map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[normalizeRoute(route)] = docs
}

// SetHandler overrides the response for an exact request path (e.g. "/v2/movie/").
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetHeader adds a header to every response.
func (m *MockAPI) SetHeader(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[key] = value
}

// SetDelay delays every response.
func (m *MockAPI) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Reset clears all tracking counters.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.lastAuthHeader = ""
}

// Requests returns the request URIs (path and query) received so far.
func (m *MockAPI) Requests() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.requests...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// CountRequests returns how many received request URIs start with prefix.
func (m *MockAPI) CountRequests(prefix string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, r := range m.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

// LastAuthHeader returns the Authorization header of the last request.
func (m *MockAPI) LastAuthHeader() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastAuthHeader
}

func (m *MockAPI) serveHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests = append(m.requests, r.URL.RequestURI())
	m.lastAuthHeader = r.Header.Get("Authorization")
	delay := m.delay
	for k, v := range m.headers {
		w.Header().Set(k, v)
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if r.Header.Get("Authorization") != "Bearer "+m.apiKey {
		writeFailure(w, http.StatusUnauthorized, "Unauthorized.")
		return
	}

	m.mu.RLock()
	handler, exists := m.handlers[r.URL.Path]
	m.mu.RUnlock()
	if exists {
		handler(w, r)
		return
	}

	route := strings.TrimPrefix(r.URL.Path, APIPrefix)

	m.mu.RLock()
	docs, isCollection := m.collections[normalizeRoute(route)]
	m.mu.RUnlock()
	if isCollection {
		m.servePage(w, r, docs)
		return
	}

	// <route>/<id>
	trimmed := strings.TrimSuffix(route, "/")
	if i := strings.LastIndex(trimmed, "/"); i > 0 {
		m.mu.RLock()
		docs, isCollection = m.collections[normalizeRoute(trimmed[:i])]
		m.mu.RUnlock()
		if isCollection {
			m.serveDocument(w, docs, trimmed[i+1:])
			return
		}
	}

	writeFailure(w, http.StatusNotFound, "Endpoint does not exist.")
}

func (m *MockAPI) servePage(w http.ResponseWriter, r *http.Request, docs []map[string]any) {
	total := len(docs)

	limit := total
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit == 0 {
		limit = 1
	}

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}

	pages := (total + limit - 1) / limit
	if pages == 0 {
		pages = 1
	}

	start := (page - 1) * limit
	end := start + limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"docs":   docs[start:end],
		"total":  total,
		"limit":  limit,
		"offset": start,
		"page":   page,
		"pages":  pages,
	})
}

func (m *MockAPI) serveDocument(w http.ResponseWriter, docs []map[string]any, id string) {
	for _, doc := range docs {
		if doc["_id"] == id {
			writeJSON(w, http.StatusOK, map[string]any{
				"docs":  []map[string]any{doc},
				"total": 1,
				"limit": 1000,
				"page":  1,
				"pages": 1,
			})
			return
		}
	}

	writeFailure(w, http.StatusInternalServerError, "Something went wrong.")
}

func normalizeRoute(route string) string {
	return strings.Trim(route, "/")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}

// MovieDocs generates n movie documents with ids movie-1..movie-n.
func MovieDocs(n int) []map[string]any {
	docs := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		docs = append(docs, MovieDoc(fmt.Sprintf("movie-%d", i), fmt.Sprintf("Movie %d", i)))
	}
	return docs
}

// MovieDoc returns a complete movie document.
func MovieDoc(id, name string) map[string]any {
	return map[string]any{
		"_id":                        id,
		"name":                       name,
		"runtimeInMinutes":           178,
		"budgetInMillions":           93,
		"boxOfficeRevenueInMillions": 871.5,
		"academyAwardNominations":    13,
		"academyAwardWins":           4,
		"rottenTomatoesScore":        91,
	}
}

// QuoteDocs generates n quote documents for movieID with ids <movieID>-quote-1..n.
func QuoteDocs(movieID string, n int) []map[string]any {
	docs := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		docs = append(docs, map[string]any{
			"_id":       fmt.Sprintf("%s-quote-%d", movieID, i),
			"dialog":    fmt.Sprintf("Line %d", i),
			"movie":     movieID,
			"character": "character-1",
		})
	}
	return docs
}

// NewMalformedHandler responds 200 with a body that is not a complete envelope.
func NewMalformedHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}

// NewStatusHandler responds with status and a failure envelope.
func NewStatusHandler(status int, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, status, message)
	}
}
