package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/oneapi-client/pkg/client"
	"github.com/Sternrassler/oneapi-client/pkg/logging"
	"github.com/Sternrassler/oneapi-client/pkg/metrics"
	"github.com/Sternrassler/oneapi-client/pkg/models"
	"github.com/Sternrassler/oneapi-client/pkg/pagination"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve movies and quotes as a cached read-only JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Serve.Addr
			}
			s := newServer(a.client, logging.NewLogger("oneapi-serve"))
			return s.listenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from serve.addr)")

	return cmd
}

// server exposes a client over HTTP. Collections are not safe for concurrent use, so
// every handler holds the lock of the collection it reads.
type server struct {
	client *client.Client
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newServer(c *client.Client, logger zerolog.Logger) *server {
	return &server{
		client: c,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/movies", s.handleMovies).Methods(http.MethodGet)
	r.HandleFunc("/movies/count", s.handleMovieCount).Methods(http.MethodGet)
	r.HandleFunc("/movies/{id}", s.handleMovie).Methods(http.MethodGet)
	r.HandleFunc("/movies/{id}/quotes", s.handleMovieQuotes).Methods(http.MethodGet)
	r.HandleFunc("/movies/{id}/quotes/count", s.handleMovieQuoteCount).Methods(http.MethodGet)

	r.HandleFunc("/quotes", s.handleQuotes).Methods(http.MethodGet)
	r.HandleFunc("/quotes/count", s.handleQuoteCount).Methods(http.MethodGet)
	r.HandleFunc("/quotes/{id}", s.handleQuote).Methods(http.MethodGet)

	return r
}

func (s *server) listenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info().Msg("Server stopped")
	return nil
}

// lock acquires the mutex of one collection and returns its release.
func (s *server) lock(key string) func() {
	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *server) handleMovies(w http.ResponseWriter, r *http.Request) {
	serveList(s, w, r, client.RouteMovies, s.client.Movies())
}

func (s *server) handleMovieCount(w http.ResponseWriter, r *http.Request) {
	serveCount(s, w, r, client.RouteMovies, s.client.Movies())
}

func (s *server) handleMovie(w http.ResponseWriter, r *http.Request) {
	serveItem(s, w, r, client.RouteMovies, s.client.Movies())
}

func (s *server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	serveList(s, w, r, client.RouteQuotes, s.client.Quotes())
}

func (s *server) handleQuoteCount(w http.ResponseWriter, r *http.Request) {
	serveCount(s, w, r, client.RouteQuotes, s.client.Quotes())
}

func (s *server) handleQuote(w http.ResponseWriter, r *http.Request) {
	serveItem(s, w, r, client.RouteQuotes, s.client.Quotes())
}

func (s *server) handleMovieQuotes(w http.ResponseWriter, r *http.Request) {
	key, quotes, err := s.movieQuotes(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	serveList(s, w, r, key, quotes)
}

func (s *server) handleMovieQuoteCount(w http.ResponseWriter, r *http.Request) {
	key, quotes, err := s.movieQuotes(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	serveCount(s, w, r, key, quotes)
}

func (s *server) movieQuotes(r *http.Request) (string, *pagination.Collection[models.Quote], error) {
	movieID := mux.Vars(r)["id"]
	quotes, err := s.client.QuotesForMovie(movieID, 0)
	if err != nil {
		return "", nil, err
	}
	return client.RouteMovies + "/" + movieID + "/" + client.RouteQuotes, quotes, nil
}

// listResponse mirrors the API's envelope, minus paging.
type listResponse[T models.Item] struct {
	Docs  []T `json:"docs"`
	Total int `json:"total"`
}

// serveList writes the whole collection, or its first ?limit= items.
func serveList[T models.Item](s *server, w http.ResponseWriter, r *http.Request, key string, c *pagination.Collection[T]) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeFailure(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}

	unlock := s.lock(key)
	defer unlock()

	resp := listResponse[T]{Docs: []T{}}
	for item, err := range c.All(r.Context()) {
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if limit > 0 && len(resp.Docs) == limit {
			break
		}
		resp.Docs = append(resp.Docs, item)
	}

	total, err := c.Count(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp.Total = total

	writeJSON(w, http.StatusOK, resp)
}

func serveCount[T models.Item](s *server, w http.ResponseWriter, r *http.Request, key string, c *pagination.Collection[T]) {
	unlock := s.lock(key)
	defer unlock()

	total, err := c.Count(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": total})
}

func serveItem[T models.Item](s *server, w http.ResponseWriter, r *http.Request, key string, c *pagination.Collection[T]) {
	id := mux.Vars(r)["id"]

	unlock := s.lock(key)
	defer unlock()

	item, found, err := c.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !found {
		writeFailure(w, http.StatusNotFound, fmt.Sprintf("%s %q not found", key, id))
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// writeError maps an upstream failure to a gateway status.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	if errors.Is(err, client.ErrCancelled) {
		status = http.StatusGatewayTimeout
	}

	s.logger.Warn().
		Err(err).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("Upstream request failed")

	writeFailure(w, status, err.Error())
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
