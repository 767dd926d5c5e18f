package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrNotCacheable is returned by Set for anything but a non-empty 200 body.
	ErrNotCacheable = errors.New("response not cacheable")
)

// purgeBatch is the SCAN count hint used by Purge.
const purgeBatch = 100

// Manager stores API response bodies in Redis. Only successful (200) bodies are
// ever stored or served; failures are always answered by the API itself.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis: redisClient,
	}
}

// Get returns the stored response for key, or ErrCacheMiss. An entry that is expired
// or does not hold a successful body is removed and reported as such.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	case err != nil:
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get %s: %w", key.Endpoint, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if !cacheable(&entry) {
		_ = m.Delete(ctx, key)
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: status %d with %d bytes", ErrInvalidEntry, entry.StatusCode, len(entry.Data))
	}

	// Redis expiry and Expires can disagree by clock skew between hosts
	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.Inc()
	return &entry, nil
}

// Set stores a successful response until entry.Expires. Already expired entries are
// silently skipped.
func (m *Manager) Set(ctx context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if !cacheable(entry) {
		return fmt.Errorf("%w: %s answered %d", ErrNotCacheable, key.Endpoint, entry.StatusCode)
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set %s: %w", key.Endpoint, err)
	}

	CacheSize.Add(float64(len(data)))
	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// Purge removes every entry stored under scope (see ScopeFor) and returns how many
// were removed. Entries of other API keys are left alone.
func (m *Manager) Purge(ctx context.Context, scope string) (int, error) {
	if scope == "" {
		return 0, fmt.Errorf("scope is required")
	}

	pattern := keyPrefix + ":*:scope=" + scope
	removed := 0

	iter := m.redis.Scan(ctx, 0, pattern, purgeBatch).Iterator()
	for iter.Next(ctx) {
		n, err := m.redis.Del(ctx, iter.Val()).Result()
		if err != nil {
			CacheErrors.WithLabelValues("purge").Inc()
			return removed, fmt.Errorf("redis del: %w", err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("purge").Inc()
		return removed, fmt.Errorf("redis scan: %w", err)
	}

	return removed, nil
}

func cacheable(entry *Entry) bool {
	return entry.StatusCode == http.StatusOK && len(entry.Data) > 0
}
