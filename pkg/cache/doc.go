// Package cache provides a shared response cache with a Redis backend.
//
// The in-process item cache of a collection lives and dies with its client. This
// package sits one layer below it: response bodies of successful listings and
// lookups are stored in Redis, so that separate clients (or separate processes)
// using the same API key can answer from Redis instead of spending their API quota.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{
//		Endpoint:    "/v2/movie/",
//		QueryParams: url.Values{"page": []string{"1"}, "limit": []string{"1000"}},
//		Scope:       cache.ScopeFor(apiKey),
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch from the API, then
//		_ = manager.Set(ctx, key, cache.NewEntry(body, http.StatusOK, cache.DefaultTTL))
//	}
//
// # Scoping
//
// Keys carry a hash of the API key, never the key itself. Clients with different
// credentials never see each other's entries, so an invalid key still reaches the API
// and fails with an authentication error.
//
// # Metrics
//
//   - oneapi_cache_hits_total - Cache hits
//   - oneapi_cache_misses_total - Cache misses
//   - oneapi_cache_size_bytes - Bytes written to the cache
//   - oneapi_cache_errors_total{operation} - Cache operation errors
package cache
