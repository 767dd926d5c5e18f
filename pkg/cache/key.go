package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// keyPrefix starts every key the package writes.
const keyPrefix = "oneapi"

// Key identifies a cached response.
type Key struct {
	// Endpoint is the request path (e.g., "/v2/movie/")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"page": "2", "limit": "100"})
	QueryParams url.Values

	// Scope separates entries of different credentials (see ScopeFor)
	Scope string
}

// ScopeFor derives a key scope from an API key without storing the key itself.
func ScopeFor(apiKey string) string {
	return strconv.FormatUint(xxhash.Sum64String(apiKey), 16)
}

// String generates a deterministic key string.
// Format: oneapi:endpoint:query1=val1:query2=val2:scope=abc
//
// Example:
//
//	oneapi:v2/movie:limit=1000:page=1:scope=8f3a51c2d0e4b697
func (k Key) String() string {
	parts := []string{keyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Query params are sorted for determinism
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.QueryParams[key], ",")))
		}
	}

	if k.Scope != "" {
		parts = append(parts, "scope="+k.Scope)
	}

	return strings.Join(parts, ":")
}
