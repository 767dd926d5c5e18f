package transport

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultBaseURL is the root of The One API v2.
const DefaultBaseURL = "https://the-one-api.dev/v2/"

// ResolveRoute resolves route against base and guarantees a trailing slash,
// so that ids and query parameters can be appended to the result.
//
//	ResolveRoute("https://the-one-api.dev/v2/", "movie/abc/quote") // https://the-one-api.dev/v2/movie/abc/quote/
func ResolveRoute(base, route string) (*url.URL, error) {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !baseURL.IsAbs() {
		return nil, fmt.Errorf("base url %q is not absolute", base)
	}

	route = strings.TrimPrefix(route, "/")
	if !strings.HasSuffix(route, "/") {
		route += "/"
	}
	ref, err := url.Parse(route)
	if err != nil {
		return nil, fmt.Errorf("parse route: %w", err)
	}

	return baseURL.ResolveReference(ref), nil
}

// AddParameter returns a copy of u with key=value appended to its query string.
// Existing parameters and their order are preserved.
func AddParameter(u *url.URL, key, value string) *url.URL {
	out := *u
	param := url.QueryEscape(key) + "=" + url.QueryEscape(value)
	if out.RawQuery == "" {
		out.RawQuery = param
	} else {
		out.RawQuery += "&" + param
	}
	return &out
}

// ItemURL returns the single-document URL for id below a collection URL.
// The collection's query string, if any, is dropped.
func ItemURL(collection *url.URL, id string) *url.URL {
	out := *collection
	out.RawQuery = ""

	escaped := out.EscapedPath()
	if !strings.HasSuffix(escaped, "/") {
		escaped += "/"
	}
	escaped += url.PathEscape(id)

	// escaped was built from valid parts, so unescaping cannot fail
	out.Path, _ = url.PathUnescape(escaped)
	out.RawPath = escaped
	return &out
}
