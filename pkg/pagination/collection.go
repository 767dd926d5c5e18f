package pagination

import (
	"context"
	"errors"
	"iter"
	"net/url"

	"github.com/Sternrassler/oneapi-client/pkg/models"
	"github.com/Sternrassler/oneapi-client/pkg/transport"
	"github.com/rs/zerolog"
)

// ErrIndexOutOfRange is returned by ElementAt for an index outside the listing.
var ErrIndexOutOfRange = errors.New("index out of range")

// Collection is the entry point to one listing route. It owns a single Enumerator
// and the fetcher (and HTTP client) behind it.
type Collection[T models.Item] struct {
	collectionURL *url.URL
	fetcher       *transport.Fetcher
	enumerator    *Enumerator[T]
}

// NewCollection creates a collection over the listing at collectionURL, loading
// pageSize items per request.
func NewCollection[T models.Item](collectionURL *url.URL, fetcher *transport.Fetcher, pageSize int, logger zerolog.Logger) *Collection[T] {
	return &Collection[T]{
		collectionURL: collectionURL,
		fetcher:       fetcher,
		enumerator:    newEnumerator[T](collectionURL, fetcher, pageSize, logger),
	}
}

// Enumerate rewinds the collection's enumerator and returns it.
//
// The enumerator is shared: every call returns the same one, and rewinding it
// moves the cursor of any walk already in progress.
func (c *Collection[T]) Enumerate() *Enumerator[T] {
	c.enumerator.Reset()
	return c.enumerator
}

// All returns the listing as a sequence for range-over-func. Ranging starts a walk
// through Enumerate, so it shares the collection's cursor. An error is yielded once,
// with a zero item, and ends the sequence.
func (c *Collection[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		e := c.Enumerate()
		for {
			ok, err := e.Next(ctx)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !ok {
				return
			}

			item, err := e.Current()
			if !yield(item, err) || err != nil {
				return
			}
		}
	}
}

// Count returns the total number of items in the listing.
func (c *Collection[T]) Count(ctx context.Context) (int, error) {
	return c.enumerator.Count(ctx)
}

// Get returns the item with the given id; see Enumerator.Get.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, bool, error) {
	return c.enumerator.Get(ctx, id)
}

// ElementAt returns the item at index in listing order. Indexes inside the cached
// part of the sequence are answered from cache; others walk the collection.
func (c *Collection[T]) ElementAt(ctx context.Context, index int) (T, error) {
	var zero T
	if index < 0 {
		return zero, ErrIndexOutOfRange
	}
	if index < c.enumerator.store.len() {
		return c.enumerator.store.at(index), nil
	}

	i := 0
	for item, err := range c.All(ctx) {
		if err != nil {
			return zero, err
		}
		if i == index {
			return item, nil
		}
		i++
	}
	return zero, ErrIndexOutOfRange
}

// URL returns the listing URL of the collection.
func (c *Collection[T]) URL() string {
	return c.collectionURL.String()
}

// Route returns the route label of the collection.
func (c *Collection[T]) Route() string {
	return c.fetcher.Route()
}

// Stats returns a snapshot of the collection's enumerator.
func (c *Collection[T]) Stats() Stats {
	return c.enumerator.Stats()
}

// Close releases the collection's idle connections. Cached items stay usable.
func (c *Collection[T]) Close() {
	c.fetcher.Close()
}
