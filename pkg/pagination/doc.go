// Package pagination presents a paged API listing as one lazy, restartable sequence.
//
// The API pages its listings through page and limit query parameters and reports
// the total item and page counts in every envelope. An Enumerator loads pages on
// demand, strictly in order, and caches every item it has seen both in arrival order
// and by id. Walking the sequence a second time, counting it, or looking up an item
// that has already been seen costs no further requests.
//
// Example usage:
//
//	movies := pagination.NewCollection[models.Movie](collectionURL, fetcher, 1000, logger)
//	for movie, err := range movies.All(ctx) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(movie.Name)
//	}
//	n, err := movies.Count(ctx) // no request: the first page is cached
//
// # Shared cursor
//
// A Collection owns exactly one Enumerator. Enumerate (and All) rewind that
// enumerator and hand it out again; it is never copied. Two walks in progress
// over the same Collection therefore share one position, and starting the second
// walk rewinds the first. This keeps every walk on the same item cache. Callers
// needing independent cursors must collect the items first.
//
// # Concurrency
//
// Enumerators and Collections are not safe for concurrent use. Serialise access to a
// Collection externally; distinct Collections share no state.
package pagination
