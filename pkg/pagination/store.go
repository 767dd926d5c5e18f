package pagination

import "github.com/Sternrassler/oneapi-client/pkg/models"

// store holds every item an enumerator has seen, in arrival order and by id.
// The ordered slice only grows by whole pages; the index also receives items found
// by single-document lookups. Duplicate ids keep their first occurrence.
type store[T models.Item] struct {
	items []T
	byID  map[string]T
}

func newStore[T models.Item]() *store[T] {
	return &store[T]{
		byID: make(map[string]T),
	}
}

// appendPage adds a page of items to both the sequence and the index.
func (s *store[T]) appendPage(items []T) {
	s.items = append(s.items, items...)
	for _, item := range items {
		s.index(item)
	}
}

// index adds item to the id index only, unless its id is already present.
func (s *store[T]) index(item T) {
	key := models.Key(item)
	if _, ok := s.byID[key]; !ok {
		s.byID[key] = item
	}
}

func (s *store[T]) at(i int) T {
	return s.items[i]
}

func (s *store[T]) lookup(id string) (T, bool) {
	item, ok := s.byID[id]
	return item, ok
}

func (s *store[T]) len() int {
	return len(s.items)
}
