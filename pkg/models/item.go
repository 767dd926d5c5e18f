// Package models defines the resources served by The One API.
//
// Every resource implements Item. Identity is the document id alone: two items
// are the same resource when their ids match, regardless of their kind or
// the rest of their fields.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingField is returned when a document lacks a mandatory field.
var ErrMissingField = errors.New("missing mandatory field")

// Item is a document identified by its API id.
type Item interface {
	ID() string
}

// Equal reports whether two items identify the same resource.
func Equal[T Item](a, b T) bool {
	return a.ID() == b.ID()
}

// Key returns the hashing key of an item.
func Key(item Item) string {
	return item.ID()
}

// requireFields checks that every named field is present and non-null in raw.
func requireFields(raw map[string]json.RawMessage, fields ...string) error {
	for _, name := range fields {
		v, ok := raw[name]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return fmt.Errorf("%w: %s", ErrMissingField, name)
		}
	}
	return nil
}

// decodeStrict validates the mandatory fields of data and then decodes it into v.
func decodeStrict(data []byte, v any, fields ...string) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := requireFields(raw, fields...); err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
