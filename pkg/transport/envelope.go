package transport

import (
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/oneapi-client/pkg/models"
)

// Envelope is one page of a listing, or the result of a single-document lookup.
type Envelope[T models.Item] struct {
	Items []T
	Total int
	Limit int
	Page  int
	Pages int
}

// wireEnvelope mirrors the JSON shape with pointers so that absent fields can be told
// apart from zero values.
type wireEnvelope struct {
	Docs  *[]json.RawMessage `json:"docs"`
	Total *int               `json:"total"`
	Limit *int               `json:"limit"`
	Page  *int               `json:"page"`
	Pages *int               `json:"pages"`
}

// DecodeEnvelope parses a response body. Every envelope field is mandatory, as is
// every field of every document.
func DecodeEnvelope[T models.Item](data []byte) (*Envelope[T], error) {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch {
	case wire.Docs == nil:
		return nil, fmt.Errorf("%w: docs", models.ErrMissingField)
	case wire.Total == nil:
		return nil, fmt.Errorf("%w: total", models.ErrMissingField)
	case wire.Limit == nil:
		return nil, fmt.Errorf("%w: limit", models.ErrMissingField)
	case wire.Page == nil:
		return nil, fmt.Errorf("%w: page", models.ErrMissingField)
	case wire.Pages == nil:
		return nil, fmt.Errorf("%w: pages", models.ErrMissingField)
	}

	items := make([]T, 0, len(*wire.Docs))
	for i, raw := range *wire.Docs {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode docs[%d]: %w", i, err)
		}
		items = append(items, item)
	}

	return &Envelope[T]{
		Items: items,
		Total: *wire.Total,
		Limit: *wire.Limit,
		Page:  *wire.Page,
		Pages: *wire.Pages,
	}, nil
}
