package models

import "fmt"

// Quote is a line of dialog spoken by a character in a movie.
type Quote struct {
	QuoteID     string `json:"_id"`
	Dialog      string `json:"dialog"`
	MovieID     string `json:"movie"`
	CharacterID string `json:"character"`
}

var quoteFields = []string{"_id", "dialog", "movie", "character"}

// ID implements Item.
func (q Quote) ID() string {
	return q.QuoteID
}

// UnmarshalJSON decodes a quote document, rejecting documents with missing fields.
func (q *Quote) UnmarshalJSON(data []byte) error {
	type plain Quote
	var v plain
	if err := decodeStrict(data, &v, quoteFields...); err != nil {
		return fmt.Errorf("decode quote: %w", err)
	}
	*q = Quote(v)
	return nil
}

func (q Quote) String() string {
	return fmt.Sprintf("%s (Id: %s)", q.Dialog, q.QuoteID)
}
