package models

import "strings"

// Query is a retrieval request as received from an outer surface.
// A zero TopK means "use the configured default".
type Query struct {
	Text string `json:"query"`
	TopK int    `json:"top_k,omitempty"`
}

// Validate applies defaults and checks the query. TopK is capped at maxTopK
// when maxTopK is positive.
func (q *Query) Validate(defaultTopK, maxTopK int) error {
	if strings.TrimSpace(q.Text) == "" {
		return NewValidationError("query_text", "must not be empty")
	}
	if q.TopK < 0 {
		return NewValidationError("top_k", "must be > 0, got %d", q.TopK)
	}
	if q.TopK == 0 {
		q.TopK = defaultTopK
	}
	if maxTopK > 0 && q.TopK > maxTopK {
		q.TopK = maxTopK
	}
	if q.TopK <= 0 {
		return NewValidationError("top_k", "must be > 0, got %d", q.TopK)
	}
	return nil
}
