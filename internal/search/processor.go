package search

import "github.com/hyperjump/kikitori/internal/models"

// QueryDefaults bounds queries that arrive from outer surfaces.
type QueryDefaults struct {
	DefaultTopK int
	MaxTopK     int
}

// ProcessQuery validates q and fills in the default top_k.
func ProcessQuery(q *models.Query, d QueryDefaults) error {
	return q.Validate(d.DefaultTopK, d.MaxTopK)
}
