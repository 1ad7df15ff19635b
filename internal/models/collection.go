package models

import "time"

// Distance metrics supported by a collection.
const (
	MetricCosine = "cosine"
	MetricL2     = "l2"
)

// Collection describes a named vector collection.
type Collection struct {
	Name           string    `json:"name"`
	Metric         string    `json:"metric"`
	Dimensions     int       `json:"dimensions"`
	EmbeddingModel string    `json:"embedding_model"`
	CreatedAt      time.Time `json:"created_at"`
}

// EnsureResult tells whether EnsureExists created the collection.
type EnsureResult int

const (
	EnsureAlreadyExisted EnsureResult = iota
	EnsureCreated
)

func (r EnsureResult) String() string {
	if r == EnsureCreated {
		return "created"
	}
	return "already_existed"
}

// SourceSummary describes the indexed chunks of one transcript source.
type SourceSummary struct {
	Source string  `json:"source"`
	Chunks int64   `json:"chunks"`
	End    float64 `json:"end"`
}
