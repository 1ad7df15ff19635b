// Package models defines the core data structures for transcript segments,
// chunks, retrieval results and collections.
package models

import (
	"math"
	"strings"
)

// Segment is one timestamped piece of transcript text. Start and End are
// seconds from the beginning of the recording.
type Segment struct {
	Text   string  `json:"text"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Source string  `json:"source"`
}

// NewSegment builds a validated Segment.
func NewSegment(text string, start, end float64, source string) (Segment, error) {
	s := Segment{Text: text, Start: start, End: end, Source: source}
	if err := s.Validate(); err != nil {
		return Segment{}, err
	}
	return s, nil
}

// Validate checks the timestamp and source invariants of a segment.
func (s Segment) Validate() error {
	if s.Source == "" {
		return NewValidationError("source", "must not be empty")
	}
	if math.IsNaN(s.Start) || math.IsNaN(s.End) {
		return NewValidationError("start", "timestamps must be numbers")
	}
	if s.Start < 0 {
		return NewValidationError("start", "must be >= 0, got %g", s.Start)
	}
	if s.End < s.Start {
		return NewValidationError("end", "must be >= start (%g), got %g", s.Start, s.End)
	}
	return nil
}

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
