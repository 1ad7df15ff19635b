// Package indexer turns transcript segments into embedded chunks and writes
// them into a collection.
package indexer

import (
	"strings"

	"github.com/hyperjump/kikitori/internal/models"
)

// DefaultMaxWords is the chunk word budget used when none is configured.
const DefaultMaxWords = 200

// Chunker aggregates consecutive segments into chunks of at most maxWords
// words. A single segment longer than the budget is never split and becomes
// its own chunk.
type Chunker struct {
	maxWords int
}

// NewChunker creates a chunker with the given word budget.
func NewChunker(maxWords int) (*Chunker, error) {
	if maxWords <= 0 {
		return nil, models.NewValidationError("max_words", "must be > 0, got %d", maxWords)
	}
	return &Chunker{maxWords: maxWords}, nil
}

// MaxWords returns the word budget.
func (c *Chunker) MaxWords() int {
	return c.maxWords
}

// Chunk aggregates segments in order. The accumulator is flushed before a
// segment is appended when appending it would exceed the budget, or when the
// segment belongs to a different source than the accumulated ones.
func (c *Chunker) Chunk(segments []models.Segment) []models.Chunk {
	if len(segments) == 0 {
		return nil
	}
	chunks := make([]models.Chunk, 0)
	var acc accumulator
	for _, seg := range segments {
		wc := models.WordCount(seg.Text)
		if !acc.empty() && (acc.words+wc > c.maxWords || seg.Source != acc.source) {
			chunks = append(chunks, acc.flush())
		}
		acc.add(seg, wc)
	}
	if !acc.empty() {
		chunks = append(chunks, acc.flush())
	}
	return chunks
}

// ChunkSegments is a shorthand for NewChunker(maxWords) followed by Chunk.
func ChunkSegments(segments []models.Segment, maxWords int) ([]models.Chunk, error) {
	c, err := NewChunker(maxWords)
	if err != nil {
		return nil, err
	}
	return c.Chunk(segments), nil
}

type accumulator struct {
	texts  []string
	words  int
	source string
	start  float64
	end    float64
}

func (a *accumulator) empty() bool {
	return len(a.texts) == 0
}

func (a *accumulator) add(seg models.Segment, wc int) {
	if a.empty() {
		a.source = seg.Source
		a.start = seg.Start
	}
	a.texts = append(a.texts, seg.Text)
	a.words += wc
	a.end = seg.End
}

func (a *accumulator) flush() models.Chunk {
	ch := models.Chunk{
		Text:   strings.Join(a.texts, " "),
		Source: a.source,
		Start:  a.start,
		End:    a.end,
	}
	*a = accumulator{}
	return ch
}
