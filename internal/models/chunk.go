package models

// Chunk is an aggregate of consecutive segments of one source.
type Chunk struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
}

// WordCount returns the number of words in the chunk text.
func (c Chunk) WordCount() int {
	return WordCount(c.Text)
}

// Metadata returns the metadata stored alongside the chunk in the index.
func (c Chunk) Metadata() Metadata {
	return Metadata{Source: c.Source, Start: c.Start, End: c.End}
}

// EmbeddedChunk is a chunk paired with its identifier and embedding vector.
type EmbeddedChunk struct {
	ID        string    `json:"id"`
	Chunk     Chunk     `json:"chunk"`
	Embedding []float32 `json:"-"`
}

// Metadata is the per-record metadata kept by the index.
type Metadata struct {
	Source string  `json:"source"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
}
