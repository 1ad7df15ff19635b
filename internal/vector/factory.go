package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses exact in-memory brute-force search.
	IndexTypeMemory IndexType = "memory"
)

// NewVectorIndex creates a vector index of the specified type and metric.
// Supported types: "memory" (default).
func NewVectorIndex(indexType string, metric string, dimensions int) (VectorIndex, error) {
	m, err := ParseMetric(metric)
	if err != nil {
		return nil, err
	}
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions, m)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory)", indexType)
	}
}
