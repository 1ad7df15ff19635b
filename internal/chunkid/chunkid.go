// Package chunkid derives deterministic identifiers for indexed chunks.
package chunkid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/hyperjump/kikitori/internal/models"
)

const prefix = "chunk:"

// ID returns a stable identifier for the chunk of source spanning [start, end].
// The same triple always yields the same ID, so re-ingesting identical input
// overwrites records instead of duplicating them.
func ID(source string, start, end float64) string {
	h := sha256.New()
	h.Write([]byte(source))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(start, 'g', -1, 64)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(end, 'g', -1, 64)))
	sum := h.Sum(nil)
	return prefix + hex.EncodeToString(sum[:16])
}

// Assign returns one ID per chunk, in order. Chunks sharing source and time
// range get a "#n" suffix on every occurrence after the first.
func Assign(chunks []models.Chunk) []string {
	ids := make([]string, len(chunks))
	seen := make(map[string]int, len(chunks))
	for i, ch := range chunks {
		id := ID(ch.Source, ch.Start, ch.End)
		if n := seen[id]; n > 0 {
			seen[id] = n + 1
			id = fmt.Sprintf("%s#%d", id, n)
		} else {
			seen[id] = 1
		}
		ids[i] = id
	}
	return ids
}
