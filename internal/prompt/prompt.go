// Package prompt assembles retrieved snippets into a grounding prompt.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperjump/kikitori/internal/models"
)

const snippetSeparator = "\n---\n"

const template = `You are an assistant helping answer questions based only on the given context.
Do not use any external knowledge.

Context:
%s

Question: %s

Answer (based strictly on the above snippets, and include references if helpful):
`

// Build returns the prompt for question grounded on hits, in rank order.
func Build(question string, hits []models.Hit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = Snippet(i+1, h)
	}
	return fmt.Sprintf(template, strings.Join(parts, snippetSeparator), question)
}

// Snippet renders one numbered snippet with its provenance line.
func Snippet(n int, h models.Hit) string {
	source := h.Source
	if source == "" {
		source = "unknown"
	}
	return fmt.Sprintf("Snippet %d:\n%s\n(source: %s, start: %s, end: %s)\n",
		n, h.Text, source, seconds(h.Start), seconds(h.End))
}

// seconds keeps a decimal point on whole values so offsets read as times,
// e.g. 12 renders as "12.0".
func seconds(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
