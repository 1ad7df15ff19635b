package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hyperjump/kikitori/internal/models"
)

func TestBuild(t *testing.T) {
	hits := []models.Hit{
		{Text: "first passage", Source: "talk.vtt", Start: 0, End: 12.5},
		{Text: "second passage", Source: "talk.vtt", Start: 12.5, End: 30},
	}
	got := Build("What was said?", hits)

	want := "You are an assistant helping answer questions based only on the given context.\n" +
		"Do not use any external knowledge.\n\n" +
		"Context:\n" +
		"Snippet 1:\nfirst passage\n(source: talk.vtt, start: 0.0, end: 12.5)\n" +
		"\n---\n" +
		"Snippet 2:\nsecond passage\n(source: talk.vtt, start: 12.5, end: 30.0)\n" +
		"\n\nQuestion: What was said?\n\n" +
		"Answer (based strictly on the above snippets, and include references if helpful):\n"
	assert.Equal(t, want, got)
}

func TestBuild_NoHits(t *testing.T) {
	got := Build("q", nil)
	assert.Contains(t, got, "Context:\n\n\nQuestion: q")
	assert.NotContains(t, got, "Snippet")
}

func TestSnippet_UnknownSource(t *testing.T) {
	s := Snippet(3, models.Hit{Text: "x", Start: 1.25, End: 2})
	assert.True(t, strings.HasPrefix(s, "Snippet 3:\n"))
	assert.Contains(t, s, "(source: unknown, start: 1.25, end: 2.0)")
}
