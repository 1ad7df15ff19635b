package indexer

import (
	"testing"

	"github.com/hyperjump/kikitori/internal/models"
)

func TestPreprocess(t *testing.T) {
	if Preprocess("  a  b \n c ") != "a b c" {
		t.Error("expected trimmed and collapsed spaces")
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"[Music] so today we talk", "so today we talk"},
		{"uh so um we like start", "so we start"},
		{"Uhh I think UMM yes", "I think yes"},
		{"it doesnâ€™t matter", "it doesn't matter"},
		{"...well that is it!", "well that is it"},
		{"unlikely words stay", "unlikely words stay"},
		{"   [Applause]   ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeSegments_DropsShortAndKeepsOrder(t *testing.T) {
	in := []models.Segment{
		{Text: "[Music]", Start: 0, End: 1, Source: "a"},
		{Text: "um first real sentence", Start: 1, End: 2, Source: "a"},
		{Text: "uh yes", Start: 2, End: 3, Source: "a"},
		{Text: "second real sentence here", Start: 3, End: 4, Source: "a"},
	}
	got := NormalizeSegments(in, DefaultMinSegmentWords)
	if len(got) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(got), got)
	}
	if got[0].Text != "first real sentence" || got[0].Start != 1 {
		t.Errorf("unexpected first segment %+v", got[0])
	}
	if got[1].Text != "second real sentence here" || got[1].End != 4 {
		t.Errorf("unexpected second segment %+v", got[1])
	}
}
