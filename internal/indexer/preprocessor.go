package indexer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/hyperjump/kikitori/internal/models"
)

// DefaultMinSegmentWords is the minimum number of words a normalized segment
// needs to be kept.
const DefaultMinSegmentWords = 3

var (
	noiseTagPattern = regexp.MustCompile(`\[[^\]]*\]`)
	fillerPattern   = regexp.MustCompile(`(?i)\b(uh+|um+|erm+|ah+|like)\b`)
)

// Preprocess collapses runs of whitespace into single spaces and trims the result.
func Preprocess(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}

// NormalizeText cleans spoken transcript text: bracketed noise tags such as
// [Music] and filler words are removed, mis-decoded apostrophes are repaired
// and surrounding punctuation is trimmed.
func NormalizeText(text string) string {
	text = noiseTagPattern.ReplaceAllString(text, "")
	text = fillerPattern.ReplaceAllString(text, "")
	text = Preprocess(text)
	text = strings.ReplaceAll(text, "â€™", "'")
	return strings.Trim(text, " .!?")
}

// NormalizeSegment returns seg with normalized text, and false when the
// result has fewer than minWords words.
func NormalizeSegment(seg models.Segment, minWords int) (models.Segment, bool) {
	seg.Text = NormalizeText(seg.Text)
	if models.WordCount(seg.Text) < minWords {
		return seg, false
	}
	return seg, true
}

// NormalizeSegments normalizes segments in order and drops the ones that end
// up shorter than minWords.
func NormalizeSegments(segments []models.Segment, minWords int) []models.Segment {
	out := make([]models.Segment, 0, len(segments))
	for _, seg := range segments {
		if norm, ok := NormalizeSegment(seg, minWords); ok {
			out = append(out, norm)
		}
	}
	return out
}
