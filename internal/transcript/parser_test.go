package transcript

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kikitori/internal/models"
)

const sampleVTT = `WEBVTT
Kind: captions
Language: en

00:00:00.000 --> 00:00:02.500 align:start position:0%
[Music] welcome back
to the channel

1
00:00:02.500 --> 00:00:05.000
today we talk about intros

NOTE this is ignored

01:02:03.250 --> 01:02:04.000
last line`

func TestParse(t *testing.T) {
	segs, err := Parse(strings.NewReader(sampleVTT), "talk.txt")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(segs), segs)
	}
	want := []models.Segment{
		{Text: "[Music] welcome back to the channel", Start: 0, End: 2.5, Source: "talk.txt"},
		{Text: "today we talk about intros", Start: 2.5, End: 5, Source: "talk.txt"},
		{Text: "last line", Start: 3723.25, End: 3724, Source: "talk.txt"},
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, segs[i], want[i])
		}
	}
}

func TestParse_RejectsReversedCue(t *testing.T) {
	in := "00:00:05.000 --> 00:00:01.000\nbackwards\n"
	_, err := Parse(strings.NewReader(in), "bad.txt")
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad.txt:1") {
		t.Errorf("error should name file and line: %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"00:00:00.000", 0, false},
		{"00:01:01.500", 61.5, false},
		{"02:00:00.001", 7200.001, false},
		{"03:04.250", 184.25, false},
		{"00:00:01,200", 1.2, false},
		{"garbage", 0, true},
		{"aa:00:01.000", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTimestamp(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (got-tt.want > 1e-9 || tt.want-got > 1e-9) {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
	write("b.txt", "00:00:00.000 --> 00:00:01.000\nsecond file text\n")
	write("a.vtt", "WEBVTT\n\n00:00:00.000 --> 00:00:01.000\nfirst file text\n")
	write("notes.md", "00:00:00.000 --> 00:00:01.000\nnot a transcript\n")
	if err := os.Mkdir(filepath.Join(dir, "sub.txt"), 0755); err != nil {
		t.Fatal(err)
	}

	bySource, sources, err := ParseDirectory(dir, nil)
	if err != nil {
		t.Fatalf("ParseDirectory: %v", err)
	}
	if len(sources) != 2 || sources[0] != "a.vtt" || sources[1] != "b.txt" {
		t.Fatalf("sources = %v", sources)
	}
	if got := bySource["b.txt"][0].Text; got != "second file text" {
		t.Errorf("b.txt text = %q", got)
	}

	_, sources, err = ParseDirectory(dir, []string{"txt"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 || sources[0] != "b.txt" {
		t.Errorf("filtered sources = %v", sources)
	}
}

func TestHasExtension(t *testing.T) {
	tests := []struct {
		name string
		exts []string
		want bool
	}{
		{"a.txt", []string{".txt"}, true},
		{"A.TXT", []string{"txt"}, true},
		{"a.vtt", []string{".txt"}, false},
		{"noext", []string{".txt"}, false},
	}
	for _, tt := range tests {
		if got := HasExtension(tt.name, tt.exts); got != tt.want {
			t.Errorf("HasExtension(%q, %v) = %v, want %v", tt.name, tt.exts, got, tt.want)
		}
	}
}
