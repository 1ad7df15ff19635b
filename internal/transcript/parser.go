// Package transcript reads timestamped transcript files into segments.
//
// The accepted format is WebVTT-like: a cue header line
// "HH:MM:SS.mmm --> HH:MM:SS.mmm" (optional cue settings after the end
// timestamp) followed by text lines up to the next blank line. Anything
// outside cues (WEBVTT header, NOTE blocks, cue identifiers) is ignored.
package transcript

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/kikitori/internal/models"
)

// DefaultExtensions are the file extensions treated as transcripts.
var DefaultExtensions = []string{".txt", ".vtt"}

var cueHeaderPattern = regexp.MustCompile(
	`^((?:\d{1,2}:)?\d{2}:\d{2}[.,]\d{3})\s+-->\s+((?:\d{1,2}:)?\d{2}:\d{2}[.,]\d{3})`)

// ParseTimestamp converts "HH:MM:SS.mmm" or "MM:SS.mmm" into seconds.
// A comma decimal separator is accepted.
func ParseTimestamp(ts string) (float64, error) {
	parts := strings.Split(strings.ReplaceAll(strings.TrimSpace(ts), ",", "."), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("malformed timestamp %q", ts)
	}
	var hours, minutes int
	var err error
	if len(parts) == 3 {
		if hours, err = strconv.Atoi(parts[0]); err != nil {
			return 0, fmt.Errorf("malformed timestamp %q: %w", ts, err)
		}
		parts = parts[1:]
	}
	if minutes, err = strconv.Atoi(parts[0]); err != nil {
		return 0, fmt.Errorf("malformed timestamp %q: %w", ts, err)
	}
	seconds, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed timestamp %q: %w", ts, err)
	}
	return float64(hours*3600+minutes*60) + seconds, nil
}

// Parse reads cues from r. Every segment gets source as its Source.
func Parse(r io.Reader, source string) ([]models.Segment, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	segments := make([]models.Segment, 0)
	lineNo := 0
	var (
		inCue      bool
		cueLine    int
		start, end float64
		text       []string
	)
	emit := func() error {
		seg, err := models.NewSegment(strings.Join(text, " "), start, end, source)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", source, cueLine, err)
		}
		segments = append(segments, seg)
		inCue = false
		text = text[:0]
		return nil
	}

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if inCue {
			if line != "" {
				text = append(text, line)
				continue
			}
			if err := emit(); err != nil {
				return nil, err
			}
			continue
		}
		m := cueHeaderPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		var err error
		if start, err = ParseTimestamp(m[1]); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", source, lineNo, err)
		}
		if end, err = ParseTimestamp(m[2]); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", source, lineNo, err)
		}
		inCue = true
		cueLine = lineNo
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	if inCue {
		if err := emit(); err != nil {
			return nil, err
		}
	}
	return segments, nil
}

// ParseFile parses one transcript file. The segment source is the file's base name.
func ParseFile(path string) ([]models.Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()
	return Parse(f, filepath.Base(path))
}

// ListFiles returns the transcript files directly under dir whose extension
// is in exts (all DefaultExtensions when exts is empty), sorted by name.
func ListFiles(dir string, exts []string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read transcript directory: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !HasExtension(e.Name(), exts) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// HasExtension reports whether name has one of exts (case-insensitive,
// leading dot optional).
func HasExtension(name string, exts []string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return false
	}
	for _, a := range exts {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == ext {
			return true
		}
	}
	return false
}

// ParseDirectory parses every transcript in dir, file by file in name order.
func ParseDirectory(dir string, exts []string) (map[string][]models.Segment, []string, error) {
	files, err := ListFiles(dir, exts)
	if err != nil {
		return nil, nil, err
	}
	bySource := make(map[string][]models.Segment, len(files))
	sources := make([]string, 0, len(files))
	for _, path := range files {
		segments, err := ParseFile(path)
		if err != nil {
			return nil, nil, err
		}
		source := filepath.Base(path)
		bySource[source] = segments
		sources = append(sources, source)
	}
	return bySource, sources, nil
}
