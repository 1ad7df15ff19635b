// Package cli renders kikitori results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/kikitori/internal/indexer"
	"github.com/hyperjump/kikitori/internal/models"
	"github.com/hyperjump/kikitori/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one line per hit.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// DefaultSnippetChars is how much chunk text the text format shows.
const DefaultSnippetChars = 200

// ParseOutputFormat validates a -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", models.NewValidationError("output", "unknown format %q (text, compact, json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRetrievalResult writes hits in the given format.
func WriteRetrievalResult(w io.Writer, result *models.RetrievalResult, format OutputFormat, snippetChars int) error {
	if snippetChars <= 0 {
		snippetChars = DefaultSnippetChars
	}
	switch format {
	case OutputJSON:
		return writeJSON(w, result)
	case OutputCompact:
		for i, h := range result.Hits {
			fmt.Fprintf(w, "%d\t%.4f\t%s\t%s-%s\t%s\n", i+1, h.Distance, h.Source,
				utils.FormatSeconds(h.Start), utils.FormatSeconds(h.End), utils.Truncate(oneLine(h.Text), 80))
		}
		return nil
	default:
		fmt.Fprintf(w, "\nTop %d results for query: '%s' (%dms)\n", len(result.Hits), result.Query, result.QueryTime)
		if len(result.Hits) == 0 {
			fmt.Fprintln(w, "\nNo results. Run 'kikitori ingest' to index transcripts.")
			return nil
		}
		for i, h := range result.Hits {
			writeHit(w, i+1, h, snippetChars)
		}
		return nil
	}
}

func writeHit(w io.Writer, rank int, h models.Hit, snippetChars int) {
	fmt.Fprintf(w, "\nResult %d:\n", rank)
	fmt.Fprintf(w, "Text snippet: %s\n", utils.Truncate(h.Text, snippetChars))
	fmt.Fprintf(w, "Source: %s [%s - %s]\n", h.Source, utils.FormatSeconds(h.Start), utils.FormatSeconds(h.End))
	fmt.Fprintf(w, "Distance: %.4f\n", h.Distance)
	fmt.Fprintln(w, strings.Repeat("-", 50))
}

// WriteAnswer writes a generated answer followed by its references.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, answer)
	case OutputCompact:
		fmt.Fprintln(w, answer.Answer)
		return nil
	default:
		fmt.Fprintf(w, "\nAnswer:\n\n%s\n", answer.Answer)
		if len(answer.Snippets) > 0 {
			fmt.Fprintln(w, "\nReferences:")
			for i, h := range answer.Snippets {
				fmt.Fprintf(w, "  [%d] %s %s-%s (distance %.4f)\n", i+1, h.Source,
					utils.FormatSeconds(h.Start), utils.FormatSeconds(h.End), h.Distance)
			}
		}
		return nil
	}
}

// WriteReport writes an ingestion report.
func WriteReport(w io.Writer, report *indexer.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	origin := "transcripts"
	if report.FromCache {
		origin = "cache"
	}
	fmt.Fprintf(w, "Ingested %d chunks from %d files (%s) in %s\n",
		report.Chunks, report.Files, origin, report.Duration.Round(1e6))
	if !report.FromCache {
		fmt.Fprintf(w, "Segments: %d parsed, %d kept after normalization\n", report.Segments, report.KeptSegments)
	}
	if len(report.Pruned) > 0 {
		fmt.Fprintf(w, "Removed %d missing sources: %s\n", len(report.Pruned), strings.Join(report.Pruned, ", "))
	}
	fmt.Fprintf(w, "Run ID: %s\n", report.RunID)
	return nil
}

// WriteSources writes the indexed sources.
func WriteSources(w io.Writer, sources []models.SourceSummary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{"sources": sources})
	}
	if len(sources) == 0 {
		fmt.Fprintln(w, "No sources indexed.")
		return nil
	}
	for _, s := range sources {
		fmt.Fprintf(w, "%-40s %5d chunks  %s\n", s.Source, s.Chunks, utils.FormatSeconds(s.End))
	}
	return nil
}

// WriteStatus writes a status map. Keys are printed sorted in text format.
func WriteStatus(w io.Writer, status map[string]interface{}, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	keys := make([]string, 0, len(status))
	for k := range status {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := status[k].(type) {
		case map[string]interface{}:
			fmt.Fprintf(w, "%s:\n", k)
			sub := make([]string, 0, len(v))
			for sk := range v {
				sub = append(sub, sk)
			}
			sort.Strings(sub)
			for _, sk := range sub {
				fmt.Fprintf(w, "  %s: %v\n", sk, v[sk])
			}
		default:
			fmt.Fprintf(w, "%s: %v\n", k, v)
		}
	}
	return nil
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
