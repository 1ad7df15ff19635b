// Package indexer turns transcripts into embedded chunks and writes them
// into a collection.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kikitori/internal/chunkid"
	"github.com/hyperjump/kikitori/internal/config"
	"github.com/hyperjump/kikitori/internal/embedding"
	"github.com/hyperjump/kikitori/internal/models"
	"github.com/hyperjump/kikitori/internal/storage"
	"github.com/hyperjump/kikitori/internal/transcript"
)

// Writer is the write side of a collection.
type Writer interface {
	ReplaceSource(ctx context.Context, source string, records []models.EmbeddedChunk) error
	DeleteSource(ctx context.Context, source string) (int, error)
	Sources(ctx context.Context) ([]models.SourceSummary, error)
}

// Options holds the ingestion settings.
type Options struct {
	MaxWords        int
	MinSegmentWords int
	BatchSize       int
	Workers         int
	Extensions      []string
	// Directory is the transcripts directory the collection mirrors. Only a
	// pass over it prunes sources whose files are gone. Empty disables pruning.
	Directory string
}

// OptionsFromConfig collects the ingestion settings from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxWords:        cfg.Chunking.MaxWords,
		MinSegmentWords: cfg.Chunking.MinSegmentWords,
		BatchSize:       cfg.Embedding.BatchSize,
		Workers:         cfg.Embedding.Workers,
		Extensions:      cfg.Transcripts.Extensions,
		Directory:       cfg.Transcripts.Directory,
	}
}

// Report summarizes one ingestion run.
type Report struct {
	RunID        string        `json:"run_id"`
	Files        int           `json:"files"`
	Sources      []string      `json:"sources"`
	Segments     int           `json:"segments"`
	KeptSegments int           `json:"kept_segments"`
	Chunks       int           `json:"chunks"`
	Pruned       []string      `json:"pruned"`
	FromCache    bool          `json:"from_cache"`
	Duration     time.Duration `json:"duration_ns"`
}

// Indexer runs transcripts through normalize, chunk and embed, then
// replaces each source's records in the collection.
type Indexer struct {
	writer   Writer
	embedder embedding.Embedder
	chunker  *Chunker
	opts     Options
	cache    *storage.ChunkCache // optional
	force    bool
	logger   *zap.Logger // optional; when set, logs debug events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithCache makes IngestDirectory reuse and refresh an embedded-chunk cache.
func WithCache(c *storage.ChunkCache) IndexerOption {
	return func(idx *Indexer) { idx.cache = c }
}

// WithForceRebuild ignores the cache on read; it is still rewritten.
func WithForceRebuild(force bool) IndexerOption {
	return func(idx *Indexer) { idx.force = force }
}

// NewIndexer creates an indexer. A non-positive MaxWords is rejected.
func NewIndexer(writer Writer, embedder embedding.Embedder, opts Options, options ...IndexerOption) (*Indexer, error) {
	chunker, err := NewChunker(opts.MaxWords)
	if err != nil {
		return nil, err
	}
	if opts.MinSegmentWords < 0 {
		return nil, models.NewValidationError("min_segment_words", "must be >= 0, got %d", opts.MinSegmentWords)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = transcript.DefaultExtensions
	}
	idx := &Indexer{
		writer:   writer,
		embedder: embedder,
		chunker:  chunker,
		opts:     opts,
	}
	for _, o := range options {
		o(idx)
	}
	return idx, nil
}

func newReport() *Report {
	return &Report{RunID: uuid.New().String(), Sources: []string{}, Pruned: []string{}}
}

// IngestDirectory ingests every transcript directly under dir. When a cache
// is configured and not force-rebuilt, a valid cache built from the same
// directory replaces parsing and embedding. When dir is Options.Directory,
// file sources no longer present in it are removed from the collection.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string) (*Report, error) {
	startTime := time.Now()
	report := newReport()
	cacheKey := absPath(dir)
	home := idx.opts.Directory != "" && absPath(idx.opts.Directory) == cacheKey

	if idx.cache != nil && !idx.force {
		cached, ok, err := idx.cache.Load(cacheKey)
		if err != nil && idx.logger != nil {
			idx.logger.Warn("ignoring unreadable chunk cache", zap.String("path", idx.cache.Path()), zap.Error(err))
		}
		if ok {
			if err := idx.applyCached(ctx, cached, report); err != nil {
				return nil, err
			}
			if home {
				pruned, err := idx.PruneMissing(ctx, dir)
				if err != nil {
					return nil, err
				}
				report.Pruned = pruned
			}
			report.Duration = time.Since(startTime)
			return report, nil
		}
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}
	files, err := transcript.ListFiles(dir, idx.opts.Extensions)
	if err != nil {
		return nil, err
	}

	all := make([]models.EmbeddedChunk, 0)
	for _, path := range files {
		records, err := idx.ingestFile(ctx, path, report)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	if home {
		pruned, err := idx.prune(ctx, files)
		if err != nil {
			return nil, err
		}
		report.Pruned = pruned
	}

	if idx.cache != nil {
		if err := idx.cache.Save(cacheKey, all); err != nil {
			if idx.logger != nil {
				idx.logger.Warn("failed to write chunk cache", zap.String("path", idx.cache.Path()), zap.Error(err))
			}
		} else if idx.logger != nil {
			idx.logger.Debug("chunk cache written", zap.String("path", idx.cache.Path()), zap.Int("chunks", len(all)))
		}
	}
	report.Duration = time.Since(startTime)
	if idx.logger != nil {
		idx.logger.Info("ingestion finished",
			zap.String("run_id", report.RunID),
			zap.Int("files", report.Files),
			zap.Int("chunks", report.Chunks),
			zap.Duration("duration", report.Duration))
	}
	return report, nil
}

func (idx *Indexer) applyCached(ctx context.Context, cached []models.EmbeddedChunk, report *Report) error {
	bySource := make(map[string][]models.EmbeddedChunk)
	for _, ec := range cached {
		bySource[ec.Chunk.Source] = append(bySource[ec.Chunk.Source], ec)
	}
	sources := make([]string, 0, len(bySource))
	for s := range bySource {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, s := range sources {
		if err := idx.writer.ReplaceSource(ctx, s, bySource[s]); err != nil {
			return err
		}
	}
	report.FromCache = true
	report.Sources = sources
	report.Files = len(sources)
	report.Chunks = len(cached)
	if idx.logger != nil {
		idx.logger.Info("loaded embedded chunks from cache",
			zap.String("path", idx.cache.Path()),
			zap.Int("chunks", len(cached)),
			zap.Int("sources", len(sources)))
	}
	return nil
}

// IngestFile ingests one transcript file. Its source is the file's base name.
func (idx *Indexer) IngestFile(ctx context.Context, path string) (*Report, error) {
	startTime := time.Now()
	report := newReport()
	if !transcript.HasExtension(path, idx.opts.Extensions) {
		return nil, models.NewValidationError("path", "extension of %s not in %v", filepath.Base(path), idx.opts.Extensions)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if _, err := idx.ingestFile(ctx, path, report); err != nil {
		return nil, err
	}
	idx.invalidateCache()
	report.Duration = time.Since(startTime)
	return report, nil
}

// IngestPath ingests path as a directory or a single file.
func (idx *Indexer) IngestPath(ctx context.Context, path string) (*Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if info.IsDir() {
		return idx.IngestDirectory(ctx, path)
	}
	return idx.IngestFile(ctx, path)
}

func (idx *Indexer) ingestFile(ctx context.Context, path string, report *Report) ([]models.EmbeddedChunk, error) {
	if idx.logger != nil {
		idx.logger.Debug("indexer ingesting file", zap.String("path", path))
	}
	segments, err := transcript.ParseFile(path)
	if err != nil {
		return nil, err
	}
	source := filepath.Base(path)
	records, err := idx.ingest(ctx, source, segments, report)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	report.Files++
	return records, nil
}

// IngestSegments ingests already parsed segments as the complete content of
// source. Segments with an empty source are attributed to source.
func (idx *Indexer) IngestSegments(ctx context.Context, source string, segments []models.Segment) (*Report, error) {
	startTime := time.Now()
	report := newReport()
	if _, err := idx.ingest(ctx, source, segments, report); err != nil {
		return nil, err
	}
	idx.invalidateCache()
	report.Duration = time.Since(startTime)
	return report, nil
}

func (idx *Indexer) ingest(ctx context.Context, source string, segments []models.Segment, report *Report) ([]models.EmbeddedChunk, error) {
	if source == "" {
		return nil, models.NewValidationError("source", "must not be empty")
	}
	segs := make([]models.Segment, len(segments))
	copy(segs, segments)
	for i := range segs {
		if segs[i].Source == "" {
			segs[i].Source = source
		}
		if segs[i].Source != source {
			return nil, models.NewValidationError("source", "segment %d belongs to %q, not %q", i, segs[i].Source, source)
		}
		if err := segs[i].Validate(); err != nil {
			return nil, err
		}
	}

	kept := NormalizeSegments(segs, idx.opts.MinSegmentWords)
	chunks := idx.chunker.Chunk(kept)
	records, err := idx.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if err := idx.writer.ReplaceSource(ctx, source, records); err != nil {
		return nil, err
	}

	report.Sources = append(report.Sources, source)
	report.Segments += len(segments)
	report.KeptSegments += len(kept)
	report.Chunks += len(records)
	if idx.logger != nil {
		idx.logger.Debug("indexer source ingested",
			zap.String("source", source),
			zap.Int("segments", len(segments)),
			zap.Int("kept", len(kept)),
			zap.Int("chunks", len(records)))
	}
	return records, nil
}

// embedChunks embeds chunks in batches, running up to Workers batches at a
// time. Output order matches chunks.
func (idx *Indexer) embedChunks(ctx context.Context, chunks []models.Chunk) ([]models.EmbeddedChunk, error) {
	if len(chunks) == 0 {
		return []models.EmbeddedChunk{}, nil
	}
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.opts.Workers)
	for lo := 0; lo < len(chunks); lo += idx.opts.BatchSize {
		hi := min(lo+idx.opts.BatchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, hi-lo)
			for i := range texts {
				texts[i] = chunks[lo+i].Text
			}
			out, err := idx.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return models.NewDependencyError("embedder", err)
			}
			if len(out) != len(texts) {
				return models.NewDependencyError("embedder",
					fmt.Errorf("returned %d vectors for %d texts", len(out), len(texts)))
			}
			copy(vectors[lo:hi], out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := chunkid.Assign(chunks)
	records := make([]models.EmbeddedChunk, len(chunks))
	for i, ch := range chunks {
		records[i] = models.EmbeddedChunk{ID: ids[i], Chunk: ch, Embedding: vectors[i]}
	}
	return records, nil
}

// RemoveSource deletes every chunk of source from the collection.
func (idx *Indexer) RemoveSource(ctx context.Context, source string) (int, error) {
	n, err := idx.writer.DeleteSource(ctx, source)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		idx.invalidateCache()
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer source removed", zap.String("source", source), zap.Int("chunks", n))
	}
	return n, nil
}

// PruneMissing removes every indexed source named like a transcript file
// that has no matching file directly under dir, and returns the removed
// sources in order. Sources ingested as raw segments under other names are
// kept.
func (idx *Indexer) PruneMissing(ctx context.Context, dir string) ([]string, error) {
	files, err := transcript.ListFiles(dir, idx.opts.Extensions)
	if err != nil {
		return nil, err
	}
	pruned, err := idx.prune(ctx, files)
	if err != nil {
		return nil, err
	}
	if len(pruned) > 0 {
		idx.invalidateCache()
	}
	return pruned, nil
}

func (idx *Indexer) prune(ctx context.Context, files []string) ([]string, error) {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[filepath.Base(f)] = true
	}
	indexed, err := idx.writer.Sources(ctx)
	if err != nil {
		return nil, err
	}
	pruned := []string{}
	for _, s := range indexed {
		if present[s.Source] || !transcript.HasExtension(s.Source, idx.opts.Extensions) {
			continue
		}
		if _, err := idx.writer.DeleteSource(ctx, s.Source); err != nil {
			return nil, err
		}
		pruned = append(pruned, s.Source)
	}
	sort.Strings(pruned)
	if len(pruned) > 0 && idx.logger != nil {
		idx.logger.Info("pruned sources missing from directory", zap.Strings("sources", pruned))
	}
	return pruned, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// invalidateCache drops the directory cache after a partial update, since
// it no longer matches the collection.
func (idx *Indexer) invalidateCache() {
	if idx.cache == nil {
		return
	}
	if err := idx.cache.Remove(); err != nil && idx.logger != nil {
		idx.logger.Warn("failed to remove stale chunk cache", zap.String("path", idx.cache.Path()), zap.Error(err))
	}
}
