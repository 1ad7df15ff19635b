package storage

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/hyperjump/kikitori/internal/models"
)

const cacheMagic = "KKC1"

// cacheHeader identifies the directory and embedding space a cache was
// built from.
type cacheHeader struct {
	Directory  string
	Model      string
	Dimensions int
	CreatedAt  time.Time
	Count      int
}

type cachePayload struct {
	Chunks []models.EmbeddedChunk
}

// ChunkCache is an on-disk snapshot of embedded chunks: a magic string
// followed by a zstd-compressed gob stream of a header and the chunks.
type ChunkCache struct {
	path       string
	model      string
	dimensions int
}

// NewChunkCache returns a cache at path for embeddings produced by model.
func NewChunkCache(path, model string, dimensions int) *ChunkCache {
	return &ChunkCache{path: path, model: model, dimensions: dimensions}
}

// Path returns the cache file location.
func (c *ChunkCache) Path() string {
	return c.path
}

// Load reads the chunks cached for dir. ok is false when the file does not
// exist or was written for another directory, model or dimension.
func (c *ChunkCache) Load(dir string) (chunks []models.EmbeddedChunk, ok bool, err error) {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open chunk cache: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, len(cacheMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != cacheMagic {
		return nil, false, fmt.Errorf("chunk cache %s: bad magic", c.path)
	}
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, false, fmt.Errorf("chunk cache decoder: %w", err)
	}
	defer dec.Close()

	g := gob.NewDecoder(dec)
	var h cacheHeader
	if err := g.Decode(&h); err != nil {
		return nil, false, fmt.Errorf("decode chunk cache header: %w", err)
	}
	if h.Directory != dir || h.Model != c.model || h.Dimensions != c.dimensions {
		return nil, false, nil
	}
	var p cachePayload
	if err := g.Decode(&p); err != nil {
		return nil, false, fmt.Errorf("decode chunk cache: %w", err)
	}
	chunks = p.Chunks
	if chunks == nil {
		chunks = []models.EmbeddedChunk{}
	}
	if len(chunks) != h.Count {
		return nil, false, fmt.Errorf("chunk cache %s: header says %d chunks, found %d", c.path, h.Count, len(chunks))
	}
	return chunks, true, nil
}

// Save writes the chunks built from dir, replacing any previous file
// atomically.
func (c *ChunkCache) Save(dir string, chunks []models.EmbeddedChunk) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := c.write(tmp, dir, chunks); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("install cache file: %w", err)
	}
	return nil
}

func (c *ChunkCache) write(w io.Writer, dir string, chunks []models.EmbeddedChunk) error {
	if _, err := io.WriteString(w, cacheMagic); err != nil {
		return fmt.Errorf("write cache magic: %w", err)
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("chunk cache encoder: %w", err)
	}
	g := gob.NewEncoder(enc)
	h := cacheHeader{Directory: dir, Model: c.model, Dimensions: c.dimensions, CreatedAt: time.Now(), Count: len(chunks)}
	if err := g.Encode(h); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encode chunk cache header: %w", err)
	}
	if err := g.Encode(cachePayload{Chunks: chunks}); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encode chunk cache: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush chunk cache: %w", err)
	}
	return nil
}

// Remove deletes the cache file. A missing file is not an error.
func (c *ChunkCache) Remove() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove chunk cache: %w", err)
	}
	return nil
}
