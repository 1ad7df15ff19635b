package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kikitori/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		metric TEXT NOT NULL,
		dimensions INTEGER NOT NULL,
		embedding_model TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chunks (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		text TEXT NOT NULL,
		source TEXT NOT NULL,
		start_sec REAL NOT NULL,
		end_sec REAL NOT NULL,
		embedding BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id),
		FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(collection, source);
	`
	_, err := db.Exec(schema)
	return err
}

// EnsureCollection creates c if no collection with its name exists and
// returns the stored collection either way.
func (s *SQLiteStorage) EnsureCollection(ctx context.Context, c *models.Collection) (*models.Collection, models.EnsureResult, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO collections (name, metric, dimensions, embedding_model, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.Metric, c.Dimensions, c.EmbeddingModel, c.CreatedAt,
	)
	if err != nil {
		return nil, models.EnsureAlreadyExisted, err
	}
	n, _ := res.RowsAffected()
	stored, err := s.GetCollection(ctx, c.Name)
	if err != nil {
		return nil, models.EnsureAlreadyExisted, err
	}
	if n == 1 {
		return stored, models.EnsureCreated, nil
	}
	return stored, models.EnsureAlreadyExisted, nil
}

// GetCollection returns the collection named name.
func (s *SQLiteStorage) GetCollection(ctx context.Context, name string) (*models.Collection, error) {
	var c models.Collection
	err := s.db.QueryRowContext(ctx,
		`SELECT name, metric, dimensions, embedding_model, created_at
		 FROM collections WHERE name = ?`, name,
	).Scan(&c.Name, &c.Metric, &c.Dimensions, &c.EmbeddingModel, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %s: %w", name, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertChunks inserts or replaces chunks in a transaction.
func (s *SQLiteStorage) UpsertChunks(ctx context.Context, collection string, chunks []models.EmbeddedChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := insertChunks(ctx, tx, collection, chunks); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceSource deletes every chunk of source and inserts chunks, in one transaction.
func (s *SQLiteStorage) ReplaceSource(ctx context.Context, collection, source string, chunks []models.EmbeddedChunk) ([]string, error) {
	for _, ch := range chunks {
		if ch.Chunk.Source != source {
			return nil, fmt.Errorf("chunk %s belongs to source %q, not %q", ch.ID, ch.Chunk.Source, source)
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	old, err := sourceIDs(ctx, tx, collection, source)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE collection = ? AND source = ?`, collection, source); err != nil {
		return nil, err
	}
	if err := insertChunks(ctx, tx, collection, chunks); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	keep := make(map[string]bool, len(chunks))
	for _, ch := range chunks {
		keep[ch.ID] = true
	}
	removed := make([]string, 0)
	for _, id := range old {
		if !keep[id] {
			removed = append(removed, id)
		}
	}
	return removed, nil
}

// DeleteSource removes every chunk of source and returns their IDs.
func (s *SQLiteStorage) DeleteSource(ctx context.Context, collection, source string) ([]string, error) {
	return s.ReplaceSource(ctx, collection, source, nil)
}

func sourceIDs(ctx context.Context, tx *sql.Tx, collection, source string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM chunks WHERE collection = ? AND source = ?`, collection, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func insertChunks(ctx context.Context, tx *sql.Tx, collection string, chunks []models.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (collection, id, text, source, start_sec, end_sec, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, ch := range chunks {
		if ch.ID == "" {
			return fmt.Errorf("chunk without id in source %q", ch.Chunk.Source)
		}
		if _, err := stmt.ExecContext(ctx, collection, ch.ID, ch.Chunk.Text, ch.Chunk.Source,
			ch.Chunk.Start, ch.Chunk.End, float32SliceToBytes(ch.Embedding), now); err != nil {
			return err
		}
	}
	return nil
}

// GetChunks returns the chunks with the given IDs, keyed by ID. Missing IDs
// are absent from the map.
func (s *SQLiteStorage) GetChunks(ctx context.Context, collection string, ids []string) (map[string]models.EmbeddedChunk, error) {
	out := make(map[string]models.EmbeddedChunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `SELECT id, text, source, start_sec, end_sec, embedding FROM chunks
		WHERE collection = ? AND id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out[ch.ID] = ch
	}
	return out, rows.Err()
}

// ForEachChunk calls fn for every chunk of collection in ID order. Iteration
// stops at the first error returned by fn.
func (s *SQLiteStorage) ForEachChunk(ctx context.Context, collection string, fn func(models.EmbeddedChunk) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, source, start_sec, end_sec, embedding FROM chunks
		 WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return err
		}
		if err := fn(ch); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanChunk(rows *sql.Rows) (models.EmbeddedChunk, error) {
	var ch models.EmbeddedChunk
	var blob []byte
	if err := rows.Scan(&ch.ID, &ch.Chunk.Text, &ch.Chunk.Source, &ch.Chunk.Start, &ch.Chunk.End, &blob); err != nil {
		return ch, err
	}
	ch.Embedding = bytesToFloat32Slice(blob)
	return ch, nil
}

// ListSources returns per-source chunk counts ordered by source name.
func (s *SQLiteStorage) ListSources(ctx context.Context, collection string) ([]models.SourceSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, COUNT(*), MAX(end_sec) FROM chunks
		 WHERE collection = ? GROUP BY source ORDER BY source`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.SourceSummary, 0)
	for rows.Next() {
		var src models.SourceSummary
		if err := rows.Scan(&src.Source, &src.Chunks, &src.End); err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// CountChunks returns the number of chunks in collection.
func (s *SQLiteStorage) CountChunks(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE collection = ?`, collection).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
