package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	changed []string
	removed []string
}

func (r *recorder) onChange(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, filepath.Base(path))
	return nil
}

func (r *recorder) onRemove(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, filepath.Base(path))
	return nil
}

func (r *recorder) snapshot() (changed, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changed...), append([]string(nil), r.removed...)
}

func startWatcher(t *testing.T, dir string, rec *recorder) *Watcher {
	t.Helper()
	w := NewWatcher(dir, []string{".vtt"}, rec.onChange, rec.onRemove, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_ChangeIsDebounced(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := startWatcher(t, dir, rec)

	path := filepath.Join(dir, "talk.vtt")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("WEBVTT\n"), 0644))
	}
	assert.Eventually(t, func() bool {
		changed, _ := rec.snapshot()
		return len(changed) >= 1
	}, 2*time.Second, 20*time.Millisecond)

	time.Sleep(200 * time.Millisecond)
	changed, _ := rec.snapshot()
	assert.Len(t, changed, 1, "rapid writes collapse into one change")
	assert.Equal(t, "talk.vtt", changed[0])
	assert.Equal(t, int64(1), w.Stats().Changed)
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0644))
	time.Sleep(250 * time.Millisecond)
	changed, _ := rec.snapshot()
	assert.Empty(t, changed)
}

func TestWatcher_Remove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.vtt")
	require.NoError(t, os.WriteFile(path, []byte("WEBVTT\n"), 0644))

	rec := &recorder{}
	startWatcher(t, dir, rec)
	require.NoError(t, os.Remove(path))

	assert.Eventually(t, func() bool {
		_, removed := rec.snapshot()
		return len(removed) == 1 && removed[0] == "gone.vtt"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_Sync(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.vtt"), []byte("WEBVTT\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.vtt"), []byte("WEBVTT\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("x"), 0644))

	rec := &recorder{}
	w := NewWatcher(dir, []string{".vtt"}, rec.onChange, rec.onRemove)
	require.NoError(t, w.Sync(context.Background()))
	changed, _ := rec.snapshot()
	assert.Equal(t, []string{"a.vtt", "b.vtt"}, changed)
}

func TestWatcher_HandlerFailureCounted(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.vtt"), []byte("x"), 0644))
	fail := func(context.Context, string) error { return errors.New("parse error") }
	w := NewWatcher(dir, nil, fail, nil)
	require.NoError(t, w.Sync(context.Background()))
	assert.Equal(t, int64(1), w.Stats().Failed)
	assert.Equal(t, int64(0), w.Stats().Changed)
}

func TestWatcher_StartCreatesDirectoryAndStops(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "transcripts")
	w := NewWatcher(dir, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	assert.DirExists(t, dir)
	assert.True(t, w.Stats().Running)
	assert.Equal(t, filepath.Clean(dir), w.Directory())

	cancel()
	assert.Eventually(t, func() bool { return !w.Stats().Running }, time.Second, 10*time.Millisecond)
	w.Stop()
}
