package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiskUsage(t *testing.T) {
	dir := t.TempDir()

	f1 := filepath.Join(dir, "f1.db")
	if err := os.WriteFile(f1, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "a"), []byte("ab"), 0644); err != nil {
		t.Fatal(err)
	}

	usage, total, err := DiskUsage(f1, sub, filepath.Join(dir, "missing"), "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 7 {
		t.Errorf("total = %d, want 7", total)
	}
	if len(usage) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(usage))
	}
	if !usage[0].Exists || usage[0].Bytes != 5 {
		t.Errorf("file usage = %+v", usage[0])
	}
	if !usage[1].Exists || usage[1].Bytes != 2 {
		t.Errorf("dir usage = %+v", usage[1])
	}
	if usage[2].Exists || usage[2].Bytes != 0 {
		t.Errorf("missing path usage = %+v", usage[2])
	}
}

func TestDatabaseFiles(t *testing.T) {
	files := DatabaseFiles("/data/index.db")
	want := []string{"/data/index.db", "/data/index.db-wal", "/data/index.db-shm"}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}
