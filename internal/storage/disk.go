package storage

import (
	"os"
	"path/filepath"
)

// PathUsage is the on-disk footprint of one storage path.
type PathUsage struct {
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
	Exists bool   `json:"exists"`
}

// DatabaseFiles returns the SQLite database path followed by its WAL and
// shared-memory side files.
func DatabaseFiles(dbPath string) []string {
	return []string{dbPath, dbPath + "-wal", dbPath + "-shm"}
}

// DiskUsage reports the size of each path (files, or directories summed
// recursively) and the total. Missing paths count as zero.
func DiskUsage(paths ...string) ([]PathUsage, int64, error) {
	usage := make([]PathUsage, 0, len(paths))
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		u := PathUsage{Path: p}
		info, err := os.Stat(p)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, 0, err
		case info.IsDir():
			n, err := dirSize(p)
			if err != nil {
				return nil, 0, err
			}
			u.Bytes, u.Exists = n, true
		default:
			u.Bytes, u.Exists = info.Size(), true
		}
		total += u.Bytes
		usage = append(usage, u)
	}
	return usage, total, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
