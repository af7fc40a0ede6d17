package waldump

import (
	"os"
	"path/filepath"
)

// IdentifyTargetDirectory applies the same directory-search order as
// pg_waldump: an explicit --path wins outright, and only path and
// path/pg_wal are tried; otherwise it tries the current directory,
// ./pg_wal, and finally $PGDATA/pg_wal, returning the first candidate that
// exists and contains at least one WAL segment file.
func IdentifyTargetDirectory(path string, segSize uint32) (string, error) {
	candidates := make([]string, 0, 3)
	if path != "" {
		candidates = append(candidates, path, filepath.Join(path, "pg_wal"))
	} else {
		candidates = append(candidates, ".", filepath.Join(".", "pg_wal"))
		if pgdata := os.Getenv("PGDATA"); pgdata != "" {
			candidates = append(candidates, filepath.Join(pgdata, "pg_wal"))
		}
	}

	for _, dir := range candidates {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		entries, err := listSegmentFiles(dir, segSize)
		if err != nil {
			Log.WithField("dir", dir).WithError(err).Debug("skipping candidate WAL directory")
			continue
		}
		if len(entries) > 0 {
			return dir, nil
		}
		Log.WithField("dir", dir).Debug("candidate directory has no WAL segments")
	}

	return "", &DiscoveryError{Path: path, Err: os.ErrNotExist}
}
