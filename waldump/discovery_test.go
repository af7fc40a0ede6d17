package waldump

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIdentifyTargetDirectoryExplicitPath(t *testing.T) {
	dir := t.TempDir()
	const segSize = 1 << 20
	writeSegment(t, dir, 1, 0, segSize, 0)

	got, err := IdentifyTargetDirectory(dir, segSize)
	if err != nil {
		t.Fatalf("IdentifyTargetDirectory: %v", err)
	}
	if got != dir {
		t.Errorf("IdentifyTargetDirectory(%q) = %q, want %q", dir, got, dir)
	}
}

func TestIdentifyTargetDirectoryPgWalSubdir(t *testing.T) {
	base := t.TempDir()
	walDir := filepath.Join(base, "pg_wal")
	if err := os.MkdirAll(walDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	const segSize = 1 << 20
	writeSegment(t, walDir, 1, 0, segSize, 0)

	got, err := IdentifyTargetDirectory(base, segSize)
	if err != nil {
		t.Fatalf("IdentifyTargetDirectory: %v", err)
	}
	if got != walDir {
		t.Errorf("IdentifyTargetDirectory(%q) = %q, want %q", base, got, walDir)
	}
}

func TestIdentifyTargetDirectoryNotFound(t *testing.T) {
	if _, err := IdentifyTargetDirectory(t.TempDir(), 1<<20); err == nil {
		t.Errorf("expected error for directory with no WAL segments")
	}
}
