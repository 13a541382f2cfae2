// Package testutil provides shared test helpers for archives, drives and their stores.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/archivist/internal/driveindex"
	"github.com/starford/archivist/internal/ledger"
	"github.com/starford/archivist/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestLedger creates a temporary ledger that is automatically closed.
func TestLedger(t *testing.T) *ledger.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "archivist-ledger-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := ledger.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDrive creates a temporary drive directory and its opened index.
func TestDrive(t *testing.T) (*storage.Root, *driveindex.DB) {
	t.Helper()
	root, err := storage.NewRoot(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db, err := driveindex.OpenDrive(root.Path())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return root, db
}

// WriteFile writes content to dir/rel, creating parents.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// ReadFile returns the content of path, failing the test if it is missing.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Timestamps is a metadata extractor backed by a map of base name to time.
type Timestamps map[string]time.Time

// Timestamp implements metadata.Extractor.
func (m Timestamps) Timestamp(path string) (time.Time, bool) {
	ts, ok := m[filepath.Base(path)]
	return ts, ok
}
