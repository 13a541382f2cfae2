package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/starford/archivist/internal/apperr"
)

func tempRoot(t *testing.T) *Root {
	t.Helper()
	r, err := NewRoot(t.TempDir())
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	return r
}

func put(t *testing.T, r *Root, rel, content string) {
	t.Helper()
	p := filepath.Join(r.Path(), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFiles(t *testing.T) {
	r := tempRoot(t)
	put(t, r, "a.jpg", "a")
	put(t, r, "2023/2023_12/b.jpg", "bb")
	put(t, r, ".archivist_drive_index.sqlite", "db")
	put(t, r, "sub/.DS_Store", "junk")
	put(t, r, ".Trashes/old.jpg", "gone")

	files, skipped, err := r.Files(context.Background())
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(skipped) != 0 {
		t.Errorf("skipped = %v, want none", skipped)
	}
	var rels []string
	for _, f := range files {
		rels = append(rels, f.Rel)
	}
	sort.Strings(rels)
	want := []string{"2023/2023_12/b.jpg", "a.jpg"}
	if len(rels) != len(want) || rels[0] != want[0] || rels[1] != want[1] {
		t.Fatalf("Files = %v, want %v", rels, want)
	}
	for _, f := range files {
		if f.Rel == "2023/2023_12/b.jpg" && f.Size != 2 {
			t.Errorf("size = %d, want 2", f.Size)
		}
	}
}

func TestFilesCancelled(t *testing.T) {
	r := tempRoot(t)
	put(t, r, "a.jpg", "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := r.Files(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFilesSkipsUnreadableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	r := tempRoot(t)
	put(t, r, "a.jpg", "a")
	put(t, r, "System Volume Information/tracking.log", "x")
	locked := filepath.Join(r.Path(), "System Volume Information")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	files, skipped, err := r.Files(context.Background())
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(files) != 1 || files[0].Rel != "a.jpg" {
		t.Errorf("files = %+v, want only a.jpg", files)
	}
	if len(skipped) != 1 || skipped[0] != "System Volume Information" {
		t.Errorf("skipped = %v", skipped)
	}
}

func TestWithin(t *testing.T) {
	dirs := []string{"locked", "x/y"}
	cases := map[string]bool{
		"locked":        true,
		"locked/a.jpg":  true,
		"lockedout.jpg": false,
		"x/y/z/b.jpg":   true,
		"x/b.jpg":       false,
	}
	for rel, want := range cases {
		if got := Within(rel, dirs); got != want {
			t.Errorf("Within(%q) = %v, want %v", rel, got, want)
		}
	}
}

func TestStat(t *testing.T) {
	r := tempRoot(t)
	put(t, r, "x/y.jpg", "hello")
	e, err := r.Stat("x/y.jpg")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if e.Size != 5 || e.Abs != filepath.Join(r.Path(), "x", "y.jpg") {
		t.Errorf("unexpected entry %+v", e)
	}
	if _, err := r.Stat("missing.jpg"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	r := tempRoot(t)
	for _, p := range []string{"../../etc/passwd", "../outside.jpg", "/etc/shadow", "a/../../b"} {
		if _, err := r.Abs(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
	}
	if abs, err := r.Abs("a/../b.jpg"); err != nil || abs != filepath.Join(r.Path(), "b.jpg") {
		t.Errorf("Abs(a/../b.jpg) = %q, %v", abs, err)
	}
}

func TestNewRoot_Missing(t *testing.T) {
	_, err := NewRoot(filepath.Join(t.TempDir(), "unplugged"))
	if !errors.Is(err, apperr.ErrDriveMissing) {
		t.Errorf("expected ErrDriveMissing, got %v", err)
	}
}

func TestNewRoot_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "archivist-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewRoot(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
