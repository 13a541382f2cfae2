package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/archivist/internal/apperr"
)

// Entry describes one file in a tree.
type Entry struct {
	Rel     string // slash-separated, relative to the root
	Abs     string
	Size    int64
	ModTime time.Time
}

// Root implements Tree backed by the local file system.
type Root struct {
	root string // absolute path
}

// NewRoot opens the tree at root, which must be an existing directory.
func NewRoot(root string) (*Root, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: %s: %w", abs, apperr.ErrDriveMissing)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &Root{root: abs}, nil
}

// Path returns the absolute root.
func (r *Root) Path() string { return r.root }

// Abs resolves a relative path against the root and rejects any result that
// escapes it.
func (r *Root) Abs(rel string) (string, error) {
	if rel == "" {
		return r.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs := filepath.Join(r.root, cleaned)
	if !strings.HasPrefix(abs, r.root+string(os.PathSeparator)) && abs != r.root {
		return "", fmt.Errorf("storage: path escapes root: %s", rel)
	}
	return abs, nil
}

// Stat returns the entry at rel.
func (r *Root) Stat(rel string) (Entry, error) {
	abs, err := r.Abs(rel)
	if err != nil {
		return Entry{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Entry{}, fmt.Errorf("storage: stat %s: %w", rel, err)
	}
	return Entry{Rel: filepath.ToSlash(filepath.Clean(rel)), Abs: abs, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Files walks the tree and returns every regular file. Names starting with a
// dot are skipped, and so are directories starting with a dot. Entries that
// cannot be read are left out and their relative paths returned as skipped;
// an unreadable root is an error. The walk stops with ctx's error when ctx is
// cancelled.
func (r *Root) Files(ctx context.Context) ([]Entry, []string, error) {
	var (
		out     []Entry
		skipped []string
	)
	skip := func(p string, d fs.DirEntry) error {
		rel, err := filepath.Rel(r.root, p)
		if err != nil {
			return err
		}
		skipped = append(skipped, filepath.ToSlash(rel))
		if d != nil && d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}
	err := filepath.WalkDir(r.root, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if p == r.root {
				return walkErr
			}
			return skip(p, d)
		}
		hidden := strings.HasPrefix(d.Name(), ".") && p != r.root
		if d.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return skip(p, nil)
		}
		rel, err := filepath.Rel(r.root, p)
		if err != nil {
			return err
		}
		out = append(out, Entry{
			Rel:     filepath.ToSlash(rel),
			Abs:     p,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, skipped, fmt.Errorf("storage: walk %s: %w", r.root, err)
	}
	return out, skipped, nil
}

// Within reports whether rel is one of the given relative paths or lies
// below one of them.
func Within(rel string, dirs []string) bool {
	for _, d := range dirs {
		if rel == d || strings.HasPrefix(rel, d+"/") {
			return true
		}
	}
	return false
}
