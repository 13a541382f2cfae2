// Package target computes canonical destination paths and resolves
// collisions against files already on disk.
package target

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/archivist/internal/apperr"
	"github.com/starford/archivist/internal/checksum"
	"github.com/starford/archivist/internal/models"
)

// DefaultMaxSuffix bounds the numeric suffixes tried on a name conflict.
const DefaultMaxSuffix = 999

const nameLayout = "2006-01-02_15-04-05"

// Resolution is the outcome of resolving a destination for one file.
// Reason is empty for a free canonical path, models.ReasonDuplicate when an
// identical file already sits at Path, and models.ReasonNameConflict when
// Path carries a numeric suffix.
type Resolution struct {
	Path   string
	Reason string
}

// Resolver maps timestamps to destination paths.
type Resolver struct {
	archiveRoot string
	rename      bool
	maxSuffix   int
	hash        func(string) (string, error)
}

// New creates a Resolver. In rename mode destinations stay in the source's
// directory and archiveRoot is only used for containment checks.
func New(archiveRoot string, rename bool, maxSuffix int) *Resolver {
	if maxSuffix <= 0 {
		maxSuffix = DefaultMaxSuffix
	}
	return &Resolver{
		archiveRoot: archiveRoot,
		rename:      rename,
		maxSuffix:   maxSuffix,
		hash:        checksum.File,
	}
}

// ArchiveRoot returns the configured archive root.
func (r *Resolver) ArchiveRoot() string { return r.archiveRoot }

// Canonical returns the collision-free-world destination for src:
// <root>/YYYY/YYYY_MM/YYYY-MM-DD_HH-MM-SS.ext, or the same directory in
// rename mode. The extension is lower-cased.
func (r *Resolver) Canonical(src string, ts time.Time) string {
	name := ts.Format(nameLayout) + strings.ToLower(filepath.Ext(src))
	if r.rename {
		return filepath.Join(filepath.Dir(src), name)
	}
	year := ts.Format("2006")
	return filepath.Join(r.archiveRoot, year, year+"_"+ts.Format("01"), name)
}

// Resolve picks the destination for src. srcSum is the source digest; it is
// computed on demand when empty. An existing file is never chosen as a
// destination: an identical one yields a duplicate, a different one moves
// the candidate to the next free _NNN suffix.
func (r *Resolver) Resolve(src, srcSum string, ts time.Time) (Resolution, error) {
	candidate := r.Canonical(src, ts)
	if !exists(candidate) {
		return Resolution{Path: candidate}, nil
	}

	if srcSum == "" {
		sum, err := r.hash(src)
		if err != nil {
			return Resolution{}, fmt.Errorf("target: hash source: %w", err)
		}
		srcSum = sum
	}

	same, err := r.sameContent(candidate, srcSum)
	if err != nil {
		return Resolution{}, err
	}
	if same {
		return Resolution{Path: candidate, Reason: models.ReasonDuplicate}, nil
	}

	ext := filepath.Ext(candidate)
	stem := strings.TrimSuffix(candidate, ext)
	for i := 1; i <= r.maxSuffix; i++ {
		next := fmt.Sprintf("%s_%03d%s", stem, i, ext)
		if !exists(next) {
			return Resolution{Path: next, Reason: models.ReasonNameConflict}, nil
		}
		// An earlier run may already have placed this content under a suffix.
		same, err := r.sameContent(next, srcSum)
		if err != nil {
			return Resolution{}, err
		}
		if same {
			return Resolution{Path: next, Reason: models.ReasonDuplicate}, nil
		}
	}
	return Resolution{}, fmt.Errorf("target: %s after %d attempts: %w", candidate, r.maxSuffix, apperr.ErrNamespaceExhausted)
}

func (r *Resolver) sameContent(path, sum string) (bool, error) {
	other, err := r.hash(path)
	if err != nil {
		return false, fmt.Errorf("target: hash existing %s: %w", path, err)
	}
	return other == sum, nil
}

// InArchive reports whether path lies inside the archive root, comparing
// absolute, symlink-resolved paths.
func (r *Resolver) InArchive(path string) bool {
	return Contains(r.archiveRoot, path)
}

// Contains reports whether path equals root or lies below it after both are
// made absolute and have symlinks resolved.
func Contains(root, path string) bool {
	if root == "" {
		return false
	}
	rel, err := filepath.Rel(canonical(root), canonical(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func canonical(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

// LooksArchived reports whether path has a four-digit directory segment
// directly followed by a seven-character YYYY-MM or YYYY_MM segment. This is
// advisory: it false-positives on directories that merely look like an
// archive and misses archives with another layout.
func LooksArchived(path string) bool {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	dirs := parts[:len(parts)-1]
	for i := 0; i+1 < len(dirs); i++ {
		year, month := dirs[i], dirs[i+1]
		if !isYear(year) || len(month) != 7 {
			continue
		}
		if strings.HasPrefix(month, year+"-") || strings.HasPrefix(month, year+"_") {
			return true
		}
	}
	return false
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
