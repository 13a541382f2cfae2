// Package storage gives traversal-safe access to a drive or archive tree
// addressed by paths relative to its root.
package storage

import "context"

// Tree is the read side of a rooted file tree.
type Tree interface {
	// Path returns the absolute root of the tree.
	Path() string
	// Files returns every regular, non-hidden file below the root, plus the
	// relative paths of entries that could not be read.
	Files(ctx context.Context) ([]Entry, []string, error)
	// Abs resolves rel against the root, rejecting paths that escape it.
	Abs(rel string) (string, error)
	// Stat returns the entry at rel, or an error wrapping fs.ErrNotExist.
	Stat(rel string) (Entry, error)
}

var _ Tree = (*Root)(nil)
