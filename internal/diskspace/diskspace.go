// Package diskspace reports free space on the file system holding a path.
package diskspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrUnsupported is returned on platforms without a free-space query.
var ErrUnsupported = errors.New("diskspace: not supported on this platform")

// Free returns the bytes available to an unprivileged user on the file
// system holding path. A path that does not exist yet is measured at its
// closest existing ancestor.
func Free(path string) (uint64, error) {
	p, err := existingAncestor(path)
	if err != nil {
		return 0, err
	}
	return free(p)
}

// Enough reports whether need bytes fit on the file system holding path.
// A failed query is treated as enough: the check is a preflight, not a guarantee.
func Enough(path string, need uint64) (ok bool, available uint64, err error) {
	avail, err := Free(path)
	if err != nil {
		return true, 0, err
	}
	return avail >= need, avail, nil
}

func existingAncestor(path string) (string, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("diskspace: %w", err)
	}
	for {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", fmt.Errorf("diskspace: no existing ancestor of %s", path)
		}
		p = parent
	}
}
