// Package transfer relocates single files without ever risking the source:
// bytes are copied into a temporary file beside the destination, verified,
// committed under the final name, and only then is the source removed.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/archivist/internal/apperr"
	"github.com/starford/archivist/internal/checksum"
)

// Mode selects how a file is relocated.
type Mode string

// Transfer modes.
const (
	ModeCopy   Mode = "copy"
	ModeMove   Mode = "move"
	ModeRename Mode = "rename"
)

// ParseMode converts a config string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeCopy, ModeMove, ModeRename:
		return m, nil
	}
	return "", fmt.Errorf("transfer: unknown mode %q", s)
}

// Action returns the past-tense verb logged for a completed transfer.
func (m Mode) Action() string {
	switch m {
	case ModeCopy:
		return "copied"
	case ModeRename:
		return "renamed"
	default:
		return "moved"
	}
}

const tmpPattern = ".archivist-tmp-*"

// Option configures a Transferer.
type Option func(*Transferer)

// WithDryRun makes Transfer validate its inputs and report what it would do
// without touching the file system.
func WithDryRun(dryRun bool) Option {
	return func(t *Transferer) { t.dryRun = dryRun }
}

// WithCopyHook registers fn to run on the temporary copy after its bytes are
// written and before verification. A non-nil error aborts the transfer.
func WithCopyHook(fn func(tmpPath string) error) Option {
	return func(t *Transferer) { t.copyHook = fn }
}

// Transferer performs copy, move and rename operations.
type Transferer struct {
	logger   *slog.Logger
	dryRun   bool
	copyHook func(string) error
}

// New creates a Transferer.
func New(logger *slog.Logger, opts ...Option) *Transferer {
	t := &Transferer{logger: logger}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// DryRun reports whether the Transferer is in dry-run mode.
func (t *Transferer) DryRun() bool { return t.dryRun }

// Transfer relocates src to dst. On any error the source file is left exactly
// as it was found and no destination artifact remains. dst must not exist.
func (t *Transferer) Transfer(ctx context.Context, src, dst string, mode Mode, verify bool) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("transfer: stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("transfer: source is not a regular file: %s", src)
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("transfer: %s: %w", dst, apperr.ErrDestinationExists)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transfer: %w", apperr.ErrCancelled)
	}

	if t.dryRun {
		t.logger.Info("transfer: dry run",
			slog.String("mode", string(mode)),
			slog.String("source", src),
			slog.String("target", dst))
		return nil
	}

	switch mode {
	case ModeRename:
		err = t.rename(src, dst, verify)
	case ModeCopy, ModeMove:
		err = t.copyThenCommit(src, dst, info, verify)
		if err == nil && mode == ModeMove {
			// Last step: the destination exists and is verified.
			if rmErr := os.Remove(src); rmErr != nil {
				err = fmt.Errorf("transfer: remove source after copy: %w", rmErr)
			}
		}
	default:
		err = fmt.Errorf("transfer: unknown mode %q", mode)
	}
	if err != nil {
		return err
	}

	t.logger.Debug("transfer: "+mode.Action(),
		slog.String("source", src),
		slog.String("target", dst))
	return nil
}

// Copy is Transfer in copy mode.
func (t *Transferer) Copy(ctx context.Context, src, dst string, verify bool) error {
	return t.Transfer(ctx, src, dst, ModeCopy, verify)
}

func (t *Transferer) rename(src, dst string, verify bool) error {
	var before string
	if verify {
		sum, err := checksum.File(src)
		if err != nil {
			return fmt.Errorf("transfer: %w", err)
		}
		before = sum
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("transfer: rename: %w", err)
	}
	if !verify {
		return nil
	}
	after, err := checksum.File(dst)
	if err == nil && after == before {
		return nil
	}
	// Put the file back under its original name.
	if backErr := os.Rename(dst, src); backErr != nil {
		t.logger.Error("transfer: rename rollback failed",
			slog.String("source", src),
			slog.String("target", dst),
			slog.String("error", backErr.Error()))
	}
	if err != nil {
		return fmt.Errorf("transfer: verify rename: %w", err)
	}
	return fmt.Errorf("transfer: rename %s: %w", src, apperr.ErrChecksumMismatch)
}

func (t *Transferer) copyThenCommit(src, dst string, info fs.FileInfo, verify bool) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("transfer: mkdir: %w", err)
	}

	var srcSum string
	if verify {
		sum, err := checksum.File(src)
		if err != nil {
			return fmt.Errorf("transfer: %w", err)
		}
		srcSum = sum
	}

	tmpName, err := copyToTemp(src, dir, info)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if t.copyHook != nil {
		if err := t.copyHook(tmpName); err != nil {
			return fmt.Errorf("transfer: copy hook: %w", err)
		}
	}

	if verify {
		dstSum, err := checksum.File(tmpName)
		if err != nil {
			return fmt.Errorf("transfer: verify copy: %w", err)
		}
		if dstSum != srcSum {
			return fmt.Errorf("transfer: %s -> %s: %w", src, dst, apperr.ErrChecksumMismatch)
		}
	}

	if err := commit(tmpName, dst); err != nil {
		return err
	}
	committed = true
	return nil
}

// copyToTemp writes src into a fresh temporary file in dir, fsyncs it, and
// carries over the permission bits and modification time.
func copyToTemp(src, dir string, info fs.FileInfo) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("transfer: open source: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return "", fmt.Errorf("transfer: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return "", fmt.Errorf("transfer: copy: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("transfer: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("transfer: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("transfer: chmod: %w", err)
	}
	if err := os.Chtimes(tmpName, info.ModTime(), info.ModTime()); err != nil {
		return "", fmt.Errorf("transfer: chtimes: %w", err)
	}
	success = true
	return tmpName, nil
}

// commit publishes tmp under dst without clobbering an existing file. A hard
// link gives no-clobber semantics; file systems without hard links (FAT,
// exFAT) fall back to an existence check plus rename.
func commit(tmp, dst string) error {
	err := os.Link(tmp, dst)
	if err == nil {
		_ = os.Remove(tmp)
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("transfer: %s: %w", dst, apperr.ErrDestinationExists)
	}
	if _, statErr := os.Lstat(dst); statErr == nil {
		return fmt.Errorf("transfer: %s: %w", dst, apperr.ErrDestinationExists)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("transfer: commit: %w", err)
	}
	return nil
}
