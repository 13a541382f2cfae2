package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/archivist/internal/apperr"
	"github.com/starford/archivist/internal/diskspace"
	"github.com/starford/archivist/internal/models"
	"github.com/starford/archivist/internal/storage"
	"github.com/starford/archivist/internal/transfer"
)

// maxListed bounds how many differing paths are logged individually.
const maxListed = 10

// Indexer records a freshly copied file in a drive index.
type Indexer interface {
	AddEntry(e models.DriveFileEntry) error
}

// Side is one drive taking part in a sync.
type Side struct {
	Root  storage.Tree
	Index Indexer
	Files map[string]models.FileSummary
}

// SyncStats counts the work done by one sync.
type SyncStats struct {
	CopiedToA   int   `json:"files_copied_to_a"`
	CopiedToB   int   `json:"files_copied_to_b"`
	Skipped     int   `json:"files_skipped"`
	Errors      int   `json:"errors"`
	BytesCopied int64 `json:"bytes_copied"`
	Cancelled   bool  `json:"cancelled,omitempty"`
}

// SpaceCheck reports whether need bytes fit on the file system holding path.
type SpaceCheck func(path string, need uint64) (ok bool, available uint64, err error)

// Syncer replays a Difference as verified copies.
type Syncer struct {
	logger     *slog.Logger
	transferer *transfer.Transferer
	space      SpaceCheck
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithTransferer replaces the default transferer.
func WithTransferer(t *transfer.Transferer) SyncerOption {
	return func(s *Syncer) { s.transferer = t }
}

// WithSpaceCheck replaces the free-space preflight.
func WithSpaceCheck(fn SpaceCheck) SyncerOption {
	return func(s *Syncer) { s.space = fn }
}

// NewSyncer creates a Syncer.
func NewSyncer(logger *slog.Logger, opts ...SyncerOption) *Syncer {
	s := &Syncer{logger: logger, space: diskspace.Enough}
	for _, opt := range opts {
		opt(s)
	}
	if s.transferer == nil {
		s.transferer = transfer.New(logger)
	}
	return s
}

// Sync copies files missing on one side from the other. Differing files are
// never copied; they are counted as skipped. Free space is checked on both
// drives before anything is copied, and a shortfall aborts the whole sync.
// Cancellation stops between files.
func (s *Syncer) Sync(ctx context.Context, a, b Side, d Difference, dryRun bool) (SyncStats, error) {
	var stats SyncStats

	needA := sumSizes(d.OnlyInB, b.Files)
	needB := sumSizes(d.OnlyInA, a.Files)
	if err := s.preflight(a.Root.Path(), needA); err != nil {
		return stats, err
	}
	if err := s.preflight(b.Root.Path(), needB); err != nil {
		return stats, err
	}

	if dryRun {
		s.logger.Info("sync: dry run, no files will be copied")
	}

	toA := s.replay(ctx, b, a, d.OnlyInB, dryRun, &stats)
	stats.CopiedToA = toA
	if !stats.Cancelled {
		stats.CopiedToB = s.replay(ctx, a, b, d.OnlyInA, dryRun, &stats)
	}

	stats.Skipped = len(d.Differing)
	if len(d.Differing) > 0 {
		s.logger.Warn("sync: files with different content skipped, manual resolution required",
			slog.Int("count", len(d.Differing)))
		for _, m := range d.Differing[:min(maxListed, len(d.Differing))] {
			s.logger.Info("sync: differing", slog.String("path", m.Path))
		}
	}

	s.logger.Info("sync: done",
		slog.Int("copied_to_a", stats.CopiedToA),
		slog.Int("copied_to_b", stats.CopiedToB),
		slog.Int("skipped", stats.Skipped),
		slog.Int("errors", stats.Errors),
		slog.Int64("bytes_copied", stats.BytesCopied),
		slog.Bool("cancelled", stats.Cancelled))
	return stats, nil
}

// replay copies paths from src to dst and returns how many landed.
func (s *Syncer) replay(ctx context.Context, src, dst Side, paths []string, dryRun bool, stats *SyncStats) int {
	copied := 0
	for i, rel := range paths {
		if ctx.Err() != nil {
			stats.Cancelled = true
			s.logger.Warn("sync: cancelled", slog.Int("remaining", len(paths)-i))
			return copied
		}
		sum := src.Files[rel]
		s.logger.Info("sync: copying",
			slog.Int("n", i+1),
			slog.Int("of", len(paths)),
			slog.String("path", rel),
			slog.String("to", dst.Root.Path()))
		if dryRun {
			copied++
			stats.BytesCopied += sum.Size
			continue
		}
		err := s.copyFile(ctx, src.Root, dst.Root, rel, rel, sum, dst.Index)
		if errors.Is(err, apperr.ErrCancelled) {
			stats.Cancelled = true
			return copied
		}
		if err != nil {
			stats.Errors++
			continue
		}
		copied++
		stats.BytesCopied += sum.Size
	}
	return copied
}

// copyFile copies srcRel from one tree to dstRel in another with
// verification, then records it in the destination index.
func (s *Syncer) copyFile(ctx context.Context, from, to storage.Tree, srcRel, dstRel string, sum models.FileSummary, idx Indexer) error {
	src, err := from.Abs(srcRel)
	if err != nil {
		s.logger.Error("sync: bad source path", slog.String("path", srcRel), slog.String("error", err.Error()))
		return err
	}
	dst, err := to.Abs(dstRel)
	if err != nil {
		s.logger.Error("sync: bad target path", slog.String("path", dstRel), slog.String("error", err.Error()))
		return err
	}
	if err := s.transferer.Copy(ctx, src, dst, true); err != nil {
		if !errors.Is(err, apperr.ErrCancelled) {
			s.logger.Error("sync: copy failed",
				slog.String("source", src),
				slog.String("target", dst),
				slog.String("error", err.Error()))
		}
		return err
	}
	if idx != nil {
		if err := idx.AddEntry(models.DriveFileEntry{
			RelativePath: dstRel,
			FullPath:     dst,
			FileSize:     sum.Size,
			Checksum:     sum.Checksum,
			DrivePath:    to.Path(),
		}); err != nil {
			s.logger.Warn("sync: index update failed", slog.String("path", dstRel), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *Syncer) preflight(path string, need uint64) error {
	if need == 0 {
		return nil
	}
	ok, avail, err := s.space(path, need)
	if err != nil {
		s.logger.Warn("sync: could not check free space, assuming enough",
			slog.String("drive", path),
			slog.String("error", err.Error()))
		return nil
	}
	if !ok {
		s.logger.Error("sync: not enough free space",
			slog.String("drive", path),
			slog.Uint64("need", need),
			slog.Uint64("available", avail))
		return fmt.Errorf("reconcile: %s needs %d bytes, %d available: %w", path, need, avail, apperr.ErrInsufficientSpace)
	}
	return nil
}
