package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/archivist/internal/apperr"
	"github.com/starford/archivist/internal/driveindex"
	"github.com/starford/archivist/internal/models"
	"github.com/starford/archivist/internal/storage"
)

// DefaultScanTimeout bounds a parallel scan of two drives.
const DefaultScanTimeout = time.Hour

// Comparison is the result of comparing two drives.
type Comparison struct {
	DriveA string `json:"drive_a"`
	DriveB string `json:"drive_b"`
	FilesA int    `json:"files_a"`
	FilesB int    `json:"files_b"`
	Difference
	files [2]map[string]models.FileSummary
}

// Size returns the indexed size of path on side 0 (A) or 1 (B).
func (c *Comparison) Size(side int, path string) int64 {
	return c.files[side][path].Size
}

// SyncResult is the result of SyncDrives. OK is the overall success flag.
type SyncResult struct {
	OK         bool        `json:"ok"`
	Comparison *Comparison `json:"comparison"`
	Stats      SyncStats   `json:"stats"`
}

// Service runs compare, sync and backup over drive paths.
type Service struct {
	logger      *slog.Logger
	scanner     *driveindex.Scanner
	syncer      *Syncer
	scanTimeout time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithScanner replaces the default scanner.
func WithScanner(sc *driveindex.Scanner) ServiceOption {
	return func(s *Service) { s.scanner = sc }
}

// WithSyncer replaces the default syncer.
func WithSyncer(sy *Syncer) ServiceOption {
	return func(s *Service) { s.syncer = sy }
}

// WithScanTimeout bounds parallel scans.
func WithScanTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.scanTimeout = d
		}
	}
}

// NewService creates a Service.
func NewService(logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{logger: logger, scanTimeout: DefaultScanTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.scanner == nil {
		s.scanner = driveindex.NewScanner(logger)
	}
	if s.syncer == nil {
		s.syncer = NewSyncer(logger)
	}
	return s
}

// drive is an opened drive with its loaded index.
type drive struct {
	root  *storage.Root
	index *driveindex.DB
	files map[string]models.FileSummary
}

func (d *drive) side() Side {
	return Side{Root: d.root, Index: d.index, Files: d.files}
}

func (d *drive) close() {
	if d.index != nil {
		d.index.Close()
	}
}

// openDrive opens the drive at path and reports whether it needs a scan.
func openDrive(path string, rescan bool) (*drive, bool, error) {
	root, err := storage.NewRoot(path)
	if err != nil {
		return nil, false, err
	}
	needScan := rescan || !driveindex.Exists(root.Path())
	idx, err := driveindex.OpenDrive(root.Path())
	if err != nil {
		return nil, false, err
	}
	return &drive{root: root, index: idx}, needScan, nil
}

// openPair opens both drives, scans those that need it (in parallel when
// both do, bounded by the scan timeout) and loads their indexes.
func (s *Service) openPair(ctx context.Context, pathA, pathB string, rescan bool) (*drive, *drive, error) {
	a, scanA, err := openDrive(pathA, rescan)
	if err != nil {
		return nil, nil, fmt.Errorf("reconcile: drive A: %w", err)
	}
	b, scanB, err := openDrive(pathB, rescan)
	if err != nil {
		a.close()
		return nil, nil, fmt.Errorf("reconcile: drive B: %w", err)
	}

	if !scanA && !scanB {
		s.logger.Info("reconcile: using existing scans for both drives")
	}
	if err := s.scanDrives(ctx, []*drive{a, b}, []bool{scanA, scanB}); err != nil {
		a.close()
		b.close()
		return nil, nil, err
	}

	for _, d := range []*drive{a, b} {
		files, err := d.index.Load()
		if err != nil {
			a.close()
			b.close()
			return nil, nil, err
		}
		d.files = files
	}
	return a, b, nil
}

// scanDrives scans the flagged drives concurrently. Exceeding the scan
// timeout is a hard error; a cancelled parent context yields ErrCancelled.
func (s *Service) scanDrives(ctx context.Context, drives []*drive, need []bool) error {
	scanCtx, cancel := context.WithTimeout(ctx, s.scanTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(scanCtx)
	for i, d := range drives {
		if !need[i] {
			continue
		}
		g.Go(func() error {
			s.logger.Info("reconcile: scanning drive", slog.String("drive", d.root.Path()))
			res, err := s.scanner.Scan(gctx, d.root, d.index)
			if err != nil {
				return err
			}
			if res.Cancelled {
				return gctx.Err()
			}
			return nil
		})
	}
	err := g.Wait()
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("reconcile: scan: %w", apperr.ErrCancelled)
	case errors.Is(scanCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("reconcile: scan timed out after %s", s.scanTimeout)
	case err != nil:
		return fmt.Errorf("reconcile: scan: %w", err)
	}
	return nil
}

// CompareDrives scans (if needed) and diffs two drives.
func (s *Service) CompareDrives(ctx context.Context, pathA, pathB string, rescan bool) (*Comparison, error) {
	a, b, err := s.openPair(ctx, pathA, pathB, rescan)
	if err != nil {
		return nil, err
	}
	defer a.close()
	defer b.close()
	return s.compare(a, b), nil
}

func (s *Service) compare(a, b *drive) *Comparison {
	c := &Comparison{
		DriveA:     a.root.Path(),
		DriveB:     b.root.Path(),
		FilesA:     len(a.files),
		FilesB:     len(b.files),
		Difference: Diff(a.files, b.files),
		files:      [2]map[string]models.FileSummary{a.files, b.files},
	}
	s.logger.Info("reconcile: compared",
		slog.String("drive_a", c.DriveA),
		slog.String("drive_b", c.DriveB),
		slog.Int("only_in_a", len(c.OnlyInA)),
		slog.Int("only_in_b", len(c.OnlyInB)),
		slog.Int("differing", len(c.Differing)),
		slog.Int("identical", c.Identical))
	return c
}

// SyncDrives compares two drives and copies what is missing on either side.
// OK is true when nothing needed syncing, on a dry run, or when the replay
// finished without errors; it is false when both drives are empty.
func (s *Service) SyncDrives(ctx context.Context, pathA, pathB string, rescan, dryRun bool) (*SyncResult, error) {
	a, b, err := s.openPair(ctx, pathA, pathB, rescan)
	if err != nil {
		return nil, err
	}
	defer a.close()
	defer b.close()

	if len(a.files) == 0 && len(b.files) == 0 {
		s.logger.Error("reconcile: no files found on either drive")
		return &SyncResult{}, nil
	}

	c := s.compare(a, b)
	res := &SyncResult{Comparison: c}
	if c.NeedsSync() == 0 {
		s.logger.Info("reconcile: drives are in sync")
		res.OK = true
		return res, nil
	}

	stats, err := s.syncer.Sync(ctx, a.side(), b.side(), c.Difference, dryRun)
	res.Stats = stats
	if err != nil {
		return res, err
	}
	res.OK = dryRun || (stats.Errors == 0 && !stats.Cancelled)
	return res, nil
}
