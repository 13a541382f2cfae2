package driveindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/archivist/internal/checksum"
	"github.com/starford/archivist/internal/models"
	"github.com/starford/archivist/internal/storage"
)

// Scan defaults.
const (
	DefaultBatchSize  = 20
	DefaultMaxWorkers = 4
)

// ScanResult summarizes one scan.
type ScanResult struct {
	Found     int  `json:"found"`
	Written   int  `json:"written"`
	Unchanged int  `json:"unchanged"`
	Failed    int  `json:"failed"`
	Purged    int  `json:"purged"`
	Cancelled bool `json:"cancelled,omitempty"`
}

// Scanner hashes drive trees into their index.
type Scanner struct {
	logger     *slog.Logger
	batchSize  int
	maxWorkers int
	progress   func(done, total int)
}

// ScanOption configures a Scanner.
type ScanOption func(*Scanner)

// WithBatchSize sets how many files one worker task hashes.
func WithBatchSize(n int) ScanOption {
	return func(s *Scanner) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithMaxWorkers caps the number of concurrent hashing workers.
func WithMaxWorkers(n int) ScanOption {
	return func(s *Scanner) {
		if n > 0 {
			s.maxWorkers = n
		}
	}
}

// WithProgress registers a callback invoked after each finished batch.
func WithProgress(fn func(done, total int)) ScanOption {
	return func(s *Scanner) { s.progress = fn }
}

// NewScanner creates a Scanner.
func NewScanner(logger *slog.Logger, opts ...ScanOption) *Scanner {
	s := &Scanner{logger: logger, batchSize: DefaultBatchSize, maxWorkers: DefaultMaxWorkers}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Workers returns the pool width used for n files: never more than the
// number of batches, never more than the configured cap.
func (s *Scanner) Workers(n int) int {
	batches := (n + s.batchSize - 1) / s.batchSize
	return max(min(s.maxWorkers, batches), 1)
}

// Scan brings db up to date with the files under root. Files whose size
// matches the indexed size are not rehashed. Results are written in one bulk
// upsert, also when ctx is cancelled midway; rows for vanished files are
// purged only after a complete scan. Unreadable entries count as failed and
// their rows are kept.
func (s *Scanner) Scan(ctx context.Context, root storage.Tree, db *DB) (ScanResult, error) {
	var res ScanResult
	log := s.logger.With(slog.String("drive", root.Path()))

	files, skipped, err := root.Files(ctx)
	if err != nil {
		if ctx.Err() != nil {
			res.Cancelled = true
			return res, nil
		}
		return res, fmt.Errorf("driveindex: list files: %w", err)
	}
	for _, rel := range skipped {
		log.Warn("scan: unreadable path skipped", slog.String("path", rel))
	}
	res.Found = len(files)
	res.Failed = len(skipped)
	log.Info("scan: found files", slog.Int("count", len(files)))

	known, err := db.Load()
	if err != nil {
		return res, err
	}

	var todo []storage.Entry
	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[f.Rel] = struct{}{}
		if prev, ok := known[f.Rel]; ok && prev.Size == f.Size {
			res.Unchanged++
			continue
		}
		todo = append(todo, f)
	}
	log.Info("scan: hashing",
		slog.Int("unchanged", res.Unchanged),
		slog.Int("to_hash", len(todo)))

	entries, failed := s.hashAll(ctx, root.Path(), todo, log)
	res.Failed += failed
	if err := db.Upsert(entries); err != nil {
		return res, err
	}
	res.Written = len(entries)

	if ctx.Err() != nil {
		res.Cancelled = true
		log.Warn("scan: cancelled, partial results kept", slog.Int("written", res.Written))
		return res, nil
	}

	var stale []string
	for rel := range known {
		if _, ok := present[rel]; !ok && !storage.Within(rel, skipped) {
			stale = append(stale, rel)
		}
	}
	if err := db.Delete(stale); err != nil {
		return res, err
	}
	res.Purged = len(stale)

	log.Info("scan: complete",
		slog.Int("written", res.Written),
		slog.Int("unchanged", res.Unchanged),
		slog.Int("purged", res.Purged),
		slog.Int("failed", res.Failed))
	return res, nil
}

// hashAll hashes files in batches across a bounded pool. Workers stop taking
// files once ctx is done; whatever finished is returned.
func (s *Scanner) hashAll(ctx context.Context, drive string, files []storage.Entry, log *slog.Logger) ([]models.DriveFileEntry, int) {
	if len(files) == 0 {
		return nil, 0
	}
	workers := s.Workers(len(files))
	log.Debug("scan: starting workers", slog.Int("workers", workers))

	var (
		mu      sync.Mutex
		out     = make([]models.DriveFileEntry, 0, len(files))
		failed  int
		done    int
		started = time.Now()
	)

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := 0; i < len(files); i += s.batchSize {
		if ctx.Err() != nil {
			break
		}
		batch := files[i:min(i+s.batchSize, len(files))]
		g.Go(func() error {
			entries, errs := s.hashBatch(ctx, drive, batch, log)

			mu.Lock()
			defer mu.Unlock()
			out = append(out, entries...)
			failed += errs
			done += len(entries)
			if s.progress != nil {
				s.progress(done, len(files))
			}
			log.Debug("scan: batch done",
				slog.Int("done", done),
				slog.Int("total", len(files)),
				slog.Float64("files_per_sec", float64(done)/max(time.Since(started).Seconds(), 0.001)))
			return nil
		})
	}
	_ = g.Wait()
	return out, failed
}

func (s *Scanner) hashBatch(ctx context.Context, drive string, batch []storage.Entry, log *slog.Logger) ([]models.DriveFileEntry, int) {
	var (
		out    []models.DriveFileEntry
		failed int
	)
	for _, f := range batch {
		if ctx.Err() != nil {
			break
		}
		sum, err := checksum.FileFast(f.Abs)
		if err != nil {
			if !errors.Is(ctx.Err(), context.Canceled) {
				log.Error("scan: hash failed", slog.String("path", f.Abs), slog.String("error", err.Error()))
			}
			failed++
			continue
		}
		out = append(out, models.DriveFileEntry{
			RelativePath: f.Rel,
			FullPath:     f.Abs,
			FileSize:     f.Size,
			Checksum:     sum,
			ScannedAt:    time.Now(),
			DrivePath:    drive,
		})
	}
	return out, failed
}

// Hash hashes every file under root with the same pool as Scan, without an
// index. A cancelled ctx yields the files hashed so far and ctx's error.
func (s *Scanner) Hash(ctx context.Context, root storage.Tree) (map[string]models.FileSummary, error) {
	log := s.logger.With(slog.String("tree", root.Path()))
	files, skipped, err := root.Files(ctx)
	if err != nil {
		return nil, fmt.Errorf("driveindex: list files: %w", err)
	}
	for _, rel := range skipped {
		log.Warn("hash: unreadable path skipped", slog.String("path", rel))
	}
	entries, _ := s.hashAll(ctx, root.Path(), files, log)
	out := make(map[string]models.FileSummary, len(entries))
	for _, e := range entries {
		out[e.RelativePath] = models.FileSummary{Size: e.FileSize, Checksum: e.Checksum}
	}
	return out, ctx.Err()
}
