// Package organizer moves photos into a date-based archive tree, one file at
// a time, recording every success in a ledger so that reruns are no-ops.
package organizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/archivist/internal/checksum"
	"github.com/starford/archivist/internal/metadata"
	"github.com/starford/archivist/internal/models"
	"github.com/starford/archivist/internal/target"
	"github.com/starford/archivist/internal/transfer"
)

// DefaultExtensions are organized when none are configured.
var DefaultExtensions = []string{"jpg", "jpeg", "png", "tiff", "raw", "cr2", "nef", "arw"}

// Ledger is the persistence the engine needs from the processed-file ledger.
type Ledger interface {
	IsProcessed(path, sum string) (bool, *models.ProcessedEntry, error)
	Record(e models.ProcessedEntry) error
}

// Config is the resolved organizer configuration.
type Config struct {
	ArchiveRoot string
	Extensions  []string
	DryRun      bool
	Mode        transfer.Mode
	Verify      bool
	MaxSuffix   int
}

// Engine organizes files. ProcessFile calls are serialized.
type Engine struct {
	cfg        Config
	exts       map[string]struct{}
	ledger     Ledger
	extractor  metadata.Extractor
	resolver   *target.Resolver
	transferer *transfer.Transferer
	logger     *slog.Logger
	observers  []func(models.Outcome)
	runID      string

	mu   sync.Mutex
	last models.Stats
}

// New creates an Engine. A ledger is required.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Mode == "" {
		cfg.Mode = transfer.ModeMove
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.ArchiveRoot != "" {
		abs, err := filepath.Abs(cfg.ArchiveRoot)
		if err != nil {
			return nil, fmt.Errorf("organizer: archive root: %w", err)
		}
		cfg.ArchiveRoot = abs
	}
	e := &Engine{cfg: cfg, exts: make(map[string]struct{})}
	for _, ext := range cfg.Extensions {
		e.exts[NormalizeExt(ext)] = struct{}{}
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ledger == nil {
		return nil, errors.New("organizer: ledger is required")
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.extractor == nil {
		e.extractor = metadata.Default(e.logger, true)
	}
	if e.resolver == nil {
		e.resolver = target.New(cfg.ArchiveRoot, cfg.Mode == transfer.ModeRename, cfg.MaxSuffix)
	}
	if e.transferer == nil {
		e.transferer = transfer.New(e.logger, transfer.WithDryRun(cfg.DryRun))
	}
	if e.runID == "" {
		e.runID = uuid.NewString()
	}
	e.logger = e.logger.With(slog.String("run_id", e.runID))
	return e, nil
}

// NormalizeExt lower-cases ext and strips a leading dot.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// Supported reports whether path has a configured extension.
func (e *Engine) Supported(path string) bool {
	_, ok := e.exts[NormalizeExt(filepath.Ext(path))]
	return ok
}

// InArchive reports whether path lies inside the archive root.
func (e *Engine) InArchive(path string) bool {
	return e.resolver.InArchive(path)
}

// ArchiveRoot returns the absolute archive root.
func (e *Engine) ArchiveRoot() string { return e.cfg.ArchiveRoot }

// DryRun reports whether the engine simulates transfers.
func (e *Engine) DryRun() bool { return e.cfg.DryRun }

// LastStats returns the counters of the most recent directory run.
func (e *Engine) LastStats() models.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// ProcessFile runs one file through the state machine. It never returns an
// error: failures are reported in the Outcome.
func (e *Engine) ProcessFile(ctx context.Context, path string) models.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	o := e.process(ctx, path, e.cfg.DryRun)
	e.report(o)
	return o
}

// Preview resolves where path would go without touching anything.
func (e *Engine) Preview(ctx context.Context, path string) models.Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.process(ctx, path, true)
}

func (e *Engine) process(ctx context.Context, path string, dryRun bool) models.Outcome {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	o := models.Outcome{SourcePath: path, Action: models.ActionSkipped}

	if !e.Supported(path) {
		o.Reason = models.ReasonUnsupportedExtension
		return o
	}
	if e.resolver.InArchive(path) || target.LooksArchived(path) {
		o.Reason = models.ReasonAlreadyInArchive
		return o
	}

	info, err := os.Stat(path)
	if err != nil {
		return failed(o, fmt.Errorf("organizer: stat: %w", err))
	}
	sum, err := checksum.File(path)
	if err != nil {
		return failed(o, err)
	}
	o.Checksum = sum

	done, prev, err := e.ledger.IsProcessed(path, sum)
	if err != nil {
		return failed(o, err)
	}
	if done {
		o.Reason = models.ReasonAlreadyProcessed
		o.TargetPath = prev.NewPath
		return o
	}

	ts, ok := e.extractor.Timestamp(path)
	if !ok {
		o.Reason = models.ReasonNoTimestamp
		return o
	}

	res, err := e.resolver.Resolve(path, sum, ts)
	if err != nil {
		return failed(o, err)
	}
	o.TargetPath = res.Path
	if res.Reason == models.ReasonDuplicate {
		o.Reason = models.ReasonDuplicate
		return o
	}

	if dryRun {
		o.Success = true
		o.Action = models.ActionDryRun
		return o
	}

	if err := e.transferer.Transfer(ctx, path, res.Path, e.cfg.Mode, e.cfg.Verify); err != nil {
		o.TargetPath = ""
		return failed(o, err)
	}
	if err := e.ledger.Record(models.ProcessedEntry{
		OriginalPath:     path,
		OriginalChecksum: sum,
		NewPath:          res.Path,
		ProcessedAt:      time.Now(),
		FileSize:         info.Size(),
	}); err != nil {
		o.Action = e.cfg.Mode.Action()
		return failed(o, fmt.Errorf("%s to %s but not recorded: %w", o.Action, res.Path, err))
	}

	o.Success = true
	o.Action = e.cfg.Mode.Action()
	return o
}

func failed(o models.Outcome, err error) models.Outcome {
	o.Success = false
	o.Err = err
	o.Reason = err.Error()
	return o
}

// report logs one outcome and hands it to the observers.
func (e *Engine) report(o models.Outcome) {
	name := filepath.Base(o.SourcePath)
	switch {
	case o.Success:
		e.logger.Info("organizer: "+o.Action,
			slog.String("file", name),
			slog.String("target", e.displayTarget(o.TargetPath)))
	case o.Err != nil:
		attrs := []any{slog.String("path", o.SourcePath), slog.String("error", o.Reason)}
		if o.TargetPath != "" {
			attrs = append(attrs, slog.String("target", o.TargetPath))
		}
		e.logger.Error("organizer: failed", attrs...)
	default:
		e.logger.Debug("organizer: skip",
			slog.String("file", name),
			slog.String("reason", o.Reason))
	}
	for _, fn := range e.observers {
		fn(o)
	}
}

// displayTarget shows the archive-relative target, or the bare name when
// renaming in place.
func (e *Engine) displayTarget(p string) string {
	if e.cfg.Mode == transfer.ModeRename {
		return filepath.Base(p)
	}
	if rel, err := filepath.Rel(e.cfg.ArchiveRoot, p); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return p
}

// Candidates returns the sorted, de-duplicated list of files under root
// with a configured extension, excluding anything inside the archive root.
func (e *Engine) Candidates(ctx context.Context, root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("organizer: input dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("organizer: input is not a directory: %s", root)
	}

	seen := make(map[string]struct{})
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			e.logger.Warn("organizer: walk error", slog.String("path", p), slog.String("error", walkErr.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && e.resolver.InArchive(p) {
				e.logger.Debug("organizer: skipping archive directory", slog.String("path", p))
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !e.Supported(p) {
			return nil
		}
		seen[p] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("organizer: walk: %w", err)
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		if e.resolver.InArchive(p) {
			e.logger.Debug("organizer: skipping file inside archive", slog.String("path", p))
			continue
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// ProcessDirectory organizes every candidate under root. Per-file failures
// are counted, not returned; the error is reserved for an unusable root.
// Cancelling ctx stops the run between files and marks the stats cancelled.
func (e *Engine) ProcessDirectory(ctx context.Context, root string) (models.Stats, error) {
	var stats models.Stats
	files, err := e.Candidates(ctx, root)
	if err != nil {
		if ctx.Err() != nil {
			stats.Cancelled = true
			return stats, nil
		}
		return stats, err
	}
	e.logger.Info("organizer: found files", slog.Int("count", len(files)), slog.String("input", root))

	for i, p := range files {
		if ctx.Err() != nil {
			stats.Cancelled = true
			e.logger.Warn("organizer: cancelled", slog.Int("remaining", len(files)-i))
			break
		}
		e.logger.Debug("organizer: processing",
			slog.Int("n", i+1),
			slog.Int("of", len(files)),
			slog.String("file", filepath.Base(p)))
		stats.Add(e.ProcessFile(ctx, p))
	}

	e.mu.Lock()
	e.last = stats
	e.mu.Unlock()

	e.logger.Info("organizer: run complete",
		slog.Int("processed", stats.Processed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("errors", stats.Errors),
		slog.Bool("cancelled", stats.Cancelled),
		slog.Bool("dry_run", e.cfg.DryRun))
	return stats, nil
}
