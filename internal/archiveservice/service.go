// Package archiveservice is the query and command layer shared by the HTTP
// API and the MCP server.
package archiveservice

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/starford/archivist/internal/apperr"
	"github.com/starford/archivist/internal/models"
	"github.com/starford/archivist/internal/reconcile"
)

// Ledger is the read side of the processed-file ledger.
type Ledger interface {
	Lookup(path string) (*models.ProcessedEntry, error)
	Count() (int, error)
	Recent(limit int) ([]models.ProcessedEntry, error)
}

// Organizer is the part of the engine the service drives.
type Organizer interface {
	ProcessDirectory(ctx context.Context, root string) (models.Stats, error)
	Preview(ctx context.Context, path string) models.Outcome
	LastStats() models.Stats
	ArchiveRoot() string
	DryRun() bool
}

// Comparer compares two drives by their indexes.
type Comparer interface {
	CompareDrives(ctx context.Context, pathA, pathB string, rescan bool) (*reconcile.Comparison, error)
}

// Status summarizes the archive.
type Status struct {
	ArchiveRoot string        `json:"archive_root"`
	Inbox       string        `json:"inbox,omitempty"`
	DryRun      bool          `json:"dry_run"`
	Ledger      int           `json:"ledger_entries"`
	LastRun     models.Stats  `json:"last_run"`
	Live        *models.Stats `json:"live,omitempty"`
}

// CompareReport is the JSON view of a drive comparison.
type CompareReport struct {
	DriveA      string               `json:"drive_a"`
	DriveB      string               `json:"drive_b"`
	FilesA      int                  `json:"files_a"`
	FilesB      int                  `json:"files_b"`
	Identical   int                  `json:"identical"`
	TotalUnique int                  `json:"total_unique"`
	NeedsSync   int                  `json:"needs_sync"`
	OnlyInA     []string             `json:"only_in_a"`
	OnlyInB     []string             `json:"only_in_b"`
	Differing   []reconcile.Mismatch `json:"differing"`
}

// Service coordinates the ledger, the organizer and the drive reconciler.
type Service struct {
	ledger   Ledger
	engine   Organizer
	comparer Comparer
	inbox    string
	live     func() models.Stats

	running sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithInbox sets the directory organized by Organize.
func WithInbox(dir string) Option {
	return func(s *Service) { s.inbox = dir }
}

// WithLiveStats reports outcome counters accumulated outside directory runs.
func WithLiveStats(fn func() models.Stats) Option {
	return func(s *Service) { s.live = fn }
}

// NewService creates a new archive service.
func NewService(ledger Ledger, engine Organizer, comparer Comparer, opts ...Option) *Service {
	s := &Service{ledger: ledger, engine: engine, comparer: comparer}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup returns the ledger entry for a source path.
func (s *Service) Lookup(_ context.Context, path string) (*models.ProcessedEntry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: path is required", apperr.ErrInvalidInput)
	}
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("%w: path must be absolute", apperr.ErrInvalidInput)
	}
	return s.ledger.Lookup(filepath.Clean(path))
}

// Recent returns the most recently processed entries.
func (s *Service) Recent(_ context.Context, limit int) ([]models.ProcessedEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.ledger.Recent(limit)
}

// Status reports ledger size and run counters.
func (s *Service) Status(_ context.Context) (*Status, error) {
	n, err := s.ledger.Count()
	if err != nil {
		return nil, err
	}
	st := &Status{
		ArchiveRoot: s.engine.ArchiveRoot(),
		Inbox:       s.inbox,
		DryRun:      s.engine.DryRun(),
		Ledger:      n,
		LastRun:     s.engine.LastStats(),
	}
	if s.live != nil {
		live := s.live()
		st.Live = &live
	}
	return st, nil
}

// Organize runs the organizer over the inbox once. Only one run may be in
// flight at a time.
func (s *Service) Organize(ctx context.Context) (models.Stats, error) {
	if s.inbox == "" {
		return models.Stats{}, fmt.Errorf("%w: no inbox configured", apperr.ErrInvalidInput)
	}
	if !s.running.TryLock() {
		return models.Stats{}, apperr.ErrRunInProgress
	}
	defer s.running.Unlock()
	return s.engine.ProcessDirectory(ctx, s.inbox)
}

// Preview reports where path would be archived without moving it.
func (s *Service) Preview(ctx context.Context, path string) (models.Outcome, error) {
	if strings.TrimSpace(path) == "" {
		return models.Outcome{}, fmt.Errorf("%w: path is required", apperr.ErrInvalidInput)
	}
	return s.engine.Preview(ctx, path), nil
}

// Compare diffs two drives by their indexes.
func (s *Service) Compare(ctx context.Context, a, b string, rescan bool) (*CompareReport, error) {
	if a == "" || b == "" {
		return nil, fmt.Errorf("%w: two drive paths are required", apperr.ErrInvalidInput)
	}
	if s.comparer == nil {
		return nil, errors.New("archiveservice: drive comparison unavailable")
	}
	c, err := s.comparer.CompareDrives(ctx, a, b, rescan)
	if err != nil {
		return nil, err
	}
	return &CompareReport{
		DriveA:      c.DriveA,
		DriveB:      c.DriveB,
		FilesA:      c.FilesA,
		FilesB:      c.FilesB,
		Identical:   c.Identical,
		TotalUnique: c.TotalUnique(),
		NeedsSync:   c.NeedsSync(),
		OnlyInA:     nonNil(c.OnlyInA),
		OnlyInB:     nonNil(c.OnlyInB),
		Differing:   nonNilMismatch(c.Differing),
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMismatch(s []reconcile.Mismatch) []reconcile.Mismatch {
	if s == nil {
		return []reconcile.Mismatch{}
	}
	return s
}
