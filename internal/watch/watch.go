// Package watch organizes photos as they land in an inbox directory.
package watch

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/archivist/internal/models"
)

// DefaultDebounce is the quiet period after the last event before pending
// files are processed.
const DefaultDebounce = 2 * time.Second

// Processor is the part of the organizer the watcher drives.
type Processor interface {
	ProcessFile(ctx context.Context, path string) models.Outcome
	Supported(path string) bool
	InArchive(path string) bool
}

// Callback receives every outcome produced by the watcher.
type Callback func(models.Outcome)

// Watcher feeds new and changed inbox files to a Processor.
type Watcher struct {
	inbox    string
	proc     Processor
	debounce time.Duration
	logger   *slog.Logger
	cb       Callback
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithCallback registers cb for outcomes.
func WithCallback(cb Callback) Option {
	return func(w *Watcher) { w.cb = cb }
}

// New creates a watcher on inbox.
func New(inbox string, proc Processor, opts ...Option) *Watcher {
	w := &Watcher{inbox: inbox, proc: proc, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return w
}

// Run watches the inbox until ctx is cancelled. Files are processed one at
// a time from this goroutine once the debounce period has passed without
// further events.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addDirs(fw, w.inbox); err != nil {
		return err
	}
	w.logger.Info("watch: started", slog.String("inbox", w.inbox), slog.Duration("debounce", w.debounce))

	pending := make(map[string]struct{})
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	schedule := func(path string) {
		pending[path] = struct{}{}
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerCh = timer.C
		} else {
			timer.Reset(w.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("watch: stopped", slog.Int("pending", len(pending)))
			return nil

		case <-timerCh:
			w.flush(ctx, pending)
			pending = make(map[string]struct{})

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			info, statErr := os.Stat(ev.Name)
			if statErr != nil {
				continue
			}
			if info.IsDir() {
				if w.proc.InArchive(ev.Name) {
					continue
				}
				if addErr := w.addDirs(fw, ev.Name); addErr != nil {
					w.logger.Warn("watch: add new dir failed",
						slog.String("path", ev.Name),
						slog.String("error", addErr.Error()))
					continue
				}
				for _, p := range w.existing(ev.Name) {
					schedule(p)
				}
				continue
			}
			if w.wanted(ev.Name) {
				schedule(ev.Name)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) wanted(p string) bool {
	if filepath.Base(p)[0] == '.' {
		return false
	}
	return w.proc.Supported(p) && !w.proc.InArchive(p)
}

// flush processes pending files in sorted order, skipping any that have
// gone away in the meantime.
func (w *Watcher) flush(ctx context.Context, pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if ctx.Err() != nil {
			return
		}
		if info, err := os.Stat(p); err != nil || !info.Mode().IsRegular() {
			continue
		}
		o := w.proc.ProcessFile(ctx, p)
		if w.cb != nil {
			w.cb(o)
		}
	}
}

// existing lists wanted files already present under dir.
func (w *Watcher) existing(dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != dir && w.proc.InArchive(p) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && w.wanted(p) {
			out = append(out, p)
		}
		return nil
	})
	return out
}

// addDirs adds root and its subdirectories, skipping the archive.
func (w *Watcher) addDirs(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.proc.InArchive(p) {
			return filepath.SkipDir
		}
		return fw.Add(p)
	})
}
