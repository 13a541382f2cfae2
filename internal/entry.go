// Package internal provides the application wiring behind each archivist command.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/archivist/internal/api"
	"github.com/starford/archivist/internal/archiveservice"
	"github.com/starford/archivist/internal/driveindex"
	"github.com/starford/archivist/internal/ledger"
	"github.com/starford/archivist/internal/mcpserver"
	"github.com/starford/archivist/internal/metadata"
	"github.com/starford/archivist/internal/models"
	"github.com/starford/archivist/internal/organizer"
	"github.com/starford/archivist/internal/reconcile"
	"github.com/starford/archivist/internal/sse"
	"github.com/starford/archivist/internal/watch"
)

// NewLogger builds the process logger from the app config.
func NewLogger(cfg ApplicationConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// openLedger opens the archive ledger. A dry run against an archive that
// has no ledger yet uses an in-memory one so nothing is created on disk.
func (a *application) openLedger() (*ledger.DB, error) {
	root := a.config.Organizer.ArchiveRoot
	if a.config.Organizer.DryRun {
		if _, err := os.Stat(filepath.Join(root, ledger.FileName)); err != nil {
			return ledger.Open(":memory:")
		}
	}
	return ledger.OpenArchive(root)
}

func (a *application) newEngine(led organizer.Ledger, extra ...organizer.Option) (*organizer.Engine, error) {
	cfg := a.config.Organizer
	opts := []organizer.Option{
		organizer.WithLogger(a.logger),
		organizer.WithLedger(led),
		organizer.WithExtractor(metadata.Default(a.logger, cfg.UseMtimeFallback)),
	}
	return organizer.New(organizer.Config{
		ArchiveRoot: cfg.ArchiveRoot,
		Extensions:  cfg.Extensions,
		DryRun:      cfg.DryRun,
		Mode:        cfg.TransferMode(),
		Verify:      cfg.VerifyChecksums,
		MaxSuffix:   cfg.MaxDuplicateSuffix,
	}, append(opts, extra...)...)
}

func (a *application) newReconciler() *reconcile.Service {
	d := a.config.Drives
	scanner := driveindex.NewScanner(a.logger,
		driveindex.WithBatchSize(d.BatchSize),
		driveindex.WithMaxWorkers(d.MaxWorkers))
	return reconcile.NewService(a.logger,
		reconcile.WithScanner(scanner),
		reconcile.WithScanTimeout(d.ScanTimeout))
}

// RunOrganize organizes input into the configured archive.
func RunOrganize(ctx context.Context, input string, opts ...Option) (models.Stats, error) {
	app, err := newApplication(opts)
	if err != nil {
		return models.Stats{}, err
	}
	cfg := app.config.Organizer

	app.logger.Info("Configuration loaded",
		slog.String("input", input),
		slog.String("archive_root", cfg.ArchiveRoot),
		slog.String("mode", cfg.Mode),
		slog.Bool("dry_run", cfg.DryRun),
		slog.Any("extensions", cfg.Extensions))

	led, err := app.openLedger()
	if err != nil {
		return models.Stats{}, fmt.Errorf("init ledger: %w", err)
	}
	defer led.Close()

	engine, err := app.newEngine(led)
	if err != nil {
		return models.Stats{}, err
	}
	stats, err := engine.ProcessDirectory(ctx, input)
	if err != nil {
		return stats, err
	}
	printRunStats(app.out, stats, cfg.DryRun)
	return stats, nil
}

// RunCompare compares two drives and prints the report.
func RunCompare(ctx context.Context, driveA, driveB string, rescan bool, opts ...Option) (*reconcile.Comparison, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	c, err := app.newReconciler().CompareDrives(ctx, driveA, driveB, rescan)
	if err != nil {
		return nil, err
	}
	printComparison(app.out, c)
	return c, nil
}

// RunSync makes two drives hold the same files and prints what it did.
func RunSync(ctx context.Context, driveA, driveB string, rescan, dryRun bool, opts ...Option) (*reconcile.SyncResult, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	res, err := app.newReconciler().SyncDrives(ctx, driveA, driveB, rescan, dryRun)
	if err != nil {
		return nil, err
	}
	if res.Comparison != nil {
		printComparison(app.out, res.Comparison)
	}
	printSyncStats(app.out, res, dryRun)
	return res, nil
}

// RunBackup copies the archive onto each drive.
func RunBackup(ctx context.Context, archive string, drives []string, rescan, dryRun bool, opts ...Option) (*reconcile.BackupResult, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	res, err := app.newReconciler().BackupToDrives(ctx, archive, drives, dryRun, rescan)
	if err != nil {
		return nil, err
	}
	printBackup(app.out, res, dryRun)
	return res, nil
}

// RunServe watches the inbox and serves the status API until ctx is done.
func RunServe(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("archive_root", cfg.Organizer.ArchiveRoot),
		slog.String("inbox", cfg.Watch.Inbox),
		slog.String("log_level", cfg.App.LogLevel.String()))

	led, err := app.openLedger()
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	defer led.Close()

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	engine, err := app.newEngine(led, organizer.WithObserver(broker.PublishOutcome))
	if err != nil {
		return err
	}
	svc := archiveservice.NewService(led, engine, app.newReconciler(),
		archiveservice.WithInbox(cfg.Watch.Inbox),
		archiveservice.WithLiveStats(broker.Tally))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := led.Count(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"ledger unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Watch.Inbox != "" {
		w := watch.New(cfg.Watch.Inbox, engine,
			watch.WithDebounce(cfg.Watch.Debounce),
			watch.WithLogger(logger))
		g.Go(func() error {
			if err := w.Run(gCtx); err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		})
	} else {
		logger.Warn("watch: no inbox configured, watcher disabled")
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdio. Logs must not go to stdout here;
// pass WithLogOutput(os.Stderr).
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	led, err := app.openLedger()
	if err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	defer led.Close()

	engine, err := app.newEngine(led)
	if err != nil {
		return err
	}
	svc := archiveservice.NewService(led, engine, app.newReconciler(),
		archiveservice.WithInbox(app.config.Watch.Inbox))

	app.logger.Info("mcp: serving on stdio", slog.String("archive_root", app.config.Organizer.ArchiveRoot))
	return mcpserver.New(svc, app.version).ServeStdio()
}
