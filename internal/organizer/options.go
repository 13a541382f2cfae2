package organizer

import (
	"log/slog"

	"github.com/starford/archivist/internal/metadata"
	"github.com/starford/archivist/internal/models"
	"github.com/starford/archivist/internal/target"
	"github.com/starford/archivist/internal/transfer"
)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithLedger sets the processed-file ledger.
func WithLedger(l Ledger) Option {
	return func(e *Engine) { e.ledger = l }
}

// WithExtractor sets the timestamp extractor.
func WithExtractor(x metadata.Extractor) Option {
	return func(e *Engine) { e.extractor = x }
}

// WithTransferer replaces the transferer built from the config.
func WithTransferer(t *transfer.Transferer) Option {
	return func(e *Engine) { e.transferer = t }
}

// WithResolver replaces the resolver built from the config.
func WithResolver(r *target.Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithObserver registers fn to receive every per-file outcome.
func WithObserver(fn func(models.Outcome)) Option {
	return func(e *Engine) { e.observers = append(e.observers, fn) }
}

// WithRunID tags log lines with id instead of a generated one.
func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}
