// Package metadata resolves the capture timestamp of a file by trying an
// ordered list of strategies until one finds a date.
package metadata

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNoTimestamp is returned by a Strategy that found nothing usable.
var ErrNoTimestamp = errors.New("no timestamp")

// Extractor yields the capture timestamp of a file, or false when none is available.
type Extractor interface {
	Timestamp(path string) (time.Time, bool)
}

// Strategy is one source of timestamps. Any error is treated as not found.
type Strategy interface {
	Name() string
	Extract(path string) (time.Time, error)
}

// Chain tries strategies in order.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewChain builds a Chain from strategies, tried in the given order.
func NewChain(logger *slog.Logger, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, logger: logger}
}

// Default returns the standard chain: EXIF, filename, and (optionally) mtime.
func Default(logger *slog.Logger, useMtime bool) *Chain {
	s := []Strategy{EXIF{}, Filename{}}
	if useMtime {
		s = append(s, ModTime{})
	}
	return NewChain(logger, s...)
}

// Timestamp implements Extractor.
func (c *Chain) Timestamp(path string) (time.Time, bool) {
	for _, s := range c.strategies {
		ts, err := safeExtract(s, path)
		if err == nil && !ts.IsZero() {
			c.logger.Debug("metadata: timestamp found",
				slog.String("path", path),
				slog.String("strategy", s.Name()),
				slog.Time("timestamp", ts))
			return ts, true
		}
		if err != nil && !errors.Is(err, ErrNoTimestamp) {
			c.logger.Debug("metadata: strategy failed",
				slog.String("path", path),
				slog.String("strategy", s.Name()),
				slog.String("error", err.Error()))
		}
	}
	return time.Time{}, false
}

// safeExtract converts a panicking decoder into an error.
func safeExtract(s Strategy, path string) (ts time.Time, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("metadata: %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Extract(path)
}
