package tasks

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultStaleAfter    = 30 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

// StaleStore reclaims documents stuck in processing.
type StaleStore interface {
	SweepStale(ctx context.Context, olderThan time.Duration) ([]string, error)
}

// Sweeper periodically moves documents that have been processing for
// longer than the stale window to error. It is the recovery path for
// attempts lost to a crash or restart.
type Sweeper struct {
	store    StaleStore
	after    time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper. Zero durations use the defaults.
func NewSweeper(store StaleStore, after, interval time.Duration, logger *slog.Logger) *Sweeper {
	if after <= 0 {
		after = DefaultStaleAfter
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, after: after, interval: interval, logger: logger}
}

// Sweep runs one pass and returns the reclaimed ids.
func (s *Sweeper) Sweep(ctx context.Context) ([]string, error) {
	ids, err := s.store.SweepStale(ctx, s.after)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		s.logger.Warn("reclaimed stale documents", "count", len(ids), "ids", ids, "stale_after", s.after)
	}
	return ids, nil
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("stale sweep failed", "error", err)
	}
}
