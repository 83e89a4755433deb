// Package scheduler runs the periodic maintenance jobs the HTTP surface
// never triggers on its own.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Lifecycle is the slice of the membership service the sweeper drives.
type Lifecycle interface {
	SweepExpirations(ctx context.Context, now time.Time) (int, error)
}

// Sweeper expires lapsed memberships on a fixed interval. The sweep itself is
// idempotent, so overlapping runs or restarts are harmless.
type Sweeper struct {
	lifecycle Lifecycle
	interval  time.Duration
	logger    *slog.Logger
}

func NewSweeper(lifecycle Lifecycle, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Sweeper{lifecycle: lifecycle, interval: interval, logger: logger}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
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
	expired, err := s.lifecycle.SweepExpirations(ctx, time.Now())
	if err != nil {
		s.logger.ErrorContext(ctx, "expiration sweep failed", "error", err)
		return
	}
	if expired > 0 {
		s.logger.InfoContext(ctx, "expiration sweep done", "expired", expired)
	}
}
