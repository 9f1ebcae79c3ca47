// Package sweep runs the optional background eviction loop. Reads already
// evict expired state lazily; the sweep only bounds memory for sessions
// nobody reads anymore.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/whisper/board/internal/metrics"
)

// Target is the minimal contract the sweeper needs from a store.
type Target interface {
	Sweep(now time.Time) int
}

// Sweeper periodically calls Sweep on every registered target.
type Sweeper struct {
	interval time.Duration
	targets  map[string]Target
	now      func() time.Time
}

// New creates a Sweeper ticking at interval. targets maps a metric/log label
// ("entries", "presence") to the store it sweeps.
func New(interval time.Duration, targets map[string]Target) *Sweeper {
	return &Sweeper{
		interval: interval,
		targets:  targets,
		now:      time.Now,
	}
}

// Start runs the sweep loop until ctx is cancelled. It blocks and should be
// run in its own goroutine. A non-positive interval disables the loop.
func (s *Sweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		slog.Info("sweep: disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("sweep: stopped")
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

// runOnce performs a single sweep cycle over all targets.
func (s *Sweeper) runOnce() {
	now := s.now()
	for name, target := range s.targets {
		removed := target.Sweep(now)
		metrics.SweepRunsTotal.WithLabelValues(name).Inc()
		if removed > 0 {
			metrics.SweepRemovedTotal.WithLabelValues(name).Add(float64(removed))
			slog.Debug("sweep: removed stale records", "target", name, "count", removed)
		}
	}
}
