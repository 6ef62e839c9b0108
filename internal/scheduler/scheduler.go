package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Reconciler closes drift between displayed and authoritative state.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

type Scheduler struct {
	reconciler Reconciler
	interval   time.Duration
	timeout    time.Duration
	logger     *slog.Logger
}

// NewScheduler runs reconciler every interval. Each run is bounded by the
// interval so that a slow run never overlaps the next tick.
func NewScheduler(reconciler Reconciler, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		reconciler: reconciler,
		interval:   interval,
		timeout:    interval,
		logger:     logger.With("component", "scheduler"),
	}
}

// Start blocks until ctx is cancelled. The first run happens one interval
// after start; the session reconciles on its own when it subscribes.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runReconcile(ctx)
		}
	}
}

func (s *Scheduler) runReconcile(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.reconciler.Reconcile(runCtx); err != nil {
		s.logger.Error("reconcile failed", "error", err)
		return
	}
	s.logger.Debug("reconcile finished", "duration", time.Since(start))
}
