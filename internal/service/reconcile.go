package service

import (
	"context"
	"fmt"
	"log/slog"

	"feedsync/internal/metrics"
)

// Reconciler re-reads every counter the engine tracks and rebases the
// engine onto it. It runs after each resubscription and on a schedule.
type Reconciler struct {
	engine   MutationEngine
	counters CounterStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewReconciler(engine MutationEngine, counters CounterStore, logger *slog.Logger, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		engine:   engine,
		counters: counters,
		metrics:  m,
		logger:   logger.With("component", "reconciler"),
	}
}

func (r *Reconciler) Reconcile(ctx context.Context) error {
	keys := r.engine.TrackedKeys()
	if len(keys) == 0 {
		return nil
	}

	snapshots, err := r.counters.FetchCounters(ctx, keys)
	if err != nil {
		r.metrics.Reconciled(false)
		return fmt.Errorf("fetch counters: %w", err)
	}

	r.engine.Reconcile(snapshots)
	r.metrics.Reconciled(true)
	r.logger.Debug("reconciled counters", "tracked", len(keys), "snapshots", len(snapshots))
	return nil
}
