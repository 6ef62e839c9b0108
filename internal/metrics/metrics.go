// Package metrics holds the Prometheus collectors for the sync engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "feedsync"

type Metrics struct {
	mutations       *prometheus.CounterVec
	pending         prometheus.Gauge
	events          *prometheus.CounterVec
	resubscriptions *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	skippedItems    prometheus.Counter
	notices         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "mutations_total",
				Help:      "Mutations by final state",
			},
			[]string{"entity", "state"},
		),
		pending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "pending_mutations",
				Help:      "Mutations applied locally and not yet resolved",
			},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "events_total",
				Help:      "Change events by collection and outcome",
			},
			[]string{"collection", "outcome"},
		),
		resubscriptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "realtime",
				Name:      "resubscriptions_total",
				Help:      "Subscriptions re-established after a drop",
			},
			[]string{"collection"},
		),
		reconciliations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "service",
				Name:      "reconciliations_total",
				Help:      "Reconciliation fetches by result",
			},
			[]string{"result"},
		),
		skippedItems: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "feed",
				Name:      "skipped_items_total",
				Help:      "Items left out of the feed because they failed scoring",
			},
		),
		notices: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "notices_total",
				Help:      "User-facing failure notices by reason",
			},
			[]string{"reason"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.mutations,
			m.pending,
			m.events,
			m.resubscriptions,
			m.reconciliations,
			m.skippedItems,
			m.notices,
		)
	}
	return m
}

func (m *Metrics) MutationResolved(entity, state string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(entity, state).Inc()
}

func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

func (m *Metrics) EventHandled(collection, outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(collection, outcome).Inc()
}

func (m *Metrics) Resubscribed(collection string) {
	if m == nil {
		return
	}
	m.resubscriptions.WithLabelValues(collection).Inc()
}

func (m *Metrics) Reconciled(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.reconciliations.WithLabelValues(result).Inc()
}

func (m *Metrics) ItemsSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skippedItems.Add(float64(n))
}

func (m *Metrics) NoticeSent(reason string) {
	if m == nil {
		return
	}
	m.notices.WithLabelValues(reason).Inc()
}
