package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"feedsync/internal/config"
	"feedsync/internal/domain"
	"feedsync/internal/metrics"
)

// Subscriber keeps one subscription per watched collection, normalizes what
// arrives and hands it to the sink. A dropped subscription is re-established
// with backoff and followed by one reconciliation.
type Subscriber struct {
	feed       ChangeFeed
	normalizer *Normalizer
	sink       EventSink
	reconciler Reconciler
	backoff    config.BackoffConfig
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu      sync.Mutex
	closed  bool
	watches map[string]*watch

	wg sync.WaitGroup
}

type watch struct {
	collection string
	ctx        context.Context
	cancel     context.CancelFunc

	mu  sync.Mutex
	sub Subscription
}

func (w *watch) current() Subscription {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sub
}

func (w *watch) swap(sub Subscription) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sub = sub
}

func NewSubscriber(
	feed ChangeFeed,
	normalizer *Normalizer,
	sink EventSink,
	reconciler Reconciler,
	backoff config.BackoffConfig,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Subscriber {
	if backoff.Initial <= 0 {
		backoff.Initial = 500 * time.Millisecond
	}
	if backoff.Max < backoff.Initial {
		backoff.Max = backoff.Initial
	}
	return &Subscriber{
		feed:       feed,
		normalizer: normalizer,
		sink:       sink,
		reconciler: reconciler,
		backoff:    backoff,
		logger:     logger.With("component", "subscriber"),
		metrics:    m,
		watches:    make(map[string]*watch),
	}
}

// Watch subscribes to collection. Watching a collection twice is a no-op.
func (s *Subscriber) Watch(ctx context.Context, collection string) error {
	if !s.normalizer.Knows(collection) {
		return fmt.Errorf("watch %s: %w", collection, domain.ErrUnknownCollection)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("subscriber closed")
	}
	if _, ok := s.watches[collection]; ok {
		return nil
	}

	wctx, cancel := context.WithCancel(context.Background())
	w := &watch{collection: collection, ctx: wctx, cancel: cancel}

	sub, err := s.feed.Subscribe(ctx, collection, s.handler(w))
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe %s: %w", collection, err)
	}
	w.sub = sub
	s.watches[collection] = w

	s.wg.Add(1)
	go s.monitor(w)

	s.logger.Info("watching collection", "collection", collection)
	return nil
}

// Unwatch tears down the subscription for collection.
func (s *Subscriber) Unwatch(ctx context.Context, collection string) error {
	s.mu.Lock()
	w, ok := s.watches[collection]
	if ok {
		delete(s.watches, collection)
	}
	s.mu.Unlock()

	if !ok {
		return nil
	}
	w.cancel()
	if err := w.current().Unsubscribe(ctx); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", collection, err)
	}
	return nil
}

// Watching lists the watched collections.
func (s *Subscriber) Watching() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.watches))
	for c := range s.watches {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Close unwatches everything and waits for resubscribe loops to exit.
func (s *Subscriber) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	collections := make([]string, 0, len(s.watches))
	for c := range s.watches {
		collections = append(collections, c)
	}
	s.mu.Unlock()

	var errs []error
	for _, c := range collections {
		if err := s.Unwatch(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	s.wg.Wait()
	return errors.Join(errs...)
}

func (s *Subscriber) handler(w *watch) func(domain.RawEvent) {
	return func(raw domain.RawEvent) {
		if w.ctx.Err() != nil {
			return
		}

		ev, err := s.normalizer.Normalize(raw)
		if err != nil {
			s.metrics.EventHandled(w.collection, "malformed")
			s.logger.Warn("dropping malformed event", "collection", w.collection, "error", err)
			return
		}

		outcome := s.sink.HandleEvent(ev)
		s.logger.Debug("event handled",
			"collection", ev.Collection,
			"operation", ev.Operation,
			"sequence", ev.Sequence,
			"outcome", outcome,
		)
	}
}

func (s *Subscriber) monitor(w *watch) {
	defer s.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case err := <-w.current().Dropped():
			s.logger.Warn("subscription dropped", "collection", w.collection, "error", err)
			if !s.resubscribe(w) {
				return
			}
		}
	}
}

// resubscribe retries until the subscription is back or the watch ends,
// then reconciles once to cover events missed while it was down.
func (s *Subscriber) resubscribe(w *watch) bool {
	_ = w.current().Unsubscribe(w.ctx)

	for attempt := 1; ; attempt++ {
		sub, err := s.feed.Subscribe(w.ctx, w.collection, s.handler(w))
		if err == nil {
			w.swap(sub)
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("resubscribe failed, retrying",
			"collection", w.collection,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-w.ctx.Done():
			return false
		case <-time.After(backoff):
		}
	}

	if w.ctx.Err() != nil {
		_ = w.current().Unsubscribe(context.Background())
		return false
	}

	s.metrics.Resubscribed(w.collection)
	s.logger.Info("resubscribed", "collection", w.collection)

	if s.reconciler == nil {
		return true
	}
	if err := s.reconciler.Reconcile(w.ctx); err != nil {
		s.logger.Error("reconciliation after resubscribe failed", "collection", w.collection, "error", err)
	}
	return true
}

func (s *Subscriber) calculateBackoff(attempt int) time.Duration {
	backoff := s.backoff.Initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > s.backoff.Max {
		backoff = s.backoff.Max
	}
	return backoff
}
