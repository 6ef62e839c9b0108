package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"feedsync/internal/config"
	"feedsync/internal/domain"
)

const pingInterval = 90 * time.Second

// ChannelName is the NOTIFY channel the change triggers publish a
// collection's events on.
func ChannelName(collection string) string {
	return "changes_" + collection
}

// PostgresFeed receives change events through LISTEN/NOTIFY. The listener
// reconnects on its own; subscriptions are dropped on every disconnect so
// that the gap can be reconciled.
type PostgresFeed struct {
	listener *pq.Listener
	logger   *slog.Logger

	mu   sync.Mutex
	subs map[string]*pgSubscription
	done chan struct{}
	once sync.Once
}

func NewPostgresFeed(dsn string, backoff config.BackoffConfig, logger *slog.Logger) *PostgresFeed {
	f := &PostgresFeed{
		logger: logger.With("component", "postgres_feed"),
		subs:   make(map[string]*pgSubscription),
		done:   make(chan struct{}),
	}
	f.listener = pq.NewListener(dsn, backoff.Initial, backoff.Max, f.onListenerEvent)
	go f.run()
	return f
}

func (f *PostgresFeed) Subscribe(ctx context.Context, collection string, handler func(domain.RawEvent)) (Subscription, error) {
	channel := ChannelName(collection)
	sub := &pgSubscription{
		feed:       f,
		channel:    channel,
		collection: collection,
		handler:    handler,
		dropped:    make(chan error, 1),
	}

	f.mu.Lock()
	if _, ok := f.subs[channel]; ok {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadySubscribed, collection)
	}
	f.subs[channel] = sub
	f.mu.Unlock()

	// Listen blocks while the listener is reconnecting, so it runs
	// without f.mu held.
	errc := make(chan error, 1)
	go func() { errc <- f.listener.Listen(channel) }()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil && !errors.Is(err, pq.ErrChannelAlreadyOpen) {
		f.mu.Lock()
		if f.subs[channel] == sub {
			delete(f.subs, channel)
		}
		f.mu.Unlock()
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}

	f.logger.Debug("listening", "channel", channel)
	return sub, nil
}

func (f *PostgresFeed) Close() error {
	f.once.Do(func() { close(f.done) })

	f.mu.Lock()
	f.subs = make(map[string]*pgSubscription)
	f.mu.Unlock()

	if err := f.listener.Close(); err != nil {
		return fmt.Errorf("close listener: %w", err)
	}
	return nil
}

func (f *PostgresFeed) run() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case n, ok := <-f.listener.Notify:
			if !ok {
				return
			}
			// nil marks a reconnect; the drop was already signalled.
			if n == nil {
				continue
			}
			f.dispatch(n)
		case <-ticker.C:
			go func() {
				if err := f.listener.Ping(); err != nil {
					f.logger.Warn("listener ping failed", "error", err)
				}
			}()
		}
	}
}

func (f *PostgresFeed) dispatch(n *pq.Notification) {
	f.mu.Lock()
	sub := f.subs[n.Channel]
	f.mu.Unlock()

	if sub == nil {
		return
	}
	sub.handler(domain.RawEvent{Collection: sub.collection, Payload: []byte(n.Extra)})
}

func (f *PostgresFeed) onListenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		f.logger.Info("listener connected")
	case pq.ListenerEventReconnected:
		f.logger.Info("listener reconnected")
	case pq.ListenerEventConnectionAttemptFailed:
		f.logger.Warn("listener connection attempt failed", "error", err)
	case pq.ListenerEventDisconnected:
		if err == nil {
			err = errors.New("connection closed")
		}
		f.mu.Lock()
		lost := f.subs
		f.subs = make(map[string]*pgSubscription)
		f.mu.Unlock()

		f.logger.Warn("listener disconnected", "subscriptions", len(lost), "error", err)
		for _, sub := range lost {
			sub.drop(fmt.Errorf("listener disconnected: %w", err))
		}
	}
}

type pgSubscription struct {
	feed       *PostgresFeed
	channel    string
	collection string
	handler    func(domain.RawEvent)
	dropped    chan error
	once       sync.Once
}

func (s *pgSubscription) Dropped() <-chan error {
	return s.dropped
}

func (s *pgSubscription) drop(err error) {
	s.once.Do(func() {
		s.dropped <- err
	})
}

func (s *pgSubscription) Unsubscribe(ctx context.Context) error {
	f := s.feed
	f.mu.Lock()
	owned := f.subs[s.channel] == s
	if owned {
		delete(f.subs, s.channel)
	}
	f.mu.Unlock()

	if !owned {
		return nil
	}
	if err := f.listener.Unlisten(s.channel); err != nil && !errors.Is(err, pq.ErrChannelNotOpen) {
		return fmt.Errorf("unlisten %s: %w", s.channel, err)
	}
	return nil
}
