package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Session ties the engine and the change subscriptions to the lifetime of
// the active view. After Close no writes are dispatched and nothing is
// rolled back.
type Session struct {
	engine      MutationEngine
	subscriber  Subscriber
	collections []string
	logger      *slog.Logger

	mu      sync.Mutex
	started bool
	closed  bool
}

func NewSession(engine MutationEngine, subscriber Subscriber, collections []string, logger *slog.Logger) *Session {
	return &Session{
		engine:      engine,
		subscriber:  subscriber,
		collections: collections,
		logger:      logger.With("component", "session"),
	}
}

// Start watches every configured collection. If any watch fails the ones
// already established are torn down.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("session closed")
	}
	if s.started {
		return nil
	}

	for _, c := range s.collections {
		if err := s.subscriber.Watch(ctx, c); err != nil {
			if cerr := s.subscriber.Close(ctx); cerr != nil {
				s.logger.Warn("failed to release subscriptions", "error", cerr)
			}
			return fmt.Errorf("watch %s: %w", c, err)
		}
	}

	s.started = true
	s.logger.Info("session started", "collections", s.collections)
	return nil
}

// Close unsubscribes first so that no event reaches a closing engine, then
// abandons outstanding mutations.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.subscriber.Close(ctx)
	s.engine.Close()

	s.logger.Info("session closed")
	if err != nil {
		return fmt.Errorf("close subscriptions: %w", err)
	}
	return nil
}
