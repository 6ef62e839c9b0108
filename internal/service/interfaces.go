package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"feedsync/internal/domain"
	"feedsync/internal/engine"
)

type ContentStore interface {
	FetchContent(ctx context.Context, viewerID string, limit int) ([]domain.ContentItem, error)
}

type CounterStore interface {
	FetchCounters(ctx context.Context, keys []domain.CounterKey) ([]domain.CounterSnapshot, error)
}

// MutationEngine is the part of *engine.Engine the services drive.
type MutationEngine interface {
	Apply(req engine.Request) (domain.PendingMutation, error)
	Reconcile(snapshots []domain.CounterSnapshot)
	View(key domain.CounterKey) domain.CounterView
	TrackedKeys() []domain.CounterKey
	Close()
}

type Subscriber interface {
	Watch(ctx context.Context, collection string) error
	Close(ctx context.Context) error
}
