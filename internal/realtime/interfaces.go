package realtime

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"feedsync/internal/domain"
)

// ChangeFeed is the store's push interface. Handlers for one subscription
// are called sequentially.
type ChangeFeed interface {
	Subscribe(ctx context.Context, collection string, handler func(domain.RawEvent)) (Subscription, error)
}

// Subscription is one live collection subscription. Dropped yields once
// when the feed loses it.
type Subscription interface {
	Dropped() <-chan error
	Unsubscribe(ctx context.Context) error
}

type EventSink interface {
	HandleEvent(ev domain.ChangeEvent) domain.EventOutcome
}

type Reconciler interface {
	Reconcile(ctx context.Context) error
}
