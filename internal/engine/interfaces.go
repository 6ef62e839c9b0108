package engine

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"feedsync/internal/domain"
)

// Writer issues authoritative writes. Failures should be *domain.StoreError
// so that transient ones can be retried.
type Writer interface {
	Write(ctx context.Context, req domain.WriteRequest) error
}

type Notifier interface {
	Notify(ctx context.Context, notice domain.Notice) error
}
