package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"feedsync/internal/config"
	"feedsync/internal/domain"
	"feedsync/internal/feed"
	"feedsync/internal/metrics"
)

// FeedService builds the rendered feed for a viewer.
type FeedService struct {
	content  ContentStore
	counters CounterStore
	engine   MutationEngine
	composer *feed.Composer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	config   config.FeedConfig
	now      func() time.Time
}

func NewFeedService(
	content ContentStore,
	counters CounterStore,
	engine MutationEngine,
	logger *slog.Logger,
	m *metrics.Metrics,
	cfg config.FeedConfig,
) *FeedService {
	logger = logger.With("component", "feed")
	return &FeedService{
		content:  content,
		counters: counters,
		engine:   engine,
		composer: feed.NewComposer(cfg, logger),
		metrics:  m,
		logger:   logger,
		config:   cfg,
		now:      time.Now,
	}
}

// Refresh reads candidate items, seeds the engine with their authoritative
// counters and composes the feed from the counters the user should see.
func (s *FeedService) Refresh(ctx context.Context, viewerID string) ([]feed.Slot, error) {
	startTime := s.now()

	items, err := s.content.FetchContent(ctx, viewerID, s.config.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch content: %w", err)
	}

	keys := make([]domain.CounterKey, 0, len(items)*4)
	for _, item := range items {
		keys = append(keys, item.CounterKeys()...)
	}
	if len(keys) > 0 {
		snapshots, err := s.counters.FetchCounters(ctx, keys)
		if err != nil {
			return nil, fmt.Errorf("fetch counters: %w", err)
		}
		s.engine.Reconcile(snapshots)
	}

	for i := range items {
		items[i].Engagement = s.overlay(items[i])
	}

	queues := s.composer.Queues(items, startTime)
	scored := 0
	for _, q := range queues {
		scored += len(q)
	}
	if skipped := len(items) - scored; skipped > 0 {
		s.metrics.ItemsSkipped(skipped)
	}

	slots := s.composer.Mix(queues, s.config.Size)

	s.logger.Info("feed refreshed",
		"viewer_id", viewerID,
		"candidates", len(items),
		"slots", len(slots),
		"duration", s.now().Sub(startTime),
	)
	return slots, nil
}

// overlay replaces the stored engagement with confirmed plus pending values.
func (s *FeedService) overlay(item domain.ContentItem) domain.Engagement {
	e := item.Engagement
	for _, key := range item.CounterKeys() {
		v := int64(math.Round(s.engine.View(key).Displayed))
		switch key.Field {
		case domain.FieldLikes:
			e.Likes = v
		case domain.FieldComments:
			e.Comments = v
		case domain.FieldShares:
			e.Shares = v
		case domain.FieldViews:
			e.Views = v
		}
	}
	return e
}
