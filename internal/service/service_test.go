package service

import (
	"io"
	"log/slog"
	"time"

	"feedsync/internal/config"
	"feedsync/internal/domain"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFeedConfig() config.FeedConfig {
	return config.FeedConfig{
		Size:           20,
		CandidateLimit: 50,
		Distribution:   config.Distribution{Posts: 60, Products: 15, Jobs: 10, Ads: 10, Events: 5},
		BasePriority:   config.DefaultBasePriority,
		Weights:        config.EngagementWeights{Likes: 1, Comments: 3, Shares: 5, Views: 0.1},
		FollowBoost:    2,
		EngagementCap:  3,
		RecencyBoost:   2,
		RecencyWindow:  24 * time.Hour,
	}
}

func likes(post string) domain.CounterKey {
	return domain.CounterKey{Entity: domain.EntityPost, ID: post, Field: domain.FieldLikes}
}

func balance(wallet string) domain.CounterKey {
	return domain.CounterKey{Entity: domain.EntityWallet, ID: wallet, Field: domain.FieldBalance}
}
