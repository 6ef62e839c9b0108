package feed

import (
	"fmt"
	"time"

	"feedsync/internal/config"
	"feedsync/internal/domain"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testFeedConfig() config.FeedConfig {
	base := make(map[string]float64, len(config.DefaultBasePriority))
	for k, v := range config.DefaultBasePriority {
		base[k] = v
	}
	return config.FeedConfig{
		Size:          20,
		Distribution:  config.Distribution{Posts: 60, Products: 15, Jobs: 10, Ads: 10, Events: 5},
		BasePriority:  base,
		Weights:       config.EngagementWeights{Likes: 1, Comments: 3, Shares: 5, Views: 0.1},
		FollowBoost:   2,
		EngagementCap: 3,
		RecencyBoost:  2,
		RecencyWindow: 24 * time.Hour,
	}
}

func item(id string, kind domain.Kind, age time.Duration) domain.ContentItem {
	return domain.ContentItem{
		ID:        id,
		Kind:      kind,
		CreatedAt: testNow.Add(-age),
	}
}

func queueOf(cat domain.Category, n int) []ScoredItem {
	q := make([]ScoredItem, n)
	for i := range q {
		q[i] = ScoredItem{
			Item:  item(fmt.Sprintf("%s-%d", cat, i), domain.KindPost, time.Hour),
			Score: float64(n - i),
		}
	}
	return q
}
