package feed

import (
	"log/slog"
	"sort"
	"time"

	"feedsync/internal/config"
	"feedsync/internal/domain"
)

// Composer runs classification, scoring and mixing over one batch of items.
type Composer struct {
	scorer *Scorer
	shares []Share
	logger *slog.Logger
}

func NewComposer(cfg config.FeedConfig, logger *slog.Logger) *Composer {
	return &Composer{
		scorer: NewScorer(cfg),
		shares: Shares(cfg.Distribution),
		logger: logger.With("component", "composer"),
	}
}

// Compose produces the rendered order for items. Malformed items are logged
// and left out.
func (c *Composer) Compose(items []domain.ContentItem, now time.Time, total int) []Slot {
	return c.Mix(c.Queues(items, now), total)
}

// Mix fills total slots from already scored queues with the configured
// distribution.
func (c *Composer) Mix(queues map[domain.Category][]ScoredItem, total int) []Slot {
	return Mix(queues, c.shares, total)
}

// Queues classifies and scores items into per-category queues sorted by
// score, newest first on ties, then by id.
func (c *Composer) Queues(items []domain.ContentItem, now time.Time) map[domain.Category][]ScoredItem {
	queues := make(map[domain.Category][]ScoredItem)
	skipped := 0

	for _, item := range items {
		score, err := c.scorer.Score(item, now)
		if err != nil {
			skipped++
			c.logger.Warn("skipping item", "item_id", item.ID, "kind", item.Kind, "error", err)
			continue
		}
		cat := Classify(item)
		queues[cat] = append(queues[cat], ScoredItem{Item: item, Score: score})
	}

	for _, q := range queues {
		sort.SliceStable(q, func(i, j int) bool {
			if q[i].Score != q[j].Score {
				return q[i].Score > q[j].Score
			}
			if !q[i].Item.CreatedAt.Equal(q[j].Item.CreatedAt) {
				return q[i].Item.CreatedAt.After(q[j].Item.CreatedAt)
			}
			return q[i].Item.ID < q[j].Item.ID
		})
	}

	if skipped > 0 {
		c.logger.Debug("scored batch", "items", len(items), "skipped", skipped)
	}
	return queues
}
