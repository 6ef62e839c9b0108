package feed

import (
	"feedsync/internal/config"
	"feedsync/internal/domain"
)

// ScoredItem is an item together with its priority at selection time.
type ScoredItem struct {
	Item  domain.ContentItem
	Score float64
}

// Slot is one position of the rendered feed.
type Slot struct {
	Item     domain.ContentItem
	Category domain.Category
	Score    float64
}

// Share is one category's target percentage.
type Share struct {
	Category domain.Category
	Percent  float64
}

// Shares returns the distribution in fixed category order.
func Shares(d config.Distribution) []Share {
	return []Share{
		{Category: domain.CategoryPosts, Percent: d.Posts},
		{Category: domain.CategoryProducts, Percent: d.Products},
		{Category: domain.CategoryJobs, Percent: d.Jobs},
		{Category: domain.CategoryAds, Percent: d.Ads},
		{Category: domain.CategoryEvents, Percent: d.Events},
	}
}

// Mix interleaves the per-category queues into total slots. Each queue must be
// sorted by score, highest first. The queues map is not modified.
//
// Slot i goes to the first category whose cumulative share exceeds i/total;
// when that queue is exhausted the first non-empty queue in distribution
// order is used instead. Mixing stops early only when every queue is empty.
func Mix(queues map[domain.Category][]ScoredItem, shares []Share, total int) []Slot {
	if total <= 0 {
		return nil
	}

	var sum float64
	cumulative := make([]float64, len(shares))
	for i, sh := range shares {
		if sh.Percent > 0 {
			sum += sh.Percent
		}
		cumulative[i] = sum
	}

	heads := make(map[domain.Category]int, len(queues))
	remaining := func(c domain.Category) bool {
		return heads[c] < len(queues[c])
	}
	pop := func(c domain.Category) Slot {
		si := queues[c][heads[c]]
		heads[c]++
		return Slot{Item: si.Item, Category: c, Score: si.Score}
	}

	out := make([]Slot, 0, total)
	for i := 0; i < total; i++ {
		target, ok := pick(shares, cumulative, sum, i, total)
		if !ok || !remaining(target) {
			target, ok = firstNonEmpty(shares, queues, remaining)
			if !ok {
				break
			}
		}
		out = append(out, pop(target))
	}
	return out
}

// pick compares i*sum against cumulative*total so integer percentages select
// without floating point drift at partition boundaries.
func pick(shares []Share, cumulative []float64, sum float64, i, total int) (domain.Category, bool) {
	if sum <= 0 {
		return "", false
	}
	pos := float64(i) * sum
	for k, sh := range shares {
		if sh.Percent <= 0 {
			continue
		}
		if cumulative[k]*float64(total) > pos {
			return sh.Category, true
		}
	}
	return "", false
}

func firstNonEmpty(shares []Share, queues map[domain.Category][]ScoredItem, remaining func(domain.Category) bool) (domain.Category, bool) {
	seen := make(map[domain.Category]bool, len(shares))
	for _, sh := range shares {
		seen[sh.Category] = true
		if remaining(sh.Category) {
			return sh.Category, true
		}
	}
	// Categories outside the distribution are still drained rather than dropped.
	for _, c := range domain.Categories {
		if !seen[c] && remaining(c) {
			return c, true
		}
	}
	return "", false
}
