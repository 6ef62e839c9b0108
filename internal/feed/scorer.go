package feed

import (
	"fmt"
	"math"
	"time"

	"feedsync/internal/config"
	"feedsync/internal/domain"
)

// Scorer turns an item into a scalar priority. It is pure: the same item and
// now always give the same score.
type Scorer struct {
	basePriority  map[domain.Kind]float64
	fallbackBase  float64
	weights       config.EngagementWeights
	followBoost   float64
	engagementCap float64
	recencyBoost  float64
	recencyWindow time.Duration
}

func NewScorer(cfg config.FeedConfig) *Scorer {
	base := make(map[domain.Kind]float64, len(cfg.BasePriority))
	for kind, p := range cfg.BasePriority {
		base[domain.Kind(kind)] = p
	}
	fallback, ok := base[domain.KindPost]
	if !ok {
		fallback = config.DefaultBasePriority[string(domain.KindPost)]
	}
	return &Scorer{
		basePriority:  base,
		fallbackBase:  fallback,
		weights:       cfg.Weights,
		followBoost:   cfg.FollowBoost,
		engagementCap: cfg.EngagementCap,
		recencyBoost:  cfg.RecencyBoost,
		recencyWindow: cfg.RecencyWindow,
	}
}

func (s *Scorer) Score(item domain.ContentItem, now time.Time) (float64, error) {
	if err := validate(item, now); err != nil {
		return 0, err
	}

	base := s.base(item.Kind)

	// Monetization slots are never outcompeted by virality.
	if item.Sponsored || item.Kind == domain.KindSponsoredPost {
		return base, nil
	}

	score := base
	if item.FollowedByViewer {
		score += s.followBoost
	}
	score += s.engagement(item.Engagement)
	score += s.recency(now.Sub(item.CreatedAt))
	return score, nil
}

// WeightedEngagement is the engagement total before the log curve.
func (s *Scorer) WeightedEngagement(e domain.Engagement) float64 {
	return float64(e.Likes)*s.weights.Likes +
		float64(e.Comments)*s.weights.Comments +
		float64(e.Shares)*s.weights.Shares +
		float64(e.Views)*s.weights.Views
}

func (s *Scorer) base(kind domain.Kind) float64 {
	if p, ok := s.basePriority[kind]; ok {
		return p
	}
	return s.fallbackBase
}

func (s *Scorer) engagement(e domain.Engagement) float64 {
	return math.Min(math.Log10(s.WeightedEngagement(e)+1), s.engagementCap)
}

// recency decays linearly from recencyBoost to zero across the window.
func (s *Scorer) recency(age time.Duration) float64 {
	if s.recencyWindow <= 0 {
		return 0
	}
	perHour := s.recencyBoost / (s.recencyWindow.Hours())
	return math.Max(0, s.recencyBoost-age.Hours()*perHour)
}

func validate(item domain.ContentItem, now time.Time) error {
	e := item.Engagement
	if e.Likes < 0 || e.Comments < 0 || e.Shares < 0 || e.Views < 0 {
		return fmt.Errorf("%w: item %s has negative engagement counters", domain.ErrMalformedItem, item.ID)
	}
	if item.CreatedAt.IsZero() {
		return fmt.Errorf("%w: item %s has no creation time", domain.ErrMalformedItem, item.ID)
	}
	if item.CreatedAt.After(now) {
		return fmt.Errorf("%w: item %s created in the future", domain.ErrMalformedItem, item.ID)
	}
	return nil
}
