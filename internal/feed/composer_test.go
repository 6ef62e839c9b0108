package feed

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsync/internal/domain"
)

func TestComposer_ComposeSkipsMalformedAndOrders(t *testing.T) {
	c := NewComposer(testFeedConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	hot := item("hot", domain.KindPost, 2*time.Hour)
	hot.Engagement = domain.Engagement{Likes: 300, Comments: 40}
	cold := item("cold", domain.KindPost, 2*time.Hour)
	broken := item("broken", domain.KindPost, time.Hour)
	broken.Engagement.Likes = -5
	product := item("sku-1", domain.KindProduct, time.Hour)
	ad := item("ad-1", domain.KindSponsoredPost, time.Hour)
	live := item("live-1", domain.KindLiveEvent, 10*time.Minute)

	slots := c.Compose([]domain.ContentItem{cold, broken, hot, product, ad, live}, testNow, 20)

	require.Len(t, slots, 5)
	ids := make([]string, 0, len(slots))
	for _, s := range slots {
		ids = append(ids, s.Item.ID)
		assert.Equal(t, Classify(s.Item), s.Category)
	}
	assert.NotContains(t, ids, "broken")
	assert.Equal(t, "hot", ids[0])
	assert.Equal(t, "cold", ids[1])
}

func TestComposer_QueuesTieBreakNewestThenID(t *testing.T) {
	c := NewComposer(testFeedConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	a := item("a", domain.KindJob, 30*time.Hour)
	b := item("b", domain.KindJob, 30*time.Hour)
	newer := item("c", domain.KindJob, 26*time.Hour)

	queues := c.Queues([]domain.ContentItem{b, a, newer}, testNow)

	jobs := queues[domain.CategoryJobs]
	require.Len(t, jobs, 3)
	assert.Equal(t, "c", jobs[0].Item.ID)
	assert.Equal(t, "a", jobs[1].Item.ID)
	assert.Equal(t, "b", jobs[2].Item.ID)
}

func TestClassify(t *testing.T) {
	tests := map[domain.Kind]domain.Category{
		domain.KindPost:            domain.CategoryPosts,
		domain.KindProduct:         domain.CategoryProducts,
		domain.KindJob:             domain.CategoryJobs,
		domain.KindFreelancerSkill: domain.CategoryJobs,
		domain.KindSponsoredPost:   domain.CategoryAds,
		domain.KindLiveEvent:       domain.CategoryEvents,
		domain.KindCommunityEvent:  domain.CategoryEvents,
		domain.Kind("poll"):        domain.CategoryPosts,
		domain.Kind(""):            domain.CategoryPosts,
	}
	for kind, want := range tests {
		assert.Equal(t, want, Classify(domain.ContentItem{Kind: kind}), "kind %q", kind)
	}
}
