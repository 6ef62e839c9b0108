package domain

import "time"

// Kind is the content tag attached to every feed item.
type Kind string

const (
	KindPost            Kind = "post"
	KindProduct         Kind = "product"
	KindJob             Kind = "job"
	KindFreelancerSkill Kind = "freelancer_skill"
	KindSponsoredPost   Kind = "sponsored_post"
	KindLiveEvent       Kind = "live_event"
	KindCommunityEvent  Kind = "community_event"
)

// Category is one of the fixed feed buckets the mixer draws from.
type Category string

const (
	CategoryPosts    Category = "posts"
	CategoryProducts Category = "products"
	CategoryJobs     Category = "jobs"
	CategoryAds      Category = "ads"
	CategoryEvents   Category = "events"
)

// Categories lists every category in distribution order.
var Categories = []Category{
	CategoryPosts,
	CategoryProducts,
	CategoryJobs,
	CategoryAds,
	CategoryEvents,
}

type Engagement struct {
	Likes    int64
	Comments int64
	Shares   int64
	Views    int64
}

type ContentItem struct {
	ID               string
	Kind             Kind
	AuthorID         string
	CreatedAt        time.Time
	Engagement       Engagement
	AuthorVerified   bool
	FollowedByViewer bool
	Sponsored        bool
}

// CounterKeys returns the engagement counters the engine tracks for the item.
func (c ContentItem) CounterKeys() []CounterKey {
	return []CounterKey{
		{Entity: EntityPost, ID: c.ID, Field: FieldLikes},
		{Entity: EntityPost, ID: c.ID, Field: FieldComments},
		{Entity: EntityPost, ID: c.ID, Field: FieldShares},
		{Entity: EntityPost, ID: c.ID, Field: FieldViews},
	}
}
