package feed

import "feedsync/internal/domain"

var kindCategories = map[domain.Kind]domain.Category{
	domain.KindPost:            domain.CategoryPosts,
	domain.KindProduct:         domain.CategoryProducts,
	domain.KindJob:             domain.CategoryJobs,
	domain.KindFreelancerSkill: domain.CategoryJobs,
	domain.KindSponsoredPost:   domain.CategoryAds,
	domain.KindLiveEvent:       domain.CategoryEvents,
	domain.KindCommunityEvent:  domain.CategoryEvents,
}

// Classify maps an item's tag to its feed category. Unknown tags land in posts.
func Classify(item domain.ContentItem) domain.Category {
	if c, ok := kindCategories[item.Kind]; ok {
		return c
	}
	return domain.CategoryPosts
}
