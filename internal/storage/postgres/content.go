package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"feedsync/internal/domain"
)

type contentRow struct {
	ID             string    `db:"id"`
	Kind           string    `db:"kind"`
	AuthorID       string    `db:"author_id"`
	AuthorVerified bool      `db:"author_verified"`
	Sponsored      bool      `db:"sponsored"`
	CreatedAt      time.Time `db:"created_at"`
	Likes          int64     `db:"likes_count"`
	Comments       int64     `db:"comments_count"`
	Shares         int64     `db:"shares_count"`
	Views          int64     `db:"views_count"`
	Followed       bool      `db:"followed"`
}

type ContentStore struct {
	db *sqlx.DB
}

func NewContentStore(db *sqlx.DB) *ContentStore {
	return &ContentStore{db: db}
}

// FetchContent returns the newest candidate items with the viewer's follow
// relationship resolved.
func (s *ContentStore) FetchContent(ctx context.Context, viewerID string, limit int) ([]domain.ContentItem, error) {
	query := `
		SELECT
			p.id, p.kind, p.author_id, p.author_verified, p.sponsored, p.created_at,
			p.likes_count, p.comments_count, p.shares_count, p.views_count,
			EXISTS (
				SELECT 1 FROM follows f
				WHERE f.follower_id = $1 AND f.followee_id = p.author_id
			) AS followed
		FROM posts p
		ORDER BY p.created_at DESC, p.id
		LIMIT $2`

	var rows []contentRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query, viewerID, limit); err != nil {
		return nil, classify("fetch content", err)
	}

	items := make([]domain.ContentItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, domain.ContentItem{
			ID:        r.ID,
			Kind:      domain.Kind(r.Kind),
			AuthorID:  r.AuthorID,
			CreatedAt: r.CreatedAt,
			Engagement: domain.Engagement{
				Likes:    r.Likes,
				Comments: r.Comments,
				Shares:   r.Shares,
				Views:    r.Views,
			},
			AuthorVerified:   r.AuthorVerified,
			FollowedByViewer: r.Followed,
			Sponsored:        r.Sponsored,
		})
	}
	return items, nil
}
