package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"feedsync/internal/domain"
)

type postCountersRow struct {
	ID       string `db:"id"`
	Likes    int64  `db:"likes_count"`
	Comments int64  `db:"comments_count"`
	Shares   int64  `db:"shares_count"`
	Views    int64  `db:"views_count"`
	LastSeq  int64  `db:"last_seq"`
}

type walletRow struct {
	ID      string  `db:"id"`
	Balance float64 `db:"balance"`
	LastSeq int64   `db:"last_seq"`
}

// CounterStore reads authoritative counter values together with the change
// sequence each row is current as of.
type CounterStore struct {
	db *sqlx.DB
}

func NewCounterStore(db *sqlx.DB) *CounterStore {
	return &CounterStore{db: db}
}

// FetchCounters returns a snapshot for every requested key whose row exists.
func (s *CounterStore) FetchCounters(ctx context.Context, keys []domain.CounterKey) ([]domain.CounterSnapshot, error) {
	wanted := make(map[domain.CounterKey]bool, len(keys))
	seen := make(map[domain.EntityRef]bool)
	ids := make(map[domain.EntityType][]string)
	for _, k := range keys {
		wanted[k] = true
		if ref := k.Ref(); !seen[ref] {
			seen[ref] = true
			ids[k.Entity] = append(ids[k.Entity], k.ID)
		}
	}

	var out []domain.CounterSnapshot
	add := func(key domain.CounterKey, value float64, seq int64) {
		if wanted[key] {
			out = append(out, domain.CounterSnapshot{Key: key, Value: value, Sequence: seq})
		}
	}

	if postIDs := ids[domain.EntityPost]; len(postIDs) > 0 {
		var rows []postCountersRow
		err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows,
			`SELECT id, likes_count, comments_count, shares_count, views_count, last_seq
			 FROM posts WHERE id = ANY($1)`,
			pq.Array(postIDs),
		)
		if err != nil {
			return nil, classify("fetch post counters", err)
		}
		for _, r := range rows {
			key := func(field string) domain.CounterKey {
				return domain.CounterKey{Entity: domain.EntityPost, ID: r.ID, Field: field}
			}
			add(key(domain.FieldLikes), float64(r.Likes), r.LastSeq)
			add(key(domain.FieldComments), float64(r.Comments), r.LastSeq)
			add(key(domain.FieldShares), float64(r.Shares), r.LastSeq)
			add(key(domain.FieldViews), float64(r.Views), r.LastSeq)
		}
	}

	if walletIDs := ids[domain.EntityWallet]; len(walletIDs) > 0 {
		var rows []walletRow
		err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows,
			`SELECT id, balance::FLOAT8 AS balance, last_seq FROM wallet WHERE id = ANY($1)`,
			pq.Array(walletIDs),
		)
		if err != nil {
			return nil, classify("fetch wallet balances", err)
		}
		for _, r := range rows {
			add(domain.CounterKey{Entity: domain.EntityWallet, ID: r.ID, Field: domain.FieldBalance}, r.Balance, r.LastSeq)
		}
	}

	return out, nil
}
