package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"feedsync/internal/domain"
)

// writableColumns lists the columns clients may set per collection. Counter
// columns are maintained by triggers and never written directly.
var writableColumns = map[string]map[string]bool{
	"posts":        set("id", "kind", "author_id", "author_verified", "sponsored", "body"),
	"follows":      set("follower_id", "followee_id"),
	"likes":        set("post_id", "user_id"),
	"comments":     set("post_id", "user_id", "body"),
	"shares":       set("post_id", "user_id"),
	"wallet":       set("id", "user_id"),
	"transactions": set("wallet_id", "user_id", "amount", "kind", "counterparty_wallet_id"),
}

func set(cols ...string) map[string]bool {
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}

// Store is the query/write interface over the feed tables.
type Store struct {
	db *sqlx.DB
	tx *TransactionManager
}

func NewStore(db *sqlx.DB, tx *TransactionManager) *Store {
	return &Store{db: db, tx: tx}
}

// Write executes a mutation's authoritative request.
func (s *Store) Write(ctx context.Context, req domain.WriteRequest) error {
	switch req.Operation {
	case domain.OpInsert:
		_, err := s.Insert(ctx, req.Collection, req.Record)
		return err
	case domain.OpUpdate:
		return s.Update(ctx, req.Collection, req.RecordID, req.Record)
	case domain.OpDelete:
		match := req.Record
		if req.RecordID != "" {
			match = map[string]any{"id": req.RecordID}
		}
		return s.Delete(ctx, req.Collection, match)
	}
	return domain.NewStoreError(domain.KindValidation, "write "+req.Collection,
		fmt.Errorf("unsupported operation %q", req.Operation))
}

// Insert adds a record and returns its id. Transactions also move the wallet
// balance in the same database transaction.
func (s *Store) Insert(ctx context.Context, collection string, record map[string]any) (string, error) {
	op := "insert " + collection
	cols, args, err := columns(collection, record)
	if err != nil {
		return "", domain.NewStoreError(domain.KindValidation, op, err)
	}

	if collection == "transactions" {
		return s.insertTransaction(ctx, record, cols, args)
	}

	id, err := s.insert(ctx, collection, cols, args)
	if err != nil {
		return "", classify(op, err)
	}
	return id, nil
}

func (s *Store) insert(ctx context.Context, collection string, cols []string, args []any) (string, error) {
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		collection, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)

	var id string
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &id, query, args...)
	return id, err
}

func (s *Store) insertTransaction(ctx context.Context, record map[string]any, cols []string, args []any) (string, error) {
	const op = "insert transactions"

	amount, ok := toFloat(record["amount"])
	if !ok || amount == 0 {
		return "", domain.NewStoreError(domain.KindValidation, op, errors.New("amount must be a non-zero number"))
	}
	walletID, _ := record["wallet_id"].(string)
	counterparty, _ := record["counterparty_wallet_id"].(string)
	if counterparty != "" && amount > 0 {
		return "", domain.NewStoreError(domain.KindValidation, op, errors.New("transfers must debit the sending wallet"))
	}

	var id string
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		id, err = s.insert(ctx, "transactions", cols, args)
		if err != nil {
			return err
		}
		if err := s.moveBalance(ctx, walletID, amount); err != nil {
			return err
		}
		if counterparty == "" {
			return nil
		}

		credit := map[string]any{
			"wallet_id":              counterparty,
			"user_id":                record["user_id"],
			"amount":                 -amount,
			"kind":                   record["kind"],
			"counterparty_wallet_id": walletID,
		}
		ccols, cargs, err := columns("transactions", credit)
		if err != nil {
			return err
		}
		if _, err := s.insert(ctx, "transactions", ccols, cargs); err != nil {
			return err
		}
		return s.moveBalance(ctx, counterparty, -amount)
	})
	if err != nil {
		return "", classify(op, err)
	}
	return id, nil
}

// moveBalance applies amount to a wallet, refusing to take it below zero.
func (s *Store) moveBalance(ctx context.Context, walletID string, amount float64) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE wallet SET balance = balance + $1, updated_at = NOW()
		 WHERE id = $2 AND balance + $1 >= 0`,
		amount, walletID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewStoreError(domain.KindValidation, "update wallet",
			fmt.Errorf("%w: wallet %s", domain.ErrInsufficientBalance, walletID))
	}
	return nil
}

func (s *Store) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	op := "update " + collection
	if id == "" {
		return domain.NewStoreError(domain.KindValidation, op, errors.New("missing record id"))
	}
	cols, args, err := columns(collection, patch)
	if err != nil {
		return domain.NewStoreError(domain.KindValidation, op, err)
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", collection, strings.Join(sets, ", "), len(args))

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return classify(op, err)
	}
	return requireRows(op, res.RowsAffected)
}

// Delete removes the records matching every column in match.
func (s *Store) Delete(ctx context.Context, collection string, match map[string]any) error {
	op := "delete " + collection
	if collection == "transactions" {
		return domain.NewStoreError(domain.KindAuthorization, op, errors.New("transactions are append-only"))
	}

	for k, v := range match {
		if v == nil {
			return domain.NewStoreError(domain.KindValidation, op, fmt.Errorf("nil match value for %q", k))
		}
	}
	cols, args, err := columns(collection, match, "id")
	if err != nil {
		return domain.NewStoreError(domain.KindValidation, op, err)
	}

	conds := make([]string, len(cols))
	for i, c := range cols {
		conds[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", collection, strings.Join(conds, " AND "))

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		return classify(op, err)
	}
	return requireRows(op, res.RowsAffected)
}

// Fetch returns up to limit records of collection whose columns equal filter.
func (s *Store) Fetch(ctx context.Context, collection string, filter map[string]any, limit int) ([]map[string]any, error) {
	op := "fetch " + collection
	if _, ok := writableColumns[collection]; !ok {
		return nil, domain.NewStoreError(domain.KindValidation, op, fmt.Errorf("%w: %s", domain.ErrUnknownCollection, collection))
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		if !validIdentifier(k) {
			return nil, domain.NewStoreError(domain.KindValidation, op, fmt.Errorf("bad filter column %q", k))
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	query := "SELECT * FROM " + collection
	args := make([]any, 0, len(keys)+1)
	if len(keys) > 0 {
		conds := make([]string, len(keys))
		for i, k := range keys {
			args = append(args, filter[k])
			conds[i] = fmt.Sprintf("%s = $%d", k, i+1)
		}
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := GetExecutor(ctx, s.db).QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, classify(op, err)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// columns validates record against the collection's writable columns (plus
// extra) and returns the non-nil ones in a stable order with their values.
func columns(collection string, record map[string]any, extra ...string) ([]string, []any, error) {
	allowed, ok := writableColumns[collection]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrUnknownCollection, collection)
	}
	if len(record) == 0 {
		return nil, nil, errors.New("empty record")
	}

	cols := make([]string, 0, len(record))
	for k, v := range record {
		if !allowed[k] && !slices.Contains(extra, k) {
			return nil, nil, fmt.Errorf("column %q is not writable on %s", k, collection)
		}
		if v == nil {
			continue
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = record[c]
	}
	return cols, args, nil
}

func requireRows(op string, rowsAffected func() (int64, error)) error {
	n, err := rowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return domain.NewStoreError(domain.KindValidation, op, errors.New("no matching record"))
	}
	return nil
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
