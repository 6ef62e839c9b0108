package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"feedsync/internal/config"
	"feedsync/internal/domain"
	"feedsync/internal/engine"
)

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrEmptyComment  = errors.New("comment body is empty")
	ErrSelfTransfer  = errors.New("cannot transfer to the same wallet")
	ErrZeroReward    = errors.New("reward rounds to zero")
)

const (
	txWithdrawal  = "withdrawal"
	txTransfer    = "transfer"
	txShareReward = "share_reward"
)

// ActionService turns user actions into optimistic counter mutations.
// Post actions apply immediately; wallet actions first make sure the engine
// holds the authoritative balance so the funds check has something to
// compare against.
type ActionService struct {
	engine     MutationEngine
	counters   CounterStore
	rewardRate float64
	logger     *slog.Logger
}

func NewActionService(engine MutationEngine, counters CounterStore, cfg config.WalletConfig, logger *slog.Logger) *ActionService {
	return &ActionService{
		engine:     engine,
		counters:   counters,
		rewardRate: cfg.RewardShareRate,
		logger:     logger.With("component", "actions"),
	}
}

func postKey(postID, field string) domain.CounterKey {
	return domain.CounterKey{Entity: domain.EntityPost, ID: postID, Field: field}
}

func walletKey(walletID string) domain.CounterKey {
	return domain.CounterKey{Entity: domain.EntityWallet, ID: walletID, Field: domain.FieldBalance}
}

func (s *ActionService) LikePost(userID, postID string) (domain.PendingMutation, error) {
	return s.apply(engine.Request{
		Key:       postKey(postID, domain.FieldLikes),
		ActorID:   userID,
		Delta:     1,
		ConfirmOn: domain.EventMatch{Collection: "likes", Operation: domain.OpInsert},
		Write: domain.WriteRequest{
			Collection: "likes",
			Operation:  domain.OpInsert,
			Record:     map[string]any{"post_id": postID, "user_id": userID},
		},
	})
}

func (s *ActionService) UnlikePost(userID, postID string) (domain.PendingMutation, error) {
	return s.apply(engine.Request{
		Key:       postKey(postID, domain.FieldLikes),
		ActorID:   userID,
		Delta:     -1,
		ConfirmOn: domain.EventMatch{Collection: "likes", Operation: domain.OpDelete},
		Write: domain.WriteRequest{
			Collection: "likes",
			Operation:  domain.OpDelete,
			Record:     map[string]any{"post_id": postID, "user_id": userID},
		},
	})
}

func (s *ActionService) CommentPost(userID, postID, body string) (domain.PendingMutation, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.PendingMutation{}, ErrEmptyComment
	}
	return s.apply(engine.Request{
		Key:       postKey(postID, domain.FieldComments),
		ActorID:   userID,
		Delta:     1,
		ConfirmOn: domain.EventMatch{Collection: "comments", Operation: domain.OpInsert},
		Write: domain.WriteRequest{
			Collection: "comments",
			Operation:  domain.OpInsert,
			Record:     map[string]any{"post_id": postID, "user_id": userID, "body": body},
		},
	})
}

func (s *ActionService) SharePost(userID, postID string) (domain.PendingMutation, error) {
	return s.apply(engine.Request{
		Key:       postKey(postID, domain.FieldShares),
		ActorID:   userID,
		Delta:     1,
		ConfirmOn: domain.EventMatch{Collection: "shares", Operation: domain.OpInsert},
		Write: domain.WriteRequest{
			Collection: "shares",
			Operation:  domain.OpInsert,
			Record:     map[string]any{"post_id": postID, "user_id": userID},
		},
	})
}

// Withdraw debits amount from the wallet.
func (s *ActionService) Withdraw(ctx context.Context, userID, walletID string, amount float64) (domain.PendingMutation, error) {
	if !(amount > 0) {
		return domain.PendingMutation{}, ErrInvalidAmount
	}
	return s.applyWallet(ctx, walletID, userID, -amount, map[string]any{
		"wallet_id": walletID,
		"user_id":   userID,
		"amount":    -amount,
		"kind":      txWithdrawal,
	})
}

// Transfer debits amount from one wallet and credits it to another. Only
// the sending wallet is tracked optimistically; the receiver learns of the
// credit from the change feed.
func (s *ActionService) Transfer(ctx context.Context, userID, fromWalletID, toWalletID string, amount float64) (domain.PendingMutation, error) {
	if !(amount > 0) {
		return domain.PendingMutation{}, ErrInvalidAmount
	}
	if fromWalletID == toWalletID {
		return domain.PendingMutation{}, ErrSelfTransfer
	}
	return s.applyWallet(ctx, fromWalletID, userID, -amount, map[string]any{
		"wallet_id":              fromWalletID,
		"user_id":                userID,
		"amount":                 -amount,
		"kind":                   txTransfer,
		"counterparty_wallet_id": toWalletID,
	})
}

// CreditShareReward credits the configured share of a sale to the wallet,
// rounded to cents.
func (s *ActionService) CreditShareReward(ctx context.Context, userID, walletID string, saleAmount float64) (domain.PendingMutation, error) {
	if !(saleAmount > 0) {
		return domain.PendingMutation{}, ErrInvalidAmount
	}
	reward := ShareReward(saleAmount, s.rewardRate)
	if reward <= 0 {
		return domain.PendingMutation{}, ErrZeroReward
	}
	return s.applyWallet(ctx, walletID, userID, reward, map[string]any{
		"wallet_id": walletID,
		"user_id":   userID,
		"amount":    reward,
		"kind":      txShareReward,
	})
}

// ShareReward is saleAmount × rate rounded to cents.
func ShareReward(saleAmount, rate float64) float64 {
	return math.Round(saleAmount*rate*100) / 100
}

func (s *ActionService) applyWallet(ctx context.Context, walletID, userID string, delta float64, record map[string]any) (domain.PendingMutation, error) {
	key := walletKey(walletID)
	if err := s.track(ctx, key); err != nil {
		return domain.PendingMutation{}, err
	}
	return s.apply(engine.Request{
		Key:       key,
		ActorID:   userID,
		Delta:     delta,
		ConfirmOn: domain.EventMatch{Collection: "transactions", Operation: domain.OpInsert},
		Write: domain.WriteRequest{
			Collection: "transactions",
			Operation:  domain.OpInsert,
			Record:     record,
		},
	})
}

// track loads key's authoritative value into the engine unless it is
// already held.
func (s *ActionService) track(ctx context.Context, key domain.CounterKey) error {
	if slices.Contains(s.engine.TrackedKeys(), key) {
		return nil
	}
	snapshots, err := s.counters.FetchCounters(ctx, []domain.CounterKey{key})
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if len(snapshots) == 0 {
		return fmt.Errorf("load %s: wallet not found", key)
	}
	s.engine.Reconcile(snapshots)
	return nil
}

func (s *ActionService) apply(req engine.Request) (domain.PendingMutation, error) {
	m, err := s.engine.Apply(req)
	if err != nil {
		s.logger.Warn("action refused",
			"actor_id", req.ActorID,
			"key", req.Key.String(),
			"delta", req.Delta,
			"error", err,
		)
		return m, err
	}
	s.logger.Debug("action applied",
		"mutation_id", m.ID,
		"key", req.Key.String(),
		"state", m.State,
	)
	return m, nil
}
