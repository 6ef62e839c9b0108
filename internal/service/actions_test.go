package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"feedsync/internal/config"
	"feedsync/internal/domain"
	"feedsync/internal/engine"
	"feedsync/internal/service/mocks"
)

type ActionServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	engine   *mocks.MockMutationEngine
	counters *mocks.MockCounterStore

	service *ActionService
}

func (s *ActionServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.engine = mocks.NewMockMutationEngine(s.ctrl)
	s.counters = mocks.NewMockCounterStore(s.ctrl)

	s.service = NewActionService(s.engine, s.counters, config.WalletConfig{RewardShareRate: 0.005}, testLogger())
}

func (s *ActionServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestActionServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ActionServiceTestSuite))
}

// accept makes Apply echo the request back as a pending mutation.
func (s *ActionServiceTestSuite) accept(check func(engine.Request)) {
	s.engine.EXPECT().Apply(gomock.Any()).DoAndReturn(func(req engine.Request) (domain.PendingMutation, error) {
		check(req)
		return domain.PendingMutation{
			ID:      uuid.New(),
			Key:     req.Key,
			ActorID: req.ActorID,
			Delta:   req.Delta,
			State:   domain.StatePending,
		}, nil
	})
}

func (s *ActionServiceTestSuite) TestLikePost() {
	s.accept(func(req engine.Request) {
		s.Equal(likes("p1"), req.Key)
		s.Equal("u1", req.ActorID)
		s.Equal(1.0, req.Delta)
		s.Equal(domain.EventMatch{Collection: "likes", Operation: domain.OpInsert}, req.ConfirmOn)
		s.Equal(domain.OpInsert, req.Write.Operation)
		s.Equal(map[string]any{"post_id": "p1", "user_id": "u1"}, req.Write.Record)
	})

	m, err := s.service.LikePost("u1", "p1")
	s.Require().NoError(err)
	s.Equal(domain.StatePending, m.State)
}

func (s *ActionServiceTestSuite) TestUnlikePost() {
	s.accept(func(req engine.Request) {
		s.Equal(-1.0, req.Delta)
		s.Equal(domain.EventMatch{Collection: "likes", Operation: domain.OpDelete}, req.ConfirmOn)
		s.Equal(domain.OpDelete, req.Write.Operation)
		s.Equal("p1", req.Write.Record["post_id"])
	})

	_, err := s.service.UnlikePost("u1", "p1")
	s.NoError(err)
}

func (s *ActionServiceTestSuite) TestCommentPost() {
	s.accept(func(req engine.Request) {
		s.Equal(domain.FieldComments, req.Key.Field)
		s.Equal("comments", req.Write.Collection)
		s.Equal("nice", req.Write.Record["body"])
	})

	_, err := s.service.CommentPost("u1", "p1", "  nice ")
	s.NoError(err)

	_, err = s.service.CommentPost("u1", "p1", "   ")
	s.ErrorIs(err, ErrEmptyComment)
}

func (s *ActionServiceTestSuite) TestSharePost() {
	s.accept(func(req engine.Request) {
		s.Equal(domain.FieldShares, req.Key.Field)
		s.Equal(domain.EventMatch{Collection: "shares", Operation: domain.OpInsert}, req.ConfirmOn)
	})

	_, err := s.service.SharePost("u1", "p1")
	s.NoError(err)
}

func (s *ActionServiceTestSuite) TestWithdraw_LoadsBalanceFirst() {
	ctx := context.Background()
	snap := []domain.CounterSnapshot{{Key: balance("w1"), Value: 50, Sequence: 9}}

	gomock.InOrder(
		s.engine.EXPECT().TrackedKeys().Return(nil),
		s.counters.EXPECT().FetchCounters(ctx, []domain.CounterKey{balance("w1")}).Return(snap, nil),
		s.engine.EXPECT().Reconcile(snap),
	)
	s.accept(func(req engine.Request) {
		s.Equal(balance("w1"), req.Key)
		s.Equal(-20.0, req.Delta)
		s.Equal(domain.EventMatch{Collection: "transactions", Operation: domain.OpInsert}, req.ConfirmOn)
		s.Equal(-20.0, req.Write.Record["amount"])
		s.Equal("withdrawal", req.Write.Record["kind"])
	})

	_, err := s.service.Withdraw(ctx, "u1", "w1", 20)
	s.NoError(err)
}

func (s *ActionServiceTestSuite) TestWithdraw_TrackedWalletSkipsFetch() {
	s.engine.EXPECT().TrackedKeys().Return([]domain.CounterKey{likes("p1"), balance("w1")})
	s.accept(func(req engine.Request) {})

	_, err := s.service.Withdraw(context.Background(), "u1", "w1", 5)
	s.NoError(err)
}

func (s *ActionServiceTestSuite) TestWithdraw_InsufficientFunds() {
	s.engine.EXPECT().TrackedKeys().Return([]domain.CounterKey{balance("w1")})
	s.engine.EXPECT().Apply(gomock.Any()).Return(
		domain.PendingMutation{State: domain.StateRejected},
		domain.ErrInsufficientBalance,
	)

	m, err := s.service.Withdraw(context.Background(), "u1", "w1", 500)
	s.ErrorIs(err, domain.ErrInsufficientBalance)
	s.Equal(domain.StateRejected, m.State)
}

func (s *ActionServiceTestSuite) TestWithdraw_InvalidAmount() {
	for _, amount := range []float64{0, -3} {
		_, err := s.service.Withdraw(context.Background(), "u1", "w1", amount)
		s.ErrorIs(err, ErrInvalidAmount)
	}
}

func (s *ActionServiceTestSuite) TestWithdraw_UnknownWallet() {
	ctx := context.Background()
	s.engine.EXPECT().TrackedKeys().Return(nil)
	s.counters.EXPECT().FetchCounters(ctx, gomock.Any()).Return(nil, nil)

	_, err := s.service.Withdraw(ctx, "u1", "missing", 5)
	s.ErrorContains(err, "wallet not found")
}

func (s *ActionServiceTestSuite) TestWithdraw_LoadError() {
	ctx := context.Background()
	s.engine.EXPECT().TrackedKeys().Return(nil)
	s.counters.EXPECT().FetchCounters(ctx, gomock.Any()).Return(nil, errors.New("connection reset"))

	_, err := s.service.Withdraw(ctx, "u1", "w1", 5)
	s.ErrorContains(err, "connection reset")
}

func (s *ActionServiceTestSuite) TestTransfer() {
	s.engine.EXPECT().TrackedKeys().Return([]domain.CounterKey{balance("w1")})
	s.accept(func(req engine.Request) {
		s.Equal(balance("w1"), req.Key)
		s.Equal(-7.5, req.Delta)
		s.Equal("transfer", req.Write.Record["kind"])
		s.Equal("w2", req.Write.Record["counterparty_wallet_id"])
	})

	_, err := s.service.Transfer(context.Background(), "u1", "w1", "w2", 7.5)
	s.NoError(err)

	_, err = s.service.Transfer(context.Background(), "u1", "w1", "w1", 1)
	s.ErrorIs(err, ErrSelfTransfer)
}

func (s *ActionServiceTestSuite) TestCreditShareReward() {
	s.engine.EXPECT().TrackedKeys().Return([]domain.CounterKey{balance("w1")})
	s.accept(func(req engine.Request) {
		s.Equal(6.17, req.Delta)
		s.Equal(6.17, req.Write.Record["amount"])
		s.Equal("share_reward", req.Write.Record["kind"])
	})

	_, err := s.service.CreditShareReward(context.Background(), "u1", "w1", 1234.56)
	s.NoError(err)

	_, err = s.service.CreditShareReward(context.Background(), "u1", "w1", 0.5)
	s.ErrorIs(err, ErrZeroReward)
}

func TestShareReward(t *testing.T) {
	assert.Equal(t, 0.5, ShareReward(100, 0.005))
	assert.Equal(t, 6.17, ShareReward(1234.56, 0.005))
	assert.Equal(t, 0.01, ShareReward(2, 0.005))
	assert.Equal(t, 0.0, ShareReward(0.5, 0.005))
	assert.Equal(t, 0.0, ShareReward(100, 0))
}
