package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"feedsync/internal/domain"
	"feedsync/internal/service/mocks"
)

type ReconcilerTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	engine   *mocks.MockMutationEngine
	counters *mocks.MockCounterStore

	reconciler *Reconciler
}

func (s *ReconcilerTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.engine = mocks.NewMockMutationEngine(s.ctrl)
	s.counters = mocks.NewMockCounterStore(s.ctrl)
	s.reconciler = NewReconciler(s.engine, s.counters, testLogger(), nil)
}

func (s *ReconcilerTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestReconcilerTestSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerTestSuite))
}

func (s *ReconcilerTestSuite) TestReconcile_RebasesTrackedCounters() {
	ctx := context.Background()
	keys := []domain.CounterKey{likes("p1"), balance("w1")}
	snaps := []domain.CounterSnapshot{
		{Key: likes("p1"), Value: 4, Sequence: 100},
		{Key: balance("w1"), Value: 12.5, Sequence: 101},
	}

	gomock.InOrder(
		s.engine.EXPECT().TrackedKeys().Return(keys),
		s.counters.EXPECT().FetchCounters(ctx, keys).Return(snaps, nil),
		s.engine.EXPECT().Reconcile(snaps),
	)

	s.NoError(s.reconciler.Reconcile(ctx))
}

func (s *ReconcilerTestSuite) TestReconcile_NothingTracked() {
	s.engine.EXPECT().TrackedKeys().Return(nil)

	s.NoError(s.reconciler.Reconcile(context.Background()))
}

func (s *ReconcilerTestSuite) TestReconcile_FetchError() {
	ctx := context.Background()
	s.engine.EXPECT().TrackedKeys().Return([]domain.CounterKey{likes("p1")})
	s.counters.EXPECT().FetchCounters(ctx, gomock.Any()).Return(nil, errors.New("connection refused"))

	err := s.reconciler.Reconcile(ctx)
	s.ErrorContains(err, "fetch counters")
}
