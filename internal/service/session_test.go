package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"feedsync/internal/service/mocks"
)

type SessionTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	engine     *mocks.MockMutationEngine
	subscriber *mocks.MockSubscriber

	session *Session
}

func (s *SessionTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.engine = mocks.NewMockMutationEngine(s.ctrl)
	s.subscriber = mocks.NewMockSubscriber(s.ctrl)
	s.session = NewSession(s.engine, s.subscriber, []string{"posts", "likes"}, testLogger())
}

func (s *SessionTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

func (s *SessionTestSuite) TestStart_WatchesEveryCollectionOnce() {
	ctx := context.Background()
	s.subscriber.EXPECT().Watch(ctx, "posts").Return(nil)
	s.subscriber.EXPECT().Watch(ctx, "likes").Return(nil)

	s.Require().NoError(s.session.Start(ctx))
	s.Require().NoError(s.session.Start(ctx))
}

func (s *SessionTestSuite) TestStart_WatchFailureReleasesSubscriptions() {
	ctx := context.Background()
	gomock.InOrder(
		s.subscriber.EXPECT().Watch(ctx, "posts").Return(nil),
		s.subscriber.EXPECT().Watch(ctx, "likes").Return(errors.New("join refused")),
		s.subscriber.EXPECT().Close(ctx).Return(nil),
	)

	err := s.session.Start(ctx)
	s.ErrorContains(err, "watch likes")
}

func (s *SessionTestSuite) TestClose_UnsubscribesBeforeClosingEngine() {
	ctx := context.Background()
	s.subscriber.EXPECT().Watch(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	s.Require().NoError(s.session.Start(ctx))

	gomock.InOrder(
		s.subscriber.EXPECT().Close(ctx).Return(nil),
		s.engine.EXPECT().Close(),
	)

	s.NoError(s.session.Close(ctx))
	s.NoError(s.session.Close(ctx), "second close is a no-op")
	s.Error(s.session.Start(ctx))
}

func (s *SessionTestSuite) TestClose_ReportsSubscriptionErrors() {
	ctx := context.Background()
	s.subscriber.EXPECT().Close(ctx).Return(errors.New("leave timed out"))
	s.engine.EXPECT().Close()

	err := s.session.Close(ctx)
	s.ErrorContains(err, "close subscriptions")
}
