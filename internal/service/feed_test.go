package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"feedsync/internal/domain"
	"feedsync/internal/service/mocks"
)

type FeedServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	content  *mocks.MockContentStore
	counters *mocks.MockCounterStore
	engine   *mocks.MockMutationEngine

	service *FeedService
}

func (s *FeedServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.content = mocks.NewMockContentStore(s.ctrl)
	s.counters = mocks.NewMockCounterStore(s.ctrl)
	s.engine = mocks.NewMockMutationEngine(s.ctrl)

	s.service = NewFeedService(s.content, s.counters, s.engine, testLogger(), nil, testFeedConfig())
	s.service.now = func() time.Time { return testNow }
}

func (s *FeedServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestFeedServiceTestSuite(t *testing.T) {
	suite.Run(t, new(FeedServiceTestSuite))
}

// views answers View from a fixed table of displayed values.
func (s *FeedServiceTestSuite) views(displayed map[domain.CounterKey]float64) {
	s.engine.EXPECT().View(gomock.Any()).DoAndReturn(func(key domain.CounterKey) domain.CounterView {
		return domain.CounterView{Key: key, Confirmed: displayed[key], Displayed: displayed[key]}
	}).AnyTimes()
}

func (s *FeedServiceTestSuite) TestRefresh_OverlaysDisplayedCounters() {
	ctx := context.Background()
	items := []domain.ContentItem{
		{ID: "p1", Kind: domain.KindPost, AuthorID: "a", CreatedAt: testNow.Add(-time.Hour)},
		{ID: "p2", Kind: domain.KindPost, AuthorID: "b", CreatedAt: testNow.Add(-time.Hour)},
	}
	snapshots := []domain.CounterSnapshot{
		{Key: likes("p1"), Value: 12, Sequence: 40},
		{Key: likes("p2"), Value: 0, Sequence: 41},
	}

	s.content.EXPECT().FetchContent(ctx, "viewer", 50).Return(items, nil)
	s.counters.EXPECT().FetchCounters(ctx, gomock.Len(8)).Return(snapshots, nil)
	s.engine.EXPECT().Reconcile(snapshots)
	s.views(map[domain.CounterKey]float64{likes("p1"): 13})

	slots, err := s.service.Refresh(ctx, "viewer")
	s.Require().NoError(err)
	s.Require().Len(slots, 2)

	s.Equal("p1", slots[0].Item.ID)
	s.Equal(int64(13), slots[0].Item.Engagement.Likes)
	s.Equal(domain.CategoryPosts, slots[0].Category)
	s.Greater(slots[0].Score, slots[1].Score)
	s.Equal("p2", slots[1].Item.ID)
}

func (s *FeedServiceTestSuite) TestRefresh_SkipsMalformedItems() {
	ctx := context.Background()
	items := []domain.ContentItem{
		{ID: "ok", Kind: domain.KindJob, CreatedAt: testNow.Add(-time.Hour)},
		{ID: "future", Kind: domain.KindPost, CreatedAt: testNow.Add(time.Hour)},
		{ID: "undated", Kind: domain.KindPost},
	}

	s.content.EXPECT().FetchContent(ctx, "viewer", 50).Return(items, nil)
	s.counters.EXPECT().FetchCounters(ctx, gomock.Any()).Return(nil, nil)
	s.engine.EXPECT().Reconcile(gomock.Nil())
	s.views(nil)

	slots, err := s.service.Refresh(ctx, "viewer")
	s.Require().NoError(err)
	s.Require().Len(slots, 1)
	s.Equal("ok", slots[0].Item.ID)
	s.Equal(domain.CategoryJobs, slots[0].Category)
}

func (s *FeedServiceTestSuite) TestRefresh_NoCandidates() {
	ctx := context.Background()
	s.content.EXPECT().FetchContent(ctx, "viewer", 50).Return(nil, nil)

	slots, err := s.service.Refresh(ctx, "viewer")
	s.NoError(err)
	s.Empty(slots)
}

func (s *FeedServiceTestSuite) TestRefresh_ContentError() {
	ctx := context.Background()
	s.content.EXPECT().FetchContent(ctx, "viewer", 50).Return(nil, errors.New("connection refused"))

	_, err := s.service.Refresh(ctx, "viewer")
	s.ErrorContains(err, "fetch content")
}

func (s *FeedServiceTestSuite) TestRefresh_CounterError() {
	ctx := context.Background()
	items := []domain.ContentItem{{ID: "p1", Kind: domain.KindPost, CreatedAt: testNow}}

	s.content.EXPECT().FetchContent(ctx, "viewer", 50).Return(items, nil)
	s.counters.EXPECT().FetchCounters(ctx, gomock.Any()).Return(nil, errors.New("timeout"))

	_, err := s.service.Refresh(ctx, "viewer")
	s.ErrorContains(err, "fetch counters")
}
