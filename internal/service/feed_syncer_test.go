package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/void-feed/internal/model"
)

func TestFeedSyncer_RefreshFailureKeepsLiveSet(t *testing.T) {
	store := NewFeedStore()
	store.Reconcile([]model.Post{post("p1", 0), post("p2", time.Minute)})
	notices := NewNoticeLog(5)
	gw := &gatewayMock{
		FetchLiveFunc: func(context.Context) ([]model.Post, error) { return nil, errors.New("timeout") },
	}
	s := NewFeedSyncer(store, gw, notices, time.Second, time.Second)

	err := s.Refresh(context.Background())
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, []string{"p2", "p1"}, liveIDs(store))
	assert.Equal(t, []string{NoticeErrorLoadingFeed}, noticeCodes(notices))
	assert.Error(t, s.LastError())
}

func TestFeedSyncer_NotificationTriggersRefetch(t *testing.T) {
	var mu sync.Mutex
	remote := []model.Post{post("p1", 0), post("p2", time.Minute)}
	var onChange func()
	var unsubscribed atomic.Bool

	gw := &gatewayMock{
		FetchLiveFunc: func(context.Context) ([]model.Post, error) {
			mu.Lock()
			defer mu.Unlock()
			return append([]model.Post(nil), remote...), nil
		},
		SubscribeChangesFunc: func(_ context.Context, cb func()) (func() error, error) {
			onChange = cb
			return func() error { unsubscribed.Store(true); return nil }, nil
		},
	}
	store := NewFeedStore()
	s := NewFeedSyncer(store, gw, nil, time.Hour, time.Second)

	stop, err := s.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, liveIDs(store))

	// 别的用户删掉了 p1
	mu.Lock()
	remote = remote[1:]
	mu.Unlock()
	onChange()

	assert.Eventually(t, func() bool { return len(liveIDs(store)) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"p2"}, liveIDs(store))
	assert.Equal(t, 0, store.Stats().Deleted)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, stop(ctx))
	assert.True(t, unsubscribed.Load())
}

func TestFeedSyncer_TicksLivePosts(t *testing.T) {
	gw := &gatewayMock{
		FetchLiveFunc: func(context.Context) ([]model.Post, error) { return []model.Post{post("p1", 0)}, nil },
	}
	store := NewFeedStore()
	s := NewFeedSyncer(store, gw, nil, 5*time.Millisecond, time.Second)

	stop, err := s.Start(context.Background())
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		p, ok := store.Get("p1")
		return ok && p.SurvivalTimeSeconds >= 2
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, stop(context.Background()))

	p, _ := store.Get("p1")
	frozen := p.SurvivalTimeSeconds
	time.Sleep(30 * time.Millisecond)
	p, _ = store.Get("p1")
	assert.Equal(t, frozen, p.SurvivalTimeSeconds)
}

func TestFeedSyncer_StartSurvivesInitialFetchError(t *testing.T) {
	gw := &gatewayMock{
		FetchLiveFunc: func(context.Context) ([]model.Post, error) { return nil, errors.New("offline") },
	}
	s := NewFeedSyncer(NewFeedStore(), gw, nil, time.Hour, time.Second)

	stop, err := s.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, stop(context.Background()))
	assert.Equal(t, int64(1), s.Refreshes())
}

func TestFeedSyncer_SubscribeErrorFailsStart(t *testing.T) {
	gw := &gatewayMock{
		SubscribeChangesFunc: func(context.Context, func()) (func() error, error) { return nil, errors.New("no redis") },
	}
	s := NewFeedSyncer(NewFeedStore(), gw, nil, time.Hour, time.Second)

	_, err := s.Start(context.Background())
	assert.Error(t, err)
}
