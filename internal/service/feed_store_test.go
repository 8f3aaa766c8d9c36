package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/void-feed/internal/model"
)

var t0 = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func post(id string, createdOffset time.Duration) model.Post {
	return model.Post{ID: id, Kind: model.PostKindQuote, Content: "content " + id, CreatedAt: t0.Add(createdOffset)}
}

func liveIDs(s *FeedStore) []string {
	snap := s.Snapshot()
	ids := make([]string, len(snap.Posts))
	for i, p := range snap.Posts {
		ids[i] = p.ID
	}
	return ids
}

func TestFeedStore_ReconcileOrdersNewestFirst(t *testing.T) {
	s := NewFeedStore()
	s.Reconcile([]model.Post{post("p1", 0), post("p3", 2*time.Minute), post("p2", time.Minute)})

	assert.Equal(t, []string{"p3", "p2", "p1"}, liveIDs(s))
	assert.Equal(t, 3, s.Stats().Active)
}

func TestFeedStore_ReconcileDropsDeletedAndDuplicates(t *testing.T) {
	s := NewFeedStore()
	gone := post("p2", time.Minute)
	gone.IsDeleted = true
	s.Reconcile([]model.Post{post("p1", 0), gone, post("p1", 0)})

	assert.Equal(t, []string{"p1"}, liveIDs(s))
}

// 确认删除：帖子离开在线集合，删除数 +1
func TestFeedStore_DeleteCommitted(t *testing.T) {
	s := NewFeedStore()
	s.Reconcile([]model.Post{post("p1", 0), post("p2", time.Minute)})

	_, ok := s.BeginOptimisticDelete("p1")
	require.True(t, ok)
	require.True(t, s.ConfirmDelete("p1"))

	assert.Equal(t, []string{"p2"}, liveIDs(s))
	assert.Equal(t, FeedStats{Active: 1, Deleted: 1, Efficiency: 50}, s.Stats())
}

func TestFeedStore_BeginIsIdempotent(t *testing.T) {
	s := NewFeedStore()
	s.Reconcile([]model.Post{post("p1", 0), post("p2", time.Minute)})

	orig, ok := s.BeginOptimisticDelete("p1")
	require.True(t, ok)
	assert.Equal(t, "p1", orig.ID)

	_, again := s.BeginOptimisticDelete("p1")
	assert.False(t, again)
	_, missing := s.BeginOptimisticDelete("nope")
	assert.False(t, missing)

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.Pending)
	assert.Equal(t, []string{"p2"}, liveIDs(s))

	assert.True(t, s.ConfirmDelete("p1"))
	assert.False(t, s.ConfirmDelete("p1"), "second confirm must not double count")
	assert.Equal(t, 1, s.Stats().Deleted)
}

// 持久化失败：帖子回到原来的 created_at 位置，统计不变
func TestFeedStore_RollbackRestoresPosition(t *testing.T) {
	s := NewFeedStore()
	s.Reconcile([]model.Post{post("p1", 0), post("p2", time.Minute), post("p3", 2*time.Minute)})
	before := s.Stats()

	orig, ok := s.BeginOptimisticDelete("p2")
	require.True(t, ok)
	assert.Equal(t, []string{"p3", "p1"}, liveIDs(s))

	require.True(t, s.RollbackDelete("p2", orig))
	assert.Equal(t, []string{"p3", "p2", "p1"}, liveIDs(s))
	assert.Equal(t, before, s.Stats())
	assert.False(t, s.IsPending("p2"))
}

func TestFeedStore_RollbackEdges(t *testing.T) {
	s := NewFeedStore()
	s.Reconcile([]model.Post{post("p1", 0), post("p2", time.Minute)})

	newest, _ := s.BeginOptimisticDelete("p2")
	oldest, _ := s.BeginOptimisticDelete("p1")
	assert.Empty(t, liveIDs(s))

	require.True(t, s.RollbackDelete("p1", oldest))
	require.True(t, s.RollbackDelete("p2", newest))
	assert.Equal(t, []string{"p2", "p1"}, liveIDs(s))

	assert.False(t, s.RollbackDelete("p1", oldest), "not pending")
}

// 远端快照尚未追上本地删除时，动画中的帖子不会闪回
func TestFeedStore_ReconcileHoldsBackPending(t *testing.T) {
	s := NewFeedStore()
	stale := []model.Post{post("p1", 0), post("p2", time.Minute)}
	s.Reconcile(stale)

	_, ok := s.BeginOptimisticDelete("p1")
	require.True(t, ok)

	s.Reconcile(stale)
	assert.Equal(t, []string{"p2"}, liveIDs(s))
	assert.True(t, s.IsPending("p1"))
	_, live := s.Get("p1")
	assert.False(t, live)
}

func TestFeedStore_ReconcileHoldsBackConfirmed(t *testing.T) {
	s := NewFeedStore()
	stale := []model.Post{post("p1", 0), post("p2", time.Minute)}
	s.Reconcile(stale)
	s.BeginOptimisticDelete("p1")
	s.ConfirmDelete("p1")

	s.Reconcile(stale)
	assert.Equal(t, []string{"p2"}, liveIDs(s))
	assert.Equal(t, FeedStats{Active: 1, Deleted: 1, Efficiency: 50}, s.Stats())
}

func TestFeedStore_ConfirmedReleasedOnceRemoteCatchesUp(t *testing.T) {
	s := NewFeedStore()
	stale := []model.Post{post("p1", 0), post("p2", time.Minute)}
	s.Reconcile(stale)
	s.BeginOptimisticDelete("p1")
	s.ConfirmDelete("p1")

	s.Reconcile(stale)
	assert.Len(t, s.confirmed, 1)

	s.Reconcile([]model.Post{post("p2", time.Minute)})
	assert.Empty(t, s.confirmed)
	assert.Equal(t, []string{"p2"}, liveIDs(s))
	assert.Equal(t, 1, s.Stats().Deleted)
}

func TestFeedSnapshot_StatsMatchPosts(t *testing.T) {
	s := NewFeedStore()
	s.Reconcile([]model.Post{post("p1", 0), post("p2", time.Minute), post("p3", 2*time.Minute)})
	s.BeginOptimisticDelete("p1")
	s.ConfirmDelete("p1")

	snap := s.Snapshot()
	st := snap.Stats()
	assert.Equal(t, len(snap.Posts), st.Active)
	assert.Equal(t, FeedStats{Active: 2, Deleted: 1, Efficiency: 33}, st)
	assert.Equal(t, s.Stats(), st)
}

func TestFeedStore_ReconcileRemovesRemotelyDeleted(t *testing.T) {
	s := NewFeedStore()
	s.Reconcile([]model.Post{post("p1", 0), post("p2", time.Minute)})
	s.Reconcile([]model.Post{post("p2", time.Minute)})

	assert.Equal(t, []string{"p2"}, liveIDs(s))
	assert.Equal(t, 0, s.Stats().Deleted, "other users' deletions are not session deletions")
}

func TestFeedStore_DiscardPending(t *testing.T) {
	s := NewFeedStore()
	s.Reconcile([]model.Post{post("p1", 0)})
	s.BeginOptimisticDelete("p1")

	assert.True(t, s.DiscardPending("p1"))
	assert.False(t, s.DiscardPending("p1"))
	assert.Equal(t, FeedStats{}, s.Stats())

	s.Reconcile([]model.Post{post("p1", 0)})
	assert.Empty(t, liveIDs(s))
}

func TestFeedStore_TickOnlyLive(t *testing.T) {
	s := NewFeedStore()
	s.Reconcile([]model.Post{post("p1", 0), post("p2", time.Minute)})
	s.Tick()
	frozen, _ := s.BeginOptimisticDelete("p1")
	s.Tick()
	s.Tick()

	p2, ok := s.Get("p2")
	require.True(t, ok)
	assert.EqualValues(t, 3, p2.SurvivalTimeSeconds)
	assert.EqualValues(t, 1, frozen.SurvivalTimeSeconds)

	require.True(t, s.RollbackDelete("p1", frozen))
	p1, _ := s.Get("p1")
	assert.EqualValues(t, 1, p1.SurvivalTimeSeconds)
}

func TestFeedStore_ReconcileKeepsSurvivalMonotonic(t *testing.T) {
	s := NewFeedStore()
	s.Reconcile([]model.Post{post("p1", 0)})
	for i := 0; i < 5; i++ {
		s.Tick()
	}
	s.Reconcile([]model.Post{post("p1", 0)})
	p1, _ := s.Get("p1")
	assert.EqualValues(t, 5, p1.SurvivalTimeSeconds)

	ahead := post("p1", 0)
	ahead.SurvivalTimeSeconds = 42
	s.Reconcile([]model.Post{ahead})
	p1, _ = s.Get("p1")
	assert.EqualValues(t, 42, p1.SurvivalTimeSeconds)
}

func TestComputeStats(t *testing.T) {
	assert.Equal(t, FeedStats{}, computeStats(0, 0))
	assert.Equal(t, FeedStats{Active: 0, Deleted: 3, Efficiency: 100}, computeStats(0, 3))
	assert.Equal(t, FeedStats{Active: 2, Deleted: 1, Efficiency: 33}, computeStats(2, 1))
	assert.Equal(t, FeedStats{Active: 1, Deleted: 2, Efficiency: 67}, computeStats(1, 2))

	for a := 0; a < 30; a++ {
		for d := 0; d < 30; d++ {
			st := computeStats(a, d)
			assert.GreaterOrEqual(t, st.Efficiency, 0)
			assert.LessOrEqual(t, st.Efficiency, 100)
		}
	}
}

func TestFeedStore_SnapshotIsCopy(t *testing.T) {
	s := NewFeedStore()
	s.Reconcile([]model.Post{post("p1", 0)})
	snap := s.Snapshot()
	snap.Posts[0].Content = "mutated"

	p1, _ := s.Get("p1")
	assert.Equal(t, "content p1", p1.Content)
}
