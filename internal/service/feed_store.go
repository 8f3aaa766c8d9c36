package service

import (
	"math"
	"sort"
	"sync"

	"github.com/d60-Lab/void-feed/internal/model"
)

// FeedStats 统计栏数据
type FeedStats struct {
	Active     int `json:"active"`
	Deleted    int `json:"deleted"`
	Efficiency int `json:"efficiency"`
}

// FeedSnapshot 当前视图：在线帖子（新到旧）、动画中的删除数、本会话删除数
type FeedSnapshot struct {
	Posts   []model.Post `json:"posts"`
	Pending int          `json:"pending"`
	Deleted int          `json:"deleted"`
}

// Stats 由同一次快照计算，与 Posts 一致
func (f FeedSnapshot) Stats() FeedStats {
	return computeStats(len(f.Posts), f.Deleted)
}

// FeedStore 本地在线帖子视图，乐观删除与对账都通过它完成。
// live 与 pending 始终不相交；所有操作同步执行，只触碰给定 ID 与计数器。
type FeedStore struct {
	mu        sync.Mutex
	live      []model.Post // created_at 倒序
	pending   map[string]model.Post
	confirmed map[string]struct{} // 本会话已确认删除，避免陈旧快照把帖子带回来
	deleted   int
}

func NewFeedStore() *FeedStore {
	return &FeedStore{
		pending:   make(map[string]model.Post),
		confirmed: make(map[string]struct{}),
	}
}

// Reconcile 以远端快照替换在线集合；pending 与已确认删除的 ID 不会重新出现。
// 已知帖子的存活秒数取本地与远端的较大值。远端快照里已不在线的确认删除 ID 随之释放。
func (s *FeedStore) Reconcile(remote []model.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remoteLive := make(map[string]struct{}, len(remote))
	for _, p := range remote {
		if !p.IsDeleted {
			remoteLive[p.ID] = struct{}{}
		}
	}
	for id := range s.confirmed {
		if _, ok := remoteLive[id]; !ok {
			delete(s.confirmed, id)
		}
	}

	known := make(map[string]int64, len(s.live))
	for _, p := range s.live {
		known[p.ID] = p.SurvivalTimeSeconds
	}

	next := make([]model.Post, 0, len(remote))
	seen := make(map[string]struct{}, len(remote))
	for _, p := range remote {
		if p.IsDeleted {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		if _, ok := s.pending[p.ID]; ok {
			continue
		}
		if _, ok := s.confirmed[p.ID]; ok {
			continue
		}
		if local, ok := known[p.ID]; ok && local > p.SurvivalTimeSeconds {
			p.SurvivalTimeSeconds = local
		}
		seen[p.ID] = struct{}{}
		next = append(next, p)
	}
	sort.SliceStable(next, func(i, j int) bool { return next[i].NewerThan(next[j]) })
	s.live = next
}

// BeginOptimisticDelete 把帖子从在线集合移到 pending。
// ID 不在线或已在 pending 时不做任何事，返回 false。
func (s *FeedStore) BeginOptimisticDelete(id string) (model.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[id]; ok {
		return model.Post{}, false
	}
	i := s.indexOf(id)
	if i < 0 {
		return model.Post{}, false
	}
	p := s.live[i]
	s.live = append(s.live[:i], s.live[i+1:]...)
	s.pending[id] = p
	return p, true
}

// ConfirmDelete 永久移除并累加本会话删除数；只对 pending 中的 ID 计数一次。
func (s *FeedStore) ConfirmDelete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[id]; !ok {
		return false
	}
	delete(s.pending, id)
	s.removeLive(id)
	s.confirmed[id] = struct{}{}
	s.deleted++
	return true
}

// DiscardPending 帖子已被别人删除：移出 pending，不计数。
func (s *FeedStore) DiscardPending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[id]; !ok {
		return false
	}
	delete(s.pending, id)
	s.removeLive(id)
	s.confirmed[id] = struct{}{}
	return true
}

// RollbackDelete 持久化失败：按 created_at 放回原位置，不计数。
func (s *FeedStore) RollbackDelete(id string, original model.Post) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[id]; !ok {
		return false
	}
	delete(s.pending, id)
	if s.indexOf(id) >= 0 {
		return true
	}
	original.IsDeleted = false
	original.DeletedAt = nil
	original.DeletedBy = nil
	i := sort.Search(len(s.live), func(i int) bool { return original.NewerThan(s.live[i]) })
	s.live = append(s.live, model.Post{})
	copy(s.live[i+1:], s.live[i:])
	s.live[i] = original
	return true
}

// Tick 在线帖子存活秒数 +1
func (s *FeedStore) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.live {
		s.live[i].SurvivalTimeSeconds++
	}
}

func (s *FeedStore) Stats() FeedStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return computeStats(len(s.live), s.deleted)
}

func computeStats(active, deleted int) FeedStats {
	st := FeedStats{Active: active, Deleted: deleted}
	if total := active + deleted; total > 0 {
		st.Efficiency = int(math.Round(float64(deleted) / float64(total) * 100))
	}
	return st
}

// Snapshot 返回拷贝，调用方可自由修改
func (s *FeedStore) Snapshot() FeedSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	posts := make([]model.Post, len(s.live))
	copy(posts, s.live)
	return FeedSnapshot{Posts: posts, Pending: len(s.pending), Deleted: s.deleted}
}

// Get 查询在线帖子
func (s *FeedStore) Get(id string) (model.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.live[i], true
	}
	return model.Post{}, false
}

// IsPending 是否处于删除动画/持久化中
func (s *FeedStore) IsPending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

func (s *FeedStore) indexOf(id string) int {
	for i := range s.live {
		if s.live[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *FeedStore) removeLive(id string) {
	if i := s.indexOf(id); i >= 0 {
		s.live = append(s.live[:i], s.live[i+1:]...)
	}
}
