package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/void-feed/pkg/logger"
)

// FeedSyncer 保持 FeedStore 与远端一致：首次拉取、变更通知触发全量重拉、每秒 tick
type FeedSyncer struct {
	store        *FeedStore
	gateway      RemoteFeedGateway
	notices      Notifier
	tickInterval time.Duration
	fetchTimeout time.Duration

	refreshMu sync.Mutex
	refreshes int64
	lastErr   error
}

func NewFeedSyncer(store *FeedStore, gateway RemoteFeedGateway, notices Notifier, tickInterval, fetchTimeout time.Duration) *FeedSyncer {
	if notices == nil {
		notices = discardNotifier{}
	}
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 5 * time.Second
	}
	return &FeedSyncer{store: store, gateway: gateway, notices: notices, tickInterval: tickInterval, fetchTimeout: fetchTimeout}
}

// Refresh 全量拉取并 reconcile。失败时保留原列表并返回 *FetchError。
// 多个 Refresh 串行执行，避免旧快照覆盖新快照。
func (s *FeedSyncer) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	posts, err := s.gateway.FetchLive(ctx)
	s.refreshes++
	if err != nil {
		s.lastErr = err
		logger.Warn("fetch live posts failed", zap.Error(err))
		s.notices.Notify(Notice{Code: NoticeErrorLoadingFeed, Message: "could not load the feed", Level: NoticeWarning})
		return &FetchError{Err: err}
	}
	s.lastErr = nil
	s.store.Reconcile(posts)
	return nil
}

// Refreshes 已执行的拉取次数（含失败）
func (s *FeedSyncer) Refreshes() int64 {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.refreshes
}

// Start 首次拉取失败不阻止启动，订阅失败则返回错误。
// 返回的停止函数取消订阅并停掉 ticker 和刷新循环。
func (s *FeedSyncer) Start(ctx context.Context) (func(context.Context) error, error) {
	var fe *FetchError
	if err := s.Refresh(ctx); err != nil && !errors.As(err, &fe) {
		return nil, err
	}

	// 容量 1：刷新进行中到达的多次通知合并为一次
	pokes := make(chan struct{}, 1)
	unsubscribe, err := s.gateway.SubscribeChanges(ctx, func() {
		select {
		case pokes <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.store.Tick()
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-pokes:
				_ = s.Refresh(loopCtx)
			}
		}
	}()

	var once sync.Once
	var stopErr error
	return func(stopCtx context.Context) error {
		once.Do(func() {
			stopErr = unsubscribe()
			cancel()
			done := make(chan struct{})
			go func() { wg.Wait(); close(done) }()
			select {
			case <-done:
			case <-stopCtx.Done():
				if stopErr == nil {
					stopErr = stopCtx.Err()
				}
			}
		})
		return stopErr
	}, nil
}

// LastError 最近一次拉取的错误，成功后清空
func (s *FeedSyncer) LastError() error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.lastErr
}
