package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/void-feed/internal/model"
	"github.com/d60-Lab/void-feed/internal/repository"
	"github.com/d60-Lab/void-feed/pkg/logger"
)

// ChangeRelay 从 post_changes 外发盒领取事件并发布到 redis 通知频道
type ChangeRelay struct {
	changes      repository.ChangeRepository
	rdb          *redis.Client
	channel      string
	claimLimit   int
	pollInterval time.Duration
	workers      int
	metricsCh    chan time.Duration // change 写入 -> 发布 的延迟
}

func NewChangeRelay(changes repository.ChangeRepository, rdb *redis.Client, channel string, workers, claimLimit int, pollInterval time.Duration) *ChangeRelay {
	if workers <= 0 {
		workers = 2
	}
	if claimLimit <= 0 {
		claimLimit = 64
	}
	if pollInterval <= 0 {
		pollInterval = 50 * time.Millisecond
	}
	return &ChangeRelay{
		changes:      changes,
		rdb:          rdb,
		channel:      channel,
		claimLimit:   claimLimit,
		pollInterval: pollInterval,
		workers:      workers,
		metricsCh:    make(chan time.Duration, 65536),
	}
}

func (w *ChangeRelay) Metrics() <-chan time.Duration { return w.metricsCh }

// Start 启动若干 worker 轮询外发盒；返回停止函数，等待 worker 退出。
func (w *ChangeRelay) Start() func(context.Context) error {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(stop)
		}()
	}
	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() { close(stop) })
		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *ChangeRelay) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := w.ProcessOnce(context.Background()); err != nil {
				logger.Warn("change relay pass failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce 领取一批 pending 变更并逐条发布，返回成功发布的条数。
// 发布失败的变更退回 pending，下一轮重试（至少一次投递）。
func (w *ChangeRelay) ProcessOnce(ctx context.Context) (int, error) {
	batch, err := w.changes.Claim(ctx, w.claimLimit)
	if err != nil {
		return 0, err
	}
	published := 0
	for _, c := range batch {
		payload, _ := json.Marshal(model.ChangeEvent{PostID: c.PostID, Op: c.Op})
		if err := w.rdb.Publish(ctx, w.channel, payload).Err(); err != nil {
			logger.Warn("publish post change failed", zap.String("change", c.ID), zap.Error(err))
			if rerr := w.changes.Release(ctx, c.ID); rerr != nil {
				logger.Error("release post change failed", zap.String("change", c.ID), zap.Error(rerr))
			}
			continue
		}
		if err := w.changes.MarkDone(ctx, c.ID, time.Now()); err != nil {
			logger.Warn("mark post change done failed", zap.String("change", c.ID), zap.Error(err))
		}
		published++
		if !c.CreatedAt.IsZero() {
			select {
			case w.metricsCh <- time.Since(c.CreatedAt):
			default:
			}
		}
	}
	return published, nil
}
