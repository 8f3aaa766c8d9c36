package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/void-feed/internal/model"
	"github.com/d60-Lab/void-feed/internal/repository"
	"github.com/d60-Lab/void-feed/pkg/logger"
)

// RemoteFeedGateway 远端存储边界，引擎里唯一做网络 I/O 的组件
type RemoteFeedGateway interface {
	// FetchLive 所有 is_deleted = false 的帖子，created_at 倒序
	FetchLive(ctx context.Context) ([]model.Post, error)
	// MarkDeleted 一次性写入 is_deleted / deleted_at / deleted_by
	MarkDeleted(ctx context.Context, postID, deletedBy string) error
	// RecordDeletion 追加删除审计；尽力而为
	RecordDeletion(ctx context.Context, postID, deletedBy string) error
	// SubscribeChanges 任意帖子行变更时回调（无增量数据），返回取消订阅函数
	SubscribeChanges(ctx context.Context, onChange func()) (unsubscribe func() error, err error)
}

// DeletionRecordedHook 审计落库后回调，用于让聚合缓存失效
type DeletionRecordedHook func(ctx context.Context, postID, deletedBy string)

type feedGateway struct {
	posts     repository.PostRepository
	deletions repository.DeletionRepository
	rdb       *redis.Client
	channel   string
	hooks     []DeletionRecordedHook
	tracer    trace.Tracer
	now       func() time.Time
}

type GatewayOption func(*feedGateway)

func WithDeletionRecordedHook(h DeletionRecordedHook) GatewayOption {
	return func(g *feedGateway) { g.hooks = append(g.hooks, h) }
}

func NewFeedGateway(posts repository.PostRepository, deletions repository.DeletionRepository, rdb *redis.Client, channel string, opts ...GatewayOption) RemoteFeedGateway {
	g := &feedGateway{
		posts:     posts,
		deletions: deletions,
		rdb:       rdb,
		channel:   channel,
		tracer:    otel.Tracer("github.com/d60-Lab/void-feed/internal/service"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *feedGateway) FetchLive(ctx context.Context) ([]model.Post, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.FetchLive")
	defer span.End()

	posts, err := g.posts.ListLive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list live posts")
		return nil, err
	}
	span.SetAttributes(attribute.Int("feed.live_count", len(posts)))
	return posts, nil
}

func (g *feedGateway) MarkDeleted(ctx context.Context, postID, deletedBy string) error {
	ctx, span := g.tracer.Start(ctx, "gateway.MarkDeleted", trace.WithAttributes(attribute.String("post.id", postID)))
	defer span.End()

	if err := g.posts.MarkDeleted(ctx, postID, deletedBy, g.now().UTC()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark deleted")
		return err
	}
	return nil
}

func (g *feedGateway) RecordDeletion(ctx context.Context, postID, deletedBy string) error {
	ctx, span := g.tracer.Start(ctx, "gateway.RecordDeletion", trace.WithAttributes(attribute.String("post.id", postID)))
	defer span.End()

	created, err := g.deletions.Create(ctx, postID, deletedBy, g.now().UTC())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record deletion")
		return err
	}
	if created {
		for _, h := range g.hooks {
			h(ctx, postID, deletedBy)
		}
	}
	return nil
}

func (g *feedGateway) SubscribeChanges(ctx context.Context, onChange func()) (func() error, error) {
	pubsub := g.rdb.Subscribe(ctx, g.channel)
	// 等待订阅确认，之后的 PUBLISH 不会丢
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", g.channel, err)
	}

	msgs := pubsub.Channel()
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev model.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err == nil {
					logger.Debug("post change received", zap.String("post", ev.PostID), zap.String("op", string(ev.Op)))
				}
				onChange()
			}
		}
	}()

	var once sync.Once
	var closeErr error
	return func() error {
		once.Do(func() {
			close(stop)
			closeErr = pubsub.Close()
			<-done
		})
		return closeErr
	}, nil
}
