package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/void-feed/internal/model"
	"github.com/d60-Lab/void-feed/pkg/logger"
)

// SoundPlayer 删除流程用到的音效，实现必须非阻塞
type SoundPlayer interface {
	PlayDeleteSound(v model.Variant)
	PlayErrorSound()
	PlaySuccessSound()
}

type DeleteState int

const (
	StateIdle DeleteState = iota
	StateAuthorizing
	StateAnimating
	StatePersisting
	StateCommitted
	StateRolledBack
)

func (s DeleteState) String() string {
	switch s {
	case StateAuthorizing:
		return "authorizing"
	case StateAnimating:
		return "animating"
	case StatePersisting:
		return "persisting"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "idle"
	}
}

type Outcome string

const (
	OutcomeCommitted   Outcome = "committed"
	OutcomeRolledBack  Outcome = "rolled_back"
	OutcomeIgnored     Outcome = "ignored"
	OutcomeAlreadyGone Outcome = "already_gone"
	OutcomeDenied      Outcome = "denied"
)

// DeleteResult 一次删除请求的结果
type DeleteResult struct {
	PostID  string        `json:"post_id"`
	Variant model.Variant `json:"variant,omitempty"`
	Outcome Outcome       `json:"outcome"`
	Stats   FeedStats     `json:"stats"`
}

// WaitFunc 阻塞 d 或直到 ctx 结束
type WaitFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FeedController 串起授权、分类、动画、持久化与回滚
type FeedController struct {
	store   *FeedStore
	gateway RemoteFeedGateway
	sounds  SoundPlayer
	notices Notifier
	audit   AuditSink
	wait    WaitFunc

	persistTimeout time.Duration
	observer       StateObserver

	mu     sync.Mutex
	states map[string]DeleteState

	baseCtx context.Context
	cancel  context.CancelFunc
}

type ControllerOption func(*FeedController)

func WithAuditSink(a AuditSink) ControllerOption {
	return func(c *FeedController) { c.audit = a }
}

func WithWaitFunc(w WaitFunc) ControllerOption {
	return func(c *FeedController) { c.wait = w }
}

// StateObserver 每次状态迁移时回调，包括终态；须快速返回
type StateObserver func(postID string, s DeleteState)

func WithStateObserver(o StateObserver) ControllerOption {
	return func(c *FeedController) { c.observer = o }
}

func WithPersistTimeout(d time.Duration) ControllerOption {
	return func(c *FeedController) {
		if d > 0 {
			c.persistTimeout = d
		}
	}
}

func NewFeedController(store *FeedStore, gateway RemoteFeedGateway, sounds SoundPlayer, notices Notifier, opts ...ControllerOption) *FeedController {
	if notices == nil {
		notices = discardNotifier{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &FeedController{
		store:          store,
		gateway:        gateway,
		sounds:         sounds,
		notices:        notices,
		wait:           sleepCtx,
		persistTimeout: 10 * time.Second,
		states:         make(map[string]DeleteState),
		baseCtx:        ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.audit == nil {
		c.audit = SyncAudit{Recorder: gateway}
	}
	return c
}

// Delete 处理一次删除请求。userID 为空一律返回 ErrUnauthorized；
// 同一帖子已在删除中或不在列表里时返回 OutcomeIgnored 且无副作用。
func (c *FeedController) Delete(ctx context.Context, userID, postID string) (DeleteResult, error) {
	res := DeleteResult{PostID: postID}

	c.observe(postID, StateAuthorizing)
	if userID == "" {
		c.observe(postID, StateIdle)
		c.notices.Notify(Notice{Code: NoticeAccessDenied, Message: "authorization required to delete posts", Level: NoticeError, PostID: postID})
		res.Outcome = OutcomeDenied
		res.Stats = c.store.Stats()
		return res, ErrUnauthorized
	}

	// pending 集合即互斥标记：认领失败说明帖子不在线或已有删除在进行
	original, ok := c.store.BeginOptimisticDelete(postID)
	if !ok {
		res.Outcome = OutcomeIgnored
		res.Stats = c.store.Stats()
		return res, nil
	}

	variant := Classify(postID)
	res.Variant = variant
	c.enter(postID, StateAnimating)
	if c.sounds != nil {
		c.sounds.PlayDeleteSound(variant)
	}

	// 请求方取消或控制器关闭都会中断动画
	waitCtx, stop := context.WithCancel(ctx)
	defer stop()
	unlink := context.AfterFunc(c.baseCtx, stop)
	defer unlink()

	if err := c.wait(waitCtx, variant.Duration()); err != nil {
		c.rollback(postID, original)
		res.Outcome = OutcomeRolledBack
		res.Stats = c.store.Stats()
		return res, fmt.Errorf("delete %s interrupted: %w", postID, err)
	}

	c.enter(postID, StatePersisting)
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.persistTimeout)
	defer cancel()
	err := c.gateway.MarkDeleted(persistCtx, postID, userID)

	switch {
	case err == nil:
		c.store.ConfirmDelete(postID)
		c.leave(postID, StateCommitted)
		c.audit.Record(context.WithoutCancel(ctx), postID, userID)
		c.notices.Notify(Notice{Code: NoticePostTerminated, Message: "post removed from the void", Level: NoticeInfo, PostID: postID})
		if c.sounds != nil {
			c.sounds.PlaySuccessSound()
		}
		logger.Info("post deleted", zap.String("post", postID), zap.String("user", userID), zap.String("variant", string(variant)))
		res.Outcome = OutcomeCommitted

	case errors.Is(err, ErrAlreadyDeleted):
		// 别人先删了：不算本次删除，也不回滚
		c.store.DiscardPending(postID)
		c.leave(postID, StateIdle)
		c.notices.Notify(Notice{Code: NoticePostAlreadyGone, Message: "post was already deleted", Level: NoticeWarning, PostID: postID})
		res.Outcome = OutcomeAlreadyGone

	default:
		c.rollback(postID, original)
		c.notices.Notify(Notice{Code: NoticeDeletionFailed, Message: "deletion failed, post restored", Level: NoticeError, PostID: postID})
		logger.Warn("persist deletion failed", zap.String("post", postID), zap.Error(err))
		res.Outcome = OutcomeRolledBack
		res.Stats = c.store.Stats()
		return res, &PersistenceError{PostID: postID, Err: err}
	}

	res.Stats = c.store.Stats()
	return res, nil
}

func (c *FeedController) rollback(postID string, original model.Post) {
	c.store.RollbackDelete(postID, original)
	c.leave(postID, StateRolledBack)
	if c.sounds != nil {
		c.sounds.PlayErrorSound()
	}
}

// State 帖子当前所处的删除阶段；只记录进行中的删除，结束后回到 StateIdle
func (c *FeedController) State(postID string) DeleteState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[postID]
}

// Close 中断所有还在动画中的删除，它们会回滚
func (c *FeedController) Close() { c.cancel() }

// enter 仅由持有 pending 认领的请求调用
func (c *FeedController) enter(postID string, s DeleteState) {
	c.mu.Lock()
	c.states[postID] = s
	c.mu.Unlock()
	c.observe(postID, s)
}

// leave 到达终态，释放进行中记录
func (c *FeedController) leave(postID string, s DeleteState) {
	c.mu.Lock()
	delete(c.states, postID)
	c.mu.Unlock()
	c.observe(postID, s)
}

func (c *FeedController) observe(postID string, s DeleteState) {
	if c.observer != nil {
		c.observer(postID, s)
	}
}
