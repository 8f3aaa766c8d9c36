package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/void-feed/pkg/logger"
)

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// 面向用户的提示代码
const (
	NoticeAccessDenied     = "ACCESS_DENIED"
	NoticePostTerminated   = "POST_TERMINATED"
	NoticePostAlreadyGone  = "POST_ALREADY_GONE"
	NoticeDeletionFailed   = "DELETION_FAILED"
	NoticeErrorLoadingFeed = "ERROR_LOADING_FEED"
)

// Notice 用户可见提示
type Notice struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Level   NoticeLevel `json:"level"`
	PostID  string      `json:"post_id,omitempty"`
	At      time.Time   `json:"at"`
}

type Notifier interface {
	Notify(n Notice)
}

// NoticeLog 定长环形缓冲，只保留最近的提示
type NoticeLog struct {
	mu   sync.Mutex
	buf  []Notice
	next int
	full bool
}

func NewNoticeLog(capacity int) *NoticeLog {
	if capacity <= 0 {
		capacity = 50
	}
	return &NoticeLog{buf: make([]Notice, capacity)}
}

func (l *NoticeLog) Notify(n Notice) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	logger.Debug("notice", zap.String("code", n.Code), zap.String("level", string(n.Level)), zap.String("post", n.PostID))

	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf[l.next] = n
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
}

// Recent 最新在前，limit <= 0 表示全部
func (l *NoticeLog) Recent(limit int) []Notice {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := l.next
	if l.full {
		size = len(l.buf)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]Notice, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (l.next - i + len(l.buf)) % len(l.buf)
		out = append(out, l.buf[idx])
	}
	return out
}

type discardNotifier struct{}

func (discardNotifier) Notify(Notice) {}
