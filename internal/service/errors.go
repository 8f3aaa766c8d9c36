package service

import (
	"errors"
	"fmt"

	"github.com/d60-Lab/void-feed/internal/repository"
)

var (
	// ErrUnauthorized 未登录用户尝试删除
	ErrUnauthorized = errors.New("authorization required to delete posts")

	ErrPostNotFound   = repository.ErrPostNotFound
	ErrAlreadyDeleted = repository.ErrAlreadyDeleted
)

// PersistenceError 标记删除写入失败，乐观删除已回滚
type PersistenceError struct {
	PostID string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist deletion of %s: %v", e.PostID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// AuditError 删除记录写入失败，只记录日志
type AuditError struct {
	PostID string
	Err    error
}

func (e *AuditError) Error() string {
	return fmt.Sprintf("record deletion of %s: %v", e.PostID, e.Err)
}

func (e *AuditError) Unwrap() error { return e.Err }

// FetchError 拉取在线帖子失败，本地列表保持不变
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch live posts: %v", e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }
