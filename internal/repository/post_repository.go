package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/void-feed/internal/model"
)

var (
	ErrPostNotFound   = errors.New("post not found")
	ErrAlreadyDeleted = errors.New("post already deleted")
)

type PostRepository interface {
	// Create 写入帖子并在同一事务内追加 insert 变更
	Create(ctx context.Context, post *model.Post) error
	// Get 按 ID 查询（含已删除）
	Get(ctx context.Context, id string) (*model.Post, error)
	// ListLive 全部未删除帖子，created_at 倒序
	ListLive(ctx context.Context) ([]model.Post, error)
	// MarkDeleted 软删除并追加 delete 变更，一个事务
	MarkDeleted(ctx context.Context, id, deletedBy string, at time.Time) error
}

type postRepository struct {
	db      *gorm.DB
	changes ChangeRepository
}

func NewPostRepository(db *gorm.DB, changes ChangeRepository) PostRepository {
	return &postRepository{db: db, changes: changes}
}

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	if post.ID == "" {
		post.ID = uuid.New().String()
	}
	if err := post.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		return r.changes.Append(ctx, tx, post.ID, model.ChangeInsert)
	})
}

func (r *postRepository) Get(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postRepository) ListLive(ctx context.Context) ([]model.Post, error) {
	var res []model.Post
	err := r.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Order("created_at DESC").
		Order("id DESC").
		Find(&res).Error
	return res, err
}

func (r *postRepository) MarkDeleted(ctx context.Context, id, deletedBy string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Post{}).
			Where("id = ? AND is_deleted = ?", id, false).
			Updates(map[string]any{
				"is_deleted": true,
				"deleted_at": at,
				"deleted_by": deletedBy,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 区分不存在与已被他人删除
			var cnt int64
			if err := tx.Model(&model.Post{}).Where("id = ?", id).Count(&cnt).Error; err != nil {
				return err
			}
			if cnt == 0 {
				return ErrPostNotFound
			}
			return ErrAlreadyDeleted
		}
		return r.changes.Append(ctx, tx, id, model.ChangeDelete)
	})
}
