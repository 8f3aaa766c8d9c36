package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/void-feed/internal/model"
)

type ChangeRepository interface {
	// Append 在给定事务内追加一条 pending 变更
	Append(ctx context.Context, tx *gorm.DB, postID string, op model.ChangeOp) error
	// Claim 领取一批 pending 变更并置为 processing
	Claim(ctx context.Context, limit int) ([]model.PostChange, error)
	MarkDone(ctx context.Context, id string, at time.Time) error
	// Release 发送失败时退回 pending，等待下一轮
	Release(ctx context.Context, id string) error
	CountPending(ctx context.Context) (int64, error)
}

type changeRepository struct{ db *gorm.DB }

func NewChangeRepository(db *gorm.DB) ChangeRepository { return &changeRepository{db: db} }

func (r *changeRepository) Append(ctx context.Context, tx *gorm.DB, postID string, op model.ChangeOp) error {
	if tx == nil {
		tx = r.db
	}
	c := &model.PostChange{
		ID:        uuid.New().String(),
		PostID:    postID,
		Op:        op,
		Status:    model.ChangeStatusPending,
		CreatedAt: time.Now(),
	}
	return tx.WithContext(ctx).Create(c).Error
}

func (r *changeRepository) Claim(ctx context.Context, limit int) ([]model.PostChange, error) {
	var batch []model.PostChange
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// sqlite 方言会忽略行锁子句
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", model.ChangeStatusPending).
			Order("created_at").
			Limit(limit).
			Find(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		ids := make([]string, len(batch))
		for i, b := range batch {
			ids[i] = b.ID
		}
		return tx.Model(&model.PostChange{}).Where("id IN ?", ids).Update("status", model.ChangeStatusProcessing).Error
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (r *changeRepository) MarkDone(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.PostChange{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": model.ChangeStatusDone, "processed_at": at}).Error
}

func (r *changeRepository) Release(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.PostChange{}).
		Where("id = ?", id).
		Update("status", model.ChangeStatusPending).Error
}

func (r *changeRepository) CountPending(ctx context.Context) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.PostChange{}).Where("status = ?", model.ChangeStatusPending).Count(&cnt).Error
	return cnt, err
}
