package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/void-feed/internal/model"
)

// DeleterCount 某用户删除的帖子数
type DeleterCount struct {
	UserID string `json:"user_id"`
	Count  int64  `json:"count"`
}

type DeletionRepository interface {
	// Create 幂等：同一帖子重复写入不报错，created 表示是否真的落了新行
	Create(ctx context.Context, postID, deletedBy string, at time.Time) (created bool, err error)
	GetByPost(ctx context.Context, postID string) (*model.DeletionRecord, error)
	// CountByDeleter 按删除者聚合，计数倒序
	CountByDeleter(ctx context.Context) ([]DeleterCount, error)
}

type deletionRepository struct{ db *gorm.DB }

func NewDeletionRepository(db *gorm.DB) DeletionRepository { return &deletionRepository{db: db} }

func (r *deletionRepository) Create(ctx context.Context, postID, deletedBy string, at time.Time) (bool, error) {
	rec := &model.DeletionRecord{ID: uuid.New().String(), PostID: postID, DeletedBy: deletedBy, DeletedAt: at}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *deletionRepository) GetByPost(ctx context.Context, postID string) (*model.DeletionRecord, error) {
	var rec model.DeletionRecord
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *deletionRepository) CountByDeleter(ctx context.Context) ([]DeleterCount, error) {
	var rows []DeleterCount
	err := r.db.WithContext(ctx).
		Model(&model.DeletionRecord{}).
		Select("deleted_by AS user_id, COUNT(*) AS count").
		Group("deleted_by").
		Order("count DESC").
		Scan(&rows).Error
	return rows, err
}
