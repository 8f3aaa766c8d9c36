package model

import "time"

// DeletionRecord 删除审计（谁删了哪条帖子），每个帖子至多一条
type DeletionRecord struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PostID    string    `json:"post_id" gorm:"type:varchar(36);uniqueIndex:ux_deletion_post;not null"`
	DeletedBy string    `json:"deleted_by" gorm:"type:varchar(36);index:idx_deletion_user;not null"`
	DeletedAt time.Time `json:"deleted_at" gorm:"not null"`
}

func (DeletionRecord) TableName() string { return "deletions" }
