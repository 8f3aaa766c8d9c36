package model

import (
	"errors"
	"fmt"
	"time"
)

// PostKind 帖子类型
type PostKind string

const (
	PostKindImage PostKind = "image"
	PostKindQuote PostKind = "quote"
	PostKindMeme  PostKind = "meme"
)

func (k PostKind) Valid() bool {
	switch k {
	case PostKindImage, PostKindQuote, PostKindMeme:
		return true
	}
	return false
}

var ErrContentRequired = errors.New("content is required for quote and meme posts")

// Post 帖子（软删除：is_deleted 一旦为 true 不再回退）
type Post struct {
	ID                  string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Kind                PostKind   `json:"type" gorm:"column:type;type:varchar(8);not null"`
	Content             string     `json:"content" gorm:"type:text"`
	ImageURL            *string    `json:"image_url,omitempty" gorm:"type:text"`
	Author              *string    `json:"author,omitempty" gorm:"type:varchar(64)"`
	CreatedAt           time.Time  `json:"created_at" gorm:"index:idx_post_live_created,priority:2;not null"`
	SurvivalTimeSeconds int64      `json:"survival_time_seconds" gorm:"not null;default:0"`
	IsDeleted           bool       `json:"is_deleted" gorm:"index:idx_post_live_created,priority:1;not null;default:false"`
	DeletedAt           *time.Time `json:"deleted_at,omitempty"`
	DeletedBy           *string    `json:"deleted_by,omitempty" gorm:"type:varchar(36)"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (Post) TableName() string { return "posts" }

// Validate 校验创建时的字段
func (p *Post) Validate() error {
	if !p.Kind.Valid() {
		return fmt.Errorf("unknown post type %q", p.Kind)
	}
	if p.Kind != PostKindImage && p.Content == "" {
		return ErrContentRequired
	}
	return nil
}

// SurvivalLabel 存活时间，m:ss
func (p Post) SurvivalLabel() string {
	s := p.SurvivalTimeSeconds
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// NewerThan 按 created_at 倒序排列时 p 是否排在 o 前面
func (p Post) NewerThan(o Post) bool {
	if p.CreatedAt.Equal(o.CreatedAt) {
		return p.ID > o.ID
	}
	return p.CreatedAt.After(o.CreatedAt)
}
