package handler

import (
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/d60-Lab/void-feed/internal/model"
	"github.com/d60-Lab/void-feed/internal/service"
)

// PostView 客户端看到的帖子，文本已去除 HTML
type PostView struct {
	ID            string         `json:"id"`
	Type          model.PostKind `json:"type"`
	Content       string         `json:"content"`
	ImageURL      *string        `json:"image_url,omitempty"`
	Author        *string        `json:"author,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	SurvivalTime  int64          `json:"survival_time_seconds"`
	SurvivalLabel string         `json:"survival_label"`
	Variant       model.Variant  `json:"variant"`
}

type FeedView struct {
	Posts   []PostView        `json:"posts"`
	Pending int               `json:"pending"`
	Stats   service.FeedStats `json:"stats"`
}

type audioRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func toPostView(p model.Post, policy *bluemonday.Policy) PostView {
	v := PostView{
		ID:            p.ID,
		Type:          p.Kind,
		Content:       policy.Sanitize(p.Content),
		CreatedAt:     p.CreatedAt,
		SurvivalTime:  p.SurvivalTimeSeconds,
		SurvivalLabel: p.SurvivalLabel(),
		Variant:       service.Classify(p.ID),
	}
	if p.Author != nil {
		a := policy.Sanitize(*p.Author)
		v.Author = &a
	}
	if p.ImageURL != nil {
		u := *p.ImageURL
		v.ImageURL = &u
	}
	return v
}
