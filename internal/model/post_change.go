package model

import "time"

// ChangeOp 帖子行变更类型
type ChangeOp string

const (
	ChangeInsert ChangeOp = "insert"
	ChangeUpdate ChangeOp = "update"
	ChangeDelete ChangeOp = "delete"
)

const (
	ChangeStatusPending    = "pending"
	ChangeStatusProcessing = "processing"
	ChangeStatusDone       = "done"
)

// PostChange 变更外发盒：与帖子写入同一事务落库，由 relay 推送到 redis
type PostChange struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	PostID      string    `gorm:"type:varchar(36);index"`
	Op          ChangeOp  `gorm:"type:varchar(8)"`
	Status      string    `gorm:"type:varchar(16);index"` // pending, processing, done
	CreatedAt   time.Time `gorm:"index"`
	ProcessedAt *time.Time
}

func (PostChange) TableName() string { return "post_changes" }

// ChangeEvent 推送到通知频道的消息体；订阅方只把它当作“需要重新拉取”的信号
type ChangeEvent struct {
	PostID string   `json:"post_id"`
	Op     ChangeOp `json:"op"`
}
