package model

import "time"

// EvidenceKind 证据类型
type EvidenceKind string

const (
	EvidenceAudio EvidenceKind = "audio"
	EvidenceImage EvidenceKind = "image"
)

// Evidence 故事附带的生成证据（图片或音频）
type Evidence struct {
	ID               string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	StoryID          string       `gorm:"type:varchar(36);not null;index" json:"story_id"`
	Kind             EvidenceKind `gorm:"type:varchar(16);not null" json:"kind"`
	FileRef          string       `gorm:"type:varchar(500);not null" json:"file_ref"`
	Description      string       `gorm:"type:text" json:"description"`
	TriggerCommentID string       `gorm:"type:varchar(36)" json:"trigger_comment_id,omitempty"`
	CreatedAt        time.Time    `gorm:"index" json:"created_at"`
}

func (Evidence) TableName() string { return "evidence" }
