package model

import "time"

// NotificationCategory 通知分类
type NotificationCategory string

const (
	CategoryComment  NotificationCategory = "comment"
	CategoryEvidence NotificationCategory = "evidence"
)

// NotificationType 通知类型
type NotificationType string

const (
	TypeNewReply       NotificationType = "new_reply"
	TypeAIReply        NotificationType = "ai_reply"
	TypeStoryUpdate    NotificationType = "story_update"
	TypeEvidenceUpdate NotificationType = "evidence_update"
)

// Notification 站内通知（收件箱）
type Notification struct {
	ID          string               `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RecipientID string               `gorm:"type:varchar(36);not null;index:idx_notification_recipient,priority:1" json:"recipient_id"`
	StoryID     string               `gorm:"type:varchar(36);index" json:"story_id"`
	CommentID   *string              `gorm:"type:varchar(36)" json:"comment_id,omitempty"`
	Category    NotificationCategory `gorm:"type:varchar(16);not null" json:"category"`
	Type        NotificationType     `gorm:"type:varchar(32);not null" json:"type"`
	Content     string               `gorm:"type:text;not null" json:"content"`
	IsRead      bool                 `gorm:"not null;default:false" json:"is_read"`
	CreatedAt   time.Time            `gorm:"index:idx_notification_recipient,priority:2" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
