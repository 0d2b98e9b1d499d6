package model

import "time"

// Comment 评论；AI 回复的作者为空（由故事本身发出）
type Comment struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	StoryID   string    `gorm:"type:varchar(36);not null;index:idx_comment_story_created,priority:1" json:"story_id"`
	AuthorID  *string   `gorm:"type:varchar(36);index" json:"author_id,omitempty"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	IsAIReply bool      `gorm:"not null;default:false" json:"is_ai_reply"`
	CreatedAt time.Time `gorm:"index:idx_comment_story_created,priority:2" json:"created_at"`
}

func (Comment) TableName() string { return "comments" }
