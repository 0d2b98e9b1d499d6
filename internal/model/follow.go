package model

import "time"

// Follow 用户关注故事；(user_id, story_id) 唯一，重复关注为空操作
type Follow struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;index:idx_follow_pair,unique" json:"user_id"`
	StoryID   string    `gorm:"type:varchar(36);not null;index:idx_follow_pair,unique;index:idx_follow_story" json:"story_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Follow) TableName() string { return "follows" }
