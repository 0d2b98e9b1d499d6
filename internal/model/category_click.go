package model

import "time"

// CategoryClick 用户点击档案分类的累计次数；(user_id, category) 唯一
type CategoryClick struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"-"`
	UserID     string    `gorm:"type:varchar(36);not null;index:idx_click_pair,unique" json:"-"`
	Category   string    `gorm:"type:varchar(50);not null;index:idx_click_pair,unique" json:"category"`
	ClickCount int       `gorm:"not null;default:0" json:"click_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (CategoryClick) TableName() string { return "category_clicks" }
