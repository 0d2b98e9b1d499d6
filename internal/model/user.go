package model

import "time"

// User 论坛用户；种子用户没有密码
type User struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username     string    `gorm:"type:varchar(80);uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"type:varchar(120);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(128)" json:"-"`
	Avatar       string    `gorm:"type:varchar(200)" json:"avatar,omitempty"`
	IsSeed       bool      `gorm:"not null;default:false;index" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }
