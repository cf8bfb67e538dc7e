package model

import "time"

// User is a study-room account. Exp is account-level progression, separate
// from creature experience.
type User struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email           string     `gorm:"uniqueIndex;size:128;not null" json:"email"`
	PasswordHash    string     `gorm:"size:64;not null" json:"-"`
	Nickname        string     `gorm:"size:32" json:"nickname"`
	Exp             int        `gorm:"default:0;not null" json:"exp"`
	DrowsinessCount int        `gorm:"default:0;not null" json:"drowsiness_count"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	LastLoginAt     *time.Time `json:"last_login_at"`
}
