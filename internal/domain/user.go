package domain

import "time"

// User 表示通过 Google 登录的注册用户。
// Subject 为身份提供方的唯一标识（Google sub），也是 JWT 的 subject。
type User struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Subject     string     `json:"-" gorm:"column:subject;type:varchar(255);uniqueIndex;not null"`
	Email       string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Name        string     `json:"name" gorm:"type:varchar(255)"`
	Picture     string     `json:"picture,omitempty" gorm:"type:varchar(500)"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}
