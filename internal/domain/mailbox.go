package domain

import (
	"time"
)

// Mailbox 表示一个有生命期的临时邮箱，归属于创建它的用户。
type Mailbox struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Address       string    `json:"emailAddress" gorm:"type:varchar(255);uniqueIndex"`
	LocalPart     string    `json:"-" gorm:"type:varchar(255)"`
	Domain        string    `json:"-" gorm:"type:varchar(100);index"`
	UserID        string    `json:"userId" gorm:"type:varchar(36);index;not null"`
	Lifespan      int       `json:"lifespan"` // 生命期，单位为天
	BurnAfterRead bool      `json:"burnAfterRead"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiryTime"`
	TotalCount    int       `json:"totalCount" gorm:"-"`
	Unread        int       `json:"unread" gorm:"-"`
}

// ExpiredAt 判断邮箱在给定时刻是否已过期。
func (m *Mailbox) ExpiredAt(now time.Time) bool {
	return !m.ExpiresAt.After(now)
}

// MailboxStatus 是状态查询接口返回的快照。
type MailboxStatus struct {
	ID            string    `json:"id"`
	Address       string    `json:"emailAddress"`
	BurnAfterRead bool      `json:"burnAfterRead"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiryTime"`
	Active        bool      `json:"active"`
	MessageCount  int       `json:"messageCount"`
}
