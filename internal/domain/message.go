package domain

import "time"

// Message 表示投递到临时邮箱的一封邮件。
type Message struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MailboxID  string    `json:"mailboxId" gorm:"type:varchar(36);index;not null"`
	From       string    `json:"from" gorm:"type:varchar(255)"`
	To         string    `json:"to" gorm:"type:varchar(255)"`
	Subject    string    `json:"subject" gorm:"type:varchar(500)"`
	IsRead     bool      `json:"isRead" gorm:"default:false;index"`
	ReceivedAt time.Time `json:"receivedAt"`
	CreatedAt  time.Time `json:"createdAt"`
	Text       string    `json:"text,omitempty" gorm:"type:text"`
	HTML       string    `json:"html,omitempty" gorm:"type:text"`
	Raw        string    `json:"-" gorm:"type:text"`
	// 附件元数据单独存放，查询时填充
	Attachments []*Attachment `json:"attachments,omitempty" gorm:"-"`
}
