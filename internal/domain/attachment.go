package domain

// Attachment 表示邮件附件，内容存放在对象存储中。
type Attachment struct {
	ID          string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MessageID   string `json:"messageId" gorm:"type:varchar(36);index;not null"`
	Filename    string `json:"filename" gorm:"type:varchar(255)"`
	ContentType string `json:"contentType" gorm:"type:varchar(100)"`
	Size        int64  `json:"size"`
	StorageKey  string `json:"-" gorm:"type:varchar(500)"` // 对象存储中的键
	Content     []byte `json:"-" gorm:"-"`
}
