package domain

import "time"

// EventType 表示生命周期事件的种类。
type EventType string

const (
	EventMailboxCreated  EventType = "MAILBOX_CREATED"
	EventMessageReceived EventType = "MESSAGE_RECEIVED"
	EventMailboxExpired  EventType = "MAILBOX_EXPIRED"
)

// 事件发布的主题名
const (
	TopicMailboxEvents = "mailbox-events"
	TopicMessageEvents = "message-events"
)

// MailboxEvent 是邮箱生命周期事件的载荷。
// MAILBOX_EXPIRED 事件额外携带被删除的邮件与附件数量。
type MailboxEvent struct {
	Type               EventType  `json:"eventType"`
	MailboxID          string     `json:"mailboxId"`
	UserID             string     `json:"userId,omitempty"`
	Address            string     `json:"emailAddress"`
	BurnAfterRead      bool       `json:"burnAfterRead,omitempty"`
	ExpiresAt          *time.Time `json:"expiryTime,omitempty"`
	MessagesDeleted    int        `json:"messagesDeleted,omitempty"`
	AttachmentsDeleted int        `json:"attachmentsDeleted,omitempty"`
	Timestamp          time.Time  `json:"timestamp"`
}

// MessageEvent 是邮件到达事件的载荷。
type MessageEvent struct {
	Type           EventType `json:"eventType"`
	MailboxID      string    `json:"mailboxId"`
	MessageID      string    `json:"messageId"`
	From           string    `json:"from"`
	Subject        string    `json:"subject"`
	HasAttachments bool      `json:"hasAttachments"`
	Timestamp      time.Time `json:"timestamp"`
}
