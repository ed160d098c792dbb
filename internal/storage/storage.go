package storage

import (
	"errors"

	"github.com/cjaradhye/burnbox/internal/domain"
)

var (
	// ErrMailboxNotFound 邮箱未找到错误
	ErrMailboxNotFound = errors.New("mailbox not found")
	// ErrMessageNotFound 邮件未找到错误
	ErrMessageNotFound = errors.New("message not found")
	// ErrAttachmentNotFound 附件未找到错误
	ErrAttachmentNotFound = errors.New("attachment not found")
	// ErrUserNotFound 用户未找到错误
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists 用户已存在错误
	ErrUserExists = errors.New("user already exists")
	// ErrAddressTaken 邮箱地址已被占用错误
	ErrAddressTaken = errors.New("address already taken")
)

// MailboxRepository 定义邮箱数据存取操作。
type MailboxRepository interface {
	SaveMailbox(mailbox *domain.Mailbox) error
	GetMailbox(id string) (*domain.Mailbox, error)
	GetMailboxByAddress(address string) (*domain.Mailbox, error)
	ListMailboxesByUserID(userID string) []domain.Mailbox
	DeleteMailbox(id string) error
	ListExpiredMailboxes() []domain.Mailbox
	DeleteExpiredMailboxes() (int, error) // 删除过期邮箱，返回删除数量
}

// MessageRepository 定义邮件数据存取操作。
type MessageRepository interface {
	SaveMessage(message *domain.Message) error
	ListMessages(mailboxID string) ([]domain.Message, error)
	GetMessage(mailboxID, messageID string) (*domain.Message, error)
	MarkMessageRead(mailboxID, messageID string) error
	CountMessages(mailboxID string) (total, unread int, err error)
	DeleteMessages(mailboxID string) error
}

// AttachmentRepository 定义附件元数据存取操作，附件内容存放在对象存储。
type AttachmentRepository interface {
	SaveAttachment(attachment *domain.Attachment) error
	GetAttachment(messageID, attachmentID string) (*domain.Attachment, error)
	ListAttachments(messageID string) ([]*domain.Attachment, error)
}

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserBySubject(subject string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	UpdateUser(user *domain.User) error
	UpdateLastLogin(userID string) error
}

// Store 定义完整的存储接口。
type Store interface {
	MailboxRepository
	MessageRepository
	AttachmentRepository
	UserRepository

	// 工具方法
	Close() error
	Health() error
}
