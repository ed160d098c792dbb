package memory

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cjaradhye/burnbox/internal/domain"
	"github.com/cjaradhye/burnbox/internal/storage"
)

// Store 使用内存保存邮箱与邮件数据，主要用于开发验证和测试。
// 过期判断交给服务层，存储本身只在清理接口中删除过期数据。
type Store struct {
	mu        sync.RWMutex
	mailboxes map[string]*domain.Mailbox
	byAddress map[string]string
	messages  map[string]map[string]*domain.Message // mailboxID -> messageID -> message

	attachments  map[string]map[string]*domain.Attachment // messageID -> attachmentID -> attachment
	users        map[string]*domain.User                  // userID -> user
	bySubject    map[string]string                        // subject -> userID
	byEmail      map[string]string                        // email -> userID
	mailboxOwner map[string]map[string]struct{}           // userID -> mailboxID 集合
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		mailboxes:    make(map[string]*domain.Mailbox),
		byAddress:    make(map[string]string),
		messages:     make(map[string]map[string]*domain.Message),
		attachments:  make(map[string]map[string]*domain.Attachment),
		users:        make(map[string]*domain.User),
		bySubject:    make(map[string]string),
		byEmail:      make(map[string]string),
		mailboxOwner: make(map[string]map[string]struct{}),
	}
}

// SaveMailbox 保存邮箱信息。
func (s *Store) SaveMailbox(mailbox *domain.Mailbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byAddress[mailbox.Address]; ok && existingID != mailbox.ID {
		return storage.ErrAddressTaken
	}

	s.mailboxes[mailbox.ID] = mailbox
	s.byAddress[mailbox.Address] = mailbox.ID
	if mailbox.UserID != "" {
		if _, ok := s.mailboxOwner[mailbox.UserID]; !ok {
			s.mailboxOwner[mailbox.UserID] = make(map[string]struct{})
		}
		s.mailboxOwner[mailbox.UserID][mailbox.ID] = struct{}{}
	}
	return nil
}

// GetMailbox 根据 ID 获取邮箱。
func (s *Store) GetMailbox(id string) (*domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mailbox, ok := s.mailboxes[id]
	if !ok {
		return nil, storage.ErrMailboxNotFound
	}
	copied := *mailbox
	s.fillCountsLocked(&copied)
	return &copied, nil
}

// GetMailboxByAddress 根据完整地址获取邮箱。
func (s *Store) GetMailboxByAddress(address string) (*domain.Mailbox, error) {
	s.mu.RLock()
	id, ok := s.byAddress[address]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrMailboxNotFound
	}
	return s.GetMailbox(id)
}

// ListMailboxesByUserID 返回指定用户的全部邮箱，按创建时间排序。
func (s *Store) ListMailboxesByUserID(userID string) []domain.Mailbox {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Mailbox, 0)
	for id := range s.mailboxOwner[userID] {
		if mb, ok := s.mailboxes[id]; ok {
			copied := *mb
			s.fillCountsLocked(&copied)
			result = append(result, copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// DeleteMailbox 删除指定邮箱及其全部邮件。
func (s *Store) DeleteMailbox(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mailboxes[id]; !ok {
		return storage.ErrMailboxNotFound
	}
	s.deleteMailboxLocked(id)
	return nil
}

// ListExpiredMailboxes 返回当前已过期的邮箱快照。
func (s *Store) ListExpiredMailboxes() []domain.Mailbox {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	result := make([]domain.Mailbox, 0)
	for _, mb := range s.mailboxes {
		if mb.ExpiredAt(now) {
			result = append(result, *mb)
		}
	}
	return result
}

// DeleteExpiredMailboxes 删除所有过期的邮箱，返回删除数量。
func (s *Store) DeleteExpiredMailboxes() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	now := time.Now()
	for id, mb := range s.mailboxes {
		if mb.ExpiredAt(now) {
			s.deleteMailboxLocked(id)
			count++
		}
	}
	return count, nil
}

func (s *Store) deleteMailboxLocked(id string) {
	if mb, ok := s.mailboxes[id]; ok {
		delete(s.byAddress, mb.Address)
		if owned, ok := s.mailboxOwner[mb.UserID]; ok {
			delete(owned, id)
		}
	}
	for msgID := range s.messages[id] {
		delete(s.attachments, msgID)
	}
	delete(s.mailboxes, id)
	delete(s.messages, id)
}

func (s *Store) fillCountsLocked(mb *domain.Mailbox) {
	mb.TotalCount = 0
	mb.Unread = 0
	for _, msg := range s.messages[mb.ID] {
		mb.TotalCount++
		if !msg.IsRead {
			mb.Unread++
		}
	}
}

// SaveMessage 保存邮件信息。
func (s *Store) SaveMessage(message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mailboxes[message.MailboxID]; !ok {
		return storage.ErrMailboxNotFound
	}

	if _, ok := s.messages[message.MailboxID]; !ok {
		s.messages[message.MailboxID] = make(map[string]*domain.Message)
	}
	s.messages[message.MailboxID][message.ID] = message
	return nil
}

// ListMessages 返回某个邮箱下的全部邮件，按接收时间排序。
func (s *Store) ListMessages(mailboxID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.mailboxes[mailboxID]; !ok {
		return nil, storage.ErrMailboxNotFound
	}

	msgMap := s.messages[mailboxID]
	result := make([]domain.Message, 0, len(msgMap))
	for _, msg := range msgMap {
		result = append(result, *msg)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ReceivedAt.Before(result[j].ReceivedAt)
	})
	return result, nil
}

// GetMessage 获取单封邮件。
func (s *Store) GetMessage(mailboxID, messageID string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[mailboxID][messageID]
	if !ok {
		return nil, storage.ErrMessageNotFound
	}
	copied := *msg
	return &copied, nil
}

// MarkMessageRead 将邮件标记为已读。
func (s *Store) MarkMessageRead(mailboxID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[mailboxID][messageID]
	if !ok {
		return storage.ErrMessageNotFound
	}
	msg.IsRead = true
	return nil
}

// CountMessages 统计邮箱内的邮件总数与未读数。
func (s *Store) CountMessages(mailboxID string) (total, unread int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.mailboxes[mailboxID]; !ok {
		return 0, 0, storage.ErrMailboxNotFound
	}
	for _, msg := range s.messages[mailboxID] {
		total++
		if !msg.IsRead {
			unread++
		}
	}
	return total, unread, nil
}

// DeleteMessages 删除邮箱中的所有邮件。
func (s *Store) DeleteMessages(mailboxID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mailboxes[mailboxID]; !ok {
		return storage.ErrMailboxNotFound
	}
	for msgID := range s.messages[mailboxID] {
		delete(s.attachments, msgID)
	}
	delete(s.messages, mailboxID)
	return nil
}

// ========== Attachment Repository ==========

// SaveAttachment 保存附件元数据。
func (s *Store) SaveAttachment(attachment *domain.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.attachments[attachment.MessageID]; !ok {
		s.attachments[attachment.MessageID] = make(map[string]*domain.Attachment)
	}
	s.attachments[attachment.MessageID][attachment.ID] = attachment
	return nil
}

// GetAttachment 获取单个附件的元数据。
func (s *Store) GetAttachment(messageID, attachmentID string) (*domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	att, ok := s.attachments[messageID][attachmentID]
	if !ok {
		return nil, storage.ErrAttachmentNotFound
	}
	copied := *att
	return &copied, nil
}

// ListAttachments 列出邮件的全部附件。
func (s *Store) ListAttachments(messageID string) ([]*domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Attachment, 0, len(s.attachments[messageID]))
	for _, att := range s.attachments[messageID] {
		copied := *att
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Filename < result[j].Filename
	})
	return result, nil
}

// ========== User Repository ==========

// CreateUser 创建新用户
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		return errors.New("user ID is required")
	}
	if _, exists := s.bySubject[user.Subject]; exists {
		return storage.ErrUserExists
	}
	if _, exists := s.byEmail[user.Email]; exists {
		return storage.ErrUserExists
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	s.users[user.ID] = user
	s.bySubject[user.Subject] = user.ID
	s.byEmail[user.Email] = user.ID
	return nil
}

// GetUserByID 根据ID获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// GetUserBySubject 根据身份提供方的 subject 获取用户
func (s *Store) GetUserBySubject(subject string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.bySubject[subject]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *s.users[userID]
	return &copied, nil
}

// GetUserByEmail 根据邮箱获取用户
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byEmail[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *s.users[userID]
	return &copied, nil
}

// UpdateUser 更新用户信息
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return storage.ErrUserNotFound
	}

	if existing.Email != user.Email {
		if _, taken := s.byEmail[user.Email]; taken {
			return storage.ErrUserExists
		}
		delete(s.byEmail, existing.Email)
		s.byEmail[user.Email] = user.ID
	}

	user.UpdatedAt = time.Now().UTC()
	s.users[user.ID] = user
	return nil
}

// UpdateLastLogin 更新用户最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}

	now := time.Now().UTC()
	user.LastLoginAt = &now
	user.UpdatedAt = now
	return nil
}

// ========== 工具方法 ==========

// Close 关闭存储连接
func (s *Store) Close() error {
	// 内存存储不需要关闭连接
	return nil
}

// Health 健康检查
func (s *Store) Health() error {
	// 内存存储总是健康的
	return nil
}
