package hybrid

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cjaradhye/burnbox/internal/domain"
	"github.com/cjaradhye/burnbox/internal/storage"
	"github.com/cjaradhye/burnbox/internal/storage/postgres"
	"github.com/cjaradhye/burnbox/internal/storage/redis"
)

// 缓存 TTL。邮箱快照短缓存即可，列表缓存更短，避免未读数长期陈旧。
const (
	mailboxCacheTTL     = 5 * time.Minute
	messageListCacheTTL = 30 * time.Second
)

// Store 组合 PostgreSQL 持久层与 Redis 读缓存。
// 所有写操作落库后使相关缓存失效，读操作先查缓存。
// 缓存故障只记日志，不影响主路径。
type Store struct {
	db    *postgres.Store
	cache *redis.Cache
	log   *zap.Logger
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建混合存储实例。
func NewStore(db *postgres.Store, cache *redis.Cache, log *zap.Logger) *Store {
	return &Store{db: db, cache: cache, log: log}
}

// ========== Mailbox Repository ==========

// SaveMailbox 保存邮箱并刷新缓存。
func (s *Store) SaveMailbox(mailbox *domain.Mailbox) error {
	if err := s.db.SaveMailbox(mailbox); err != nil {
		return err
	}
	ctx := context.Background()
	if err := s.cache.CacheMailbox(ctx, mailbox, mailboxCacheTTL); err != nil {
		s.log.Warn("failed to cache mailbox", zap.String("mailbox_id", mailbox.ID), zap.Error(err))
	}
	return nil
}

// GetMailbox 优先从缓存读取邮箱。
func (s *Store) GetMailbox(id string) (*domain.Mailbox, error) {
	ctx := context.Background()
	if mb, err := s.cache.GetCachedMailbox(ctx, id); err == nil {
		return mb, nil
	}

	mb, err := s.db.GetMailbox(id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.CacheMailbox(ctx, mb, mailboxCacheTTL); err != nil {
		s.log.Warn("failed to cache mailbox", zap.String("mailbox_id", id), zap.Error(err))
	}
	return mb, nil
}

// GetMailboxByAddress 按地址查询，走地址到 ID 的缓存索引。
func (s *Store) GetMailboxByAddress(address string) (*domain.Mailbox, error) {
	ctx := context.Background()
	if id, err := s.cache.GetCachedMailboxID(ctx, address); err == nil {
		return s.GetMailbox(id)
	}

	mb, err := s.db.GetMailboxByAddress(address)
	if err != nil {
		return nil, err
	}
	if err := s.cache.CacheMailbox(ctx, mb, mailboxCacheTTL); err != nil {
		s.log.Warn("failed to cache mailbox", zap.String("address", address), zap.Error(err))
	}
	return mb, nil
}

// ListMailboxesByUserID 列表查询直接落库，不做缓存。
func (s *Store) ListMailboxesByUserID(userID string) []domain.Mailbox {
	return s.db.ListMailboxesByUserID(userID)
}

// DeleteMailbox 删除邮箱并清理缓存。
func (s *Store) DeleteMailbox(id string) error {
	mb, err := s.db.GetMailbox(id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteMailbox(id); err != nil {
		return err
	}
	if err := s.cache.InvalidateMailbox(context.Background(), id, mb.Address); err != nil {
		s.log.Warn("failed to invalidate mailbox cache", zap.String("mailbox_id", id), zap.Error(err))
	}
	return nil
}

// ListExpiredMailboxes 返回已过期的邮箱。
func (s *Store) ListExpiredMailboxes() []domain.Mailbox {
	return s.db.ListExpiredMailboxes()
}

// DeleteExpiredMailboxes 删除过期邮箱并清理对应缓存。
func (s *Store) DeleteExpiredMailboxes() (int, error) {
	expired := s.db.ListExpiredMailboxes()
	count, err := s.db.DeleteExpiredMailboxes()
	if err != nil {
		return count, err
	}
	ctx := context.Background()
	for _, mb := range expired {
		if err := s.cache.InvalidateMailbox(ctx, mb.ID, mb.Address); err != nil {
			s.log.Warn("failed to invalidate mailbox cache", zap.String("mailbox_id", mb.ID), zap.Error(err))
		}
	}
	return count, nil
}

// ========== Message Repository ==========

// SaveMessage 保存邮件并使列表缓存失效。
func (s *Store) SaveMessage(message *domain.Message) error {
	if err := s.db.SaveMessage(message); err != nil {
		return err
	}
	s.invalidateMessages(message.MailboxID)
	return nil
}

// ListMessages 优先读邮件列表缓存。
func (s *Store) ListMessages(mailboxID string) ([]domain.Message, error) {
	ctx := context.Background()
	if msgs, err := s.cache.GetCachedMessageList(ctx, mailboxID); err == nil {
		return msgs, nil
	}

	msgs, err := s.db.ListMessages(mailboxID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.CacheMessageList(ctx, mailboxID, msgs, messageListCacheTTL); err != nil {
		s.log.Warn("failed to cache message list", zap.String("mailbox_id", mailboxID), zap.Error(err))
	}
	return msgs, nil
}

// GetMessage 单封邮件直接落库。
func (s *Store) GetMessage(mailboxID, messageID string) (*domain.Message, error) {
	return s.db.GetMessage(mailboxID, messageID)
}

// MarkMessageRead 标记已读并使列表缓存失效。
func (s *Store) MarkMessageRead(mailboxID, messageID string) error {
	if err := s.db.MarkMessageRead(mailboxID, messageID); err != nil {
		return err
	}
	s.invalidateMessages(mailboxID)
	return nil
}

// CountMessages 统计直接落库。
func (s *Store) CountMessages(mailboxID string) (total, unread int, err error) {
	return s.db.CountMessages(mailboxID)
}

// DeleteMessages 删除全部邮件并使缓存失效。
func (s *Store) DeleteMessages(mailboxID string) error {
	if err := s.db.DeleteMessages(mailboxID); err != nil {
		return err
	}
	s.invalidateMessages(mailboxID)
	return nil
}

func (s *Store) invalidateMessages(mailboxID string) {
	if err := s.cache.InvalidateMessageList(context.Background(), mailboxID); err != nil {
		s.log.Warn("failed to invalidate message list cache", zap.String("mailbox_id", mailboxID), zap.Error(err))
	}
}

// ========== Attachment Repository ==========

func (s *Store) SaveAttachment(attachment *domain.Attachment) error {
	return s.db.SaveAttachment(attachment)
}

func (s *Store) GetAttachment(messageID, attachmentID string) (*domain.Attachment, error) {
	return s.db.GetAttachment(messageID, attachmentID)
}

func (s *Store) ListAttachments(messageID string) ([]*domain.Attachment, error) {
	return s.db.ListAttachments(messageID)
}

// ========== User Repository ==========

func (s *Store) CreateUser(user *domain.User) error {
	return s.db.CreateUser(user)
}

func (s *Store) GetUserByID(id string) (*domain.User, error) {
	return s.db.GetUserByID(id)
}

func (s *Store) GetUserBySubject(subject string) (*domain.User, error) {
	return s.db.GetUserBySubject(subject)
}

func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	return s.db.GetUserByEmail(email)
}

func (s *Store) UpdateUser(user *domain.User) error {
	return s.db.UpdateUser(user)
}

func (s *Store) UpdateLastLogin(userID string) error {
	return s.db.UpdateLastLogin(userID)
}

// ========== 工具方法 ==========

// Close 关闭底层数据库连接。Redis 客户端由调用方管理。
func (s *Store) Close() error {
	return s.db.Close()
}

// Health 检查持久层健康状态。
func (s *Store) Health() error {
	return s.db.Health()
}
