package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cjaradhye/burnbox/internal/config"
	"github.com/cjaradhye/burnbox/internal/domain"
	"github.com/cjaradhye/burnbox/internal/storage"
)

// Store PostgreSQL 存储实现
type Store struct {
	db *gorm.DB
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(cfg *config.DatabaseConfig) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(cfg.DSN), cfg)
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector, cfg *config.DatabaseConfig) (*Store, error) {
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent), // 静默模式
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		// 把驱动错误翻译成 gorm.ErrDuplicatedKey 等哨兵错误
		TranslateError: true,
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpen, maxIdle, maxLifetime := cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime
	if maxOpen <= 0 {
		maxOpen = 25
	}
	if maxIdle <= 0 {
		maxIdle = 5
	}
	if maxLifetime <= 0 {
		maxLifetime = 5 * time.Minute
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(maxLifetime)

	store := &Store{db: db}

	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Migrate 自动迁移数据库表结构
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.Mailbox{},
		&domain.Message{},
		&domain.Attachment{},
	)
}

// ========== Mailbox Repository ==========

// SaveMailbox 保存邮箱信息
func (s *Store) SaveMailbox(mailbox *domain.Mailbox) error {
	return s.db.Save(mailbox).Error
}

// GetMailbox 根据 ID 获取邮箱
func (s *Store) GetMailbox(id string) (*domain.Mailbox, error) {
	var mailbox domain.Mailbox
	err := s.db.Where("id = ?", id).First(&mailbox).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrMailboxNotFound
		}
		return nil, err
	}
	s.fillCounts(&mailbox)
	return &mailbox, nil
}

// GetMailboxByAddress 根据完整地址获取邮箱
func (s *Store) GetMailboxByAddress(address string) (*domain.Mailbox, error) {
	var mailbox domain.Mailbox
	err := s.db.Where("address = ?", address).First(&mailbox).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrMailboxNotFound
		}
		return nil, err
	}
	s.fillCounts(&mailbox)
	return &mailbox, nil
}

// ListMailboxesByUserID 返回指定用户的全部邮箱
func (s *Store) ListMailboxesByUserID(userID string) []domain.Mailbox {
	var mailboxes []domain.Mailbox
	s.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&mailboxes)
	for i := range mailboxes {
		s.fillCounts(&mailboxes[i])
	}
	return mailboxes
}

// DeleteMailbox 删除指定邮箱及其邮件和附件
func (s *Store) DeleteMailbox(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&domain.Mailbox{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrMailboxNotFound
		}
		return deleteMailboxContents(tx, id)
	})
}

// ListExpiredMailboxes 返回当前已过期的邮箱
func (s *Store) ListExpiredMailboxes() []domain.Mailbox {
	var mailboxes []domain.Mailbox
	s.db.Where("expires_at <= ?", time.Now()).Find(&mailboxes)
	return mailboxes
}

// DeleteExpiredMailboxes 删除所有过期的邮箱，返回删除数量
func (s *Store) DeleteExpiredMailboxes() (int, error) {
	var count int64

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var expired []domain.Mailbox
		if err := tx.Where("expires_at <= ?", time.Now()).Find(&expired).Error; err != nil {
			return err
		}

		count = int64(len(expired))
		if count == 0 {
			return nil
		}

		for _, mb := range expired {
			if err := deleteMailboxContents(tx, mb.ID); err != nil {
				return err
			}
		}

		return tx.Where("expires_at <= ?", time.Now()).Delete(&domain.Mailbox{}).Error
	})

	return int(count), err
}

// deleteMailboxContents 删除邮箱下的邮件和附件元数据
func deleteMailboxContents(tx *gorm.DB, mailboxID string) error {
	var messageIDs []string
	if err := tx.Model(&domain.Message{}).Where("mailbox_id = ?", mailboxID).Pluck("id", &messageIDs).Error; err != nil {
		return err
	}
	if len(messageIDs) > 0 {
		if err := tx.Where("message_id IN ?", messageIDs).Delete(&domain.Attachment{}).Error; err != nil {
			return err
		}
	}
	return tx.Where("mailbox_id = ?", mailboxID).Delete(&domain.Message{}).Error
}

// fillCounts 把邮件统计填入邮箱快照
func (s *Store) fillCounts(mb *domain.Mailbox) {
	total, unread, err := s.CountMessages(mb.ID)
	if err == nil {
		mb.TotalCount = total
		mb.Unread = unread
	}
}

// ========== Message Repository ==========

// SaveMessage 保存邮件信息
func (s *Store) SaveMessage(message *domain.Message) error {
	return s.db.Save(message).Error
}

// ListMessages 返回某个邮箱下的全部邮件，按接收时间排序
func (s *Store) ListMessages(mailboxID string) ([]domain.Message, error) {
	var exists int64
	if err := s.db.Model(&domain.Mailbox{}).Where("id = ?", mailboxID).Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, storage.ErrMailboxNotFound
	}

	var messages []domain.Message
	err := s.db.Where("mailbox_id = ?", mailboxID).Order("received_at ASC").Find(&messages).Error
	return messages, err
}

// GetMessage 获取单封邮件
func (s *Store) GetMessage(mailboxID, messageID string) (*domain.Message, error) {
	var message domain.Message
	err := s.db.Where("id = ? AND mailbox_id = ?", messageID, mailboxID).First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}

// MarkMessageRead 将邮件标记为已读
func (s *Store) MarkMessageRead(mailboxID, messageID string) error {
	result := s.db.Model(&domain.Message{}).
		Where("id = ? AND mailbox_id = ?", messageID, mailboxID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrMessageNotFound
	}
	return nil
}

// CountMessages 统计邮箱内的邮件总数与未读数
func (s *Store) CountMessages(mailboxID string) (total, unread int, err error) {
	var totalCount, unreadCount int64
	if err := s.db.Model(&domain.Message{}).Where("mailbox_id = ?", mailboxID).Count(&totalCount).Error; err != nil {
		return 0, 0, err
	}
	if err := s.db.Model(&domain.Message{}).Where("mailbox_id = ? AND is_read = ?", mailboxID, false).Count(&unreadCount).Error; err != nil {
		return 0, 0, err
	}
	return int(totalCount), int(unreadCount), nil
}

// DeleteMessages 删除邮箱中的所有邮件
func (s *Store) DeleteMessages(mailboxID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return deleteMailboxContents(tx, mailboxID)
	})
}

// ========== Attachment Repository ==========

// SaveAttachment 保存附件元数据
func (s *Store) SaveAttachment(attachment *domain.Attachment) error {
	return s.db.Save(attachment).Error
}

// GetAttachment 获取单个附件的元数据
func (s *Store) GetAttachment(messageID, attachmentID string) (*domain.Attachment, error) {
	var attachment domain.Attachment
	err := s.db.Where("id = ? AND message_id = ?", attachmentID, messageID).First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAttachmentNotFound
		}
		return nil, err
	}
	return &attachment, nil
}

// ListAttachments 列出邮件的全部附件
func (s *Store) ListAttachments(messageID string) ([]*domain.Attachment, error) {
	var attachments []*domain.Attachment
	err := s.db.Where("message_id = ?", messageID).Order("filename ASC").Find(&attachments).Error
	return attachments, err
}

// ========== User Repository ==========

// CreateUser 创建新用户
func (s *Store) CreateUser(user *domain.User) error {
	err := s.db.Create(user).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrUserExists
	}
	return err
}

// GetUserByID 根据ID获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	var user domain.User
	err := s.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserBySubject 根据身份提供方的 subject 获取用户
func (s *Store) GetUserBySubject(subject string) (*domain.User, error) {
	var user domain.User
	err := s.db.Where("subject = ?", subject).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail 根据邮箱获取用户
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	var user domain.User
	err := s.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUser 更新用户信息
func (s *Store) UpdateUser(user *domain.User) error {
	result := s.db.Model(&domain.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"email":      user.Email,
		"name":       user.Name,
		"picture":    user.Picture,
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// UpdateLastLogin 更新用户最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	now := time.Now().UTC()
	result := s.db.Model(&domain.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"last_login_at": &now,
		"updated_at":    now,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// ========== 工具方法 ==========

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 健康检查
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
