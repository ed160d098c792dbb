package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cjaradhye/burnbox/internal/config"
	"github.com/cjaradhye/burnbox/internal/domain"
	"github.com/cjaradhye/burnbox/internal/event"
	"github.com/cjaradhye/burnbox/internal/monitoring"
	"github.com/cjaradhye/burnbox/internal/storage"
)

var (
	// ErrMailboxNotFound 邮箱不存在（或已过期对外不可见）
	ErrMailboxNotFound = errors.New("mailbox not found")
	// ErrForbidden 邮箱存在但不属于当前用户
	ErrForbidden = errors.New("mailbox belongs to another user")
)

// MailboxService 封装邮箱生命周期业务操作。
// 所有操作都以用户为边界：先确认邮箱存在，再确认归属。
type MailboxService struct {
	store  storage.Store
	blobs  storage.BlobStore
	events event.Publisher
	cfg    *config.MailboxConfig
	log    *zap.Logger

	// Metrics 可选，为 nil 时不记录业务指标
	Metrics *monitoring.Metrics
}

// NewMailboxService 创建邮箱业务服务。
func NewMailboxService(store storage.Store, blobs storage.BlobStore, events event.Publisher, cfg *config.MailboxConfig, log *zap.Logger) *MailboxService {
	return &MailboxService{
		store:  store,
		blobs:  blobs,
		events: events,
		cfg:    cfg,
		log:    log,
	}
}

// CreateMailboxInput 定义创建邮箱所需的输入。
type CreateMailboxInput struct {
	UserID        string
	Lifespan      int    // 生命期（天），非正数时取默认值
	BurnAfterRead bool
	EmailName     string // 期望的邮箱名，可为空
}

// Create 创建新的临时邮箱。
// 地址由清洗后的邮箱名加秒级时间戳组成，过期时刻精确等于
// 创建时刻加 lifespan*86400 秒。
func (s *MailboxService) Create(ctx context.Context, input CreateMailboxInput) (*domain.Mailbox, error) {
	lifespan := input.Lifespan
	if lifespan <= 0 {
		lifespan = s.cfg.DefaultLifespan
	}
	if lifespan > s.cfg.MaxLifespan {
		lifespan = s.cfg.MaxLifespan
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	localPart := domain.SanitizeLocalPart(input.EmailName, id)
	address := domain.BuildAddress(localPart, s.cfg.Domain, now)

	mailbox := &domain.Mailbox{
		ID:            id,
		Address:       address,
		LocalPart:     localPart,
		Domain:        s.cfg.Domain,
		UserID:        input.UserID,
		Lifespan:      lifespan,
		BurnAfterRead: input.BurnAfterRead,
		CreatedAt:     now,
		ExpiresAt:     now.Add(time.Duration(lifespan) * 24 * time.Hour),
	}

	if err := s.store.SaveMailbox(mailbox); err != nil {
		return nil, err
	}

	s.log.Info("mailbox created",
		zap.String("mailbox_id", mailbox.ID),
		zap.String("address", mailbox.Address),
		zap.String("user_id", mailbox.UserID),
		zap.Int("lifespan_days", lifespan),
		zap.Bool("burn_after_read", mailbox.BurnAfterRead),
	)

	expiresAt := mailbox.ExpiresAt
	s.events.PublishMailboxEvent(ctx, domain.MailboxEvent{
		Type:          domain.EventMailboxCreated,
		MailboxID:     mailbox.ID,
		UserID:        mailbox.UserID,
		Address:       mailbox.Address,
		BurnAfterRead: mailbox.BurnAfterRead,
		ExpiresAt:     &expiresAt,
		Timestamp:     now,
	})

	if s.Metrics != nil {
		s.Metrics.MailboxesCreated.Inc()
	}
	return mailbox, nil
}

// List 返回用户的全部未过期邮箱。
func (s *MailboxService) List(userID string) []domain.Mailbox {
	all := s.store.ListMailboxesByUserID(userID)
	now := time.Now()
	result := make([]domain.Mailbox, 0, len(all))
	for _, mb := range all {
		if !mb.ExpiredAt(now) {
			result = append(result, mb)
		}
	}
	return result
}

// Status 返回邮箱的状态快照。过期的邮箱仍可查询状态，
// Active 标记为 false。
func (s *MailboxService) Status(userID, mailboxID string) (*domain.MailboxStatus, error) {
	mb, err := s.authorize(userID, mailboxID)
	if err != nil {
		return nil, err
	}

	total, _, err := s.store.CountMessages(mb.ID)
	if err != nil {
		return nil, err
	}

	return &domain.MailboxStatus{
		ID:            mb.ID,
		Address:       mb.Address,
		BurnAfterRead: mb.BurnAfterRead,
		CreatedAt:     mb.CreatedAt,
		ExpiresAt:     mb.ExpiresAt,
		Active:        !mb.ExpiredAt(time.Now()),
		MessageCount:  total,
	}, nil
}

// Delete 删除用户自己的邮箱及其全部邮件。
// 删除后广播一条携带删除数量的过期事件。
func (s *MailboxService) Delete(ctx context.Context, userID, mailboxID string) error {
	mb, err := s.authorize(userID, mailboxID)
	if err != nil {
		return err
	}

	messages, attachments, keys := s.countContents(mb.ID)

	if err := s.store.DeleteMailbox(mb.ID); err != nil {
		return err
	}
	s.purgeBlobs(ctx, keys)

	s.log.Info("mailbox deleted",
		zap.String("mailbox_id", mb.ID),
		zap.String("user_id", userID),
		zap.Int("messages_deleted", messages),
	)

	s.PublishExpired(ctx, mb, messages, attachments)
	if s.Metrics != nil {
		s.Metrics.MailboxesDeleted.Inc()
	}
	return nil
}

// countContents 统计邮箱内的邮件与附件数量，并收集附件的内容键。
// 元数据行随邮箱一起删除，内容键必须在删除前收集。
func (s *MailboxService) countContents(mailboxID string) (messages, attachments int, keys []string) {
	msgs, err := s.store.ListMessages(mailboxID)
	if err != nil {
		return 0, 0, nil
	}
	for _, msg := range msgs {
		atts, err := s.store.ListAttachments(msg.ID)
		if err != nil {
			continue
		}
		attachments += len(atts)
		for _, att := range atts {
			if att.StorageKey != "" {
				keys = append(keys, att.StorageKey)
			}
		}
	}
	return len(msgs), attachments, keys
}

// purgeBlobs 清理附件内容，失败只记录日志不中断销毁流程。
func (s *MailboxService) purgeBlobs(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrBlobNotFound) {
			s.log.Warn("failed to delete attachment content",
				zap.String("storage_key", key),
				zap.Error(err),
			)
		}
	}
}

// PublishExpired 广播邮箱销毁事件，删除与阅后即焚共用。
func (s *MailboxService) PublishExpired(ctx context.Context, mb *domain.Mailbox, messagesDeleted, attachmentsDeleted int) {
	expiresAt := mb.ExpiresAt
	s.events.PublishMailboxEvent(ctx, domain.MailboxEvent{
		Type:               domain.EventMailboxExpired,
		MailboxID:          mb.ID,
		UserID:             mb.UserID,
		Address:            mb.Address,
		BurnAfterRead:      mb.BurnAfterRead,
		ExpiresAt:          &expiresAt,
		MessagesDeleted:    messagesDeleted,
		AttachmentsDeleted: attachmentsDeleted,
		Timestamp:          time.Now().UTC(),
	})
}

// Get 返回用户自己的邮箱（过期的视为不存在）。
func (s *MailboxService) Get(userID, mailboxID string) (*domain.Mailbox, error) {
	mb, err := s.authorize(userID, mailboxID)
	if err != nil {
		return nil, err
	}
	if mb.ExpiredAt(time.Now()) {
		return nil, ErrMailboxNotFound
	}
	return mb, nil
}

// authorize 校验邮箱存在且归当前用户所有。
// 顺序固定：先判断存在（404），再判断归属（403）。
func (s *MailboxService) authorize(userID, mailboxID string) (*domain.Mailbox, error) {
	mb, err := s.store.GetMailbox(mailboxID)
	if err != nil {
		if errors.Is(err, storage.ErrMailboxNotFound) {
			return nil, ErrMailboxNotFound
		}
		return nil, err
	}
	if mb.UserID != userID {
		return nil, ErrForbidden
	}
	return mb, nil
}

// Sweep 删除所有过期邮箱并广播过期事件。由后台定时任务调用。
func (s *MailboxService) Sweep(ctx context.Context) (int, error) {
	expired := s.store.ListExpiredMailboxes()

	type contents struct {
		messages    int
		attachments int
		keys        []string
	}
	counts := make(map[string]contents, len(expired))
	for _, mb := range expired {
		messages, attachments, keys := s.countContents(mb.ID)
		counts[mb.ID] = contents{messages, attachments, keys}
	}

	count, err := s.store.DeleteExpiredMailboxes()
	if err != nil {
		return count, err
	}

	for i := range expired {
		mb := expired[i]
		c := counts[mb.ID]
		s.purgeBlobs(ctx, c.keys)
		s.PublishExpired(ctx, &mb, c.messages, c.attachments)
	}

	if count > 0 {
		s.log.Info("expired mailboxes swept", zap.Int("count", count))
		if s.Metrics != nil {
			s.Metrics.MailboxesExpired.Add(float64(count))
		}
	}
	return count, nil
}
