package service

import (
	"bytes"
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cjaradhye/burnbox/internal/domain"
	"github.com/cjaradhye/burnbox/internal/event"
	"github.com/cjaradhye/burnbox/internal/monitoring"
	"github.com/cjaradhye/burnbox/internal/security"
	"github.com/cjaradhye/burnbox/internal/storage"
)

// ErrRecipientUnknown 收件地址不对应任何有效邮箱
var ErrRecipientUnknown = errors.New("recipient mailbox not found")

// Notifier 向在线客户端推送新邮件通知。
type Notifier interface {
	NotifyNewMessage(mailboxID string, message *domain.Message)
}

// IngestService 处理入站邮件投递。SNS 推送与本地 SMTP
// 两条入口最终都汇聚到这里。
type IngestService struct {
	store    storage.Store
	blobs    storage.BlobStore
	events   event.Publisher
	notifier Notifier
	screen   *security.AttachmentScreen
	log      *zap.Logger

	// Metrics 可选，为 nil 时不记录业务指标
	Metrics *monitoring.Metrics
}

// NewIngestService 创建入站投递服务。notifier 可为 nil。
func NewIngestService(store storage.Store, blobs storage.BlobStore, events event.Publisher, notifier Notifier, log *zap.Logger) *IngestService {
	return &IngestService{
		store:    store,
		blobs:    blobs,
		events:   events,
		notifier: notifier,
		screen:   security.NewAttachmentScreen(0),
		log:      log,
	}
}

// InboundMessage 是一封解析后的入站邮件。
type InboundMessage struct {
	To          string
	From        string
	Subject     string
	Text        string
	HTML        string
	Raw         string
	ReceivedAt  time.Time
	Attachments []*domain.Attachment
}

// LookupRecipient 解析收件地址对应的邮箱。
// 地址不存在或邮箱已过期时返回 ErrRecipientUnknown。
func (s *IngestService) LookupRecipient(address string) (*domain.Mailbox, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	mailbox, err := s.store.GetMailboxByAddress(address)
	if err != nil {
		if errors.Is(err, storage.ErrMailboxNotFound) {
			return nil, ErrRecipientUnknown
		}
		return nil, err
	}
	if mailbox.ExpiredAt(time.Now()) {
		return nil, ErrRecipientUnknown
	}
	return mailbox, nil
}

// Deliver 将入站邮件投递到对应邮箱。
// 收件地址不存在或邮箱已过期时返回 ErrRecipientUnknown，邮件被丢弃。
func (s *IngestService) Deliver(ctx context.Context, inbound *InboundMessage) (*domain.Message, error) {
	address := strings.ToLower(strings.TrimSpace(inbound.To))
	mailbox, err := s.LookupRecipient(address)
	if err != nil {
		if errors.Is(err, ErrRecipientUnknown) {
			s.log.Debug("dropping mail for unknown recipient", zap.String("to", address))
			if s.Metrics != nil {
				s.Metrics.MessagesDropped.Inc()
			}
		}
		return nil, err
	}

	now := time.Now().UTC()
	receivedAt := inbound.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = now
	}

	message := &domain.Message{
		ID:         uuid.NewString(),
		MailboxID:  mailbox.ID,
		From:       inbound.From,
		To:         address,
		Subject:    inbound.Subject,
		Text:       inbound.Text,
		HTML:       inbound.HTML,
		Raw:        inbound.Raw,
		ReceivedAt: receivedAt,
		CreatedAt:  now,
	}

	if err := s.store.SaveMessage(message); err != nil {
		return nil, err
	}

	message.Attachments = s.storeAttachments(ctx, mailbox.ID, message.ID, inbound.Attachments)

	s.log.Info("message delivered",
		zap.String("mailbox_id", mailbox.ID),
		zap.String("message_id", message.ID),
		zap.String("from", message.From),
		zap.Int("attachments", len(message.Attachments)),
	)

	s.events.PublishMessageEvent(ctx, domain.MessageEvent{
		Type:           domain.EventMessageReceived,
		MailboxID:      mailbox.ID,
		MessageID:      message.ID,
		From:           message.From,
		Subject:        message.Subject,
		HasAttachments: len(message.Attachments) > 0,
		Timestamp:      now,
	})

	if s.Metrics != nil {
		s.Metrics.MessagesReceived.Inc()
	}

	if s.notifier != nil {
		s.notifier.NotifyNewMessage(mailbox.ID, message)
	}

	return message, nil
}

// storeAttachments 上传附件内容并保存元数据。
// 单个附件失败只记日志，不影响整封邮件的投递。
func (s *IngestService) storeAttachments(ctx context.Context, mailboxID, messageID string, attachments []*domain.Attachment) []*domain.Attachment {
	stored := make([]*domain.Attachment, 0, len(attachments))
	for _, att := range attachments {
		if att == nil {
			continue
		}
		// 同一封信可能投递给多个收件人，元数据每次都分配新 ID
		id := uuid.NewString()
		size := att.Size
		if size == 0 {
			size = int64(len(att.Content))
		}

		if err := s.screen.Screen(att.Filename, att.ContentType, att.Content); err != nil {
			s.log.Warn("attachment rejected",
				zap.String("message_id", messageID),
				zap.String("filename", att.Filename),
				zap.Error(err),
			)
			continue
		}

		key := path.Join(mailboxID, messageID, id, att.Filename)
		if err := s.blobs.Put(ctx, key, att.ContentType, bytes.NewReader(att.Content)); err != nil {
			s.log.Warn("failed to store attachment content",
				zap.String("message_id", messageID),
				zap.String("filename", att.Filename),
				zap.Error(err),
			)
			continue
		}

		meta := &domain.Attachment{
			ID:          id,
			MessageID:   messageID,
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Size:        size,
			StorageKey:  key,
		}
		if err := s.store.SaveAttachment(meta); err != nil {
			s.log.Warn("failed to save attachment metadata",
				zap.String("message_id", messageID),
				zap.String("filename", att.Filename),
				zap.Error(err),
			)
			continue
		}
		stored = append(stored, meta)
	}
	return stored
}
