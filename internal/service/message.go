package service

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/cjaradhye/burnbox/internal/domain"
	"github.com/cjaradhye/burnbox/internal/storage"
)

var (
	// ErrMessageNotFound 邮件不存在
	ErrMessageNotFound = errors.New("message not found")
	// ErrAttachmentNotFound 附件不存在
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// MessageService 封装邮件读取逻辑，包括阅后即焚语义：
// 在 burn-after-read 邮箱中读取单封邮件后整个邮箱被删除。
type MessageService struct {
	store     storage.Store
	blobs     storage.BlobStore
	mailboxes *MailboxService
	log       *zap.Logger
}

// NewMessageService 创建邮件业务服务。
func NewMessageService(store storage.Store, blobs storage.BlobStore, mailboxes *MailboxService, log *zap.Logger) *MessageService {
	return &MessageService{
		store:     store,
		blobs:     blobs,
		mailboxes: mailboxes,
		log:       log,
	}
}

// List 列出邮箱内的全部邮件。过期邮箱视为不存在。
// 列表读取不触发阅后即焚，也不改变已读状态。
func (s *MessageService) List(userID, mailboxID string) ([]domain.Message, error) {
	mb, err := s.mailboxes.authorize(userID, mailboxID)
	if err != nil {
		return nil, err
	}
	if mb.ExpiredAt(time.Now()) {
		return nil, ErrMailboxNotFound
	}

	messages, err := s.store.ListMessages(mb.ID)
	if err != nil {
		if errors.Is(err, storage.ErrMailboxNotFound) {
			return nil, ErrMailboxNotFound
		}
		return nil, err
	}

	for i := range messages {
		atts, err := s.store.ListAttachments(messages[i].ID)
		if err == nil && len(atts) > 0 {
			messages[i].Attachments = atts
		}
	}
	return messages, nil
}

// Read 读取单封邮件并标记已读。
// 邮箱开启了 burn-after-read 时，成功读取后删除整个邮箱。
func (s *MessageService) Read(ctx context.Context, userID, mailboxID, messageID string) (*domain.Message, error) {
	mb, err := s.mailboxes.authorize(userID, mailboxID)
	if err != nil {
		return nil, err
	}
	if mb.ExpiredAt(time.Now()) {
		return nil, ErrMailboxNotFound
	}

	message, err := s.store.GetMessage(mb.ID, messageID)
	if err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	if atts, err := s.store.ListAttachments(message.ID); err == nil && len(atts) > 0 {
		message.Attachments = atts
	}

	if err := s.store.MarkMessageRead(mb.ID, messageID); err != nil {
		s.log.Warn("failed to mark message read",
			zap.String("mailbox_id", mb.ID),
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
	message.IsRead = true
	if m := s.mailboxes.Metrics; m != nil {
		m.MessagesRead.Inc()
	}

	if mb.BurnAfterRead {
		// 阅后即焚：读取即销毁整个邮箱，含附件内容
		messages, attachments, keys := s.mailboxes.countContents(mb.ID)
		if err := s.store.DeleteMailbox(mb.ID); err != nil {
			s.log.Error("failed to burn mailbox after read",
				zap.String("mailbox_id", mb.ID),
				zap.Error(err),
			)
		} else {
			s.mailboxes.purgeBlobs(ctx, keys)
			s.log.Info("mailbox burned after read",
				zap.String("mailbox_id", mb.ID),
				zap.String("message_id", messageID),
			)
			s.mailboxes.PublishExpired(ctx, mb, messages, attachments)
			if m := s.mailboxes.Metrics; m != nil {
				m.MailboxesBurned.Inc()
			}
		}
	}

	return message, nil
}

// DownloadAttachment 下载附件内容。返回元数据和内容读取器，
// 调用方负责关闭读取器。
func (s *MessageService) DownloadAttachment(ctx context.Context, userID, mailboxID, messageID, attachmentID string) (*domain.Attachment, io.ReadCloser, error) {
	mb, err := s.mailboxes.authorize(userID, mailboxID)
	if err != nil {
		return nil, nil, err
	}
	if mb.ExpiredAt(time.Now()) {
		return nil, nil, ErrMailboxNotFound
	}

	if _, err := s.store.GetMessage(mb.ID, messageID); err != nil {
		if errors.Is(err, storage.ErrMessageNotFound) {
			return nil, nil, ErrMessageNotFound
		}
		return nil, nil, err
	}

	att, err := s.store.GetAttachment(messageID, attachmentID)
	if err != nil {
		if errors.Is(err, storage.ErrAttachmentNotFound) {
			return nil, nil, ErrAttachmentNotFound
		}
		return nil, nil, err
	}

	content, err := s.blobs.Get(ctx, att.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, nil, ErrAttachmentNotFound
		}
		return nil, nil, err
	}
	return att, content, nil
}
