package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cjaradhye/burnbox/internal/domain"
	"github.com/cjaradhye/burnbox/internal/storage"
	"github.com/cjaradhye/burnbox/internal/storage/memory"
)

// recordingNotifier 记录推送的通知，供测试断言。
type recordingNotifier struct {
	mailboxIDs []string
	messages   []*domain.Message
}

func (n *recordingNotifier) NotifyNewMessage(mailboxID string, message *domain.Message) {
	n.mailboxIDs = append(n.mailboxIDs, mailboxID)
	n.messages = append(n.messages, message)
}

func newTestIngestService() (*IngestService, *MailboxService, *memory.Store, *storage.MemoryBlobStore, *recordingPublisher, *recordingNotifier) {
	store := memory.NewStore()
	blobs := storage.NewMemoryBlobStore()
	events := &recordingPublisher{}
	notifier := &recordingNotifier{}
	mailboxes := NewMailboxService(store, blobs, events, testMailboxConfig(), zap.NewNop())
	ingest := NewIngestService(store, blobs, events, notifier, zap.NewNop())
	return ingest, mailboxes, store, blobs, events, notifier
}

func TestIngestService_Deliver(t *testing.T) {
	ingest, mailboxes, store, _, events, notifier := newTestIngestService()

	mb, err := mailboxes.Create(context.Background(), CreateMailboxInput{UserID: "owner"})
	require.NoError(t, err)

	msg, err := ingest.Deliver(context.Background(), &InboundMessage{
		To:      mb.Address,
		From:    "sender@example.com",
		Subject: "hello",
		Text:    "plain body",
		HTML:    "<p>plain body</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, mb.ID, msg.MailboxID)
	assert.False(t, msg.ReceivedAt.IsZero())

	stored, err := store.GetMessage(mb.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.Subject)
	assert.False(t, stored.IsRead)

	require.Len(t, events.messageEvents, 1)
	assert.Equal(t, domain.EventMessageReceived, events.messageEvents[0].Type)
	assert.Equal(t, msg.ID, events.messageEvents[0].MessageID)

	require.Len(t, notifier.mailboxIDs, 1)
	assert.Equal(t, mb.ID, notifier.mailboxIDs[0])
}

func TestIngestService_DeliverNormalizesAddress(t *testing.T) {
	ingest, mailboxes, _, _, _, _ := newTestIngestService()

	mb, err := mailboxes.Create(context.Background(), CreateMailboxInput{UserID: "owner", EmailName: "demo"})
	require.NoError(t, err)

	// 大小写与空白不影响投递
	msg, err := ingest.Deliver(context.Background(), &InboundMessage{
		To:   "  " + strings.ToUpper(mb.Address) + "  ",
		From: "sender@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, mb.ID, msg.MailboxID)
}

func TestIngestService_DeliverUnknownRecipient(t *testing.T) {
	ingest, _, _, _, events, notifier := newTestIngestService()

	_, err := ingest.Deliver(context.Background(), &InboundMessage{
		To:   "nobody@burnbox.dev",
		From: "sender@example.com",
	})
	assert.ErrorIs(t, err, ErrRecipientUnknown)
	assert.Empty(t, events.messageEvents)
	assert.Empty(t, notifier.mailboxIDs)
}

func TestIngestService_DeliverExpiredMailbox(t *testing.T) {
	ingest, mailboxes, store, _, events, _ := newTestIngestService()

	mb, err := mailboxes.Create(context.Background(), CreateMailboxInput{UserID: "owner"})
	require.NoError(t, err)
	mb.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.SaveMailbox(mb))

	_, err = ingest.Deliver(context.Background(), &InboundMessage{
		To:   mb.Address,
		From: "sender@example.com",
	})
	assert.ErrorIs(t, err, ErrRecipientUnknown)
	assert.Empty(t, events.messageEvents)
}

func TestIngestService_DeliverWithAttachments(t *testing.T) {
	ingest, mailboxes, store, blobs, _, _ := newTestIngestService()

	mb, err := mailboxes.Create(context.Background(), CreateMailboxInput{UserID: "owner"})
	require.NoError(t, err)

	msg, err := ingest.Deliver(context.Background(), &InboundMessage{
		To:      mb.Address,
		From:    "sender@example.com",
		Subject: "invoice",
		Attachments: []*domain.Attachment{
			{
				Filename:    "invoice.pdf",
				ContentType: "application/pdf",
				Content:     []byte("%PDF-1.4 fake"),
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, msg.Attachments, 1)

	att := msg.Attachments[0]
	assert.Equal(t, "invoice.pdf", att.Filename)
	assert.Equal(t, int64(13), att.Size)
	assert.NotEmpty(t, att.StorageKey)

	// 元数据与内容都落了存储
	saved, err := store.GetAttachment(msg.ID, att.ID)
	require.NoError(t, err)
	assert.Equal(t, att.StorageKey, saved.StorageKey)

	content, err := blobs.Get(context.Background(), att.StorageKey)
	require.NoError(t, err)
	defer content.Close()
	data, err := io.ReadAll(content)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake", string(data))
}

func TestIngestService_DeliverDropsDangerousAttachment(t *testing.T) {
	ingest, mailboxes, _, _, _, _ := newTestIngestService()

	mb, err := mailboxes.Create(context.Background(), CreateMailboxInput{UserID: "owner"})
	require.NoError(t, err)

	msg, err := ingest.Deliver(context.Background(), &InboundMessage{
		To:      mb.Address,
		From:    "sender@example.com",
		Subject: "mixed",
		Attachments: []*domain.Attachment{
			{
				Filename:    "malware.exe",
				ContentType: "application/octet-stream",
				Content:     []byte{0x4D, 0x5A, 0x90, 0x00},
			},
			{
				Filename:    "readme.txt",
				ContentType: "text/plain",
				Content:     []byte("hello"),
			},
		},
	})
	require.NoError(t, err)

	// 危险附件被丢弃，正常附件照常入库
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "readme.txt", msg.Attachments[0].Filename)
}

// 删除邮箱后附件内容必须一并清除，元数据和对象都不可再读。
func TestMailboxDeletePurgesAttachmentContent(t *testing.T) {
	ingest, mailboxes, _, blobs, _, _ := newTestIngestService()

	mb, err := mailboxes.Create(context.Background(), CreateMailboxInput{UserID: "owner"})
	require.NoError(t, err)

	msg, err := ingest.Deliver(context.Background(), &InboundMessage{
		To:      mb.Address,
		From:    "sender@example.com",
		Subject: "confidential",
		Attachments: []*domain.Attachment{
			{
				Filename:    "secret.txt",
				ContentType: "text/plain",
				Content:     []byte("secret content"),
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, msg.Attachments, 1)
	key := msg.Attachments[0].StorageKey

	require.NoError(t, mailboxes.Delete(context.Background(), "owner", mb.ID))

	_, err = blobs.Get(context.Background(), key)
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)
}

func TestSweepPurgesAttachmentContent(t *testing.T) {
	ingest, mailboxes, store, blobs, _, _ := newTestIngestService()

	mb, err := mailboxes.Create(context.Background(), CreateMailboxInput{UserID: "owner"})
	require.NoError(t, err)

	msg, err := ingest.Deliver(context.Background(), &InboundMessage{
		To:      mb.Address,
		From:    "sender@example.com",
		Subject: "stale",
		Attachments: []*domain.Attachment{
			{
				Filename:    "old.txt",
				ContentType: "text/plain",
				Content:     []byte("stale content"),
			},
		},
	})
	require.NoError(t, err)
	key := msg.Attachments[0].StorageKey

	mb.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.SaveMailbox(mb))

	count, err := mailboxes.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = blobs.Get(context.Background(), key)
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)
}
