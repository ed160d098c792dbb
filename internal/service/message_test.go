package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cjaradhye/burnbox/internal/domain"
	"github.com/cjaradhye/burnbox/internal/storage"
	"github.com/cjaradhye/burnbox/internal/storage/memory"
)

func newTestMessageService() (*MessageService, *MailboxService, *memory.Store, *storage.MemoryBlobStore) {
	store := memory.NewStore()
	blobs := storage.NewMemoryBlobStore()
	mailboxes := NewMailboxService(store, blobs, &recordingPublisher{}, testMailboxConfig(), zap.NewNop())
	messages := NewMessageService(store, blobs, mailboxes, zap.NewNop())
	return messages, mailboxes, store, blobs
}

func seedMessage(t *testing.T, store *memory.Store, mailboxID, subject string) *domain.Message {
	t.Helper()
	msg := &domain.Message{
		ID:         uuid.NewString(),
		MailboxID:  mailboxID,
		From:       "sender@example.com",
		Subject:    subject,
		Text:       "hello",
		ReceivedAt: time.Now().UTC(),
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.SaveMessage(msg))
	return msg
}

func TestMessageService_List(t *testing.T) {
	svc, mailboxes, store, _ := newTestMessageService()

	mb, err := mailboxes.Create(context.Background(), CreateMailboxInput{UserID: "owner"})
	require.NoError(t, err)
	seedMessage(t, store, mb.ID, "first")
	seedMessage(t, store, mb.ID, "second")

	messages, err := svc.List("owner", mb.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 2)

	// 列表读取不改变已读状态
	for _, msg := range messages {
		assert.False(t, msg.IsRead)
	}

	_, err = svc.List("intruder", mb.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.List("owner", "no-such-mailbox")
	assert.ErrorIs(t, err, ErrMailboxNotFound)
}

func TestMessageService_Read(t *testing.T) {
	svc, mailboxes, store, _ := newTestMessageService()

	mb, err := mailboxes.Create(context.Background(), CreateMailboxInput{UserID: "owner"})
	require.NoError(t, err)
	msg := seedMessage(t, store, mb.ID, "welcome")

	got, err := svc.Read(context.Background(), "owner", mb.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "welcome", got.Subject)
	assert.True(t, got.IsRead)

	// 已读状态落库
	stored, err := store.GetMessage(mb.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsRead)

	_, err = svc.Read(context.Background(), "owner", mb.ID, "no-such-message")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	_, err = svc.Read(context.Background(), "intruder", mb.ID, msg.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMessageService_BurnAfterRead(t *testing.T) {
	svc, mailboxes, store, _ := newTestMessageService()

	mb, err := mailboxes.Create(context.Background(), CreateMailboxInput{
		UserID:        "owner",
		BurnAfterRead: true,
	})
	require.NoError(t, err)
	msg := seedMessage(t, store, mb.ID, "secret")

	got, err := svc.Read(context.Background(), "owner", mb.ID, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret", got.Subject)

	// 读取之后整个邮箱被销毁
	_, err = store.GetMailbox(mb.ID)
	assert.ErrorIs(t, err, storage.ErrMailboxNotFound)
	_, err = svc.Read(context.Background(), "owner", mb.ID, msg.ID)
	assert.ErrorIs(t, err, ErrMailboxNotFound)
}

func TestMessageService_ListDoesNotBurn(t *testing.T) {
	svc, mailboxes, store, _ := newTestMessageService()

	mb, err := mailboxes.Create(context.Background(), CreateMailboxInput{
		UserID:        "owner",
		BurnAfterRead: true,
	})
	require.NoError(t, err)
	seedMessage(t, store, mb.ID, "secret")

	_, err = svc.List("owner", mb.ID)
	require.NoError(t, err)

	// 列表读取不触发销毁
	_, err = store.GetMailbox(mb.ID)
	assert.NoError(t, err)
}

func TestMessageService_ExpiredMailboxNotFound(t *testing.T) {
	svc, mailboxes, store, _ := newTestMessageService()

	mb, err := mailboxes.Create(context.Background(), CreateMailboxInput{UserID: "owner"})
	require.NoError(t, err)
	msg := seedMessage(t, store, mb.ID, "late")

	mb.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.SaveMailbox(mb))

	_, err = svc.List("owner", mb.ID)
	assert.ErrorIs(t, err, ErrMailboxNotFound)
	_, err = svc.Read(context.Background(), "owner", mb.ID, msg.ID)
	assert.ErrorIs(t, err, ErrMailboxNotFound)
}

func TestMessageService_DownloadAttachment(t *testing.T) {
	svc, mailboxes, store, blobs := newTestMessageService()

	mb, err := mailboxes.Create(context.Background(), CreateMailboxInput{UserID: "owner"})
	require.NoError(t, err)
	msg := seedMessage(t, store, mb.ID, "with attachment")

	key := mb.ID + "/" + msg.ID + "/att-1/report.pdf"
	require.NoError(t, blobs.Put(context.Background(), key, "application/pdf", strings.NewReader("%PDF-1.4")))
	require.NoError(t, store.SaveAttachment(&domain.Attachment{
		ID:          "att-1",
		MessageID:   msg.ID,
		Filename:    "report.pdf",
		ContentType: "application/pdf",
		Size:        8,
		StorageKey:  key,
	}))

	att, content, err := svc.DownloadAttachment(context.Background(), "owner", mb.ID, msg.ID, "att-1")
	require.NoError(t, err)
	defer content.Close()

	assert.Equal(t, "report.pdf", att.Filename)
	data, err := io.ReadAll(content)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	_, _, err = svc.DownloadAttachment(context.Background(), "owner", mb.ID, msg.ID, "no-such-att")
	assert.ErrorIs(t, err, ErrAttachmentNotFound)

	_, _, err = svc.DownloadAttachment(context.Background(), "intruder", mb.ID, msg.ID, "att-1")
	assert.ErrorIs(t, err, ErrForbidden)
}

// 阅后即焚销毁邮箱时，附件内容随元数据一起清除。
func TestMessageService_BurnPurgesAttachmentContent(t *testing.T) {
	svc, mailboxes, store, blobs := newTestMessageService()

	mb, err := mailboxes.Create(context.Background(), CreateMailboxInput{
		UserID:        "owner",
		BurnAfterRead: true,
	})
	require.NoError(t, err)

	msg := seedMessage(t, store, mb.ID, "secret")
	key := mb.ID + "/" + msg.ID + "/secret.txt"
	require.NoError(t, blobs.Put(context.Background(), key, "text/plain", strings.NewReader("secret content")))
	require.NoError(t, store.SaveAttachment(&domain.Attachment{
		ID:          "att-1",
		MessageID:   msg.ID,
		Filename:    "secret.txt",
		ContentType: "text/plain",
		Size:        14,
		StorageKey:  key,
	}))

	_, err = svc.Read(context.Background(), "owner", mb.ID, msg.ID)
	require.NoError(t, err)

	_, err = svc.List("owner", mb.ID)
	assert.ErrorIs(t, err, ErrMailboxNotFound)

	_, err = blobs.Get(context.Background(), key)
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)
}
