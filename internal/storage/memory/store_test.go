package memory

import (
	"testing"
	"time"

	"github.com/cjaradhye/burnbox/internal/domain"
	"github.com/cjaradhye/burnbox/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMailbox(id, address, userID string, expiresAt time.Time) *domain.Mailbox {
	return &domain.Mailbox{
		ID:        id,
		Address:   address,
		LocalPart: "test",
		Domain:    "burnbox.dev",
		UserID:    userID,
		Lifespan:  1,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
}

func TestMemoryStore_MailboxOperations(t *testing.T) {
	store := NewStore()

	mailbox := newTestMailbox("test-mailbox-1", "test-1@burnbox.dev", "test-user-1", time.Now().Add(24*time.Hour))
	err := store.SaveMailbox(mailbox)
	require.NoError(t, err)

	// Test GetMailbox
	retrieved, err := store.GetMailbox("test-mailbox-1")
	require.NoError(t, err)
	assert.Equal(t, mailbox.Address, retrieved.Address)
	assert.Equal(t, mailbox.UserID, retrieved.UserID)

	// Test GetMailboxByAddress
	retrieved, err = store.GetMailboxByAddress("test-1@burnbox.dev")
	require.NoError(t, err)
	assert.Equal(t, mailbox.ID, retrieved.ID)

	// Test ListMailboxesByUserID
	mailboxes := store.ListMailboxesByUserID("test-user-1")
	assert.Len(t, mailboxes, 1)
	assert.Equal(t, mailbox.ID, mailboxes[0].ID)

	// Other users see nothing
	assert.Empty(t, store.ListMailboxesByUserID("test-user-2"))

	// Test DeleteMailbox
	err = store.DeleteMailbox("test-mailbox-1")
	require.NoError(t, err)

	_, err = store.GetMailbox("test-mailbox-1")
	assert.ErrorIs(t, err, storage.ErrMailboxNotFound)
}

func TestMemoryStore_DuplicateAddress(t *testing.T) {
	store := NewStore()

	require.NoError(t, store.SaveMailbox(newTestMailbox("mb-1", "dup@burnbox.dev", "u1", time.Now().Add(time.Hour))))
	err := store.SaveMailbox(newTestMailbox("mb-2", "dup@burnbox.dev", "u2", time.Now().Add(time.Hour)))
	assert.ErrorIs(t, err, storage.ErrAddressTaken)
}

func TestMemoryStore_MessageOperations(t *testing.T) {
	store := NewStore()

	mailbox := newTestMailbox("test-mailbox-1", "test-1@burnbox.dev", "test-user-1", time.Now().Add(24*time.Hour))
	require.NoError(t, store.SaveMailbox(mailbox))

	// Test SaveMessage
	message := &domain.Message{
		ID:         "test-message-1",
		MailboxID:  "test-mailbox-1",
		From:       "sender@example.com",
		To:         "test-1@burnbox.dev",
		Subject:    "Test Message",
		Text:       "This is a test message",
		ReceivedAt: time.Now(),
		CreatedAt:  time.Now(),
	}
	require.NoError(t, store.SaveMessage(message))

	// Test GetMessage
	retrieved, err := store.GetMessage("test-mailbox-1", "test-message-1")
	require.NoError(t, err)
	assert.Equal(t, message.Subject, retrieved.Subject)
	assert.Equal(t, message.From, retrieved.From)

	// Test ListMessages
	messages, err := store.ListMessages("test-mailbox-1")
	require.NoError(t, err)
	assert.Len(t, messages, 1)
	assert.Equal(t, message.ID, messages[0].ID)

	// Test CountMessages
	total, unread, err := store.CountMessages("test-mailbox-1")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, unread)

	// Test MarkMessageRead
	require.NoError(t, store.MarkMessageRead("test-mailbox-1", "test-message-1"))

	retrieved, err = store.GetMessage("test-mailbox-1", "test-message-1")
	require.NoError(t, err)
	assert.True(t, retrieved.IsRead)

	_, unread, err = store.CountMessages("test-mailbox-1")
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	// Counts surface on the mailbox snapshot
	mb, err := store.GetMailbox("test-mailbox-1")
	require.NoError(t, err)
	assert.Equal(t, 1, mb.TotalCount)
	assert.Equal(t, 0, mb.Unread)

	// Test DeleteMessages
	require.NoError(t, store.DeleteMessages("test-mailbox-1"))
	messages, err = store.ListMessages("test-mailbox-1")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestMemoryStore_ExpiredMailboxes(t *testing.T) {
	store := NewStore()

	expired := newTestMailbox("expired-1", "old@burnbox.dev", "u1", time.Now().Add(-time.Hour))
	active := newTestMailbox("active-1", "new@burnbox.dev", "u1", time.Now().Add(time.Hour))
	require.NoError(t, store.SaveMailbox(expired))
	require.NoError(t, store.SaveMailbox(active))

	listed := store.ListExpiredMailboxes()
	require.Len(t, listed, 1)
	assert.Equal(t, "expired-1", listed[0].ID)

	count, err := store.DeleteExpiredMailboxes()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = store.GetMailbox("expired-1")
	assert.ErrorIs(t, err, storage.ErrMailboxNotFound)
	_, err = store.GetMailbox("active-1")
	assert.NoError(t, err)
}

func TestMemoryStore_AttachmentOperations(t *testing.T) {
	store := NewStore()

	mailbox := newTestMailbox("mb-1", "att@burnbox.dev", "u1", time.Now().Add(time.Hour))
	require.NoError(t, store.SaveMailbox(mailbox))
	require.NoError(t, store.SaveMessage(&domain.Message{
		ID:        "msg-1",
		MailboxID: "mb-1",
	}))

	att := &domain.Attachment{
		ID:          "att-1",
		MessageID:   "msg-1",
		Filename:    "report.pdf",
		ContentType: "application/pdf",
		Size:        1024,
		StorageKey:  "mb-1/msg-1/att-1",
	}
	require.NoError(t, store.SaveAttachment(att))

	got, err := store.GetAttachment("msg-1", "att-1")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", got.Filename)

	list, err := store.ListAttachments("msg-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = store.GetAttachment("msg-1", "missing")
	assert.ErrorIs(t, err, storage.ErrAttachmentNotFound)

	// Deleting the mailbox removes attachment metadata too
	require.NoError(t, store.DeleteMailbox("mb-1"))
	list, err = store.ListAttachments("msg-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryStore_UserOperations(t *testing.T) {
	store := NewStore()

	user := &domain.User{
		ID:      "user-1",
		Subject: "google-sub-123",
		Email:   "alice@example.com",
		Name:    "Alice",
	}
	require.NoError(t, store.CreateUser(user))

	// Duplicate subject rejected
	err := store.CreateUser(&domain.User{ID: "user-2", Subject: "google-sub-123", Email: "other@example.com"})
	assert.ErrorIs(t, err, storage.ErrUserExists)

	got, err := store.GetUserByID("user-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)

	got, err = store.GetUserBySubject("google-sub-123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.ID)

	got, err = store.GetUserByEmail("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.ID)

	_, err = store.GetUserBySubject("unknown-sub")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	// Update profile fields
	got.Name = "Alice Liddell"
	require.NoError(t, store.UpdateUser(got))
	updated, err := store.GetUserByID("user-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", updated.Name)

	// Last login timestamp
	require.NoError(t, store.UpdateLastLogin("user-1"))
	updated, err = store.GetUserByID("user-1")
	require.NoError(t, err)
	require.NotNil(t, updated.LastLoginAt)
}
