package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/cjaradhye/burnbox/internal/domain"
)

type stubMailboxStore struct {
	mailboxes []domain.Mailbox
}

func (s *stubMailboxStore) ListMailboxesByUserID(string) []domain.Mailbox {
	return s.mailboxes
}

func newTestClient(hub *Hub, userID string) *Client {
	return &Client{
		ID:         "client-" + userID,
		UserID:     userID,
		hub:        hub,
		send:       make(chan []byte, 256),
		subscribed: make(map[string]bool),
		log:        zap.NewNop(),
	}
}

// 广播与订阅/退订来自不同协程，快照拷贝保证并发下不会撞上 map 迭代。
func TestBroadcastDuringSubscriptionChurn(t *testing.T) {
	store := &stubMailboxStore{mailboxes: []domain.Mailbox{{ID: "mb-1", UserID: "user-1"}}}
	hub := NewHub(nil, store, nil, zap.NewNop())
	client := newTestClient(hub, "user-1")

	msg := &Message{Type: MessageTypeNewMail, MailboxID: "mb-1", Timestamp: time.Now()}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			hub.broadcastToMailbox("mb-1", msg)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			client.subscribeMailbox("mb-1")
			client.unsubscribeMailbox("mb-1")
		}
	}()
	wg.Wait()
}

func TestSubscribeRequiresOwnership(t *testing.T) {
	store := &stubMailboxStore{mailboxes: []domain.Mailbox{{ID: "mb-1", UserID: "user-1"}}}
	hub := NewHub(nil, store, nil, zap.NewNop())

	t.Run("订阅自己的邮箱成功", func(t *testing.T) {
		client := newTestClient(hub, "user-1")
		client.subscribeMailbox("mb-1")

		hub.mu.RLock()
		_, ok := hub.mailboxes["mb-1"][client.ID]
		hub.mu.RUnlock()
		assert.True(t, ok)
	})

	t.Run("订阅他人邮箱被拒绝", func(t *testing.T) {
		client := newTestClient(hub, "user-2")
		client.subscribeMailbox("mb-99")

		hub.mu.RLock()
		_, ok := hub.mailboxes["mb-99"][client.ID]
		hub.mu.RUnlock()
		assert.False(t, ok)
	})
}
