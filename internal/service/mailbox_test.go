package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cjaradhye/burnbox/internal/config"
	"github.com/cjaradhye/burnbox/internal/domain"
	"github.com/cjaradhye/burnbox/internal/event"
	"github.com/cjaradhye/burnbox/internal/storage"
	"github.com/cjaradhye/burnbox/internal/storage/memory"
)

// recordingPublisher 记录收到的事件，供测试断言。
type recordingPublisher struct {
	mu            sync.Mutex
	mailboxEvents []domain.MailboxEvent
	messageEvents []domain.MessageEvent
}

func (p *recordingPublisher) PublishMailboxEvent(ctx context.Context, event domain.MailboxEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mailboxEvents = append(p.mailboxEvents, event)
}

func (p *recordingPublisher) PublishMessageEvent(ctx context.Context, event domain.MessageEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messageEvents = append(p.messageEvents, event)
}

var _ event.Publisher = (*recordingPublisher)(nil)

func testMailboxConfig() *config.MailboxConfig {
	return &config.MailboxConfig{
		Domain:          "burnbox.dev",
		DefaultLifespan: 1,
		MaxLifespan:     30,
		SweepInterval:   time.Hour,
	}
}

func newTestMailboxService() (*MailboxService, *memory.Store, *recordingPublisher) {
	store := memory.NewStore()
	events := &recordingPublisher{}
	svc := NewMailboxService(store, storage.NewMemoryBlobStore(), events, testMailboxConfig(), zap.NewNop())
	return svc, store, events
}

func TestMailboxService_Create(t *testing.T) {
	svc, _, events := newTestMailboxService()

	mb, err := svc.Create(context.Background(), CreateMailboxInput{
		UserID:    "user-1",
		Lifespan:  3,
		EmailName: "Test!!",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(mb.Address, "test-"), "address should start with sanitized name")
	assert.True(t, strings.HasSuffix(mb.Address, "@burnbox.dev"))
	assert.Equal(t, "test", mb.LocalPart)
	assert.Equal(t, 3, mb.Lifespan)
	assert.False(t, mb.BurnAfterRead)

	// 过期时刻精确等于创建时刻加 lifespan 天
	assert.Equal(t, mb.CreatedAt.Add(3*24*time.Hour), mb.ExpiresAt)

	require.Len(t, events.mailboxEvents, 1)
	assert.Equal(t, domain.EventMailboxCreated, events.mailboxEvents[0].Type)
	assert.Equal(t, mb.ID, events.mailboxEvents[0].MailboxID)
	assert.Equal(t, mb.Address, events.mailboxEvents[0].Address)
}

func TestMailboxService_CreateLifespanBounds(t *testing.T) {
	svc, _, _ := newTestMailboxService()

	tests := []struct {
		name     string
		lifespan int
		want     int
	}{
		{"零值取默认", 0, 1},
		{"负值取默认", -5, 1},
		{"超过上限截断", 365, 30},
		{"正常值保留", 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mb, err := svc.Create(context.Background(), CreateMailboxInput{
				UserID:   "user-1",
				Lifespan: tt.lifespan,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, mb.Lifespan)
			assert.Equal(t, mb.CreatedAt.Add(time.Duration(tt.want)*24*time.Hour), mb.ExpiresAt)
		})
	}
}

func TestMailboxService_CreateEmptyNameFallsBackToID(t *testing.T) {
	svc, _, _ := newTestMailboxService()

	mb, err := svc.Create(context.Background(), CreateMailboxInput{
		UserID:    "user-1",
		EmailName: "!!!",
	})
	require.NoError(t, err)
	assert.Equal(t, mb.ID, mb.LocalPart, "unusable name should fall back to mailbox id")
}

func TestMailboxService_Authorize(t *testing.T) {
	svc, _, _ := newTestMailboxService()

	mb, err := svc.Create(context.Background(), CreateMailboxInput{UserID: "owner"})
	require.NoError(t, err)

	// 不存在的邮箱返回 not found
	_, err = svc.Get("owner", "no-such-id")
	assert.ErrorIs(t, err, ErrMailboxNotFound)

	// 别人的邮箱返回 forbidden，而不是 not found
	_, err = svc.Get("intruder", mb.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	err = svc.Delete(context.Background(), "intruder", mb.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Status("intruder", mb.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// 拥有者正常访问
	got, err := svc.Get("owner", mb.ID)
	require.NoError(t, err)
	assert.Equal(t, mb.ID, got.ID)
}

func TestMailboxService_ExpiredMailbox(t *testing.T) {
	svc, store, _ := newTestMailboxService()

	mb, err := svc.Create(context.Background(), CreateMailboxInput{UserID: "user-1"})
	require.NoError(t, err)

	// 把邮箱改成已过期
	mb.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.SaveMailbox(mb))

	// 读取时过期邮箱视为不存在
	_, err = svc.Get("user-1", mb.ID)
	assert.ErrorIs(t, err, ErrMailboxNotFound)

	// 列表中不出现
	assert.Empty(t, svc.List("user-1"))

	// 状态查询仍可用，标记为不活跃
	status, err := svc.Status("user-1", mb.ID)
	require.NoError(t, err)
	assert.False(t, status.Active)
}

func TestMailboxService_List(t *testing.T) {
	svc, _, _ := newTestMailboxService()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), CreateMailboxInput{UserID: "user-1"})
		require.NoError(t, err)
	}
	_, err := svc.Create(context.Background(), CreateMailboxInput{UserID: "user-2"})
	require.NoError(t, err)

	assert.Len(t, svc.List("user-1"), 3)
	assert.Len(t, svc.List("user-2"), 1)
	assert.Empty(t, svc.List("user-3"))
}

func TestMailboxService_Delete(t *testing.T) {
	svc, _, events := newTestMailboxService()

	mb, err := svc.Create(context.Background(), CreateMailboxInput{UserID: "user-1"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "user-1", mb.ID))

	_, err = svc.Get("user-1", mb.ID)
	assert.ErrorIs(t, err, ErrMailboxNotFound)

	// 二次删除返回 not found
	err = svc.Delete(context.Background(), "user-1", mb.ID)
	assert.ErrorIs(t, err, ErrMailboxNotFound)

	// 删除广播一条过期事件
	var expiredEvents int
	for _, ev := range events.mailboxEvents {
		if ev.Type == domain.EventMailboxExpired {
			expiredEvents++
		}
	}
	assert.Equal(t, 1, expiredEvents)
}

func TestMailboxService_Sweep(t *testing.T) {
	svc, store, events := newTestMailboxService()

	live, err := svc.Create(context.Background(), CreateMailboxInput{UserID: "user-1"})
	require.NoError(t, err)
	expired, err := svc.Create(context.Background(), CreateMailboxInput{UserID: "user-1"})
	require.NoError(t, err)

	expired.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.SaveMailbox(expired))

	count, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// 存活邮箱不受影响
	_, err = svc.Get("user-1", live.ID)
	assert.NoError(t, err)
	_, err = store.GetMailbox(expired.ID)
	assert.Error(t, err)

	// 每个被清理的邮箱广播一条过期事件
	var expiredEvents []domain.MailboxEvent
	for _, ev := range events.mailboxEvents {
		if ev.Type == domain.EventMailboxExpired {
			expiredEvents = append(expiredEvents, ev)
		}
	}
	require.Len(t, expiredEvents, 1)
	assert.Equal(t, expired.ID, expiredEvents[0].MailboxID)
}
