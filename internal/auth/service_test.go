package auth

import (
	"testing"
	"time"

	"github.com/cjaradhye/burnbox/internal/auth/jwt"
	"github.com/cjaradhye/burnbox/internal/config"
	"github.com/cjaradhye/burnbox/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(store *memory.Store) (*Service, *jwt.Manager) {
	manager := jwt.NewManager("test-secret-key-32-chars-long-min", "test", 24*time.Hour)
	googleCfg := &config.GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
	}
	return NewService(store, manager, googleCfg, zap.NewNop()), manager
}

func TestService_LoginByEmail_CreatesLocalUser(t *testing.T) {
	store := memory.NewStore()
	service, manager := newTestService(store)

	token, created, err := service.LoginByEmail("alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotNil(t, created)
	assert.Equal(t, "alice@example.com", created.Email)

	claims, err := manager.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "alice", claims.Name)
	assert.True(t, len(claims.Subject) > len("local_"))
	assert.Equal(t, "local_", claims.Subject[:6])

	// 用户已落库，subject 可反查
	user, err := service.UserBySubject(claims.Subject)
	require.NoError(t, err)
	assert.Equal(t, claims.UserID, user.ID)
	require.NotNil(t, user.LastLoginAt)
}

func TestService_LoginByEmail_ExistingUser(t *testing.T) {
	store := memory.NewStore()
	service, manager := newTestService(store)

	token1, _, err := service.LoginByEmail("bob@example.com")
	require.NoError(t, err)
	claims1, err := manager.Validate(token1)
	require.NoError(t, err)

	// 第二次登录复用同一账号
	token2, _, err := service.LoginByEmail("Bob@Example.com")
	require.NoError(t, err)
	claims2, err := manager.Validate(token2)
	require.NoError(t, err)

	assert.Equal(t, claims1.UserID, claims2.UserID)
	assert.Equal(t, claims1.Subject, claims2.Subject)
}

func TestService_LoginByEmail_InvalidEmail(t *testing.T) {
	store := memory.NewStore()
	service, _ := newTestService(store)

	_, _, err := service.LoginByEmail("not-an-email")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, _, err = service.LoginByEmail("")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestService_UserBySubject_Unknown(t *testing.T) {
	store := memory.NewStore()
	service, _ := newTestService(store)

	_, err := service.UserBySubject("never-seen-subject")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_LoginURL(t *testing.T) {
	store := memory.NewStore()
	service, _ := newTestService(store)

	url := service.LoginURL("state-123")
	assert.Contains(t, url, "accounts.google.com")
	assert.Contains(t, url, "state=state-123")
	assert.Contains(t, url, "client_id=client-id")
}
