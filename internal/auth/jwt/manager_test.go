package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_GenerateAndValidate(t *testing.T) {
	manager := NewManager("test-secret", "test", 24*time.Hour)

	token, err := manager.Generate("google-sub-123", "user-1", "Alice", "alice@example.com", "https://pic.example.com/a.png")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.Validate(token)
	require.NoError(t, err)

	assert.Equal(t, "google-sub-123", claims.Subject)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "Alice", claims.Name)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "https://pic.example.com/a.png", claims.Picture)
	assert.Equal(t, "test", claims.Issuer)

	// 有效期应为 24 小时
	remaining := time.Until(claims.ExpiresAt.Time)
	assert.InDelta(t, (24 * time.Hour).Seconds(), remaining.Seconds(), 5)
}

func TestManager_Validate_Invalid(t *testing.T) {
	manager := NewManager("test-secret", "test", 24*time.Hour)

	_, err := manager.Validate("invalid-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_Validate_Expired(t *testing.T) {
	manager := NewManager("test-secret", "test", 1*time.Millisecond)

	token, err := manager.Generate("sub", "user-1", "", "", "")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = manager.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestManager_DifferentSecrets(t *testing.T) {
	manager1 := NewManager("secret-1", "test", 24*time.Hour)
	manager2 := NewManager("secret-2", "test", 24*time.Hour)

	token, err := manager1.Generate("sub", "user-1", "", "", "")
	require.NoError(t, err)

	// 不同密钥签名的令牌必须被拒绝
	_, err = manager2.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
