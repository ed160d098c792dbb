package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeLocalPart(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		fallback string
		expected string
	}{
		{"Plain lowercase", "alice", "mb-1", "alice"},
		{"Uppercase folded", "Alice", "mb-1", "alice"},
		{"Special characters stripped", "Test!!", "mb-1", "test"},
		{"Dots and dashes kept", "a.b-c", "mb-1", "a.b-c"},
		{"Spaces stripped", "my box", "mb-1", "mybox"},
		{"Unicode stripped", "ünïcode", "mb-1", "ncode"},
		{"All invalid falls back", "!!!", "mb-1", "mb-1"},
		{"Empty falls back", "", "mb-1", "mb-1"},
		{"Whitespace only falls back", "   ", "mb-1", "mb-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeLocalPart(tt.input, tt.fallback)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestBuildAddress(t *testing.T) {
	now := time.Unix(1700000000, 0)
	assert.Equal(t, "test-1700000000@burnbox.dev", BuildAddress("test", "burnbox.dev", now))
}

func TestValidDomain(t *testing.T) {
	tests := []struct {
		name     string
		domain   string
		expected bool
	}{
		{"Valid domain", "example.com", true},
		{"Valid subdomain", "mail.example.com", true},
		{"Missing dot", "localhost", false},
		{"Leading dot", ".example.com", false},
		{"Trailing dot", "example.com.", false},
		{"Double dot", "example..com", false},
		{"Label starts with dash", "-mail.example.com", false},
		{"Empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidDomain(tt.domain))
		})
	}
}

func TestMailboxExpiredAt(t *testing.T) {
	now := time.Now()
	mb := &Mailbox{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, mb.ExpiredAt(now))
	assert.True(t, mb.ExpiredAt(now.Add(time.Hour)))
	assert.True(t, mb.ExpiredAt(now.Add(2*time.Hour)))
}
