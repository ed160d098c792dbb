package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenAcceptsOrdinaryFiles(t *testing.T) {
	screen := NewAttachmentScreen(0)

	assert.NoError(t, screen.Screen("invoice.pdf", "application/pdf", []byte("%PDF-1.4")))
	assert.NoError(t, screen.Screen("photo.png", "image/png", []byte{0x89, 0x50, 0x4E, 0x47}))
	assert.NoError(t, screen.Screen("notes.txt", "", []byte("plain text")))
}

func TestScreenBlocksDangerousExtensions(t *testing.T) {
	screen := NewAttachmentScreen(0)

	for _, name := range []string{"setup.exe", "run.BAT", "payload.scr", "lib.dll"} {
		err := screen.Screen(name, "application/octet-stream", []byte("data"))
		require.Error(t, err, name)
		assert.ErrorIs(t, err, ErrAttachmentRejected)
	}
}

func TestScreenBlocksExecutableMagic(t *testing.T) {
	screen := NewAttachmentScreen(0)

	// PE 头伪装成图片
	err := screen.Screen("cat.jpg", "image/jpeg", []byte{0x4D, 0x5A, 0x90, 0x00})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAttachmentRejected)

	err = screen.Screen("tool", "", []byte{0x7F, 0x45, 0x4C, 0x46})
	assert.ErrorIs(t, err, ErrAttachmentRejected)
}

func TestScreenEnforcesSizeLimit(t *testing.T) {
	screen := NewAttachmentScreen(16)

	assert.NoError(t, screen.Screen("small.txt", "text/plain", []byte("tiny")))

	err := screen.Screen("big.txt", "text/plain", make([]byte, 17))
	assert.ErrorIs(t, err, ErrAttachmentRejected)
}

func TestScreenRejectsMalformedContentType(t *testing.T) {
	screen := NewAttachmentScreen(0)

	err := screen.Screen("file.txt", ";;garbage", []byte("data"))
	assert.ErrorIs(t, err, ErrAttachmentRejected)
}
