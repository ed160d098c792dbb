package security

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// ErrAttachmentRejected 附件未通过安全筛查
var ErrAttachmentRejected = errors.New("attachment rejected")

// executableMagic 常见可执行格式的文件头
var executableMagic = [][]byte{
	{0x4D, 0x5A},             // PE
	{0x7F, 0x45, 0x4C, 0x46}, // ELF
	{0xFE, 0xED, 0xFA, 0xCE}, // Mach-O
	{0xCE, 0xFA, 0xED, 0xFE}, // Mach-O (little-endian)
}

// AttachmentScreen 对入站附件做安全筛查。
// 被拒绝的附件在投递时丢弃，邮件本身照常入库。
type AttachmentScreen struct {
	maxSize           int64
	blockedExtensions map[string]bool
}

// NewAttachmentScreen 创建附件筛查器。maxSize 非正数时取 10MB。
func NewAttachmentScreen(maxSize int64) *AttachmentScreen {
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	return &AttachmentScreen{
		maxSize: maxSize,
		blockedExtensions: map[string]bool{
			".exe": true,
			".bat": true,
			".cmd": true,
			".scr": true,
			".pif": true,
			".com": true,
			".vbs": true,
			".jar": true,
			".msi": true,
			".dll": true,
		},
	}
}

// Screen 检查附件是否可以入库。返回 ErrAttachmentRejected 包装的
// 错误说明拒绝原因。
func (s *AttachmentScreen) Screen(filename, contentType string, content []byte) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if s.blockedExtensions[ext] {
		return fmt.Errorf("%w: blocked extension %s", ErrAttachmentRejected, ext)
	}

	if int64(len(content)) > s.maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrAttachmentRejected, len(content), s.maxSize)
	}

	for _, magic := range executableMagic {
		if bytes.HasPrefix(content, magic) {
			return fmt.Errorf("%w: executable content", ErrAttachmentRejected)
		}
	}

	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return fmt.Errorf("%w: malformed content type %q", ErrAttachmentRejected, contentType)
		}
		if mediaType == "application/x-msdownload" || mediaType == "application/x-executable" {
			return fmt.Errorf("%w: executable content type %s", ErrAttachmentRejected, mediaType)
		}
	}

	return nil
}
