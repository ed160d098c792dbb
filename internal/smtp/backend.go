package smtp

import (
	"context"
	"errors"
	"io"
	"strings"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/cjaradhye/burnbox/internal/service"
)

// maxMessageBytes 单封邮件的最大体积
const maxMessageBytes = 10 << 20 // 10MB

// Backend 实现 go-smtp 的 Backend 接口，是本地开发环境的
// 邮件入口（生产环境经由 SES/SNS 推送）。
//
// 这是一个只收不发的 SMTP 服务器：
// - 只接收发往本系统管理域名的邮件
// - 收件人必须是已存在且未过期的邮箱
// - 外部地址一律返回 550，不做任何中继
type Backend struct {
	ingest  *service.IngestService
	domain  string
	limiter *ConnectionLimiter
	log     *zap.Logger
}

// NewBackend 创建 SMTP Backend。domain 是唯一允许接收的域名。
func NewBackend(ingest *service.IngestService, domain string, limiter *ConnectionLimiter, log *zap.Logger) *Backend {
	return &Backend{
		ingest:  ingest,
		domain:  strings.ToLower(domain),
		limiter: limiter,
		log:     log,
	}
}

// NewSession 创建新的 SMTP 会话。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	if b.limiter != nil && !b.limiter.Acquire() {
		b.log.Warn("smtp connection rejected",
			zap.Int("active_connections", b.limiter.Current()),
		)
		return nil, &gosmtp.SMTPError{
			Code:         421,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
			Message:      "too many connections, try again later",
		}
	}
	return &session{backend: b}, nil
}

type session struct {
	backend     *Backend
	fromAddress string
	recipients  []string
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, opts *gosmtp.MailOptions) error {
	s.fromAddress = normalizeAddress(from)
	return nil
}

// Rcpt 处理 RCPT 命令。
//
// 防中继的核心：只接受发往本系统域名、且对应邮箱存在
// 并未过期的地址，其余一律 550 拒绝。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := normalizeAddress(to)

	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}

	if !strings.EqualFold(parts[1], s.backend.domain) {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "relay access denied - domain not managed by this server",
		}
	}

	if _, err := s.backend.ingest.LookupRecipient(addr); err != nil {
		if errors.Is(err, service.ErrRecipientUnknown) {
			return &gosmtp.SMTPError{
				Code:         550,
				EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
				Message:      "recipient mailbox not found",
			}
		}
		return err
	}

	s.recipients = append(s.recipients, addr)
	return nil
}

// Data 处理邮件内容，解析 MIME 后交给投递服务。
func (s *session) Data(r io.Reader) error {
	rawBytes, err := io.ReadAll(io.LimitReader(r, maxMessageBytes))
	if err != nil {
		return err
	}

	parsed, err := ParseEmail(rawBytes)
	if err != nil {
		s.backend.log.Warn("failed to parse inbound mail",
			zap.String("from", s.fromAddress),
			zap.Error(err),
		)
		return &gosmtp.SMTPError{
			Code:         554,
			EnhancedCode: gosmtp.EnhancedCode{5, 6, 0},
			Message:      "message content rejected",
		}
	}

	from := s.fromAddress
	if parsed.From != "" {
		from = parsed.From
	}

	for _, rcpt := range s.recipients {
		inbound := &service.InboundMessage{
			To:          rcpt,
			From:        from,
			Subject:     parsed.Subject,
			Text:        parsed.Text,
			HTML:        parsed.HTML,
			Raw:         string(rawBytes),
			Attachments: parsed.Attachments,
		}
		if _, err := s.backend.ingest.Deliver(context.Background(), inbound); err != nil {
			if errors.Is(err, service.ErrRecipientUnknown) {
				// 邮箱在 RCPT 与 DATA 之间消失了，丢弃即可
				continue
			}
			return err
		}
	}
	return nil
}

// Reset 重置会话状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.recipients = nil
}

// Logout 会话结束。
func (s *session) Logout() error {
	if s.backend.limiter != nil {
		s.backend.limiter.Release()
	}
	return nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return strings.ToLower(addr)
}
