package httptransport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cjaradhye/burnbox/internal/monitoring"
	"github.com/cjaradhye/burnbox/internal/pool"
	"github.com/cjaradhye/burnbox/internal/service"
	"github.com/cjaradhye/burnbox/internal/smtp"
)

// snsEnvelope SNS 推送的外层消息
type snsEnvelope struct {
	Type         string `json:"Type"`
	MessageID    string `json:"MessageId"`
	TopicArn     string `json:"TopicArn"`
	Message      string `json:"Message"`
	SubscribeURL string `json:"SubscribeURL"`
	Timestamp    string `json:"Timestamp"`
}

// sesNotification SES 收件通知，SNS Message 字段内嵌的 JSON
type sesNotification struct {
	NotificationType string `json:"notificationType"`
	Mail             struct {
		Source        string   `json:"source"`
		Destination   []string `json:"destination"`
		Timestamp     string   `json:"timestamp"`
		CommonHeaders struct {
			Subject string `json:"subject"`
		} `json:"commonHeaders"`
	} `json:"mail"`
	// content 为完整的原始 MIME，可能经过 base64 编码
	Content string `json:"content"`
}

// SNSHandler 处理 AWS SNS/SES 收件回调。
// 该端点不做鉴权，由 SNS 直接调用；任何处理失败都只记录日志并
// 返回 200，避免触发 SNS 的重试风暴。
type SNSHandler struct {
	ingest  *service.IngestService
	workers *pool.WorkerPool
	metrics *monitoring.Metrics
	client  *http.Client
	log     *zap.Logger
}

// NewSNSHandler 创建 SNS 回调处理器。workers 和 metrics 可为 nil。
func NewSNSHandler(ingest *service.IngestService, workers *pool.WorkerPool, metrics *monitoring.Metrics, log *zap.Logger) *SNSHandler {
	return &SNSHandler{
		ingest:  ingest,
		workers: workers,
		metrics: metrics,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// HandleEvent 入口：区分订阅确认握手与普通收件通知。
func (h *SNSHandler) HandleEvent(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Warn("failed to read sns payload", zap.Error(err))
		Success(c, gin.H{"status": "received"})
		return
	}

	var envelope snsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.log.Warn("invalid sns payload", zap.Error(err))
		Success(c, gin.H{"status": "received"})
		return
	}

	if h.metrics != nil {
		h.metrics.RecordSNSNotification(envelope.Type)
	}

	switch envelope.Type {
	case "SubscriptionConfirmation":
		h.confirmSubscription(c.Request.Context(), envelope.SubscribeURL)
		Success(c, gin.H{"status": "subscription confirmed"})
	case "Notification":
		h.dispatchNotification(envelope.Message)
		Success(c, gin.H{"status": "event processed"})
	default:
		h.log.Info("ignoring sns message", zap.String("type", envelope.Type))
		Success(c, gin.H{"status": "received"})
	}
}

// confirmSubscription 对 SubscribeURL 发起 GET 完成订阅握手。
func (h *SNSHandler) confirmSubscription(ctx context.Context, subscribeURL string) {
	if subscribeURL == "" {
		h.log.Warn("subscription confirmation missing SubscribeURL")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, subscribeURL, nil)
	if err != nil {
		h.log.Warn("invalid SubscribeURL", zap.Error(err))
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.log.Warn("subscription confirmation request failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	h.log.Info("sns subscription confirmed", zap.Int("status", resp.StatusCode))
}

// dispatchNotification 解析 SES 通知并把投递任务丢给工作池。
func (h *SNSHandler) dispatchNotification(message string) {
	var notification sesNotification
	if err := json.Unmarshal([]byte(message), &notification); err != nil {
		h.log.Warn("invalid ses notification", zap.Error(err))
		return
	}
	if len(notification.Mail.Destination) == 0 {
		h.log.Warn("ses notification without destination",
			zap.String("source", notification.Mail.Source))
		return
	}

	task := func() { h.ingestNotification(notification) }
	if h.workers != nil {
		if !h.workers.TrySubmit(task) {
			h.log.Warn("ingestion queue full, dropping ses notification",
				zap.String("source", notification.Mail.Source))
		}
		return
	}
	task()
}

func (h *SNSHandler) ingestNotification(notification sesNotification) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	inbound := h.buildInbound(notification)

	for _, dest := range notification.Mail.Destination {
		inbound.To = dest
		if _, err := h.ingest.Deliver(ctx, inbound); err != nil {
			if errors.Is(err, service.ErrRecipientUnknown) {
				h.log.Debug("dropping message for unknown recipient",
					zap.String("to", dest))
				continue
			}
			h.log.Error("failed to deliver ses message",
				zap.String("to", dest),
				zap.Error(err),
			)
		}
	}
}

// buildInbound 把 SES 通知转成统一的入站邮件结构。
// content 携带完整 MIME 时走解析器提取正文与附件，
// 否则退化为只有头部元数据的纯文本消息。
func (h *SNSHandler) buildInbound(notification sesNotification) *service.InboundMessage {
	receivedAt := time.Now().UTC()
	if ts, err := time.Parse(time.RFC3339, notification.Mail.Timestamp); err == nil {
		receivedAt = ts.UTC()
	}

	inbound := &service.InboundMessage{
		From:       notification.Mail.Source,
		Subject:    notification.Mail.CommonHeaders.Subject,
		ReceivedAt: receivedAt,
	}

	raw := rawContent(notification.Content)
	if len(raw) == 0 {
		return inbound
	}
	inbound.Raw = string(raw)

	parsed, err := smtp.ParseEmail(raw)
	if err != nil {
		h.log.Warn("failed to parse ses mime content", zap.Error(err))
		return inbound
	}

	inbound.Text = parsed.Text
	inbound.HTML = parsed.HTML
	inbound.Attachments = parsed.Attachments
	if inbound.Subject == "" {
		inbound.Subject = parsed.Subject
	}
	if inbound.From == "" {
		inbound.From = parsed.From
	}
	return inbound
}

// rawContent SES 的 content 字段通常是 base64 编码的原始 MIME，
// 但也可能直接是明文。
func rawContent(content string) []byte {
	if content == "" {
		return nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(content); err == nil {
		return decoded
	}
	return []byte(content)
}
