package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 邮箱指标
	MailboxesCreated prometheus.Counter
	MailboxesDeleted prometheus.Counter
	MailboxesExpired prometheus.Counter
	MailboxesBurned  prometheus.Counter

	// 邮件指标
	MessagesReceived prometheus.Counter
	MessagesRead     prometheus.Counter
	MessagesDropped  prometheus.Counter

	// 入站通道指标
	SNSNotifications *prometheus.CounterVec

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "burnbox_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "burnbox_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		MailboxesCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "burnbox_mailboxes_created_total",
				Help: "Total number of mailboxes created",
			},
		),

		MailboxesDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "burnbox_mailboxes_deleted_total",
				Help: "Total number of mailboxes deleted by their owner",
			},
		),

		MailboxesExpired: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "burnbox_mailboxes_expired_total",
				Help: "Total number of mailboxes removed by the expiry sweeper",
			},
		),

		MailboxesBurned: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "burnbox_mailboxes_burned_total",
				Help: "Total number of mailboxes destroyed by burn-after-read",
			},
		),

		MessagesReceived: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "burnbox_messages_received_total",
				Help: "Total number of inbound messages delivered",
			},
		),

		MessagesRead: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "burnbox_messages_read_total",
				Help: "Total number of messages read",
			},
		),

		MessagesDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "burnbox_messages_dropped_total",
				Help: "Total number of inbound messages dropped for unknown or expired recipients",
			},
		),

		SNSNotifications: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "burnbox_sns_notifications_total",
				Help: "Total number of SNS webhook notifications by type",
			},
			[]string{"type"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "burnbox_errors_total",
				Help: "Total number of errors by type and component",
			},
			[]string{"error_type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "burnbox_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		RateLimitBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "burnbox_rate_limit_blocks_total",
				Help: "Total number of requests blocked by rate limiting",
			},
			[]string{"limit_type"},
		),
	}
}

// RecordHTTPRequest 记录一次 HTTP 请求。
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordError 记录一次错误。
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录一次 panic。
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录一次限流拦截。
func (m *Metrics) RecordRateLimitBlock(limitType string) {
	m.RateLimitBlocks.WithLabelValues(limitType).Inc()
}

// RecordSNSNotification 记录一次 SNS 通知。
func (m *Metrics) RecordSNSNotification(notificationType string) {
	m.SNSNotifications.WithLabelValues(notificationType).Inc()
}

// HTTPHandler 返回 /metrics 端点的处理器。
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
