package event

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cjaradhye/burnbox/internal/domain"
	"github.com/cjaradhye/burnbox/internal/pool"
)

// Publisher 发布邮箱生命周期事件。发布是尽力而为的：
// 失败只记日志，绝不影响触发事件的业务操作。
type Publisher interface {
	PublishMailboxEvent(ctx context.Context, event domain.MailboxEvent)
	PublishMessageEvent(ctx context.Context, event domain.MessageEvent)
}

// RedisPublisher 基于 Redis Pub/Sub 的事件发布器。
// 配置了协程池时发布在池中异步执行，不阻塞业务调用方。
type RedisPublisher struct {
	client  *goredis.Client
	workers *pool.WorkerPool
	log     *zap.Logger
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher 创建 Redis 事件发布器。workers 可为 nil。
func NewRedisPublisher(client *goredis.Client, workers *pool.WorkerPool, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, workers: workers, log: log}
}

// PublishMailboxEvent 发布邮箱事件到 mailbox-events 主题。
func (p *RedisPublisher) PublishMailboxEvent(ctx context.Context, event domain.MailboxEvent) {
	p.publish(domain.TopicMailboxEvents, string(event.Type), event)
}

// PublishMessageEvent 发布邮件事件到 message-events 主题。
func (p *RedisPublisher) PublishMessageEvent(ctx context.Context, event domain.MessageEvent) {
	p.publish(domain.TopicMessageEvents, string(event.Type), event)
}

func (p *RedisPublisher) publish(topic, eventType string, payload interface{}) {
	task := func() {
		p.send(topic, eventType, payload)
	}

	if p.workers != nil {
		if !p.workers.TrySubmit(task) {
			p.log.Warn("event queue full, dropping event",
				zap.String("topic", topic),
				zap.String("event_type", eventType),
			)
		}
		return
	}
	task()
}

func (p *RedisPublisher) send(topic, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		p.log.Warn("failed to encode event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	// 请求上下文可能已经结束，发布用独立的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.client.Publish(ctx, topic, data).Err(); err != nil {
		p.log.Warn("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	p.log.Debug("event published",
		zap.String("topic", topic),
		zap.String("event_type", eventType),
	)
}

// NopPublisher 丢弃所有事件，用于未配置 Redis 的部署。
type NopPublisher struct{}

var _ Publisher = (*NopPublisher)(nil)

func (NopPublisher) PublishMailboxEvent(ctx context.Context, event domain.MailboxEvent) {}
func (NopPublisher) PublishMessageEvent(ctx context.Context, event domain.MessageEvent) {}
