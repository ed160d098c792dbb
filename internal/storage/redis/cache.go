package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cjaradhye/burnbox/internal/domain"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// Cache 基于 Redis 的读缓存，用于降低热点邮箱的数据库压力。
type Cache struct {
	client *goredis.Client
}

// NewCache 基于已有客户端创建缓存实例
func NewCache(client *Client) *Cache {
	return &Cache{client: client.Client()}
}

func mailboxKey(id string) string        { return fmt.Sprintf("mailbox:%s", id) }
func mailboxAddrKey(addr string) string  { return fmt.Sprintf("mailbox:addr:%s", addr) }
func messageListKey(mailboxID string) string { return fmt.Sprintf("messages:%s", mailboxID) }

// CacheMailbox 缓存邮箱信息，TTL 不超过邮箱剩余生命期。
func (c *Cache) CacheMailbox(ctx context.Context, mailbox *domain.Mailbox, ttl time.Duration) error {
	data, err := json.Marshal(mailbox)
	if err != nil {
		return err
	}
	pipe := c.client.Pipeline()
	pipe.Set(ctx, mailboxKey(mailbox.ID), data, ttl)
	pipe.Set(ctx, mailboxAddrKey(mailbox.Address), mailbox.ID, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// GetCachedMailbox 获取缓存的邮箱信息
func (c *Cache) GetCachedMailbox(ctx context.Context, mailboxID string) (*domain.Mailbox, error) {
	data, err := c.client.Get(ctx, mailboxKey(mailboxID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var mailbox domain.Mailbox
	if err := json.Unmarshal([]byte(data), &mailbox); err != nil {
		return nil, err
	}
	return &mailbox, nil
}

// GetCachedMailboxID 按地址反查邮箱 ID
func (c *Cache) GetCachedMailboxID(ctx context.Context, address string) (string, error) {
	id, err := c.client.Get(ctx, mailboxAddrKey(address)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return id, nil
}

// InvalidateMailbox 删除邮箱相关的全部缓存
func (c *Cache) InvalidateMailbox(ctx context.Context, mailboxID, address string) error {
	keys := []string{mailboxKey(mailboxID), messageListKey(mailboxID)}
	if address != "" {
		keys = append(keys, mailboxAddrKey(address))
	}
	return c.client.Del(ctx, keys...).Err()
}

// CacheMessageList 缓存邮件列表
func (c *Cache) CacheMessageList(ctx context.Context, mailboxID string, messages []domain.Message, ttl time.Duration) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, messageListKey(mailboxID), data, ttl).Err()
}

// GetCachedMessageList 获取缓存的邮件列表
func (c *Cache) GetCachedMessageList(ctx context.Context, mailboxID string) ([]domain.Message, error) {
	data, err := c.client.Get(ctx, messageListKey(mailboxID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var messages []domain.Message
	if err := json.Unmarshal([]byte(data), &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// InvalidateMessageList 删除邮件列表缓存
func (c *Cache) InvalidateMessageList(ctx context.Context, mailboxID string) error {
	return c.client.Del(ctx, messageListKey(mailboxID)).Err()
}
