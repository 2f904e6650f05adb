package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"onebox/backend/internal/domain"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// Cache Redis 缓存实现，用于加速邮件读取与去重判断。
type Cache struct {
	client *redis.Client
}

// NewCache 创建 Redis 缓存实例。
func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{client: client}, nil
}

func emailKey(id string) string {
	return fmt.Sprintf("email:%s", id)
}

func dedupKey(messageID, account string) string {
	return fmt.Sprintf("dedup:%s:%s", account, messageID)
}

// ========== 邮件缓存 ==========

// CacheEmail 缓存单封邮件。
func (c *Cache) CacheEmail(ctx context.Context, email *domain.Email, ttl time.Duration) error {
	data, err := json.Marshal(email)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, emailKey(email.ID), data, ttl).Err()
}

// GetCachedEmail 获取缓存的邮件，未命中返回 ErrCacheMiss。
func (c *Cache) GetCachedEmail(ctx context.Context, id string) (*domain.Email, error) {
	data, err := c.client.Get(ctx, emailKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var email domain.Email
	if err := json.Unmarshal([]byte(data), &email); err != nil {
		return nil, err
	}
	return &email, nil
}

// DeleteCachedEmail 删除缓存的邮件。
func (c *Cache) DeleteCachedEmail(ctx context.Context, id string) error {
	return c.client.Del(ctx, emailKey(id)).Err()
}

// ========== 去重标记 ==========

// MarkSeen 标记 (messageID, account) 已入库。
// 标记带 TTL，过期后回源数据库判断，不影响正确性。
func (c *Cache) MarkSeen(ctx context.Context, messageID, account string, ttl time.Duration) error {
	return c.client.Set(ctx, dedupKey(messageID, account), "1", ttl).Err()
}

// IsSeen 判断去重标记是否存在。
// 返回 false 仅表示缓存中没有标记，调用方仍需回源确认。
func (c *Cache) IsSeen(ctx context.Context, messageID, account string) (bool, error) {
	n, err := c.client.Exists(ctx, dedupKey(messageID, account)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Health 检查 Redis 连接状态。
func (c *Cache) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Close 关闭 Redis 连接。
func (c *Cache) Close() error {
	return c.client.Close()
}
