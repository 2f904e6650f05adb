package hybrid

import (
	"context"
	"fmt"
	"time"

	"onebox/backend/internal/domain"
	"onebox/backend/internal/storage/postgres"
	"onebox/backend/internal/storage/redis"
)

const (
	emailCacheTTL = 24 * time.Hour
	dedupCacheTTL = 7 * 24 * time.Hour
)

// Store 混合存储实现，结合 SQL 数据库与 Redis 缓存。
//
// 数据库是事实来源；Redis 只做读加速与去重快路径，
// 缓存任何失败都降级回数据库，不影响正确性。
type Store struct {
	db    *postgres.Store
	cache *redis.Cache
}

// NewStore 创建混合存储实例 (PostgreSQL)。
func NewStore(postgresDSN, redisAddr, redisPassword string, redisDB int) (*Store, error) {
	return NewStoreWithType("postgres", postgresDSN, redisAddr, redisPassword, redisDB)
}

// NewStoreWithType 创建混合存储实例（指定数据库类型）。
func NewStoreWithType(dbType, dsn, redisAddr, redisPassword string, redisDB int) (*Store, error) {
	var dbStore *postgres.Store
	var err error

	switch dbType {
	case "mysql":
		dbStore, err = postgres.NewMySQLStore(dsn)
	case "postgres", "postgresql":
		dbStore, err = postgres.NewStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s (supported: mysql, postgres)", dbType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cache, err := redis.NewCache(redisAddr, redisPassword, redisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	return &Store{db: dbStore, cache: cache}, nil
}

// Exists 判断 (messageID, account) 对应的邮件是否已入库。
// 缓存命中直接返回；未命中回源数据库，命中后补写缓存。
func (s *Store) Exists(ctx context.Context, messageID, account string) (bool, error) {
	if seen, err := s.cache.IsSeen(ctx, messageID, account); err == nil && seen {
		return true, nil
	}

	exists, err := s.db.Exists(ctx, messageID, account)
	if err != nil {
		return false, err
	}
	if exists {
		_ = s.cache.MarkSeen(ctx, messageID, account, dedupCacheTTL)
	}
	return exists, nil
}

// UpsertEmail 按 ID 幂等写入单封邮件。
func (s *Store) UpsertEmail(ctx context.Context, email *domain.Email) error {
	if err := s.db.UpsertEmail(ctx, email); err != nil {
		return err
	}

	_ = s.cache.CacheEmail(ctx, email, emailCacheTTL)
	_ = s.cache.MarkSeen(ctx, email.MessageID, email.Account, dedupCacheTTL)
	return nil
}

// UpsertEmails 批量幂等写入。
func (s *Store) UpsertEmails(ctx context.Context, emails []*domain.Email) error {
	if err := s.db.UpsertEmails(ctx, emails); err != nil {
		return err
	}

	for _, email := range emails {
		_ = s.cache.CacheEmail(ctx, email, emailCacheTTL)
		_ = s.cache.MarkSeen(ctx, email.MessageID, email.Account, dedupCacheTTL)
	}
	return nil
}

// GetEmail 按 ID 获取邮件，优先读缓存。
func (s *Store) GetEmail(ctx context.Context, id string) (*domain.Email, error) {
	if email, err := s.cache.GetCachedEmail(ctx, id); err == nil {
		return email, nil
	}

	email, err := s.db.GetEmail(ctx, id)
	if err != nil {
		return nil, err
	}

	_ = s.cache.CacheEmail(ctx, email, emailCacheTTL)
	return email, nil
}

// UpdateEmail 部分更新邮件并使缓存失效。
func (s *Store) UpdateEmail(ctx context.Context, id string, update domain.EmailUpdate) error {
	if err := s.db.UpdateEmail(ctx, id, update); err != nil {
		return err
	}

	_ = s.cache.DeleteCachedEmail(ctx, id)
	return nil
}

// SearchEmails 搜索直接走数据库（列表查询不缓存）。
func (s *Store) SearchEmails(ctx context.Context, criteria domain.EmailSearchCriteria) (*domain.EmailSearchResult, error) {
	return s.db.SearchEmails(ctx, criteria)
}

// Health 数据库必须可用；Redis 故障不判定为不健康。
func (s *Store) Health() error {
	return s.db.Health()
}

// Close 关闭数据库与 Redis 连接。
func (s *Store) Close() error {
	dbErr := s.db.Close()
	cacheErr := s.cache.Close()
	if dbErr != nil {
		return dbErr
	}
	return cacheErr
}
