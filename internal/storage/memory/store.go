package memory

import (
	"context"
	"sync"
	"time"

	"onebox/backend/internal/domain"
	"onebox/backend/internal/storage"
)

// Store 使用内存保存邮件数据，主要用于开发验证与测试。
type Store struct {
	mu      sync.RWMutex
	emails  map[string]*domain.Email // id -> email
	byDedup map[string]string        // dedupKey(messageID, account) -> id
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		emails:  make(map[string]*domain.Email),
		byDedup: make(map[string]string),
	}
}

// dedupKey 构造 (messageID, account) 去重键。
func dedupKey(messageID, account string) string {
	return account + "\x00" + messageID
}

// Exists 判断邮件是否已入库。
func (s *Store) Exists(_ context.Context, messageID, account string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byDedup[dedupKey(messageID, account)]
	return ok, nil
}

// UpsertEmail 按 ID 幂等写入单封邮件。
func (s *Store) UpsertEmail(_ context.Context, email *domain.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertLocked(email)
	return nil
}

// UpsertEmails 批量幂等写入。
func (s *Store) UpsertEmails(_ context.Context, emails []*domain.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, email := range emails {
		s.upsertLocked(email)
	}
	return nil
}

func (s *Store) upsertLocked(email *domain.Email) {
	clone := *email
	s.emails[clone.ID] = &clone
	s.byDedup[dedupKey(clone.MessageID, clone.Account)] = clone.ID
}

// GetEmail 按 ID 获取邮件。
func (s *Store) GetEmail(_ context.Context, id string) (*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.emails[id]
	if !ok {
		return nil, storage.ErrEmailNotFound
	}
	clone := *email
	return &clone, nil
}

// UpdateEmail 部分更新邮件，总是刷新 UpdatedAt。
func (s *Store) UpdateEmail(_ context.Context, id string, update domain.EmailUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emails[id]
	if !ok {
		return storage.ErrEmailNotFound
	}

	if update.Category != nil {
		email.Category = *update.Category
	}
	if update.Read != nil {
		email.Read = *update.Read
	}
	email.UpdatedAt = time.Now().UTC()
	return nil
}

// Health 内存存储始终可用。
func (s *Store) Health() error {
	return nil
}

// Close 内存存储无需释放资源。
func (s *Store) Close() error {
	return nil
}
