package storage

import (
	"context"
	"errors"

	"onebox/backend/internal/domain"
)

var (
	// ErrEmailNotFound 邮件未找到错误
	ErrEmailNotFound = errors.New("email not found")
)

// EmailRepository 定义邮件数据存取操作。
//
// 实现必须支持多个账户 worker 的并发调用；按 ID 的 upsert 必须幂等。
type EmailRepository interface {
	// Exists 判断 (messageID, account) 对应的邮件是否已入库。
	// 传输层错误必须返回 error，调用方按失败关闭处理（fail-closed）。
	Exists(ctx context.Context, messageID, account string) (bool, error)

	// UpsertEmail 按 ID 幂等写入单封邮件。
	UpsertEmail(ctx context.Context, email *domain.Email) error

	// UpsertEmails 批量幂等写入；任一错误视为整批失败。
	UpsertEmails(ctx context.Context, emails []*domain.Email) error

	// GetEmail 按 ID 获取邮件，未找到返回 ErrEmailNotFound。
	GetEmail(ctx context.Context, id string) (*domain.Email, error)

	// UpdateEmail 部分更新，总是刷新 UpdatedAt。
	UpdateEmail(ctx context.Context, id string, update domain.EmailUpdate) error

	// SearchEmails 按条件搜索，结果按 Date 倒序。
	SearchEmails(ctx context.Context, criteria domain.EmailSearchCriteria) (*domain.EmailSearchResult, error)
}

// Store 聚合存储能力与运维接口。
type Store interface {
	EmailRepository

	// Health 检查存储健康状态。
	Health() error

	// Close 释放底层连接。
	Close() error
}
