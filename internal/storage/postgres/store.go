package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"onebox/backend/internal/domain"
	"onebox/backend/internal/storage"
)

// Store SQL 数据库存储实现（支持 PostgreSQL 和 MySQL）。
type Store struct {
	db         *gorm.DB
	driverName string // "postgres" or "mysql"
}

// NewStore 创建 PostgreSQL 存储实例。
func NewStore(dsn string) (*Store, error) {
	return newStoreWithDialector(postgres.Open(dsn), "postgres")
}

// NewMySQLStore 创建 MySQL 存储实例。
func NewMySQLStore(dsn string) (*Store, error) {
	return newStoreWithDialector(mysql.Open(dsn), "mysql")
}

// newStoreWithDialector 使用指定的 GORM dialector 创建存储实例。
func newStoreWithDialector(dialector gorm.Dialector, driverName string) (*Store, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	store := &Store{db: db, driverName: driverName}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移数据库表结构。
func (s *Store) migrate() error {
	return s.db.AutoMigrate(&domain.Email{})
}

// Exists 判断 (messageID, account) 对应的邮件是否已入库。
func (s *Store) Exists(ctx context.Context, messageID, account string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&domain.Email{}).
		Where("message_id = ? AND account = ?", messageID, account).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("existence check: %w", err)
	}
	return count > 0, nil
}

// UpsertEmail 按 ID 幂等写入单封邮件。
func (s *Store) UpsertEmail(ctx context.Context, email *domain.Email) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(email).Error
	if err != nil {
		return fmt.Errorf("upsert email: %w", err)
	}
	return nil
}

// UpsertEmails 批量幂等写入，整批在一个事务中完成。
func (s *Store) UpsertEmails(ctx context.Context, emails []*domain.Email) error {
	if len(emails) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&emails).Error
	})
	if err != nil {
		return fmt.Errorf("bulk upsert %d emails: %w", len(emails), err)
	}
	return nil
}

// GetEmail 按 ID 获取邮件。
func (s *Store) GetEmail(ctx context.Context, id string) (*domain.Email, error) {
	var email domain.Email
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrEmailNotFound
		}
		return nil, fmt.Errorf("get email: %w", err)
	}
	return &email, nil
}

// UpdateEmail 部分更新邮件，总是刷新 UpdatedAt。
func (s *Store) UpdateEmail(ctx context.Context, id string, update domain.EmailUpdate) error {
	fields := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if update.Category != nil {
		fields["category"] = *update.Category
	}
	if update.Read != nil {
		fields["read"] = *update.Read
	}

	result := s.db.WithContext(ctx).
		Model(&domain.Email{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("update email: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrEmailNotFound
	}
	return nil
}

// SearchEmails 按条件搜索邮件，结果按 Date 倒序。
func (s *Store) SearchEmails(ctx context.Context, criteria domain.EmailSearchCriteria) (*domain.EmailSearchResult, error) {
	criteria.Normalize()

	query := s.db.WithContext(ctx).Model(&domain.Email{})

	if criteria.Account != "" {
		query = query.Where("account = ?", criteria.Account)
	}
	if criteria.Folder != "" {
		query = query.Where("folder = ?", criteria.Folder)
	}
	if criteria.Category != "" {
		query = query.Where("category = ?", criteria.Category)
	}
	if criteria.Query != "" {
		pattern := "%" + criteria.Query + "%"
		like := s.likeOperator()
		query = query.Where(
			fmt.Sprintf("subject %s ? OR body %s ? OR %s %s ?", like, like, s.fromColumn(), like),
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count emails: %w", err)
	}

	var emails []domain.Email
	err := query.
		Order("date DESC").
		Offset((criteria.Page - 1) * criteria.PageSize).
		Limit(criteria.PageSize).
		Find(&emails).Error
	if err != nil {
		return nil, fmt.Errorf("search emails: %w", err)
	}

	totalPages := (int(total) + criteria.PageSize - 1) / criteria.PageSize

	return &domain.EmailSearchResult{
		Emails:     emails,
		Total:      int(total),
		Page:       criteria.Page,
		PageSize:   criteria.PageSize,
		TotalPages: totalPages,
	}, nil
}

// likeOperator PostgreSQL 使用 ILIKE 以忽略大小写，MySQL 的 LIKE 默认不区分大小写。
func (s *Store) likeOperator() string {
	if s.driverName == "postgres" {
		return "ILIKE"
	}
	return "LIKE"
}

// fromColumn 发件人列是 JSON 类型且 "from" 是保留字，按方言转成文本再匹配。
func (s *Store) fromColumn() string {
	if s.driverName == "mysql" {
		return "CAST(`from` AS CHAR)"
	}
	return `"from"::text`
}

// Health 检查数据库健康状态。
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close 关闭数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
