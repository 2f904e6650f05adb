package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"onebox/backend/internal/classify"
	"onebox/backend/internal/domain"
	"onebox/backend/internal/imapsync"
	"onebox/backend/internal/monitoring"
	"onebox/backend/internal/reply"
	"onebox/backend/internal/storage"
)

// dedupConcurrency 入库前存在性检查的并发上限
const dedupConcurrency = 8

// EmailNotifier 对外通知出口。
type EmailNotifier interface {
	Dispatch(ctx context.Context, email *domain.Email)
}

// Broadcaster 实时推送出口（WebSocket）。
type Broadcaster interface {
	BroadcastNewEmail(email *domain.Email)
}

// Orchestrator 串联同步管线：去重、分类、入库、通知。
// 同时承载 HTTP 层使用的查询与操作接口。
type Orchestrator struct {
	store      storage.Store
	classifier *classify.Classifier
	suggester  *reply.Suggester
	notifier   EmailNotifier
	broadcast  Broadcaster
	log        *zap.Logger
	metrics    *monitoring.Metrics

	syncManager *imapsync.Manager
}

// New 创建管线编排器。notifier 和 broadcast 可以为 nil。
func New(
	store storage.Store,
	classifier *classify.Classifier,
	suggester *reply.Suggester,
	notifier EmailNotifier,
	broadcast Broadcaster,
	log *zap.Logger,
	metrics *monitoring.Metrics,
) *Orchestrator {
	return &Orchestrator{
		store:      store,
		classifier: classifier,
		suggester:  suggester,
		notifier:   notifier,
		broadcast:  broadcast,
		log:        log,
		metrics:    metrics,
	}
}

// SetSyncManager 注入同步管理器，用于健康信息里的连接状态。
func (o *Orchestrator) SetSyncManager(manager *imapsync.Manager) {
	o.syncManager = manager
}

// ProcessBatch 处理一批新抓取的邮件。
//
// 流程：去重 → 分类 → 批量入库 → 通知。
// 存在性检查失败按失败关闭处理：宁可整批重试也不冒重复入库的风险。
// 入库失败同样让整批失败，同批邮件会在下一次抓取中重新出现。
func (o *Orchestrator) ProcessBatch(ctx context.Context, account string, emails []*domain.Email) error {
	if len(emails) == 0 {
		return nil
	}

	start := time.Now()

	fresh, err := o.dedup(ctx, account, emails)
	if err != nil {
		return fmt.Errorf("dedup batch for %s: %w", account, err)
	}
	if len(fresh) == 0 {
		return nil
	}

	if err := o.classifier.ClassifyEmails(ctx, fresh); err != nil {
		return fmt.Errorf("classify batch for %s: %w", account, err)
	}
	for _, email := range fresh {
		o.metrics.RecordClassifyResult(string(email.Category))
	}

	if err := o.store.UpsertEmails(ctx, fresh); err != nil {
		o.metrics.RecordError("upsert", "orchestrator")
		return fmt.Errorf("persist batch for %s: %w", account, err)
	}
	o.metrics.RecordEmailsSynced(account, len(fresh))

	for _, email := range fresh {
		if o.broadcast != nil {
			o.broadcast.BroadcastNewEmail(email)
		}
		if o.notifier != nil && email.Category == domain.CategoryInterested {
			o.notifier.Dispatch(ctx, email)
		}
	}

	o.log.Info("processed batch",
		zap.String("account", account),
		zap.Int("fetched", len(emails)),
		zap.Int("stored", len(fresh)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// dedup 并发检查存在性，返回尚未入库的邮件，保持原有顺序。
func (o *Orchestrator) dedup(ctx context.Context, account string, emails []*domain.Email) ([]*domain.Email, error) {
	keep := make([]bool, len(emails))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(dedupConcurrency)
	for i, email := range emails {
		i, email := i, email
		eg.Go(func() error {
			exists, err := o.store.Exists(egCtx, email.MessageID, email.Account)
			if err != nil {
				return err
			}
			keep[i] = !exists
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	fresh := make([]*domain.Email, 0, len(emails))
	for i, email := range emails {
		if keep[i] {
			fresh = append(fresh, email)
		} else {
			o.metrics.RecordDedupHit(account)
		}
	}
	return fresh, nil
}

// SearchEmails 按条件搜索邮件。
func (o *Orchestrator) SearchEmails(ctx context.Context, criteria domain.EmailSearchCriteria) (*domain.EmailSearchResult, error) {
	return o.store.SearchEmails(ctx, criteria)
}

// GetEmail 按 ID 获取邮件。
func (o *Orchestrator) GetEmail(ctx context.Context, id string) (*domain.Email, error) {
	return o.store.GetEmail(ctx, id)
}

// CategorizeEmail 对指定邮件按需重新执行 AI 分类并持久化结果。
// 新分类为 Interested 时照常触发通知。
func (o *Orchestrator) CategorizeEmail(ctx context.Context, id string) (*domain.Email, error) {
	email, err := o.store.GetEmail(ctx, id)
	if err != nil {
		return nil, err
	}

	category, err := o.classifier.ClassifyOne(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("classify email %s: %w", id, err)
	}
	o.metrics.RecordClassifyResult(string(category))

	if err := o.store.UpdateEmail(ctx, id, domain.EmailUpdate{Category: &category}); err != nil {
		return nil, err
	}
	email.Category = category

	if o.notifier != nil && category == domain.CategoryInterested {
		o.notifier.Dispatch(ctx, email)
	}
	return o.store.GetEmail(ctx, id)
}

// SetCategory 手工覆盖邮件分类，不经过分类后端。
func (o *Orchestrator) SetCategory(ctx context.Context, id string, category domain.EmailCategory) (*domain.Email, error) {
	if !category.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidCategory, category)
	}

	if err := o.store.UpdateEmail(ctx, id, domain.EmailUpdate{Category: &category}); err != nil {
		return nil, err
	}
	return o.store.GetEmail(ctx, id)
}

// MarkRead 修改邮件已读状态。
func (o *Orchestrator) MarkRead(ctx context.Context, id string, read bool) (*domain.Email, error) {
	if err := o.store.UpdateEmail(ctx, id, domain.EmailUpdate{Read: &read}); err != nil {
		return nil, err
	}
	return o.store.GetEmail(ctx, id)
}

// CategorizeAll 对全部已入库邮件重新执行 AI 分类，返回处理的邮件数。
// 逐页拉取避免一次性加载全部邮件。
func (o *Orchestrator) CategorizeAll(ctx context.Context) (int, error) {
	processed := 0
	page := 1

	for {
		result, err := o.store.SearchEmails(ctx, domain.EmailSearchCriteria{Page: page, PageSize: 100})
		if err != nil {
			return processed, err
		}
		if len(result.Emails) == 0 {
			break
		}

		batch := make([]*domain.Email, 0, len(result.Emails))
		for i := range result.Emails {
			batch = append(batch, &result.Emails[i])
		}

		if err := o.classifier.ClassifyEmails(ctx, batch); err != nil {
			return processed, err
		}

		for _, email := range batch {
			category := email.Category
			if err := o.store.UpdateEmail(ctx, email.ID, domain.EmailUpdate{Category: &category}); err != nil {
				return processed, err
			}
			if o.notifier != nil && category == domain.CategoryInterested {
				o.notifier.Dispatch(ctx, email)
			}
			processed++
		}

		if page >= result.TotalPages {
			break
		}
		page++
	}

	return processed, nil
}

// SuggestReply 为指定邮件生成回复建议。
func (o *Orchestrator) SuggestReply(ctx context.Context, id string) (*reply.SuggestedReply, error) {
	email, err := o.store.GetEmail(ctx, id)
	if err != nil {
		return nil, err
	}
	return o.suggester.SuggestReply(ctx, email), nil
}

// AddKnowledge 追加知识库条目。
func (o *Orchestrator) AddKnowledge(text string, entryType reply.EntryType, category string) reply.KnowledgeEntry {
	return o.suggester.KnowledgeBase().Add(text, entryType, category)
}

// KnowledgeEntries 返回知识库条目快照。
func (o *Orchestrator) KnowledgeEntries() []reply.KnowledgeEntry {
	return o.suggester.KnowledgeBase().Entries()
}

// ConnectionStates 返回各账户的连接状态。
func (o *Orchestrator) ConnectionStates() map[string]imapsync.ConnectionState {
	if o.syncManager == nil {
		return nil
	}
	return o.syncManager.States()
}

// Health 检查存储健康状态。
func (o *Orchestrator) Health() error {
	return o.store.Health()
}
