package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"onebox/backend/internal/domain"
)

// promptBodyLimit 送入后端的正文截断长度。
const promptBodyLimit = 500

// Classifier 批量邮件分类器。
//
// 邮件按固定批大小分组，组内并发调用后端，组间按限速器节流，
// 避免对 AI 服务触发限流。单封邮件的后端失败不会中断整批：
// 失败的邮件归为 Uncategorized，保证每封邮件都有分类结果。
type Classifier struct {
	backend   Backend
	log       *zap.Logger
	batchSize int
	limiter   *rate.Limiter
}

// NewClassifier 创建分类器。batchSize <= 0 时使用默认值 5。
func NewClassifier(backend Backend, log *zap.Logger, batchSize int) *Classifier {
	if batchSize <= 0 {
		batchSize = 5
	}
	return &Classifier{
		backend:   backend,
		log:       log,
		batchSize: batchSize,
		// 每秒放行一组，对应组间 1 秒的节流间隔
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// ClassifyOne 对单封邮件分类。
func (c *Classifier) ClassifyOne(ctx context.Context, email *domain.Email) (domain.EmailCategory, error) {
	raw, err := c.backend.Classify(ctx, BuildPrompt(email))
	if err != nil {
		return domain.CategoryUncategorized, err
	}
	return MapCategory(raw), nil
}

// ClassifyEmails 批量分类并就地写入 Category 字段。
//
// 只有上下文取消会让整批失败返回；后端错误逐封降级为 Uncategorized。
func (c *Classifier) ClassifyEmails(ctx context.Context, emails []*domain.Email) error {
	for start := 0; start < len(emails); start += c.batchSize {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		end := start + c.batchSize
		if end > len(emails) {
			end = len(emails)
		}
		group := emails[start:end]

		eg, groupCtx := errgroup.WithContext(ctx)
		for _, email := range group {
			email := email
			eg.Go(func() error {
				category, err := c.ClassifyOne(groupCtx, email)
				if err != nil {
					if groupCtx.Err() != nil {
						return groupCtx.Err()
					}
					c.log.Warn("classification failed, falling back to uncategorized",
						zap.String("backend", c.backend.Name()),
						zap.String("email_id", email.ID),
						zap.Error(err))
					category = domain.CategoryUncategorized
				}
				email.Category = category
				return nil
			})
		}

		if err := eg.Wait(); err != nil {
			return err
		}
	}

	return nil
}

// BuildPrompt 拼装送入后端的邮件摘要：主题、发件人和截断后的正文。
func BuildPrompt(email *domain.Email) string {
	body := email.Body
	if len(body) > promptBodyLimit {
		body = body[:promptBodyLimit]
	}

	from := email.From.Address
	if email.From.Name != "" {
		from = fmt.Sprintf("%s <%s>", email.From.Name, email.From.Address)
	}

	return fmt.Sprintf("Subject: %s\nFrom: %s\nBody: %s", email.Subject, from, body)
}

// MapCategory 将后端返回的原始标签归一化到分类闭集。
//
// 匹配不区分大小写，按固定优先级判定；无法识别的文本归为 Uncategorized。
func MapCategory(raw string) domain.EmailCategory {
	text := strings.ToLower(strings.TrimSpace(raw))

	switch {
	// 出现任何否定词都不能直接判为感兴趣，落到后面的规则继续判定
	case strings.Contains(text, "interested") && !strings.Contains(text, "not"):
		return domain.CategoryInterested
	case strings.Contains(text, "meeting") || strings.Contains(text, "booked"):
		return domain.CategoryMeetingBooked
	case strings.Contains(text, "not interested") || strings.Contains(text, "decline"):
		return domain.CategoryNotInterested
	case strings.Contains(text, "spam"):
		return domain.CategorySpam
	case strings.Contains(text, "out of office") || strings.Contains(text, "ooo"):
		return domain.CategoryOutOfOffice
	default:
		return domain.CategoryUncategorized
	}
}
