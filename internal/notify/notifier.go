package notify

import (
	"context"

	"go.uber.org/zap"

	"onebox/backend/internal/domain"
	"onebox/backend/internal/monitoring"
	"onebox/backend/internal/pool"
)

// Notifier 单个通知渠道。
type Notifier interface {
	// Name 返回渠道名称，用于日志与指标。
	Name() string

	// Notify 推送一封触发通知的邮件。
	Notify(ctx context.Context, email *domain.Email) error
}

// Dispatcher 将通知扇出到所有已配置的渠道。
//
// 投递是尽力而为的：渠道失败只记日志和指标，
// 不会影响邮件入库，也不会触发重投。
type Dispatcher struct {
	notifiers []Notifier
	workers   *pool.WorkerPool
	log       *zap.Logger
	metrics   *monitoring.Metrics
}

// NewDispatcher 创建通知分发器。
func NewDispatcher(notifiers []Notifier, workers *pool.WorkerPool, log *zap.Logger, metrics *monitoring.Metrics) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		workers:   workers,
		log:       log,
		metrics:   metrics,
	}
}

// Dispatch 异步推送一封邮件到所有渠道。
// 队列满时丢弃本次投递而不是阻塞同步主流程。
func (d *Dispatcher) Dispatch(ctx context.Context, email *domain.Email) {
	for _, notifier := range d.notifiers {
		notifier := notifier
		submitted := d.workers.TrySubmit(func() {
			err := notifier.Notify(ctx, email)
			d.metrics.RecordNotification(notifier.Name(), err)
			if err != nil {
				d.log.Warn("notification delivery failed",
					zap.String("channel", notifier.Name()),
					zap.String("email_id", email.ID),
					zap.Error(err))
			}
		})
		if !submitted {
			d.metrics.RecordNotification(notifier.Name(), errQueueFull)
			d.log.Warn("notification queue full, dropping delivery",
				zap.String("channel", notifier.Name()),
				zap.String("email_id", email.ID))
		}
	}
}

// Channels 返回已配置的渠道名称。
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.notifiers))
	for _, notifier := range d.notifiers {
		names = append(names, notifier.Name())
	}
	return names
}
