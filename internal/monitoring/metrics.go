package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 同步指标
	EmailsSynced     *prometheus.CounterVec
	DedupHits        *prometheus.CounterVec
	SyncBatchSize    prometheus.Histogram
	IMAPReconnects   *prometheus.CounterVec
	IMAPConnected    *prometheus.GaugeVec
	FetchesSuppressed *prometheus.CounterVec

	// 分类指标
	ClassifyDuration *prometheus.HistogramVec
	ClassifyResults  *prometheus.CounterVec
	ClassifyFailures *prometheus.CounterVec

	// 通知指标
	NotificationsSent   *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "onebox_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		EmailsSynced: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_emails_synced_total",
				Help: "Total number of emails persisted per account",
			},
			[]string{"account"},
		),

		DedupHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_dedup_hits_total",
				Help: "Total number of emails skipped as duplicates",
			},
			[]string{"account"},
		),

		SyncBatchSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "onebox_sync_batch_size",
				Help:    "Number of emails per processed batch",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),

		IMAPReconnects: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_imap_reconnects_total",
				Help: "Total number of IMAP reconnect attempts",
			},
			[]string{"account"},
		),

		IMAPConnected: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "onebox_imap_connected",
				Help: "Whether the IMAP connection is established (1) or not (0)",
			},
			[]string{"account"},
		),

		FetchesSuppressed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_fetches_suppressed_total",
				Help: "Total number of fetch triggers skipped because one was in flight",
			},
			[]string{"account"},
		),

		ClassifyDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "onebox_classify_duration_seconds",
				Help:    "Classification duration per batch in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),

		ClassifyResults: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_classify_results_total",
				Help: "Total number of classification results per category",
			},
			[]string{"category"},
		),

		ClassifyFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_classify_failures_total",
				Help: "Total number of failed classification calls",
			},
			[]string{"backend"},
		),

		NotificationsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_notifications_sent_total",
				Help: "Total number of notifications delivered",
			},
			[]string{"channel"},
		),

		NotificationFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_notification_failures_total",
				Help: "Total number of notification delivery failures",
			},
			[]string{"channel"},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "onebox_errors_total",
				Help: "Total number of errors by type and component",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "onebox_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordEmailsSynced 记录入库邮件数量
func (m *Metrics) RecordEmailsSynced(account string, count int) {
	m.EmailsSynced.WithLabelValues(account).Add(float64(count))
	m.SyncBatchSize.Observe(float64(count))
}

// RecordDedupHit 记录重复邮件命中
func (m *Metrics) RecordDedupHit(account string) {
	m.DedupHits.WithLabelValues(account).Inc()
}

// RecordReconnect 记录一次重连
func (m *Metrics) RecordReconnect(account string) {
	m.IMAPReconnects.WithLabelValues(account).Inc()
}

// SetConnected 更新连接状态
func (m *Metrics) SetConnected(account string, connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.IMAPConnected.WithLabelValues(account).Set(value)
}

// RecordFetchSuppressed 记录被抑制的抓取触发
func (m *Metrics) RecordFetchSuppressed(account string) {
	m.FetchesSuppressed.WithLabelValues(account).Inc()
}

// RecordClassification 记录一次分类批处理
func (m *Metrics) RecordClassification(backend string, duration time.Duration) {
	m.ClassifyDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordClassifyResult 记录分类结果分布
func (m *Metrics) RecordClassifyResult(category string) {
	m.ClassifyResults.WithLabelValues(category).Inc()
}

// RecordClassifyFailure 记录分类失败
func (m *Metrics) RecordClassifyFailure(backend string) {
	m.ClassifyFailures.WithLabelValues(backend).Inc()
}

// RecordNotification 记录通知结果
func (m *Metrics) RecordNotification(channel string, err error) {
	if err != nil {
		m.NotificationFailures.WithLabelValues(channel).Inc()
		return
	}
	m.NotificationsSent.WithLabelValues(channel).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus 指标 HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
