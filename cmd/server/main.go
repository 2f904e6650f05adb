package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"onebox/backend/internal/classify"
	"onebox/backend/internal/config"
	"onebox/backend/internal/health"
	"onebox/backend/internal/imapsync"
	"onebox/backend/internal/logger"
	"onebox/backend/internal/monitoring"
	"onebox/backend/internal/notify"
	"onebox/backend/internal/orchestrator"
	"onebox/backend/internal/pool"
	"onebox/backend/internal/reply"
	"onebox/backend/internal/storage"
	"onebox/backend/internal/storage/hybrid"
	"onebox/backend/internal/storage/memory"
	"onebox/backend/internal/storage/postgres"
	httptransport "onebox/backend/internal/transport/http"
	"onebox/backend/internal/websocket"
)

// 回复建议知识库的种子内容
const (
	productName    = "OneBox"
	outreachAgenda = "We reach out to engineering leaders about automating their email workflows. " +
		"The goal is to book a short discovery call."
	bookingLink = "https://cal.com/example"
)

// 通知协程池参数
const (
	notifyWorkers   = 4
	notifyQueueSize = 64
)

// main 启动邮件同步引擎与 HTTP API。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 初始化日志系统
	log, err := logger.New(logger.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("starting onebox server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.Int("accounts", len(cfg.Accounts)),
	)

	// 初始化存储层
	store, err := initializeStorage(cfg, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize storage: %v", err))
	}
	defer store.Close()

	// 初始化监控指标
	metrics := monitoring.NewMetrics()

	// 初始化分类器
	backend, err := buildClassifyBackend(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize classify backend: %v", err))
	}
	classifier := classify.NewClassifier(backend, log, cfg.AI.BatchSize)
	log.Info("classifier initialized",
		zap.String("backend", backend.Name()),
		zap.Int("batch_size", cfg.AI.BatchSize),
	)

	// 初始化回复建议器
	kb := reply.NewKnowledgeBase(productName, outreachAgenda, bookingLink)
	var generator reply.Generator
	if cfg.AI.Provider == "openai" {
		generator, err = reply.NewOpenAIGenerator(cfg.AI.OpenAIKey, cfg.AI.Model)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize reply generator: %v", err))
		}
	}
	suggester := reply.NewSuggester(kb, generator, log)

	// 初始化通知出口
	workers := pool.NewWorkerPool(notifyWorkers, notifyQueueSize, log)
	dispatcher := buildDispatcher(cfg, workers, log, metrics)

	// 创建 WebSocket Hub
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, log)

	// 组装同步管线
	orch := orchestrator.New(store, classifier, suggester, dispatcher, wsHub, log, metrics)
	syncManager := imapsync.NewManager(cfg.Accounts, cfg.Sync, orch.ProcessBatch, log, metrics)
	orch.SetSyncManager(syncManager)

	// 初始化健康检查
	healthChecker := health.NewHealthChecker(store, syncManager, log)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:        cfg,
		Orchestrator:  orch,
		WebSocketHub:  wsHub,
		HealthChecker: healthChecker,
		Metrics:       metrics,
		Logger:        log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers.Start(ctx)

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// IMAP 同步 goroutine
	group.Go(func() error {
		log.Info("starting imap sync", zap.Int("accounts", len(cfg.Accounts)))
		if err := syncManager.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("imap sync error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		// 等待在途通知投递完成
		workers.Stop()

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeStorage 根据配置选择存储实现。
//
// 优先级：数据库 + Redis 混合存储 > 纯数据库存储 > 内存存储（开发环境）。
func initializeStorage(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		log.Info("using memory storage (development mode)")
		return memory.NewStore(), nil
	}

	if cfg.Redis.Enabled {
		store, err := hybrid.NewStoreWithType(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
		)
		if err != nil {
			return nil, fmt.Errorf("create hybrid store: %w", err)
		}
		log.Info("using hybrid storage",
			zap.String("database_type", cfg.Database.Type),
			zap.String("redis_address", cfg.Redis.Address),
		)
		return store, nil
	}

	var store *postgres.Store
	var err error
	switch cfg.Database.Type {
	case "mysql":
		store, err = postgres.NewMySQLStore(cfg.Database.DSN)
	default:
		store, err = postgres.NewStore(cfg.Database.DSN)
	}
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}

	log.Info("using database storage", zap.String("database_type", cfg.Database.Type))
	return store, nil
}

// buildClassifyBackend 根据配置选择分类后端。
func buildClassifyBackend(cfg *config.Config) (classify.Backend, error) {
	switch cfg.AI.Provider {
	case "openai":
		return classify.NewOpenAIBackend(cfg.AI.OpenAIKey, cfg.AI.Model)
	default:
		return classify.NewKeywordBackend(), nil
	}
}

// buildDispatcher 根据配置组装通知出口。未配置任何通知渠道时返回 nil。
func buildDispatcher(cfg *config.Config, workers *pool.WorkerPool, log *zap.Logger, metrics *monitoring.Metrics) orchestrator.EmailNotifier {
	var notifiers []notify.Notifier
	if cfg.Notify.SlackWebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.Notify.SlackWebhookURL))
		log.Info("slack notifications enabled")
	}
	if cfg.Notify.ExternalWebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Notify.ExternalWebhookURL, cfg.Notify.WebhookSecret))
		log.Info("external webhook notifications enabled",
			zap.Bool("signed", cfg.Notify.WebhookSecret != ""),
		)
	}
	if len(notifiers) == 0 {
		return nil
	}
	return notify.NewDispatcher(notifiers, workers, log, metrics)
}
