package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type string // 数据库类型: "mysql" 或 "postgres"，为空时使用内存存储
	DSN  string // 数据库连接字符串
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Enabled  bool   // 是否启用 Redis 缓存
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// AccountConfig 定义一个待同步的 IMAP 账户
type AccountConfig struct {
	Address  string // 账户邮箱地址，同时作为账户标识
	Password string // IMAP 登录密码（通常是应用专用密码）
	Host     string // IMAP 服务器地址
	Port     int    // IMAP 端口，默认 993
	TLS      bool   // 是否使用隐式 TLS，默认 true
	Folder   string // 同步的邮箱文件夹，默认 "INBOX"
}

// SyncConfig 定义邮件同步行为参数
type SyncConfig struct {
	BackfillWindow time.Duration // 启动时回填的历史窗口，默认 30 天
	EventLookback  time.Duration // 新邮件事件触发抓取时的回看窗口，默认 1 天
	PollInterval   time.Duration // IDLE 不可用时的兜底轮询间隔，默认 30 秒
	ReconnectDelay time.Duration // 断线重连的固定延迟，默认 5 秒
}

// AIConfig 定义 AI 分类服务配置
type AIConfig struct {
	Provider  string // 分类后端: "openai" 或 "keyword"
	OpenAIKey string // OpenAI API 密钥
	Model     string // 模型名称，默认 "gpt-4o-mini"
	BatchSize int    // 并发分类批大小，默认 5
}

// NotifyConfig 定义外部通知配置
type NotifyConfig struct {
	SlackWebhookURL    string // Slack incoming webhook 地址，留空则禁用
	ExternalWebhookURL string // 外部 webhook 地址，留空则禁用
	WebhookSecret      string // 外部 webhook 签名密钥，留空则不签名
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig    // HTTP 服务器配置
	CORS     CORSConfig      // 跨域配置
	Log      LogConfig       // 日志配置
	Database DatabaseConfig  // 数据库配置
	Redis    RedisConfig     // Redis 配置
	Sync     SyncConfig      // 同步行为配置
	AI       AIConfig        // AI 分类配置
	Notify   NotifyConfig    // 通知配置
	Accounts []AccountConfig // 待同步的 IMAP 账户列表
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: ONEBOX_
// 例如: ONEBOX_SERVER_HOST, ONEBOX_AI_OPENAI_KEY
//
// IMAP 账户使用带序号的独立变量（不带前缀），与 .env 模板保持一致：
// EMAIL_1_ADDRESS, EMAIL_1_PASSWORD, EMAIL_1_HOST, EMAIL_1_PORT, EMAIL_1_TLS, ...
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("onebox")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("sync.backfill_window", "720h") // 30 天
	viper.SetDefault("sync.event_lookback", "24h")
	viper.SetDefault("sync.poll_interval", "30s")
	viper.SetDefault("sync.reconnect_delay", "5s")
	viper.SetDefault("ai.provider", "keyword")
	viper.SetDefault("ai.openai_key", "")
	viper.SetDefault("ai.model", "gpt-4o-mini")
	viper.SetDefault("ai.batch_size", 5)
	viper.SetDefault("notify.slack_webhook_url", "")
	viper.SetDefault("notify.external_webhook_url", "")
	viper.SetDefault("notify.webhook_secret", "")

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	backfillWindow, err := time.ParseDuration(viper.GetString("sync.backfill_window"))
	if err != nil {
		return nil, fmt.Errorf("invalid sync.backfill_window: %w", err)
	}

	eventLookback, err := time.ParseDuration(viper.GetString("sync.event_lookback"))
	if err != nil {
		return nil, fmt.Errorf("invalid sync.event_lookback: %w", err)
	}

	pollInterval, err := time.ParseDuration(viper.GetString("sync.poll_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid sync.poll_interval: %w", err)
	}

	reconnectDelay, err := time.ParseDuration(viper.GetString("sync.reconnect_delay"))
	if err != nil {
		return nil, fmt.Errorf("invalid sync.reconnect_delay: %w", err)
	}

	provider := strings.ToLower(viper.GetString("ai.provider"))
	switch provider {
	case "openai", "keyword":
	default:
		return nil, fmt.Errorf("invalid ai.provider: %q (supported: openai, keyword)", provider)
	}

	if provider == "openai" && viper.GetString("ai.openai_key") == "" {
		return nil, fmt.Errorf("ai.provider is openai but ONEBOX_AI_OPENAI_KEY is not set")
	}

	batchSize := viper.GetInt("ai.batch_size")
	if batchSize <= 0 {
		batchSize = 5
	}

	accounts, err := loadAccounts()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
		Database: DatabaseConfig{
			Type: viper.GetString("database.type"),
			DSN:  viper.GetString("database.dsn"),
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Sync: SyncConfig{
			BackfillWindow: backfillWindow,
			EventLookback:  eventLookback,
			PollInterval:   pollInterval,
			ReconnectDelay: reconnectDelay,
		},
		AI: AIConfig{
			Provider:  provider,
			OpenAIKey: viper.GetString("ai.openai_key"),
			Model:     viper.GetString("ai.model"),
			BatchSize: batchSize,
		},
		Notify: NotifyConfig{
			SlackWebhookURL:    viper.GetString("notify.slack_webhook_url"),
			ExternalWebhookURL: viper.GetString("notify.external_webhook_url"),
			WebhookSecret:      viper.GetString("notify.webhook_secret"),
		},
		Accounts: accounts,
	}

	return cfg, nil
}

// loadAccounts 从 EMAIL_n_* 环境变量加载 IMAP 账户列表
//
// 从 EMAIL_1_* 开始按序号扫描，遇到第一个未配置的序号即停止。
// 一个账户至少需要 ADDRESS 和 PASSWORD；HOST 默认 imap.gmail.com。
func loadAccounts() ([]AccountConfig, error) {
	var accounts []AccountConfig

	for i := 1; ; i++ {
		prefix := fmt.Sprintf("EMAIL_%d_", i)

		address := os.Getenv(prefix + "ADDRESS")
		if address == "" {
			break
		}

		password := os.Getenv(prefix + "PASSWORD")
		if password == "" {
			return nil, fmt.Errorf("%sPASSWORD is required for account %s", prefix, address)
		}

		host := os.Getenv(prefix + "HOST")
		if host == "" {
			host = "imap.gmail.com"
		}

		port := 993
		if raw := os.Getenv(prefix + "PORT"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 || parsed > 65535 {
				return nil, fmt.Errorf("invalid %sPORT: %q", prefix, raw)
			}
			port = parsed
		}

		useTLS := true
		if raw := os.Getenv(prefix + "TLS"); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid %sTLS: %q", prefix, raw)
			}
			useTLS = parsed
		}

		folder := os.Getenv(prefix + "FOLDER")
		if folder == "" {
			folder = "INBOX"
		}

		accounts = append(accounts, AccountConfig{
			Address:  strings.ToLower(address),
			Password: password,
			Host:     host,
			Port:     port,
			TLS:      useTLS,
			Folder:   folder,
		})
	}

	return accounts, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env（用于从 backend/ 子目录运行的情况）
//
// 注意：
//   - 如果文件不存在，静默失败（.env 是可选的）
//   - 环境变量不会被覆盖（已存在的环境变量优先级更高）
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
