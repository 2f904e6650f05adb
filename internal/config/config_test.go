package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetEnv(t *testing.T, keys ...string) {
	t.Helper()

	original := make(map[string]string, len(keys))
	for _, key := range keys {
		original[key] = os.Getenv(key)
		os.Unsetenv(key)
	}

	t.Cleanup(func() {
		for key, value := range original {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	})
}

func TestLoad(t *testing.T) {
	envKeys := []string{
		"ONEBOX_SERVER_HOST",
		"ONEBOX_SERVER_PORT",
		"ONEBOX_LOG_LEVEL",
		"ONEBOX_LOG_DEVELOPMENT",
		"ONEBOX_SYNC_BACKFILL_WINDOW",
		"ONEBOX_SYNC_POLL_INTERVAL",
		"ONEBOX_AI_PROVIDER",
		"ONEBOX_AI_OPENAI_KEY",
		"ONEBOX_AI_MODEL",
		"ONEBOX_NOTIFY_SLACK_WEBHOOK_URL",
		"EMAIL_1_ADDRESS", "EMAIL_1_PASSWORD", "EMAIL_1_HOST", "EMAIL_1_PORT", "EMAIL_1_TLS", "EMAIL_1_FOLDER",
		"EMAIL_2_ADDRESS", "EMAIL_2_PASSWORD",
	}

	t.Run("加载默认配置成功", func(t *testing.T) {
		resetEnv(t, envKeys...)

		cfg, err := Load()

		require.NoError(t, err)
		require.NotNil(t, cfg)

		// 验证默认值
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Development)
		assert.Equal(t, 30*24*time.Hour, cfg.Sync.BackfillWindow)
		assert.Equal(t, 24*time.Hour, cfg.Sync.EventLookback)
		assert.Equal(t, 30*time.Second, cfg.Sync.PollInterval)
		assert.Equal(t, 5*time.Second, cfg.Sync.ReconnectDelay)
		assert.Equal(t, "keyword", cfg.AI.Provider)
		assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
		assert.Equal(t, 5, cfg.AI.BatchSize)
		assert.Empty(t, cfg.Accounts)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		resetEnv(t, envKeys...)

		os.Setenv("ONEBOX_SERVER_HOST", "127.0.0.1")
		os.Setenv("ONEBOX_SERVER_PORT", "9090")
		os.Setenv("ONEBOX_SYNC_POLL_INTERVAL", "10s")
		os.Setenv("ONEBOX_AI_PROVIDER", "openai")
		os.Setenv("ONEBOX_AI_OPENAI_KEY", "sk-test")
		os.Setenv("ONEBOX_AI_MODEL", "gpt-4o")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 10*time.Second, cfg.Sync.PollInterval)
		assert.Equal(t, "openai", cfg.AI.Provider)
		assert.Equal(t, "sk-test", cfg.AI.OpenAIKey)
		assert.Equal(t, "gpt-4o", cfg.AI.Model)
	})

	t.Run("openai后端缺少密钥时报错", func(t *testing.T) {
		resetEnv(t, envKeys...)

		os.Setenv("ONEBOX_AI_PROVIDER", "openai")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("非法provider报错", func(t *testing.T) {
		resetEnv(t, envKeys...)

		os.Setenv("ONEBOX_AI_PROVIDER", "oracle")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadAccounts(t *testing.T) {
	envKeys := []string{
		"EMAIL_1_ADDRESS", "EMAIL_1_PASSWORD", "EMAIL_1_HOST", "EMAIL_1_PORT", "EMAIL_1_TLS", "EMAIL_1_FOLDER",
		"EMAIL_2_ADDRESS", "EMAIL_2_PASSWORD", "EMAIL_2_HOST", "EMAIL_2_PORT", "EMAIL_2_TLS", "EMAIL_2_FOLDER",
		"EMAIL_3_ADDRESS", "EMAIL_3_PASSWORD",
	}

	t.Run("按序号加载多个账户", func(t *testing.T) {
		resetEnv(t, envKeys...)

		os.Setenv("EMAIL_1_ADDRESS", "First@Example.com")
		os.Setenv("EMAIL_1_PASSWORD", "app-pass-1")
		os.Setenv("EMAIL_2_ADDRESS", "second@example.com")
		os.Setenv("EMAIL_2_PASSWORD", "app-pass-2")
		os.Setenv("EMAIL_2_HOST", "imap.fastmail.com")
		os.Setenv("EMAIL_2_PORT", "1993")
		os.Setenv("EMAIL_2_TLS", "false")
		os.Setenv("EMAIL_2_FOLDER", "Archive")

		accounts, err := loadAccounts()

		require.NoError(t, err)
		require.Len(t, accounts, 2)

		// 地址统一小写；缺省值按 Gmail 993/TLS/INBOX 填充
		assert.Equal(t, "first@example.com", accounts[0].Address)
		assert.Equal(t, "imap.gmail.com", accounts[0].Host)
		assert.Equal(t, 993, accounts[0].Port)
		assert.True(t, accounts[0].TLS)
		assert.Equal(t, "INBOX", accounts[0].Folder)

		assert.Equal(t, "imap.fastmail.com", accounts[1].Host)
		assert.Equal(t, 1993, accounts[1].Port)
		assert.False(t, accounts[1].TLS)
		assert.Equal(t, "Archive", accounts[1].Folder)
	})

	t.Run("序号断档即停止扫描", func(t *testing.T) {
		resetEnv(t, envKeys...)

		os.Setenv("EMAIL_1_ADDRESS", "first@example.com")
		os.Setenv("EMAIL_1_PASSWORD", "app-pass-1")
		// EMAIL_2 缺失，EMAIL_3 应被忽略
		os.Setenv("EMAIL_3_ADDRESS", "third@example.com")
		os.Setenv("EMAIL_3_PASSWORD", "app-pass-3")

		accounts, err := loadAccounts()

		require.NoError(t, err)
		require.Len(t, accounts, 1)
		assert.Equal(t, "first@example.com", accounts[0].Address)
	})

	t.Run("缺少密码报错", func(t *testing.T) {
		resetEnv(t, envKeys...)

		os.Setenv("EMAIL_1_ADDRESS", "first@example.com")

		_, err := loadAccounts()
		assert.Error(t, err)
	})

	t.Run("非法端口报错", func(t *testing.T) {
		resetEnv(t, envKeys...)

		os.Setenv("EMAIL_1_ADDRESS", "first@example.com")
		os.Setenv("EMAIL_1_PASSWORD", "app-pass-1")
		os.Setenv("EMAIL_1_PORT", "not-a-port")

		_, err := loadAccounts()
		assert.Error(t, err)
	})
}
