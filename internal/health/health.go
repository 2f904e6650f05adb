package health

import (
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"onebox/backend/internal/imapsync"
	"onebox/backend/internal/storage"
)

// ConnectionStates 提供各账户连接状态的快照。
type ConnectionStates interface {
	States() map[string]imapsync.ConnectionState
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	store  storage.Store
	states ConnectionStates
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器。states 可以为 nil（未配置账户时）。
func NewHealthChecker(store storage.Store, states ConnectionStates, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		states: states,
		logger: logger,
	}

	hc.addChecks()
	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	// 存储连接检查
	hc.health.AddLivenessCheck("storage", func() error {
		return hc.store.Health()
	})

	// 就绪条件：至少一个账户不处于断开状态。
	// 全部断开说明同步完全失效，应当从负载均衡摘除。
	if hc.states != nil {
		hc.health.AddReadinessCheck("imap", func() error {
			states := hc.states.States()
			if len(states) == 0 {
				return nil
			}
			for _, state := range states {
				if state != imapsync.StateDisconnected {
					return nil
				}
			}
			return fmt.Errorf("all imap accounts disconnected")
		})
	}
}

// Handler 返回健康检查处理器（/live 和 /ready 端点）
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// LiveEndpoint 存活检查端点
func (hc *HealthChecker) LiveEndpoint() http.HandlerFunc {
	return hc.health.LiveEndpoint
}

// ReadyEndpoint 就绪检查端点
func (hc *HealthChecker) ReadyEndpoint() http.HandlerFunc {
	return hc.health.ReadyEndpoint
}

// CheckHealth 执行健康检查，返回各组件状态明细。
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	if err := hc.store.Health(); err != nil {
		results["storage"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["storage"] = "OK"
	}

	if hc.states != nil {
		for account, state := range hc.states.States() {
			results["account:"+account] = string(state)
		}
	}

	results["timestamp"] = time.Now().Format(time.RFC3339)
	return results
}
