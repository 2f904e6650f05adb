package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"onebox/backend/internal/config"
	"onebox/backend/internal/health"
	"onebox/backend/internal/middleware"
	"onebox/backend/internal/monitoring"
	"onebox/backend/internal/orchestrator"
	"onebox/backend/internal/websocket"
)

// maxRequestBody 请求体大小上限
const maxRequestBody = 1 << 20 // 1 MB

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config        *config.Config
	Orchestrator  *orchestrator.Orchestrator
	WebSocketHub  *websocket.Hub
	HealthChecker *health.HealthChecker
	Metrics       *monitoring.Metrics
	Logger        *zap.Logger
}

// NewRouter 创建并配置 HTTP 路由器
func NewRouter(deps RouterDependencies) *gin.Engine {
	if deps.Config.Log.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 全局中间件
	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(maxRequestBody))

	if deps.Metrics != nil {
		mm := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
		router.Use(mm.HTTPMetrics())
	}

	// CORS 配置
	corsConfig := cors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	// 通配符来源与凭证不能同时启用
	for _, origin := range deps.Config.CORS.AllowedOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(cors.New(corsConfig))

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		results := deps.HealthChecker.CheckHealth()
		status := http.StatusOK
		for key, value := range results {
			if key == "storage" && value != "OK" {
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, results)
	})
	router.GET("/health/live", gin.WrapF(deps.HealthChecker.LiveEndpoint()))
	router.GET("/health/ready", gin.WrapF(deps.HealthChecker.ReadyEndpoint()))

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// WebSocket 实时推送
	if deps.WebSocketHub != nil {
		router.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
	}

	emailHandler := NewEmailHandler(deps.Orchestrator, deps.Logger)
	knowledgeHandler := NewKnowledgeHandler(deps.Orchestrator, deps.Logger)

	api := router.Group("/api")
	{
		api.GET("/emails", emailHandler.ListEmails)
		api.GET("/emails/search", emailHandler.SearchEmails)
		api.POST("/emails/categorize-all", emailHandler.CategorizeAll)
		api.GET("/emails/:id", emailHandler.GetEmail)
		api.POST("/emails/:id/categorize", emailHandler.CategorizeEmail)
		api.POST("/emails/:id/read", emailHandler.MarkRead)
		api.GET("/emails/:id/suggest-reply", emailHandler.SuggestReply)

		api.GET("/categories", emailHandler.ListCategories)
		api.GET("/accounts", emailHandler.ListAccounts)

		api.GET("/knowledge", knowledgeHandler.ListEntries)
		api.POST("/knowledge", knowledgeHandler.AddEntry)
	}

	return router
}
