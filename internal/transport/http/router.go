package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/cjaradhye/burnbox/internal/auth"
	jwtpkg "github.com/cjaradhye/burnbox/internal/auth/jwt"
	"github.com/cjaradhye/burnbox/internal/config"
	"github.com/cjaradhye/burnbox/internal/health"
	"github.com/cjaradhye/burnbox/internal/middleware"
	"github.com/cjaradhye/burnbox/internal/monitoring"
	"github.com/cjaradhye/burnbox/internal/pool"
	"github.com/cjaradhye/burnbox/internal/service"
	"github.com/cjaradhye/burnbox/internal/storage"
	"github.com/cjaradhye/burnbox/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	AuthService    *auth.Service
	MailboxService *service.MailboxService
	MessageService *service.MessageService
	IngestService  *service.IngestService
	JWTManager     *jwtpkg.Manager
	Store          storage.Store
	WebSocketHub   *websocket.Hub
	Metrics        *monitoring.Metrics
	HealthChecker  *health.Checker
	WorkerPool     *pool.WorkerPool
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryHandler(deps.Logger, deps.Metrics))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(10 * 1024 * 1024))
	if deps.Metrics != nil {
		router.Use(middleware.HTTPMetrics(deps.Metrics))
	}

	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 允许所有来源时需清空凭证支持
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.Config.FrontendURL, deps.Logger)
	mailboxHandler := NewMailboxHandler(deps.MailboxService, deps.MessageService, deps.Logger)
	snsHandler := NewSNSHandler(deps.IngestService, deps.WorkerPool, deps.Metrics, deps.Logger)

	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Store, deps.Logger)
	createLimiter := middleware.NewRateLimiter(1, 10)

	// Swagger 文档
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 服务横幅
	banner := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "burnbox",
			"status":  "running",
		})
	}
	router.GET("/", banner)
	router.GET("/api", banner)

	// 健康检查与指标
	registerHealthRoutes(router, deps.HealthChecker)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// ========== Auth Routes ==========
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.GET("/google/login", authHandler.GoogleLogin)
		authRoutes.GET("/google/callback", authHandler.GoogleCallback)
		authRoutes.GET("/me", jwtAuth.Authenticate(), authHandler.Me)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	// ========== Mailbox Routes ==========
	mailboxRoutes := router.Group("/api/mailboxes")
	mailboxRoutes.Use(jwtAuth.Authenticate())
	mailboxRoutes.GET("/health", mailboxHandler.Health)
	mailboxRoutes.Use(jwtAuth.RequireAuth())
	{
		mailboxRoutes.POST("/create", createLimiter.Limit(), mailboxHandler.Create)
		mailboxRoutes.GET("", mailboxHandler.List)
		mailboxRoutes.GET("/:id/status", mailboxHandler.Status)
		mailboxRoutes.GET("/:id/messages", mailboxHandler.ListMessages)
		mailboxRoutes.GET("/:id/messages/:messageId", mailboxHandler.GetMessage)
		mailboxRoutes.GET("/:id/messages/:messageId/attachments/:attachmentId", mailboxHandler.DownloadAttachment)
		mailboxRoutes.DELETE("/:id", mailboxHandler.Delete)
	}

	// ========== SNS Webhook（SNS 直接调用，无鉴权） ==========
	router.POST("/api/sns/event", snsHandler.HandleEvent)

	// ========== WebSocket ==========
	if deps.WebSocketHub != nil {
		router.GET("/ws", websocket.HandleWebSocket(deps.WebSocketHub))
	}

	return router
}

func registerHealthRoutes(router *gin.Engine, checker *health.Checker) {
	router.GET("/health", func(c *gin.Context) {
		payload := gin.H{"status": "UP"}
		if checker != nil {
			payload["components"] = checker.Snapshot()
		}
		c.JSON(http.StatusOK, payload)
	})

	router.GET("/health/db", func(c *gin.Context) {
		if checker == nil {
			c.JSON(http.StatusOK, gin.H{"status": "UP"})
			return
		}
		if err := checker.StoreHealth(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "DOWN",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})

	if checker != nil {
		router.GET("/health/ready", gin.WrapF(checker.ReadyEndpoint))
		router.GET("/health/live", gin.WrapF(checker.LiveEndpoint))
	}
}
