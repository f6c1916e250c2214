package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailrelay/backend/internal/config"
	"mailrelay/backend/internal/middleware"
	"mailrelay/backend/internal/monitoring"
	"mailrelay/backend/internal/service"
	"mailrelay/backend/internal/storage"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config      *config.Config
	MailService *service.MailService
	Metrics     *monitoring.Metrics // 可选
	Store       storage.Store
	Logger      *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(10 * 1024 * 1024))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := &Handler{
		mails:    deps.MailService,
		outbound: deps.Config.Outbound,
	}
	webhookHandler := NewWebhookHandler(deps.MailService, deps.Config.Webhook)

	v1 := router.Group("/v1")
	{
		mail := v1.Group("/mail")
		{
			mail.POST("/send", handler.sendMail)
			mail.GET("/inbox", handler.listInbox)
			mail.GET("/sent", handler.listSent)
			mail.GET("/:id", handler.getMail)
		}

		v1.POST("/webhooks/inbound", webhookHandler.receiveInbound)
	}

	router.GET("/health", func(c *gin.Context) {
		if err := deps.Store.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	return router
}
