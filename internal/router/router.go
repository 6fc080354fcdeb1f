package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"presence-service/internal/handler"
	"presence-service/internal/identity"
	"presence-service/internal/metrics"
	"presence-service/internal/middleware"
	"presence-service/internal/websocket"
)

// Config holds everything the HTTP surface needs.
type Config struct {
	Env            string
	BasePath       string
	CORSOrigins    []string
	InternalAPIKey string

	Resolver      identity.Resolver
	WebSocket     *websocket.Handler
	Health        *handler.HealthHandler
	Office        *handler.OfficeHandler
	Notifications *handler.NotificationHandler

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

func Setup(cfg Config) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.Metrics(cfg.Metrics))

	// Health endpoints (no auth)
	r.GET("/health", cfg.Health.Health)
	r.GET("/ready", cfg.Health.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))

	api := r.Group(cfg.BasePath)
	{
		api.GET("/health", cfg.Health.Health)
		api.GET("/ready", cfg.Health.Ready)

		// 소켓 인증은 업그레이드 후 핸들러에서 처리한다
		api.GET("/ws", cfg.WebSocket.HandleWebSocket)

		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(cfg.Resolver, cfg.Logger))
		{
			authenticated.GET("/office", cfg.Office.GetOffice)
			authenticated.GET("/office/rooms", cfg.Office.GetRooms)

			authenticated.GET("/presence/members", cfg.Office.GetMembers)
			authenticated.GET("/presence/online", cfg.Office.GetOnline)
			authenticated.GET("/presence/status/:userId", cfg.Office.GetStatus)

			authenticated.GET("/notifications", cfg.Notifications.GetRecent)
		}

		internal := api.Group("/internal")
		internal.Use(middleware.InternalAuth(cfg.InternalAPIKey))
		{
			internal.POST("/notifications/user", cfg.Notifications.NotifyUser)
			internal.POST("/notifications/organization", cfg.Notifications.NotifyOrganization)
			internal.POST("/notifications/project", cfg.Notifications.NotifyProject)
		}
	}

	return r
}
