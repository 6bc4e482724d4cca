package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/biomateca/biomateca-backend/internal/http/handlers"
	httpMW "github.com/biomateca/biomateca-backend/internal/http/middleware"
	"github.com/biomateca/biomateca-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	AuthHandler         *httpH.AuthHandler
	AuthMiddleware      *httpMW.AuthMiddleware
	MaterialHandler     *httpH.MaterialHandler
	ModerationHandler   *httpH.ModerationHandler
	NotificationHandler *httpH.NotificationHandler
	RealtimeHandler     *httpH.RealtimeHandler
	HealthHandler       *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("biomateca-backend"))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
		}

		// Public catalog; identity is optional and only widens visibility.
		if cfg.MaterialHandler != nil && cfg.AuthMiddleware != nil {
			api.GET("/materials", cfg.AuthMiddleware.OptionalAuth(), cfg.MaterialHandler.ListApproved)
			api.GET("/materials/:id", cfg.AuthMiddleware.OptionalAuth(), cfg.MaterialHandler.Get)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.AuthHandler != nil {
			protected.POST("/refresh", cfg.AuthHandler.Refresh)
			protected.POST("/logout", cfg.AuthHandler.Logout)
		}

		if cfg.RealtimeHandler != nil {
			protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
		}

		if cfg.MaterialHandler != nil {
			protected.POST("/materials", cfg.MaterialHandler.Create)
			protected.PUT("/materials/:id", cfg.MaterialHandler.Update)
			protected.DELETE("/materials/:id", cfg.MaterialHandler.Delete)
			protected.GET("/my/materials", cfg.MaterialHandler.ListMine)
		}

		if cfg.NotificationHandler != nil {
			protected.GET("/notifications", cfg.NotificationHandler.List)
			protected.GET("/notifications/unread-count", cfg.NotificationHandler.UnreadCount)
			protected.POST("/notifications/:id/read", cfg.NotificationHandler.MarkRead)
		}

		if cfg.ModerationHandler != nil && cfg.AuthMiddleware != nil {
			moderation := protected.Group("/moderation")
			moderation.Use(cfg.AuthMiddleware.RequireModerator())
			moderation.GET("/pending", cfg.ModerationHandler.ListPending)
			moderation.GET("/pending/count", cfg.ModerationHandler.PendingCount)
			moderation.POST("/materials/:id/approve", cfg.ModerationHandler.Approve)
			moderation.POST("/materials/:id/reject", cfg.ModerationHandler.Reject)
		}
	}

	return r
}
