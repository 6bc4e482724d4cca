package app

import (
	httpH "github.com/biomateca/biomateca-backend/internal/http/handlers"
	"github.com/biomateca/biomateca-backend/internal/platform/logger"
	"github.com/biomateca/biomateca-backend/internal/realtime"
)

type Handlers struct {
	Auth         *httpH.AuthHandler
	Material     *httpH.MaterialHandler
	Moderation   *httpH.ModerationHandler
	Notification *httpH.NotificationHandler
	Realtime     *httpH.RealtimeHandler
	Health       *httpH.HealthHandler
}

func wireHandlers(log *logger.Logger, svcs Services, hub *realtime.SSEHub) Handlers {
	return Handlers{
		Auth:         httpH.NewAuthHandler(svcs.Auth),
		Material:     httpH.NewMaterialHandler(log, svcs.Material),
		Moderation:   httpH.NewModerationHandler(svcs.Material, svcs.Moderation),
		Notification: httpH.NewNotificationHandler(svcs.Notification),
		Realtime:     httpH.NewRealtimeHandler(log, hub),
		Health:       httpH.NewHealthHandler(),
	}
}
