package app

import (
	"gorm.io/gorm"

	"github.com/biomateca/biomateca-backend/internal/cache"
	"github.com/biomateca/biomateca-backend/internal/platform/gcp"
	"github.com/biomateca/biomateca-backend/internal/platform/logger"
	"github.com/biomateca/biomateca-backend/internal/realtime"
	"github.com/biomateca/biomateca-backend/internal/realtime/bus"
	"github.com/biomateca/biomateca-backend/internal/services"
)

type Services struct {
	Auth         services.AuthService
	Material     services.MaterialService
	Moderation   services.ModerationService
	Notification services.NotificationService
	Bucket       gcp.BucketService
	Views        cache.ViewCache
	Bus          bus.Bus
	Notifier     services.MaterialNotifier
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, hub *realtime.SSEHub) (Services, error) {
	bucket, err := gcp.ResolveBucketService(log)
	if err != nil {
		return Services{}, err
	}

	var views cache.ViewCache = cache.NoopViewCache{}
	var sseBus bus.Bus
	var emitter services.SSEEmitter = &services.HubEmitter{Hub: hub}
	if cfg.RedisEnabled {
		views, err = cache.NewRedisViewCache(log)
		if err != nil {
			return Services{}, err
		}
		sseBus, err = bus.NewRedisBus(log)
		if err != nil {
			return Services{}, err
		}
		emitter = &services.RedisEmitter{Bus: sseBus}
	}

	notifier := services.NewMaterialNotifier(emitter)

	return Services{
		Auth: services.NewAuthService(db, log, repos.Users, repos.UserTokens,
			cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		Material: services.NewMaterialService(db, log, repos.Materials, repos.Images,
			repos.Steps, bucket, views, notifier),
		Moderation: services.NewModerationService(db, log, repos.Materials,
			repos.Notifications, views, notifier),
		Notification: services.NewNotificationService(db, log, repos.Notifications),
		Bucket:       bucket,
		Views:        views,
		Bus:          sseBus,
		Notifier:     notifier,
	}, nil
}
