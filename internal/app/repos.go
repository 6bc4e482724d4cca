package app

import (
	"gorm.io/gorm"

	"github.com/biomateca/biomateca-backend/internal/data/repos/materials"
	"github.com/biomateca/biomateca-backend/internal/data/repos/notifications"
	"github.com/biomateca/biomateca-backend/internal/data/repos/users"
	"github.com/biomateca/biomateca-backend/internal/platform/logger"
)

type Repos struct {
	Users         users.UserRepo
	UserTokens    users.UserTokenRepo
	Materials     materials.MaterialRepo
	Images        materials.MaterialImageRepo
	Steps         materials.RecipeStepRepo
	Notifications notifications.NotificationRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Users:         users.NewUserRepo(db, log),
		UserTokens:    users.NewUserTokenRepo(db, log),
		Materials:     materials.NewMaterialRepo(db, log),
		Images:        materials.NewMaterialImageRepo(db, log),
		Steps:         materials.NewRecipeStepRepo(db, log),
		Notifications: notifications.NewNotificationRepo(db, log),
	}
}
