package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biomateca/biomateca-backend/internal/data/repos/notifications"
	"github.com/biomateca/biomateca-backend/internal/domain"
	"github.com/biomateca/biomateca-backend/internal/platform/apierr"
	"github.com/biomateca/biomateca-backend/internal/platform/dbctx"
	"github.com/biomateca/biomateca-backend/internal/platform/logger"
	"github.com/biomateca/biomateca-backend/internal/requestdata"
)

// DefaultFeedLimit bounds the notification dropdown; older entries stay in
// the ledger but are not served. Callers may ask for a different window up
// to MaxFeedLimit.
const (
	DefaultFeedLimit = 15
	MaxFeedLimit     = 50
)

func clampFeedLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultFeedLimit
	case limit > MaxFeedLimit:
		return MaxFeedLimit
	}
	return limit
}

type NotificationService interface {
	ListRecent(ctx context.Context, limit int) ([]*domain.Notification, error)
	UnreadCount(ctx context.Context) (int64, error)
	MarkRead(ctx context.Context, notificationID uuid.UUID) error
}

type notificationService struct {
	db        *gorm.DB
	log       *logger.Logger
	notifRepo notifications.NotificationRepo
}

func NewNotificationService(db *gorm.DB, baseLog *logger.Logger, notifRepo notifications.NotificationRepo) NotificationService {
	return &notificationService{
		db:        db,
		log:       baseLog.With("service", "NotificationService"),
		notifRepo: notifRepo,
	}
}

func requireUser(ctx context.Context) (*requestdata.RequestData, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "login_required", apierr.ErrUnauthorized)
	}
	return rd, nil
}

func (s *notificationService) ListRecent(ctx context.Context, limit int) ([]*domain.Notification, error) {
	rd, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.notifRepo.ListRecentByRecipient(dbctx.Context{Ctx: ctx}, rd.UserID, clampFeedLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return rows, nil
}

func (s *notificationService) UnreadCount(ctx context.Context) (int64, error) {
	rd, err := requireUser(ctx)
	if err != nil {
		return 0, err
	}
	return s.notifRepo.CountUnreadByRecipient(dbctx.Context{Ctx: ctx}, rd.UserID)
}

func (s *notificationService) MarkRead(ctx context.Context, notificationID uuid.UUID) error {
	rd, err := requireUser(ctx)
	if err != nil {
		return err
	}
	if err := s.notifRepo.MarkRead(dbctx.Context{Ctx: ctx}, rd.UserID, notificationID); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}
