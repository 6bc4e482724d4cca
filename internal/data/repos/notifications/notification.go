package notifications

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biomateca/biomateca-backend/internal/domain"
	"github.com/biomateca/biomateca-backend/internal/platform/dbctx"
	"github.com/biomateca/biomateca-backend/internal/platform/logger"
)

type NotificationRepo interface {
	Create(dbc dbctx.Context, rows []*domain.Notification) ([]*domain.Notification, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Notification, error)
	// ListRecentByRecipient returns the newest entries first, bounded by limit.
	ListRecentByRecipient(dbc dbctx.Context, recipientID uuid.UUID, limit int) ([]*domain.Notification, error)
	CountUnreadByRecipient(dbc dbctx.Context, recipientID uuid.UUID) (int64, error)
	// MarkRead flips read to true for the recipient's own entry. Marking an
	// already-read entry again touches zero rows and is not an error.
	MarkRead(dbc dbctx.Context, recipientID, id uuid.UUID) error
}

type notificationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNotificationRepo(db *gorm.DB, baseLog *logger.Logger) NotificationRepo {
	return &notificationRepo{db: db, log: baseLog.With("repo", "NotificationRepo")}
}

func (r *notificationRepo) Create(dbc dbctx.Context, rows []*domain.Notification) ([]*domain.Notification, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(rows) == 0 {
		return []*domain.Notification{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *notificationRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Notification, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Notification
	if len(ids) == 0 {
		return results, nil
	}

	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *notificationRepo) ListRecentByRecipient(dbc dbctx.Context, recipientID uuid.UUID, limit int) ([]*domain.Notification, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if limit <= 0 {
		limit = 15
	}

	var results []*domain.Notification
	if err := transaction.WithContext(dbc.Ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *notificationRepo) CountUnreadByRecipient(dbc dbctx.Context, recipientID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&domain.Notification{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *notificationRepo) MarkRead(dbc dbctx.Context, recipientID, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(dbc.Ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND recipient_id = ? AND read = ?", id, recipientID, false).
		Update("read", true).Error
}
