package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biomateca/biomateca-backend/internal/cache"
	"github.com/biomateca/biomateca-backend/internal/data/repos/materials"
	"github.com/biomateca/biomateca-backend/internal/data/repos/notifications"
	"github.com/biomateca/biomateca-backend/internal/domain"
	"github.com/biomateca/biomateca-backend/internal/platform/apierr"
	"github.com/biomateca/biomateca-backend/internal/platform/dbctx"
	"github.com/biomateca/biomateca-backend/internal/platform/logger"
	"github.com/biomateca/biomateca-backend/internal/requestdata"
)

const (
	rejectionReasonMinLen = 5
	rejectionReasonMaxLen = 500
)

type ModerationService interface {
	ApproveMaterial(ctx context.Context, materialID uuid.UUID) (*domain.Material, error)
	RejectMaterial(ctx context.Context, materialID uuid.UUID, reason string) (*domain.Material, error)
	PendingCount(ctx context.Context) (int64, error)
}

type moderationService struct {
	db        *gorm.DB
	log       *logger.Logger
	matRepo   materials.MaterialRepo
	notifRepo notifications.NotificationRepo
	views     cache.ViewCache
	notifier  MaterialNotifier
}

func NewModerationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	matRepo materials.MaterialRepo,
	notifRepo notifications.NotificationRepo,
	views cache.ViewCache,
	notifier MaterialNotifier,
) ModerationService {
	return &moderationService{
		db:        db,
		log:       baseLog.With("service", "ModerationService"),
		matRepo:   matRepo,
		notifRepo: notifRepo,
		views:     views,
		notifier:  notifier,
	}
}

func requireModerator(ctx context.Context) (*requestdata.RequestData, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "login_required", apierr.ErrUnauthorized)
	}
	if rd.Role != domain.RoleModerator {
		return nil, apierr.New(http.StatusForbidden, "moderator_only", apierr.ErrForbidden)
	}
	return rd, nil
}

func (s *moderationService) ApproveMaterial(ctx context.Context, materialID uuid.UUID) (*domain.Material, error) {
	return s.decide(ctx, materialID, domain.MaterialStatusApproved, "")
}

func (s *moderationService) RejectMaterial(ctx context.Context, materialID uuid.UUID, reason string) (*domain.Material, error) {
	reason = strings.TrimSpace(reason)
	if n := len([]rune(reason)); n < rejectionReasonMinLen || n > rejectionReasonMaxLen {
		return nil, apierr.New(http.StatusBadRequest, "invalid_rejection_reason", apierr.ErrInvalidArgument)
	}
	return s.decide(ctx, materialID, domain.MaterialStatusRejected, reason)
}

// decide applies the moderation verdict and writes the creator's
// notification in the same transaction, so a decision without its ledger
// entry can never be observed. A second decision on the same pending
// material touches zero rows and surfaces as a conflict.
func (s *moderationService) decide(ctx context.Context, materialID uuid.UUID, verdict, reason string) (*domain.Material, error) {
	if _, err := requireModerator(ctx); err != nil {
		return nil, err
	}

	material, err := s.matRepo.GetByIDFull(dbctx.Context{Ctx: ctx}, materialID)
	if err != nil {
		return nil, fmt.Errorf("load material: %w", err)
	}
	if material == nil {
		return nil, apierr.New(http.StatusNotFound, "material_not_found", apierr.ErrNotFound)
	}

	notification := buildDecisionNotification(material, verdict, reason)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		touched, tErr := s.matRepo.TransitionStatus(dbc, materialID, domain.MaterialStatusPending, verdict, reason)
		if tErr != nil {
			return fmt.Errorf("transition status: %w", tErr)
		}
		if touched == 0 {
			return apierr.New(http.StatusConflict, "already_moderated", apierr.ErrConflict)
		}
		if _, nErr := s.notifRepo.Create(dbc, []*domain.Notification{notification}); nErr != nil {
			return fmt.Errorf("create notification: %w", nErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	material.Status = verdict
	material.RejectionReason = reason

	s.invalidateViews(ctx, material)
	switch verdict {
	case domain.MaterialStatusApproved:
		s.notifier.MaterialApproved(material.CreatorID, material, notification)
	case domain.MaterialStatusRejected:
		s.notifier.MaterialRejected(material.CreatorID, material, notification)
	}
	s.notifier.NotificationCreated(material.CreatorID, notification)

	s.log.Info("material moderated", "material_id", materialID, "verdict", verdict)
	return material, nil
}

func buildDecisionNotification(material *domain.Material, verdict, reason string) *domain.Notification {
	id := material.ID
	n := &domain.Notification{
		ID:          uuid.New(),
		RecipientID: material.CreatorID,
		MaterialID:  &id,
		LinkTarget:  "/materiales/" + id.String(),
	}
	if verdict == domain.MaterialStatusApproved {
		n.Kind = domain.NotificationKindApproved
		n.Title = "Material aprobado"
		n.Message = fmt.Sprintf("Tu receta %q fue aprobada y ya es pública.", material.Name)
	} else {
		n.Kind = domain.NotificationKindRejected
		n.Title = "Material rechazado"
		n.Message = fmt.Sprintf("Tu receta %q fue rechazada: %s", material.Name, reason)
	}
	return n
}

func (s *moderationService) PendingCount(ctx context.Context) (int64, error) {
	if _, err := requireModerator(ctx); err != nil {
		return 0, err
	}
	return s.matRepo.CountByStatus(dbctx.Context{Ctx: ctx}, domain.MaterialStatusPending)
}

func (s *moderationService) invalidateViews(ctx context.Context, m *domain.Material) {
	keys := []string{
		cache.KeyPendingMaterials,
		cache.KeyApprovedMaterials,
		cache.KeyUserMaterials(m.CreatorID.String()),
	}
	if err := s.views.Invalidate(ctx, keys...); err != nil {
		s.log.Warn("view cache invalidation failed", "error", err)
	}
}
