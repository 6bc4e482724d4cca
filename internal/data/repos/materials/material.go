package materials

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biomateca/biomateca-backend/internal/domain"
	"github.com/biomateca/biomateca-backend/internal/platform/dbctx"
	"github.com/biomateca/biomateca-backend/internal/platform/logger"
)

type MaterialRepo interface {
	Create(dbc dbctx.Context, materials []*domain.Material) ([]*domain.Material, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Material, error)
	// GetByIDFull loads the material together with its ordered gallery and steps.
	GetByIDFull(dbc dbctx.Context, id uuid.UUID) (*domain.Material, error)
	ListByStatus(dbc dbctx.Context, status string) ([]*domain.Material, error)
	ListByCreator(dbc dbctx.Context, creatorID uuid.UUID) ([]*domain.Material, error)
	CountByStatus(dbc dbctx.Context, status string) (int64, error)
	Update(dbc dbctx.Context, material *domain.Material) error
	// TransitionStatus flips status from `from` to `to` and returns the number
	// of rows touched; zero means the record was missing or already past the
	// transition.
	TransitionStatus(dbc dbctx.Context, id uuid.UUID, from, to, reason string) (int64, error)
	SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type materialRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMaterialRepo(db *gorm.DB, baseLog *logger.Logger) MaterialRepo {
	return &materialRepo{db: db, log: baseLog.With("repo", "MaterialRepo")}
}

func (r *materialRepo) Create(dbc dbctx.Context, materials []*domain.Material) ([]*domain.Material, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(materials) == 0 {
		return []*domain.Material{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&materials).Error; err != nil {
		return nil, err
	}
	return materials, nil
}

func (r *materialRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Material, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Material
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

func (r *materialRepo) GetByIDFull(dbc dbctx.Context, id uuid.UUID) (*domain.Material, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var result domain.Material
	err := transaction.WithContext(dbc.Ctx).
		Preload("Gallery", func(q *gorm.DB) *gorm.DB { return q.Order("position ASC") }).
		Preload("Steps", func(q *gorm.DB) *gorm.DB { return q.Order("position ASC") }).
		Where("id = ?", id).
		First(&result).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *materialRepo) ListByStatus(dbc dbctx.Context, status string) ([]*domain.Material, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Material
	if err := transaction.WithContext(dbc.Ctx).
		Preload("Gallery", func(q *gorm.DB) *gorm.DB { return q.Order("position ASC") }).
		Where("status = ?", status).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *materialRepo) ListByCreator(dbc dbctx.Context, creatorID uuid.UUID) ([]*domain.Material, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.Material
	if err := transaction.WithContext(dbc.Ctx).
		Preload("Gallery", func(q *gorm.DB) *gorm.DB { return q.Order("position ASC") }).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *materialRepo) CountByStatus(dbc dbctx.Context, status string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&domain.Material{}).
		Where("status = ?", status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *materialRepo) Update(dbc dbctx.Context, material *domain.Material) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if material == nil || material.ID == uuid.Nil {
		return gorm.ErrMissingWhereClause
	}

	return transaction.WithContext(dbc.Ctx).
		Model(&domain.Material{}).
		Where("id = ?", material.ID).
		Select("name", "description", "tools", "composition",
			"mechanical_props", "perceptual_props", "emotional_props",
			"parent_id", "collaborators", "status", "rejection_reason").
		Updates(material).Error
}

func (r *materialRepo) TransitionStatus(dbc dbctx.Context, id uuid.UUID, from, to, reason string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	res := transaction.WithContext(dbc.Ctx).
		Model(&domain.Material{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":           to,
			"rejection_reason": reason,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *materialRepo) SoftDeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return nil
	}

	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&domain.Material{}).Error; err != nil {
		return err
	}
	return nil
}
