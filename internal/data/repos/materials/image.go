package materials

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biomateca/biomateca-backend/internal/domain"
	"github.com/biomateca/biomateca-backend/internal/platform/dbctx"
	"github.com/biomateca/biomateca-backend/internal/platform/logger"
)

type MaterialImageRepo interface {
	Create(dbc dbctx.Context, images []*domain.MaterialImage) ([]*domain.MaterialImage, error)
	GetByMaterialID(dbc dbctx.Context, materialID uuid.UUID) ([]*domain.MaterialImage, error)
	ReplaceForMaterial(dbc dbctx.Context, materialID uuid.UUID, images []*domain.MaterialImage) error
	FullDeleteByMaterialIDs(dbc dbctx.Context, materialIDs []uuid.UUID) error
}

type materialImageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMaterialImageRepo(db *gorm.DB, baseLog *logger.Logger) MaterialImageRepo {
	return &materialImageRepo{db: db, log: baseLog.With("repo", "MaterialImageRepo")}
}

func (r *materialImageRepo) Create(dbc dbctx.Context, images []*domain.MaterialImage) ([]*domain.MaterialImage, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(images) == 0 {
		return []*domain.MaterialImage{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

func (r *materialImageRepo) GetByMaterialID(dbc dbctx.Context, materialID uuid.UUID) ([]*domain.MaterialImage, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.MaterialImage
	if err := transaction.WithContext(dbc.Ctx).
		Where("material_id = ?", materialID).
		Order("position ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ReplaceForMaterial swaps the material's gallery for the given ordered set.
// Rows for removed images are deleted for real; the edit contract already
// decided what survives.
func (r *materialImageRepo) ReplaceForMaterial(dbc dbctx.Context, materialID uuid.UUID, images []*domain.MaterialImage) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(dbc.Ctx).
		Unscoped().
		Where("material_id = ?", materialID).
		Delete(&domain.MaterialImage{}).Error; err != nil {
		return err
	}
	if len(images) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(&images).Error
}

func (r *materialImageRepo) FullDeleteByMaterialIDs(dbc dbctx.Context, materialIDs []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(materialIDs) == 0 {
		return nil
	}

	if err := transaction.WithContext(dbc.Ctx).
		Unscoped().
		Where("material_id IN ?", materialIDs).
		Delete(&domain.MaterialImage{}).Error; err != nil {
		return err
	}
	return nil
}
