package materials

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biomateca/biomateca-backend/internal/domain"
	"github.com/biomateca/biomateca-backend/internal/platform/dbctx"
	"github.com/biomateca/biomateca-backend/internal/platform/logger"
)

type RecipeStepRepo interface {
	Create(dbc dbctx.Context, steps []*domain.RecipeStep) ([]*domain.RecipeStep, error)
	GetByMaterialID(dbc dbctx.Context, materialID uuid.UUID) ([]*domain.RecipeStep, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.RecipeStep, error)
	ReplaceForMaterial(dbc dbctx.Context, materialID uuid.UUID, steps []*domain.RecipeStep) error
	FullDeleteByMaterialIDs(dbc dbctx.Context, materialIDs []uuid.UUID) error
}

type recipeStepRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecipeStepRepo(db *gorm.DB, baseLog *logger.Logger) RecipeStepRepo {
	return &recipeStepRepo{db: db, log: baseLog.With("repo", "RecipeStepRepo")}
}

func (r *recipeStepRepo) Create(dbc dbctx.Context, steps []*domain.RecipeStep) ([]*domain.RecipeStep, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if len(steps) == 0 {
		return []*domain.RecipeStep{}, nil
	}

	if err := transaction.WithContext(dbc.Ctx).Create(&steps).Error; err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *recipeStepRepo) GetByMaterialID(dbc dbctx.Context, materialID uuid.UUID) ([]*domain.RecipeStep, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.RecipeStep
	if err := transaction.WithContext(dbc.Ctx).
		Where("material_id = ?", materialID).
		Order("position ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *recipeStepRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.RecipeStep, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.RecipeStep
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

func (r *recipeStepRepo) ReplaceForMaterial(dbc dbctx.Context, materialID uuid.UUID, steps []*domain.RecipeStep) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	if err := transaction.WithContext(dbc.Ctx).
		Unscoped().
		Where("material_id = ?", materialID).
		Delete(&domain.RecipeStep{}).Error; err != nil {
		return err
	}
	if len(steps) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(&steps).Error
}

func (r *recipeStepRepo) FullDeleteByMaterialIDs(dbc dbctx.Context, materialIDs []uuid.UUID) error {
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
		Delete(&domain.RecipeStep{}).Error; err != nil {
		return err
	}
	return nil
}
