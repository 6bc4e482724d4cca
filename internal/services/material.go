package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/biomateca/biomateca-backend/internal/cache"
	"github.com/biomateca/biomateca-backend/internal/data/repos/materials"
	"github.com/biomateca/biomateca-backend/internal/domain"
	"github.com/biomateca/biomateca-backend/internal/platform/apierr"
	"github.com/biomateca/biomateca-backend/internal/platform/dbctx"
	"github.com/biomateca/biomateca-backend/internal/platform/gcp"
	"github.com/biomateca/biomateca-backend/internal/platform/logger"
	"github.com/biomateca/biomateca-backend/internal/requestdata"
)

type FileInput struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

// StepInput carries one recipe step from the submission form. Media slots
// are tri-state: a new upload (Image/Video set), a stored file the edit
// keeps (KeptImageURL/KeptVideoURL set), or removed (both empty). A new
// upload always wins over a kept URL.
type StepInput struct {
	ID           *uuid.UUID
	Position     int
	Description  string
	Image        *FileInput
	Video        *FileInput
	KeptImageURL string
	KeptVideoURL string
}

// GalleryItemInput is either a fresh upload (File set) or a kept existing
// photo (ExistingURL set). Position follows slice order.
type GalleryItemInput struct {
	Caption     string
	File        *FileInput
	ExistingURL string
}

type SubmissionInput struct {
	Name            string
	Description     string
	Tools           []string
	Composition     []domain.CompositionEntry
	MechanicalProps []domain.PropertyEntry
	PerceptualProps []domain.PropertyEntry
	EmotionalProps  []domain.PropertyEntry
	Steps           []StepInput
	Gallery         []GalleryItemInput
	ParentID        *uuid.UUID
	Collaborators   []uuid.UUID
}

type MaterialService interface {
	SubmitMaterial(ctx context.Context, in SubmissionInput) (*domain.Material, error)
	UpdateMaterial(ctx context.Context, id uuid.UUID, in SubmissionInput) (*domain.Material, error)
	GetMaterial(ctx context.Context, id uuid.UUID) (*domain.Material, error)
	ListApproved(ctx context.Context) ([]*domain.Material, error)
	ListPending(ctx context.Context) ([]*domain.Material, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*domain.Material, error)
	DeleteMaterial(ctx context.Context, id uuid.UUID) error
}

type materialService struct {
	db        *gorm.DB
	log       *logger.Logger
	matRepo   materials.MaterialRepo
	imageRepo materials.MaterialImageRepo
	stepRepo  materials.RecipeStepRepo
	bucket    gcp.BucketService
	views     cache.ViewCache
	notifier  MaterialNotifier
}

func NewMaterialService(
	db *gorm.DB,
	baseLog *logger.Logger,
	matRepo materials.MaterialRepo,
	imageRepo materials.MaterialImageRepo,
	stepRepo materials.RecipeStepRepo,
	bucket gcp.BucketService,
	views cache.ViewCache,
	notifier MaterialNotifier,
) MaterialService {
	return &materialService{
		db:        db,
		log:       baseLog.With("service", "MaterialService"),
		matRepo:   matRepo,
		imageRepo: imageRepo,
		stepRepo:  stepRepo,
		bucket:    bucket,
		views:     views,
		notifier:  notifier,
	}
}

// Server-side floor for submissions, matching what the wizard enforces
// step by step. Lengths count runes, not bytes.
const (
	minNameLen        = 3
	minDescriptionLen = 10
	minFreeTextLen    = 3
	minStepDescLen    = 10
)

func runeLen(s string) int { return utf8.RuneCountInString(strings.TrimSpace(s)) }

func validateSubmission(in SubmissionInput) error {
	if runeLen(in.Name) < minNameLen {
		return apierr.New(http.StatusBadRequest, "invalid_name", apierr.ErrInvalidArgument)
	}
	if runeLen(in.Description) < minDescriptionLen {
		return apierr.New(http.StatusBadRequest, "invalid_description", apierr.ErrInvalidArgument)
	}
	if len(in.Tools) == 0 {
		return apierr.New(http.StatusBadRequest, "missing_tools", apierr.ErrInvalidArgument)
	}
	if len(in.Gallery) == 0 {
		return apierr.New(http.StatusBadRequest, "missing_gallery", apierr.ErrInvalidArgument)
	}
	if len(in.Composition) == 0 {
		return apierr.New(http.StatusBadRequest, "missing_composition", apierr.ErrInvalidArgument)
	}
	if len(in.Steps) == 0 {
		return apierr.New(http.StatusBadRequest, "missing_steps", apierr.ErrInvalidArgument)
	}
	seen := map[int]bool{}
	for _, s := range in.Steps {
		if s.Position < 1 {
			return apierr.New(http.StatusBadRequest, "invalid_step_position", apierr.ErrInvalidArgument)
		}
		if seen[s.Position] {
			return apierr.New(http.StatusBadRequest, "duplicate_step_position", apierr.ErrInvalidArgument)
		}
		seen[s.Position] = true
		if runeLen(s.Description) < minStepDescLen {
			return apierr.New(http.StatusBadRequest, "invalid_step_description", apierr.ErrInvalidArgument)
		}
	}
	for _, group := range [][]domain.PropertyEntry{in.MechanicalProps, in.EmotionalProps} {
		for _, p := range group {
			if strings.TrimSpace(p.Name) == "" {
				return apierr.New(http.StatusBadRequest, "missing_property_name", apierr.ErrInvalidArgument)
			}
			if !domain.IsPropertyLevel(p.Value) {
				return apierr.New(http.StatusBadRequest, "invalid_property_value", apierr.ErrInvalidArgument)
			}
		}
	}
	for _, p := range in.PerceptualProps {
		if strings.TrimSpace(p.Name) == "" {
			return apierr.New(http.StatusBadRequest, "missing_property_name", apierr.ErrInvalidArgument)
		}
		if runeLen(p.Value) < minFreeTextLen {
			return apierr.New(http.StatusBadRequest, "invalid_perceptual_value", apierr.ErrInvalidArgument)
		}
	}
	for _, c := range in.Composition {
		if strings.TrimSpace(c.Element) == "" {
			return apierr.New(http.StatusBadRequest, "missing_composition_element", apierr.ErrInvalidArgument)
		}
	}
	return nil
}

func mediaKey(materialID uuid.UUID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("materials/%s/%s%s", materialID, uuid.New(), ext)
}

func (ms *materialService) uploadMedia(ctx context.Context, materialID uuid.UUID, f *FileInput) (string, string, error) {
	key := mediaKey(materialID, f.Filename)
	if err := ms.bucket.UploadFile(ctx, key, f.Reader); err != nil {
		return "", "", fmt.Errorf("upload %q: %w", f.Filename, err)
	}
	return key, ms.bucket.GetPublicURL(key), nil
}

func (ms *materialService) SubmitMaterial(ctx context.Context, in SubmissionInput) (*domain.Material, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "login_required", apierr.ErrUnauthorized)
	}
	if err := validateSubmission(in); err != nil {
		return nil, err
	}

	material := &domain.Material{
		ID:              uuid.New(),
		Name:            strings.TrimSpace(in.Name),
		Description:     strings.TrimSpace(in.Description),
		Tools:           datatypes.NewJSONSlice(in.Tools),
		Composition:     datatypes.NewJSONSlice(in.Composition),
		MechanicalProps: datatypes.NewJSONSlice(in.MechanicalProps),
		PerceptualProps: datatypes.NewJSONSlice(in.PerceptualProps),
		EmotionalProps:  datatypes.NewJSONSlice(in.EmotionalProps),
		ParentID:        in.ParentID,
		CreatorID:       rd.UserID,
		Collaborators:   datatypes.NewJSONSlice(in.Collaborators),
		Status:          domain.MaterialStatusPending,
	}

	images, steps, uploaded, err := ms.buildMedia(ctx, material.ID, in)
	if err != nil {
		ms.deleteUploaded(ctx, uploaded)
		return nil, err
	}

	err = ms.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, cErr := ms.matRepo.Create(dbc, []*domain.Material{material}); cErr != nil {
			return fmt.Errorf("create material: %w", cErr)
		}
		if len(images) > 0 {
			if _, iErr := ms.imageRepo.Create(dbc, images); iErr != nil {
				return fmt.Errorf("create gallery: %w", iErr)
			}
		}
		if _, sErr := ms.stepRepo.Create(dbc, steps); sErr != nil {
			return fmt.Errorf("create steps: %w", sErr)
		}
		return nil
	})
	if err != nil {
		// Orphaned uploads are cleaned up so a failed submit leaves nothing.
		_ = ms.bucket.DeletePrefix(ctx, "materials/"+material.ID.String()+"/")
		return nil, err
	}

	ms.invalidateViews(ctx, material)
	ms.notifier.MaterialSubmitted(material)
	ms.log.Info("material submitted", "material_id", material.ID, "creator_id", rd.UserID)
	return ms.GetMaterial(ctx, material.ID)
}

// buildMedia uploads every fresh file and records the object keys it
// created, so callers can delete exactly those on a later failure. Kept
// URLs pass through without touching the bucket; an empty slot stays
// empty, which is how a removed step image stays removed.
func (ms *materialService) buildMedia(ctx context.Context, materialID uuid.UUID, in SubmissionInput) ([]*domain.MaterialImage, []*domain.RecipeStep, []string, error) {
	var uploaded []string

	images := make([]*domain.MaterialImage, 0, len(in.Gallery))
	for i, g := range in.Gallery {
		img := &domain.MaterialImage{
			ID:         uuid.New(),
			MaterialID: materialID,
			Position:   i + 1,
			Caption:    g.Caption,
		}
		switch {
		case g.File != nil:
			key, url, err := ms.uploadMedia(ctx, materialID, g.File)
			if err != nil {
				return nil, nil, uploaded, err
			}
			uploaded = append(uploaded, key)
			img.StorageKey = key
			img.URL = url
		case g.ExistingURL != "":
			img.URL = g.ExistingURL
		default:
			return nil, nil, uploaded, apierr.New(http.StatusBadRequest, "empty_gallery_item", apierr.ErrInvalidArgument)
		}
		images = append(images, img)
	}

	steps := make([]*domain.RecipeStep, 0, len(in.Steps))
	for _, s := range in.Steps {
		step := &domain.RecipeStep{
			ID:          uuid.New(),
			MaterialID:  materialID,
			Position:    s.Position,
			Description: strings.TrimSpace(s.Description),
		}
		if s.ID != nil {
			step.ID = *s.ID
		}
		switch {
		case s.Image != nil:
			key, url, err := ms.uploadMedia(ctx, materialID, s.Image)
			if err != nil {
				return nil, nil, uploaded, err
			}
			uploaded = append(uploaded, key)
			step.ImageStorageKey = key
			step.ImageURL = url
		case s.KeptImageURL != "":
			step.ImageURL = s.KeptImageURL
		}
		switch {
		case s.Video != nil:
			key, url, err := ms.uploadMedia(ctx, materialID, s.Video)
			if err != nil {
				return nil, nil, uploaded, err
			}
			uploaded = append(uploaded, key)
			step.VideoStorageKey = key
			step.VideoURL = url
		case s.KeptVideoURL != "":
			step.VideoURL = s.KeptVideoURL
		}
		steps = append(steps, step)
	}
	return images, steps, uploaded, nil
}

func (ms *materialService) deleteUploaded(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := ms.bucket.DeleteFile(ctx, key); err != nil {
			ms.log.Warn("orphaned upload cleanup failed", "key", key, "error", err)
		}
	}
}

// UpdateMaterial replaces the editable fields of a recipe; the creator and
// moderators may call it. A step slot keeps its stored media only when the
// request names the stored URL; a slot sent empty is a removal. Editing a
// rejected recipe resubmits it as pending.
func (ms *materialService) UpdateMaterial(ctx context.Context, id uuid.UUID, in SubmissionInput) (*domain.Material, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "login_required", apierr.ErrUnauthorized)
	}
	if err := validateSubmission(in); err != nil {
		return nil, err
	}

	existing, err := ms.matRepo.GetByIDFull(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, fmt.Errorf("load material: %w", err)
	}
	if existing == nil {
		return nil, apierr.New(http.StatusNotFound, "material_not_found", apierr.ErrNotFound)
	}
	if existing.CreatorID != rd.UserID && rd.Role != domain.RoleModerator {
		return nil, apierr.New(http.StatusForbidden, "not_owner", apierr.ErrForbidden)
	}

	keptSteps := map[uuid.UUID]*domain.RecipeStep{}
	for i := range existing.Steps {
		keptSteps[existing.Steps[i].ID] = &existing.Steps[i]
	}
	keptImages := map[string]*domain.MaterialImage{}
	for i := range existing.Gallery {
		keptImages[existing.Gallery[i].URL] = &existing.Gallery[i]
	}

	images, steps, uploaded, err := ms.buildMedia(ctx, id, in)
	if err != nil {
		ms.deleteUploaded(ctx, uploaded)
		return nil, err
	}
	// Retained photos arrive as bare URLs; their stored caption and object
	// key survive the row replacement.
	for _, img := range images {
		if img.StorageKey != "" {
			continue
		}
		if prev, ok := keptImages[img.URL]; ok {
			img.StorageKey = prev.StorageKey
			if img.Caption == "" {
				img.Caption = prev.Caption
			}
		}
	}
	for _, step := range steps {
		prev, ok := keptSteps[step.ID]
		if !ok {
			continue
		}
		if step.ImageStorageKey == "" && step.ImageURL != "" && step.ImageURL == prev.ImageURL {
			step.ImageStorageKey = prev.ImageStorageKey
		}
		if step.VideoStorageKey == "" && step.VideoURL != "" && step.VideoURL == prev.VideoURL {
			step.VideoStorageKey = prev.VideoStorageKey
		}
	}

	existing.Name = strings.TrimSpace(in.Name)
	existing.Description = strings.TrimSpace(in.Description)
	existing.Tools = datatypes.NewJSONSlice(in.Tools)
	existing.Composition = datatypes.NewJSONSlice(in.Composition)
	existing.MechanicalProps = datatypes.NewJSONSlice(in.MechanicalProps)
	existing.PerceptualProps = datatypes.NewJSONSlice(in.PerceptualProps)
	existing.EmotionalProps = datatypes.NewJSONSlice(in.EmotionalProps)
	existing.ParentID = in.ParentID
	existing.Collaborators = datatypes.NewJSONSlice(in.Collaborators)
	// Only the creator's own edit counts as a resubmission.
	if existing.Status == domain.MaterialStatusRejected && existing.CreatorID == rd.UserID {
		existing.Status = domain.MaterialStatusPending
		existing.RejectionReason = ""
	}

	err = ms.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if uErr := ms.matRepo.Update(dbc, existing); uErr != nil {
			return fmt.Errorf("update material: %w", uErr)
		}
		if rErr := ms.imageRepo.ReplaceForMaterial(dbc, id, images); rErr != nil {
			return fmt.Errorf("replace gallery: %w", rErr)
		}
		if rErr := ms.stepRepo.ReplaceForMaterial(dbc, id, steps); rErr != nil {
			return fmt.Errorf("replace steps: %w", rErr)
		}
		return nil
	})
	if err != nil {
		// Only this edit's fresh uploads go; stored media stays live.
		ms.deleteUploaded(ctx, uploaded)
		return nil, err
	}

	ms.invalidateViews(ctx, existing)
	if existing.Status == domain.MaterialStatusPending {
		ms.notifier.MaterialSubmitted(existing)
	}
	ms.log.Info("material updated", "material_id", id, "creator_id", rd.UserID)
	return ms.GetMaterial(ctx, id)
}

func (ms *materialService) GetMaterial(ctx context.Context, id uuid.UUID) (*domain.Material, error) {
	m, err := ms.matRepo.GetByIDFull(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, fmt.Errorf("load material: %w", err)
	}
	if m == nil {
		return nil, apierr.New(http.StatusNotFound, "material_not_found", apierr.ErrNotFound)
	}
	return m, nil
}

func (ms *materialService) ListApproved(ctx context.Context) ([]*domain.Material, error) {
	var cached []*domain.Material
	if hit, err := ms.views.Get(ctx, cache.KeyApprovedMaterials, &cached); err == nil && hit {
		return cached, nil
	}
	rows, err := ms.matRepo.ListByStatus(dbctx.Context{Ctx: ctx}, domain.MaterialStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("list approved: %w", err)
	}
	if err := ms.views.Set(ctx, cache.KeyApprovedMaterials, rows); err != nil {
		ms.log.Warn("view cache set failed", "key", cache.KeyApprovedMaterials, "error", err)
	}
	return rows, nil
}

func (ms *materialService) ListPending(ctx context.Context) ([]*domain.Material, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.Role != domain.RoleModerator {
		return nil, apierr.New(http.StatusForbidden, "moderator_only", apierr.ErrForbidden)
	}
	var cached []*domain.Material
	if hit, err := ms.views.Get(ctx, cache.KeyPendingMaterials, &cached); err == nil && hit {
		return cached, nil
	}
	rows, err := ms.matRepo.ListByStatus(dbctx.Context{Ctx: ctx}, domain.MaterialStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	if err := ms.views.Set(ctx, cache.KeyPendingMaterials, rows); err != nil {
		ms.log.Warn("view cache set failed", "key", cache.KeyPendingMaterials, "error", err)
	}
	return rows, nil
}

func (ms *materialService) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*domain.Material, error) {
	key := cache.KeyUserMaterials(creatorID.String())
	var cached []*domain.Material
	if hit, err := ms.views.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	rows, err := ms.matRepo.ListByCreator(dbctx.Context{Ctx: ctx}, creatorID)
	if err != nil {
		return nil, fmt.Errorf("list by creator: %w", err)
	}
	if err := ms.views.Set(ctx, key, rows); err != nil {
		ms.log.Warn("view cache set failed", "key", key, "error", err)
	}
	return rows, nil
}

func (ms *materialService) DeleteMaterial(ctx context.Context, id uuid.UUID) error {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return apierr.New(http.StatusUnauthorized, "login_required", apierr.ErrUnauthorized)
	}
	m, err := ms.matRepo.GetByIDFull(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return fmt.Errorf("load material: %w", err)
	}
	if m == nil {
		return apierr.New(http.StatusNotFound, "material_not_found", apierr.ErrNotFound)
	}
	if m.CreatorID != rd.UserID && rd.Role != domain.RoleModerator {
		return apierr.New(http.StatusForbidden, "not_owner", apierr.ErrForbidden)
	}

	err = ms.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if dErr := ms.imageRepo.FullDeleteByMaterialIDs(dbc, []uuid.UUID{id}); dErr != nil {
			return fmt.Errorf("delete gallery: %w", dErr)
		}
		if dErr := ms.stepRepo.FullDeleteByMaterialIDs(dbc, []uuid.UUID{id}); dErr != nil {
			return fmt.Errorf("delete steps: %w", dErr)
		}
		if dErr := ms.matRepo.SoftDeleteByIDs(dbc, []uuid.UUID{id}); dErr != nil {
			return fmt.Errorf("delete material: %w", dErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	_ = ms.bucket.DeletePrefix(ctx, "materials/"+id.String()+"/")
	ms.invalidateViews(ctx, m)
	ms.log.Info("material deleted", "material_id", id)
	return nil
}

func (ms *materialService) invalidateViews(ctx context.Context, m *domain.Material) {
	keys := []string{
		cache.KeyPendingMaterials,
		cache.KeyApprovedMaterials,
		cache.KeyUserMaterials(m.CreatorID.String()),
	}
	if err := ms.views.Invalidate(ctx, keys...); err != nil {
		ms.log.Warn("view cache invalidation failed", "error", err)
	}
}
