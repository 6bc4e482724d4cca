package handlers

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/biomateca/biomateca-backend/internal/domain"
	"github.com/biomateca/biomateca-backend/internal/http/response"
	"github.com/biomateca/biomateca-backend/internal/platform/logger"
	"github.com/biomateca/biomateca-backend/internal/requestdata"
	"github.com/biomateca/biomateca-backend/internal/services"
)

// MaterialHandler speaks the community site's original submission wire
// format: Spanish multipart field names, JSON-encoded text parts and
// per-step binary parts keyed by orden_paso.
type MaterialHandler struct {
	log             *logger.Logger
	materialService services.MaterialService
}

func NewMaterialHandler(log *logger.Logger, materialService services.MaterialService) *MaterialHandler {
	return &MaterialHandler{
		log:             log.With("handler", "MaterialHandler"),
		materialService: materialService,
	}
}

type stepMeta struct {
	ID          *uuid.UUID `json:"id,omitempty"`
	Description string     `json:"descripcion"`
	Order       int        `json:"orden_paso"`
	Image       *string    `json:"imagen"`
	Video       *string    `json:"video"`
}

func jsonField[T any](form *multipart.Form, name string, dest *T) error {
	vals, ok := form.Value[name]
	if !ok || len(vals) == 0 || vals[0] == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(vals[0]), dest); err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}
	return nil
}

func textField(form *multipart.Form, name string) string {
	if vals, ok := form.Value[name]; ok && len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func fileInput(fh *multipart.FileHeader) (*services.FileInput, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	return &services.FileInput{
		Filename: fh.Filename,
		Size:     fh.Size,
		Reader:   f,
	}, nil
}

func decodeSubmission(c *gin.Context) (services.SubmissionInput, error) {
	var in services.SubmissionInput

	form, err := c.MultipartForm()
	if err != nil {
		return in, fmt.Errorf("parse multipart form: %w", err)
	}

	in.Name = textField(form, "nombre")
	in.Description = textField(form, "descripcion")

	if err := jsonField(form, "herramientas", &in.Tools); err != nil {
		return in, err
	}
	if err := jsonField(form, "composicion", &in.Composition); err != nil {
		return in, err
	}
	if err := jsonField(form, "propiedades_mecanicas", &in.MechanicalProps); err != nil {
		return in, err
	}
	if err := jsonField(form, "propiedades_perceptuales", &in.PerceptualProps); err != nil {
		return in, err
	}
	if err := jsonField(form, "propiedades_emocionales", &in.EmotionalProps); err != nil {
		return in, err
	}
	if err := jsonField(form, "colaboradores", &in.Collaborators); err != nil {
		return in, err
	}
	if raw := textField(form, "material_padre_id"); raw != "" {
		parentID, pErr := uuid.Parse(raw)
		if pErr != nil {
			return in, fmt.Errorf("field material_padre_id: %w", pErr)
		}
		in.ParentID = &parentID
	}

	var steps []stepMeta
	if err := jsonField(form, "pasos", &steps); err != nil {
		return in, err
	}
	for _, meta := range steps {
		step := services.StepInput{
			ID:          meta.ID,
			Position:    meta.Order,
			Description: meta.Description,
		}
		// A URL in the metadata keeps the stored file; null plus a binary
		// part replaces it; null alone removes it.
		if meta.Image != nil {
			step.KeptImageURL = *meta.Image
		}
		if meta.Video != nil {
			step.KeptVideoURL = *meta.Video
		}
		if fhs := form.File[fmt.Sprintf("paso_imagen_%d", meta.Order)]; len(fhs) > 0 {
			fi, fErr := fileInput(fhs[0])
			if fErr != nil {
				return in, fErr
			}
			step.Image = fi
		}
		if fhs := form.File[fmt.Sprintf("paso_video_%d", meta.Order)]; len(fhs) > 0 {
			fi, fErr := fileInput(fhs[0])
			if fErr != nil {
				return in, fErr
			}
			step.Video = fi
		}
		in.Steps = append(in.Steps, step)
	}

	// On edit, galeria_existente lists the stored photos that survive; any
	// photo absent from it is dropped.
	var existing []string
	if err := jsonField(form, "galeria_existente", &existing); err != nil {
		return in, err
	}
	for _, url := range existing {
		in.Gallery = append(in.Gallery, services.GalleryItemInput{ExistingURL: url})
	}

	var captions []string
	if err := jsonField(form, "galeria_textos", &captions); err != nil {
		return in, err
	}
	for i, fh := range form.File["galeria"] {
		fi, fErr := fileInput(fh)
		if fErr != nil {
			return in, fErr
		}
		item := services.GalleryItemInput{File: fi}
		if i < len(captions) {
			item.Caption = captions[i]
		}
		in.Gallery = append(in.Gallery, item)
	}

	return in, nil
}

func (mh *MaterialHandler) Create(c *gin.Context) {
	in, err := decodeSubmission(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_submission", err)
		return
	}
	created, err := mh.materialService.SubmitMaterial(c.Request.Context(), in)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, created)
}

func (mh *MaterialHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_material_id", err)
		return
	}
	in, err := decodeSubmission(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_submission", err)
		return
	}
	updated, err := mh.materialService.UpdateMaterial(c.Request.Context(), id, in)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, updated)
}

func (mh *MaterialHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_material_id", err)
		return
	}
	m, err := mh.materialService.GetMaterial(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	// Pending and rejected recipes are only visible to their creator,
	// collaborators and moderators.
	if m.Status != domain.MaterialStatusApproved && !canSeeUnpublished(c, m) {
		response.RespondError(c, http.StatusNotFound, "material_not_found", fmt.Errorf("material not found"))
		return
	}
	response.RespondOK(c, m)
}

func canSeeUnpublished(c *gin.Context, m *domain.Material) bool {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		return false
	}
	if rd.Role == domain.RoleModerator || rd.UserID == m.CreatorID {
		return true
	}
	for _, collab := range m.Collaborators {
		if collab == rd.UserID {
			return true
		}
	}
	return false
}

func (mh *MaterialHandler) ListApproved(c *gin.Context) {
	rows, err := mh.materialService.ListApproved(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"materials": rows})
}

func (mh *MaterialHandler) ListMine(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("not authenticated"))
		return
	}
	rows, err := mh.materialService.ListByCreator(c.Request.Context(), rd.UserID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"materials": rows})
}

func (mh *MaterialHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_material_id", err)
		return
	}
	if err := mh.materialService.DeleteMaterial(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
