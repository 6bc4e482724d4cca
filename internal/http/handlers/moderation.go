package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/biomateca/biomateca-backend/internal/http/response"
	"github.com/biomateca/biomateca-backend/internal/services"
)

type ModerationHandler struct {
	materialService   services.MaterialService
	moderationService services.ModerationService
}

func NewModerationHandler(materialService services.MaterialService, moderationService services.ModerationService) *ModerationHandler {
	return &ModerationHandler{
		materialService:   materialService,
		moderationService: moderationService,
	}
}

func (mh *ModerationHandler) ListPending(c *gin.Context) {
	rows, err := mh.materialService.ListPending(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"materials": rows})
}

func (mh *ModerationHandler) PendingCount(c *gin.Context) {
	count, err := mh.moderationService.PendingCount(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"count": count})
}

func (mh *ModerationHandler) Approve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_material_id", err)
		return
	}
	m, err := mh.moderationService.ApproveMaterial(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, m)
}

func (mh *ModerationHandler) Reject(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_material_id", err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	m, err := mh.moderationService.RejectMaterial(c.Request.Context(), id, req.Reason)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, m)
}
