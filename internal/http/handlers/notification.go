package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/biomateca/biomateca-backend/internal/http/response"
	"github.com/biomateca/biomateca-backend/internal/services"
)

type NotificationHandler struct {
	notificationService services.NotificationService
}

func NewNotificationHandler(notificationService services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// The feed is always served fresh; a cached dropdown defeats the point of
// moderation notifications. An optional limit widens the window up to the
// service's cap.
func (nh *NotificationHandler) List(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := nh.notificationService.ListRecent(c.Request.Context(), limit)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"notifications": rows})
}

func (nh *NotificationHandler) UnreadCount(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	count, err := nh.notificationService.UnreadCount(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"count": count})
}

func (nh *NotificationHandler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_notification_id", err)
		return
	}
	if err := nh.notificationService.MarkRead(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
