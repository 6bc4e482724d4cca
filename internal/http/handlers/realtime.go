package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/biomateca/biomateca-backend/internal/domain"
	"github.com/biomateca/biomateca-backend/internal/platform/logger"
	"github.com/biomateca/biomateca-backend/internal/realtime"
	"github.com/biomateca/biomateca-backend/internal/requestdata"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.SSEHub

	mu      sync.RWMutex
	clients map[uuid.UUID]*realtime.SSEClient // key: SessionID (UserToken.ID)
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{
		log:     log.With("handler", "RealtimeHandler"),
		hub:     hub,
		clients: make(map[uuid.UUID]*realtime.SSEClient),
	}
}

// SSEStream subscribes the connection to the caller's own channel, plus the
// moderation channel for moderators, then blocks serving events until the
// client goes away.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	if rd.SessionID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session id"})
		return
	}

	h.mu.Lock()
	// One stream per session; a reconnect replaces the old client.
	if existing, ok := h.clients[rd.SessionID]; ok {
		h.hub.CloseClient(existing)
		delete(h.clients, rd.SessionID)
	}
	client := h.hub.NewSSEClient(rd.UserID)
	h.clients[rd.SessionID] = client
	h.mu.Unlock()

	h.hub.AddChannel(client, realtime.UserChannel(rd.UserID.String()))
	if rd.Role == domain.RoleModerator {
		h.hub.AddChannel(client, realtime.ModerationChannel)
	}

	h.log.Info("SSE stream open", "user_id", rd.UserID, "session_id", rd.SessionID)
	h.hub.ServeHTTP(c.Writer, c.Request, client)

	// A reconnect may already have replaced and closed this client.
	h.mu.Lock()
	current := h.clients[rd.SessionID]
	if current == client {
		delete(h.clients, rd.SessionID)
	}
	h.mu.Unlock()
	if current == client {
		h.hub.CloseClient(client)
	}
}
