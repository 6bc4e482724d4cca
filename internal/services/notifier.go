package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/biomateca/biomateca-backend/internal/domain"
	"github.com/biomateca/biomateca-backend/internal/realtime"
)

// MaterialNotifier pushes realtime events after a moderation decision or a
// new submission has been committed. It never writes rows itself.
type MaterialNotifier interface {
	MaterialSubmitted(material *domain.Material)
	MaterialApproved(recipientID uuid.UUID, material *domain.Material, notification *domain.Notification)
	MaterialRejected(recipientID uuid.UUID, material *domain.Material, notification *domain.Notification)
	NotificationCreated(recipientID uuid.UUID, notification *domain.Notification)
}

type materialNotifier struct {
	emit SSEEmitter
}

func NewMaterialNotifier(emit SSEEmitter) MaterialNotifier {
	return &materialNotifier{emit: emit}
}

func (n *materialNotifier) MaterialSubmitted(material *domain.Material) {
	if n == nil || n.emit == nil || material == nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.ModerationChannel,
		Event:   realtime.SSEEventMaterialSubmitted,
		Data:    map[string]any{"material": material},
	})
}

func (n *materialNotifier) MaterialApproved(recipientID uuid.UUID, material *domain.Material, notification *domain.Notification) {
	if n == nil || n.emit == nil || recipientID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.UserChannel(recipientID.String()),
		Event:   realtime.SSEEventMaterialApproved,
		Data: map[string]any{
			"material_id":  safeMaterialID(material),
			"notification": notification,
		},
	})
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.ModerationChannel,
		Event:   realtime.SSEEventMaterialApproved,
		Data:    map[string]any{"material_id": safeMaterialID(material)},
	})
}

func (n *materialNotifier) MaterialRejected(recipientID uuid.UUID, material *domain.Material, notification *domain.Notification) {
	if n == nil || n.emit == nil || recipientID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.UserChannel(recipientID.String()),
		Event:   realtime.SSEEventMaterialRejected,
		Data: map[string]any{
			"material_id":  safeMaterialID(material),
			"notification": notification,
		},
	})
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.ModerationChannel,
		Event:   realtime.SSEEventMaterialRejected,
		Data:    map[string]any{"material_id": safeMaterialID(material)},
	})
}

func (n *materialNotifier) NotificationCreated(recipientID uuid.UUID, notification *domain.Notification) {
	if n == nil || n.emit == nil || recipientID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.UserChannel(recipientID.String()),
		Event:   realtime.SSEEventNotificationCreated,
		Data:    map[string]any{"notification": notification},
	})
}

func safeMaterialID(m *domain.Material) string {
	if m == nil {
		return ""
	}
	return m.ID.String()
}
