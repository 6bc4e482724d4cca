package realtime

type SSEEvent string

const (
	SSEEventNotificationCreated SSEEvent = "NotificationCreated"
	SSEEventMaterialApproved    SSEEvent = "MaterialApproved"
	SSEEventMaterialRejected    SSEEvent = "MaterialRejected"
	SSEEventMaterialSubmitted   SSEEvent = "MaterialSubmitted"
)

// SSEMessage is the wire payload pushed to subscribed clients. Channel is
// "user:<uuid>" for per-recipient notifications and "moderation" for the
// pending-queue feed moderators watch.
type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

func UserChannel(userID string) string { return "user:" + userID }

const ModerationChannel = "moderation"
