package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationKindApproved = "approved"
	NotificationKindRejected = "rejected"
	NotificationKindInfo     = "info"
)

// Notification is one entry of a user's append-only ledger. Rows are only
// ever inserted by the backend; clients flip Read from false to true and
// nothing else.
type Notification struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RecipientID uuid.UUID `gorm:"type:uuid;not null;index" json:"recipient_id"`
	Recipient   *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:RecipientID;references:ID" json:"-"`

	Title   string `gorm:"not null;column:title" json:"title"`
	Message string `gorm:"column:message;type:text" json:"message"`
	Kind    string `gorm:"not null;default:'info';column:kind;index" json:"kind"`

	LinkTarget string     `gorm:"column:link_target" json:"link_target,omitempty"`
	MaterialID *uuid.UUID `gorm:"type:uuid;column:material_id;index" json:"material_id,omitempty"`

	Read bool `gorm:"not null;default:false;column:read;index" json:"read"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (Notification) TableName() string { return "notification" }
