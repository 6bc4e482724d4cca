package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MaterialStatusPending  = "pending"
	MaterialStatusApproved = "approved"
	MaterialStatusRejected = "rejected"
)

// Ordinal levels allowed for mechanical and emotional property values.
const (
	PropertyLevelLow    = "low"
	PropertyLevelMedium = "medium"
	PropertyLevelHigh   = "high"
)

func IsPropertyLevel(v string) bool {
	switch v {
	case PropertyLevelLow, PropertyLevelMedium, PropertyLevelHigh:
		return true
	}
	return false
}

// CompositionEntry is the canonical composition form. The flat string list
// shown in list views is the Element projection (see Material.CompositionNames).
type CompositionEntry struct {
	Element  string `json:"elemento"`
	Quantity string `json:"cantidad,omitempty"`
}

type PropertyEntry struct {
	Name  string `json:"nombre"`
	Value string `json:"valor"`
	Unit  string `json:"unidad,omitempty"`
}

type Material struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name        string    `gorm:"not null;column:name;index" json:"name"`
	Description string    `gorm:"not null;column:description;type:text" json:"description"`

	Tools           datatypes.JSONSlice[string]           `gorm:"column:tools" json:"tools"`
	Composition     datatypes.JSONSlice[CompositionEntry] `gorm:"column:composition" json:"composition"`
	MechanicalProps datatypes.JSONSlice[PropertyEntry]    `gorm:"column:mechanical_props" json:"mechanical_props"`
	PerceptualProps datatypes.JSONSlice[PropertyEntry]    `gorm:"column:perceptual_props" json:"perceptual_props"`
	EmotionalProps  datatypes.JSONSlice[PropertyEntry]    `gorm:"column:emotional_props" json:"emotional_props"`

	ParentID *uuid.UUID `gorm:"type:uuid;column:parent_id;index" json:"parent_id,omitempty"`
	Parent   *Material  `gorm:"foreignKey:ParentID;references:ID" json:"parent,omitempty"`

	CreatorID     uuid.UUID                      `gorm:"type:uuid;not null;index" json:"creator_id"`
	Creator       *User                          `gorm:"constraint:OnDelete:CASCADE;foreignKey:CreatorID;references:ID" json:"creator,omitempty"`
	Collaborators datatypes.JSONSlice[uuid.UUID] `gorm:"column:collaborators" json:"collaborators"`

	Status          string `gorm:"not null;default:'pending';column:status;index" json:"status"`
	RejectionReason string `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`

	Gallery []MaterialImage `gorm:"constraint:OnDelete:CASCADE;foreignKey:MaterialID;references:ID" json:"gallery,omitempty"`
	Steps   []RecipeStep    `gorm:"constraint:OnDelete:CASCADE;foreignKey:MaterialID;references:ID" json:"steps,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Material) TableName() string { return "material" }

// CompositionNames projects the canonical composition onto the flat string
// list used by list views.
func (m *Material) CompositionNames() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.Composition))
	for _, c := range m.Composition {
		out = append(out, c.Element)
	}
	return out
}

type MaterialImage struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	MaterialID uuid.UUID `gorm:"type:uuid;not null;index" json:"material_id"`

	Position   int    `gorm:"not null;column:position" json:"position"`
	Caption    string `gorm:"column:caption" json:"caption"`
	StorageKey string `gorm:"column:storage_key" json:"-"`
	URL        string `gorm:"not null;column:url" json:"url"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (MaterialImage) TableName() string { return "material_image" }

type RecipeStep struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	MaterialID uuid.UUID `gorm:"type:uuid;not null;index" json:"material_id"`

	// Position is 1-based and matches the orden_paso used to key binary
	// parts in the submission payload.
	Position    int    `gorm:"not null;column:position" json:"position"`
	Description string `gorm:"not null;column:description;type:text" json:"description"`

	ImageStorageKey string `gorm:"column:image_storage_key" json:"-"`
	ImageURL        string `gorm:"column:image_url" json:"image_url,omitempty"`
	VideoStorageKey string `gorm:"column:video_storage_key" json:"-"`
	VideoURL        string `gorm:"column:video_url" json:"video_url,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (RecipeStep) TableName() string { return "recipe_step" }
