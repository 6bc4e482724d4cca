// Package wizard models the four-step submission form: the draft being
// edited, per-step validation, and the forward-navigation gate.
package wizard

import (
	"github.com/google/uuid"

	"github.com/biomateca/biomateca-backend/internal/domain"
)

type Step int

const (
	StepBasicInfo Step = iota
	StepProperties
	StepComposition
	StepRecipe
	stepCount
)

type GalleryItem struct {
	Ref     MediaRef
	Caption string
}

// StepDraft is one recipe step under edit. ID is set when the step already
// exists server-side, so an edit can keep its stored media.
type StepDraft struct {
	ID          *uuid.UUID
	Description string
	Image       MediaRef
	Video       MediaRef
}

type Draft struct {
	Name        string
	Description string
	Tools       []string
	Gallery     []GalleryItem

	Mechanical []domain.PropertyEntry
	Perceptual []domain.PropertyEntry
	Emotional  []domain.PropertyEntry

	Composition []domain.CompositionEntry

	Steps []StepDraft

	ParentID      *uuid.UUID
	Collaborators []uuid.UUID
}

// CompositionNames is the flat projection some views render; the object
// list stays canonical.
func (d *Draft) CompositionNames() []string {
	out := make([]string, 0, len(d.Composition))
	for _, c := range d.Composition {
		out = append(out, c.Element)
	}
	return out
}
