package wizard

import (
	"strings"
	"unicode/utf8"

	"github.com/biomateca/biomateca-backend/internal/domain"
)

type StepResult struct {
	Valid       bool
	FieldErrors map[string]string
}

const (
	minNameLen        = 3
	minDescriptionLen = 10
	minFreeTextLen    = 3
	minStepDescLen    = 10
)

// ValidateStep is pure: same draft, same step, same result.
func ValidateStep(d *Draft, step Step) StepResult {
	errs := map[string]string{}
	switch step {
	case StepBasicInfo:
		if utf8.RuneCountInString(strings.TrimSpace(d.Name)) < minNameLen {
			errs["nombre"] = "el nombre debe tener al menos 3 caracteres"
		}
		if utf8.RuneCountInString(strings.TrimSpace(d.Description)) < minDescriptionLen {
			errs["descripcion"] = "la descripción debe tener al menos 10 caracteres"
		}
		if len(d.Tools) == 0 {
			errs["herramientas"] = "agrega al menos una herramienta"
		}
		if countPresentGallery(d) == 0 {
			errs["galeria"] = "agrega al menos una foto"
		}
	case StepProperties:
		validateLeveled(errs, "propiedades_mecanicas", d.Mechanical)
		validateLeveled(errs, "propiedades_emocionales", d.Emotional)
		for _, p := range d.Perceptual {
			if utf8.RuneCountInString(strings.TrimSpace(p.Value)) < minFreeTextLen {
				errs["propiedades_perceptuales"] = "describe la propiedad con al menos 3 caracteres"
				break
			}
		}
	case StepComposition:
		if len(d.Composition) == 0 {
			errs["composicion"] = "agrega al menos un elemento"
		}
		for _, c := range d.Composition {
			if strings.TrimSpace(c.Element) == "" {
				errs["composicion"] = "cada entrada necesita un elemento"
				break
			}
		}
	case StepRecipe:
		if len(d.Steps) == 0 {
			errs["pasos"] = "agrega al menos un paso"
		}
		for _, s := range d.Steps {
			if utf8.RuneCountInString(strings.TrimSpace(s.Description)) < minStepDescLen {
				errs["pasos"] = "cada paso necesita una descripción de al menos 10 caracteres"
				break
			}
		}
	}
	return StepResult{Valid: len(errs) == 0, FieldErrors: errs}
}

func validateLeveled(errs map[string]string, field string, entries []domain.PropertyEntry) {
	for _, p := range entries {
		if !domain.IsPropertyLevel(p.Value) {
			errs[field] = "el valor debe ser low, medium o high"
			return
		}
	}
}

func countPresentGallery(d *Draft) int {
	n := 0
	for _, g := range d.Gallery {
		if g.Ref.Present() {
			n++
		}
	}
	return n
}
