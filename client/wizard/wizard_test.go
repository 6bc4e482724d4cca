package wizard

import (
	"reflect"
	"testing"

	"github.com/biomateca/biomateca-backend/internal/domain"
)

func validDraft() Draft {
	return Draft{
		Name:        "Bioplástico de almidón",
		Description: "Lámina flexible a base de almidón de maíz y glicerina.",
		Tools:       []string{"licuadora"},
		Gallery: []GalleryItem{
			{Ref: ReplacedMedia("foto.jpg", []byte{0xff, 0xd8}), Caption: "resultado"},
		},
		Mechanical: []domain.PropertyEntry{{Name: "flexibilidad", Value: domain.PropertyLevelHigh}},
		Perceptual: []domain.PropertyEntry{{Name: "textura", Value: "lisa y translúcida"}},
		Emotional:  []domain.PropertyEntry{{Name: "calidez", Value: domain.PropertyLevelMedium}},
		Composition: []domain.CompositionEntry{
			{Element: "almidón de maíz", Quantity: "2 cucharadas"},
			{Element: "glicerina", Quantity: "1 cucharadita"},
		},
		Steps: []StepDraft{
			{Description: "Mezclar el almidón con agua fría hasta disolver."},
		},
	}
}

func TestValidateStepIsPure(t *testing.T) {
	d := validDraft()
	d.Name = "ab"
	d.Gallery = nil

	first := ValidateStep(&d, StepBasicInfo)
	second := ValidateStep(&d, StepBasicInfo)

	if first.Valid {
		t.Fatal("expected basic info step to be invalid")
	}
	if !reflect.DeepEqual(first.FieldErrors, second.FieldErrors) {
		t.Fatalf("repeated validation diverged: %v vs %v", first.FieldErrors, second.FieldErrors)
	}
	if _, ok := first.FieldErrors["nombre"]; !ok {
		t.Fatal("expected an error on nombre")
	}
	if _, ok := first.FieldErrors["galeria"]; !ok {
		t.Fatal("expected an error on galeria")
	}
}

func TestValidateStepGalleryRequiresPresentMedia(t *testing.T) {
	d := validDraft()
	d.Gallery = []GalleryItem{{Ref: AbsentMedia()}}

	res := ValidateStep(&d, StepBasicInfo)
	if res.Valid {
		t.Fatal("absent gallery media should not satisfy the photo requirement")
	}

	d.Gallery = []GalleryItem{{Ref: KeptMedia("https://cdn.example.com/materials/x/a.jpg")}}
	if res := ValidateStep(&d, StepBasicInfo); !res.Valid {
		t.Fatalf("kept gallery media should count: %v", res.FieldErrors)
	}
}

func TestValidateStepPropertyLevels(t *testing.T) {
	d := validDraft()
	d.Mechanical[0].Value = "muy alta"

	res := ValidateStep(&d, StepProperties)
	if res.Valid {
		t.Fatal("expected free-text mechanical value to be rejected")
	}
	if _, ok := res.FieldErrors["propiedades_mecanicas"]; !ok {
		t.Fatalf("expected error on propiedades_mecanicas, got %v", res.FieldErrors)
	}

	d.Mechanical[0].Value = domain.PropertyLevelLow
	d.Perceptual[0].Value = "ab"
	res = ValidateStep(&d, StepProperties)
	if _, ok := res.FieldErrors["propiedades_perceptuales"]; !ok {
		t.Fatalf("expected error on propiedades_perceptuales, got %v", res.FieldErrors)
	}
}

func TestValidateStepRecipeAndComposition(t *testing.T) {
	d := validDraft()
	d.Composition = nil
	if res := ValidateStep(&d, StepComposition); res.Valid {
		t.Fatal("empty composition should be invalid")
	}

	d = validDraft()
	d.Steps = []StepDraft{{Description: "corto"}}
	if res := ValidateStep(&d, StepRecipe); res.Valid {
		t.Fatal("a short step description should be invalid")
	}

	d.Steps = nil
	if res := ValidateStep(&d, StepRecipe); res.Valid {
		t.Fatal("a recipe without steps should be invalid")
	}
}

func TestStoreTouchedFiltering(t *testing.T) {
	s := NewStore()

	if errs := s.Errors(); len(errs) != 0 {
		t.Fatalf("pristine store should show no errors, got %v", errs)
	}

	s.Touch("nombre")
	errs := s.Errors()
	if _, ok := errs["nombre"]; !ok {
		t.Fatalf("touched field should surface its error, got %v", errs)
	}
	if _, ok := errs["descripcion"]; ok {
		t.Fatal("untouched field should stay silent")
	}
}

func TestStoreNextBlocksWhileInvalid(t *testing.T) {
	s := NewStore()

	if s.Next() {
		t.Fatal("Next should refuse to advance an empty basic info step")
	}
	if s.Step() != StepBasicInfo {
		t.Fatalf("step moved to %d despite failed validation", s.Step())
	}
	// A failed Next touches every failing field.
	if errs := s.Errors(); len(errs) == 0 {
		t.Fatal("failed Next should surface the blocking errors")
	}

	*s.Draft() = validDraft()
	if !s.Next() {
		t.Fatal("Next should advance a valid basic info step")
	}
	if s.Step() != StepProperties {
		t.Fatalf("expected StepProperties, got %d", s.Step())
	}
}

func TestStoreBackNeverValidates(t *testing.T) {
	s := NewStoreFromDraft(validDraft())
	if !s.Next() || !s.Next() {
		t.Fatal("valid draft should advance freely")
	}

	// Break the earlier step, then walk back through it.
	s.Draft().Name = ""
	s.Back()
	if s.Step() != StepProperties {
		t.Fatalf("expected StepProperties, got %d", s.Step())
	}
	s.Back()
	if s.Step() != StepBasicInfo {
		t.Fatalf("expected StepBasicInfo, got %d", s.Step())
	}
	s.Back()
	if s.Step() != StepBasicInfo {
		t.Fatal("Back at the first step should stay put")
	}
}

func TestStoreCanSubmit(t *testing.T) {
	s := NewStoreFromDraft(validDraft())
	if !s.CanSubmit() {
		t.Fatal("fully valid draft should be submittable")
	}
	s.Draft().Composition = nil
	if s.CanSubmit() {
		t.Fatal("draft with empty composition should not be submittable")
	}
}

func TestDraftCompositionNames(t *testing.T) {
	d := validDraft()
	got := d.CompositionNames()
	want := []string{"almidón de maíz", "glicerina"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("CompositionNames() = %v, want %v", got, want)
	}
}
