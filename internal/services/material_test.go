package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/biomateca/biomateca-backend/internal/domain"
	"github.com/biomateca/biomateca-backend/internal/platform/apierr"
)

func TestValidateSubmissionRules(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(in *SubmissionInput)
	}{
		{"short name", func(in *SubmissionInput) { in.Name = "ab" }},
		{"short description", func(in *SubmissionInput) { in.Description = "corta" }},
		{"no tools", func(in *SubmissionInput) { in.Tools = nil }},
		{"no gallery", func(in *SubmissionInput) { in.Gallery = nil }},
		{"no composition", func(in *SubmissionInput) { in.Composition = nil }},
		{"no steps", func(in *SubmissionInput) { in.Steps = nil }},
		{"short step description", func(in *SubmissionInput) {
			in.Steps[0].Description = "breve"
		}},
		{"free-text mechanical level", func(in *SubmissionInput) {
			in.MechanicalProps = []domain.PropertyEntry{{Name: "flexibilidad", Value: "alta"}}
		}},
		{"free-text emotional level", func(in *SubmissionInput) {
			in.EmotionalProps = []domain.PropertyEntry{{Name: "calidez", Value: "muchísima"}}
		}},
		{"short perceptual value", func(in *SubmissionInput) {
			in.PerceptualProps = []domain.PropertyEntry{{Name: "textura", Value: "ab"}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := sampleSubmission()
			tc.mutate(&in)
			if err := validateSubmission(in); !errors.Is(err, apierr.ErrInvalidArgument) {
				t.Fatalf("want invalid argument, got %v", err)
			}
		})
	}

	if err := validateSubmission(sampleSubmission()); err != nil {
		t.Fatalf("sample submission should validate, got %v", err)
	}
}

func TestUpdateStepMediaKeepAndRemove(t *testing.T) {
	env := newServiceEnv(t)
	creator := env.seedUser(t, "creator-media@example.com", domain.RoleMember)

	created, err := env.material.SubmitMaterial(userCtx(creator), sampleSubmission())
	if err != nil {
		t.Fatalf("SubmitMaterial: %v", err)
	}
	firstStep := created.Steps[0]
	if firstStep.ImageURL == "" || firstStep.ImageStorageKey == "" {
		t.Fatalf("seed step media: %+v", firstStep)
	}
	galleryURL := created.Gallery[0].URL
	galleryKey := created.Gallery[0].StorageKey

	editKeeping := func(m *domain.Material, keptImageURL string) SubmissionInput {
		in := sampleSubmission()
		in.Steps = []StepInput{
			{ID: &m.Steps[0].ID, Position: 1, Description: "Mezclar el almidón con agua y glicerina.", KeptImageURL: keptImageURL},
			{Position: 2, Description: "Calentar hasta gelatinizar y verter en el molde."},
		}
		// Retained photo rides as its bare URL, caption left blank.
		in.Gallery = []GalleryItemInput{{ExistingURL: galleryURL}}
		return in
	}

	// Keeping the stored URL keeps the file, its object key and the
	// caption the edit payload never carried.
	updated, err := env.material.UpdateMaterial(userCtx(creator), created.ID, editKeeping(created, firstStep.ImageURL))
	if err != nil {
		t.Fatalf("UpdateMaterial (keep): %v", err)
	}
	if updated.Steps[0].ImageURL != firstStep.ImageURL || updated.Steps[0].ImageStorageKey != firstStep.ImageStorageKey {
		t.Fatalf("kept step media: %+v", updated.Steps[0])
	}
	if updated.Gallery[0].Caption != "resultado final" {
		t.Fatalf("kept gallery caption lost: %+v", updated.Gallery[0])
	}
	if updated.Gallery[0].StorageKey != galleryKey {
		t.Fatalf("kept gallery object key lost: %+v", updated.Gallery[0])
	}

	// Sending the slot empty removes the image instead of resurrecting it.
	updated, err = env.material.UpdateMaterial(userCtx(creator), created.ID, editKeeping(updated, ""))
	if err != nil {
		t.Fatalf("UpdateMaterial (remove): %v", err)
	}
	if updated.Steps[0].ImageURL != "" || updated.Steps[0].ImageStorageKey != "" {
		t.Fatalf("removed step image came back: %+v", updated.Steps[0])
	}
}

func TestUpdatePermissionsAndResubmissionScope(t *testing.T) {
	env := newServiceEnv(t)
	creator := env.seedUser(t, "creator-perm@example.com", domain.RoleMember)
	stranger := env.seedUser(t, "stranger@example.com", domain.RoleMember)
	moderator := env.seedUser(t, "mod-perm@example.com", domain.RoleModerator)

	created, err := env.material.SubmitMaterial(userCtx(creator), sampleSubmission())
	if err != nil {
		t.Fatalf("SubmitMaterial: %v", err)
	}

	if _, err := env.material.UpdateMaterial(userCtx(stranger), created.ID, sampleSubmission()); !errors.Is(err, apierr.ErrForbidden) {
		t.Fatalf("stranger edit: want forbidden, got %v", err)
	}

	if _, err := env.modSvc.RejectMaterial(userCtx(moderator), created.ID, "Faltan cantidades en la composición."); err != nil {
		t.Fatalf("RejectMaterial: %v", err)
	}

	// A moderator may edit, but that is not the creator resubmitting: the
	// verdict stands.
	afterModEdit, err := env.material.UpdateMaterial(userCtx(moderator), created.ID, sampleSubmission())
	if err != nil {
		t.Fatalf("moderator edit: %v", err)
	}
	if afterModEdit.Status != domain.MaterialStatusRejected {
		t.Fatalf("status after moderator edit: want rejected, got %s", afterModEdit.Status)
	}

	afterCreatorEdit, err := env.material.UpdateMaterial(userCtx(creator), created.ID, sampleSubmission())
	if err != nil {
		t.Fatalf("creator edit: %v", err)
	}
	if afterCreatorEdit.Status != domain.MaterialStatusPending {
		t.Fatalf("status after creator edit: want pending, got %s", afterCreatorEdit.Status)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("stream interrupted") }

func TestSubmitCleansUploadsOnFailedUpload(t *testing.T) {
	env := newServiceEnv(t)
	creator := env.seedUser(t, "creator-upload@example.com", domain.RoleMember)

	in := sampleSubmission()
	in.Gallery = append(in.Gallery, GalleryItemInput{
		Caption: "segunda foto",
		File:    &FileInput{Filename: "rota.png", Reader: failingReader{}},
	})

	if _, err := env.material.SubmitMaterial(userCtx(creator), in); err == nil {
		t.Fatal("expected the broken upload to fail the submission")
	}
	if keys, _ := env.bucket.ListKeys(context.Background(), "materials/"); len(keys) != 0 {
		t.Fatalf("failed submit left objects behind: %v", keys)
	}
}

func TestUpdateRollbackCleansFreshUploads(t *testing.T) {
	env := newServiceEnv(t)
	creator := env.seedUser(t, "creator-rollback@example.com", domain.RoleMember)

	created, err := env.material.SubmitMaterial(userCtx(creator), sampleSubmission())
	if err != nil {
		t.Fatalf("SubmitMaterial: %v", err)
	}
	before, _ := env.bucket.ListKeys(context.Background(), "materials/"+created.ID.String())

	// Two step rows sharing one stored id cannot both insert, so the
	// replace transaction rolls back after the new file already uploaded.
	stepID := created.Steps[0].ID
	in := sampleSubmission()
	in.Steps = []StepInput{
		{ID: &stepID, Position: 1, Description: "Mezclar el almidón con agua y glicerina."},
		{ID: &stepID, Position: 2, Description: "Calentar hasta gelatinizar y verter en el molde."},
	}
	in.Gallery = []GalleryItemInput{
		{Caption: "nueva foto", File: &FileInput{Filename: "nueva.png", Reader: strings.NewReader("pngdata")}},
	}

	if _, err := env.material.UpdateMaterial(userCtx(creator), created.ID, in); err == nil {
		t.Fatal("expected the duplicate step id to fail the edit")
	}

	after, _ := env.bucket.ListKeys(context.Background(), "materials/"+created.ID.String())
	if len(after) != len(before) {
		t.Fatalf("rolled-back edit changed stored objects: before=%v after=%v", before, after)
	}
	loaded, err := env.material.GetMaterial(userCtx(creator), created.ID)
	if err != nil {
		t.Fatalf("GetMaterial: %v", err)
	}
	if len(loaded.Steps) != 2 || loaded.Steps[0].ImageURL == "" {
		t.Fatalf("stored steps changed by failed edit: %+v", loaded.Steps)
	}
}
