package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/biomateca/biomateca-backend/internal/cache"
	"github.com/biomateca/biomateca-backend/internal/data/repos/materials"
	"github.com/biomateca/biomateca-backend/internal/data/repos/notifications"
	"github.com/biomateca/biomateca-backend/internal/data/repos/testutil"
	"github.com/biomateca/biomateca-backend/internal/domain"
	"github.com/biomateca/biomateca-backend/internal/platform/apierr"
	"github.com/biomateca/biomateca-backend/internal/realtime"
	"github.com/biomateca/biomateca-backend/internal/requestdata"
)

type fakeBucket struct {
	mu       sync.Mutex
	uploaded map[string][]byte
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{uploaded: map[string][]byte{}}
}

func (b *fakeBucket) UploadFile(ctx context.Context, key string, file io.Reader) error {
	raw, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploaded[key] = raw
	return nil
}

func (b *fakeBucket) DeleteFile(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.uploaded, key)
	return nil
}

func (b *fakeBucket) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, ok := b.uploaded[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (b *fakeBucket) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []string{}
	for k := range b.uploaded {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (b *fakeBucket) DeletePrefix(ctx context.Context, prefix string) error {
	keys, _ := b.ListKeys(ctx, prefix)
	for _, k := range keys {
		_ = b.DeleteFile(ctx, k)
	}
	return nil
}

func (b *fakeBucket) GetPublicURL(key string) string { return "https://cdn.test/" + key }

type recordingEmitter struct {
	mu       sync.Mutex
	messages []realtime.SSEMessage
}

func (e *recordingEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, msg)
}

func (e *recordingEmitter) events() []realtime.SSEEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]realtime.SSEEvent, 0, len(e.messages))
	for _, m := range e.messages {
		out = append(out, m.Event)
	}
	return out
}

type serviceEnv struct {
	tx       *gorm.DB
	bucket   *fakeBucket
	emitter  *recordingEmitter
	material MaterialService
	modSvc   ModerationService
	notifSvc NotificationService
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	log := testutil.Logger(t)

	bucket := newFakeBucket()
	emitter := &recordingEmitter{}
	notifier := NewMaterialNotifier(emitter)
	views := cache.NoopViewCache{}

	matRepo := materials.NewMaterialRepo(tx, log)
	imgRepo := materials.NewMaterialImageRepo(tx, log)
	stepRepo := materials.NewRecipeStepRepo(tx, log)
	notifRepo := notifications.NewNotificationRepo(tx, log)

	return &serviceEnv{
		tx:       tx,
		bucket:   bucket,
		emitter:  emitter,
		material: NewMaterialService(tx, log, matRepo, imgRepo, stepRepo, bucket, views, notifier),
		modSvc:   NewModerationService(tx, log, matRepo, notifRepo, views, notifier),
		notifSvc: NewNotificationService(tx, log, notifRepo),
	}
}

func (env *serviceEnv) seedUser(t *testing.T, email, role string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:          uuid.New(),
		Email:       email,
		Password:    "pw",
		DisplayName: "Test User",
		Role:        role,
	}
	if err := env.tx.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func userCtx(u *domain.User) context.Context {
	return requestdata.WithRequestData(context.Background(), &requestdata.RequestData{
		UserID: u.ID,
		Role:   u.Role,
	})
}

func sampleSubmission() SubmissionInput {
	return SubmissionInput{
		Name:        "Bioplástico de almidón",
		Description: "Película flexible a base de almidón de maíz y glicerina.",
		Tools:       []string{"licuadora"},
		Composition: []domain.CompositionEntry{
			{Element: "glicerina", Quantity: "10ml"},
			{Element: "almidón de maíz", Quantity: "50g"},
		},
		MechanicalProps: []domain.PropertyEntry{{Name: "flexibilidad", Value: domain.PropertyLevelHigh}},
		Steps: []StepInput{
			{Position: 1, Description: "Mezclar el almidón con agua y glicerina.", Image: &FileInput{
				Filename: "mezcla.jpg",
				Reader:   strings.NewReader("jpegdata"),
			}},
			{Position: 2, Description: "Calentar hasta gelatinizar y verter en el molde."},
		},
		Gallery: []GalleryItemInput{
			{Caption: "resultado final", File: &FileInput{Filename: "final.png", Reader: strings.NewReader("pngdata")}},
		},
	}
}

func TestSubmitApproveAndConflict(t *testing.T) {
	env := newServiceEnv(t)
	creator := env.seedUser(t, "creator@example.com", domain.RoleMember)
	moderator := env.seedUser(t, "mod@example.com", domain.RoleModerator)

	created, err := env.material.SubmitMaterial(userCtx(creator), sampleSubmission())
	if err != nil {
		t.Fatalf("SubmitMaterial: %v", err)
	}
	if created.Status != domain.MaterialStatusPending {
		t.Fatalf("status after submit: want=%s got=%s", domain.MaterialStatusPending, created.Status)
	}
	if len(created.Steps) != 2 || created.Steps[0].ImageURL == "" {
		t.Fatalf("steps after submit: %+v", created.Steps)
	}
	if len(created.Gallery) != 1 || created.Gallery[0].URL == "" {
		t.Fatalf("gallery after submit: %+v", created.Gallery)
	}
	if keys, _ := env.bucket.ListKeys(context.Background(), "materials/"+created.ID.String()); len(keys) != 2 {
		t.Fatalf("uploaded objects: want=2 got=%d", len(keys))
	}

	approved, err := env.modSvc.ApproveMaterial(userCtx(moderator), created.ID)
	if err != nil {
		t.Fatalf("ApproveMaterial: %v", err)
	}
	if approved.Status != domain.MaterialStatusApproved {
		t.Fatalf("status after approve: got=%s", approved.Status)
	}

	// The decision is one-shot; a replayed click conflicts instead of
	// flipping the verdict.
	if _, err := env.modSvc.RejectMaterial(userCtx(moderator), created.ID, "razón cualquiera"); !errors.Is(err, apierr.ErrConflict) {
		t.Fatalf("second decision: want conflict, got %v", err)
	}

	feed, err := env.notifSvc.ListRecent(userCtx(creator), 0)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(feed) != 1 || feed[0].Kind != domain.NotificationKindApproved {
		t.Fatalf("creator feed: %+v", feed)
	}
	if feed[0].MaterialID == nil || *feed[0].MaterialID != created.ID {
		t.Fatalf("notification material link: %+v", feed[0])
	}

	events := env.emitter.events()
	var sawSubmitted, sawApproved, sawNotif bool
	for _, ev := range events {
		switch ev {
		case realtime.SSEEventMaterialSubmitted:
			sawSubmitted = true
		case realtime.SSEEventMaterialApproved:
			sawApproved = true
		case realtime.SSEEventNotificationCreated:
			sawNotif = true
		}
	}
	if !sawSubmitted || !sawApproved || !sawNotif {
		t.Fatalf("missing realtime events, got %v", events)
	}
}

func TestRejectReasonBoundsAndResubmission(t *testing.T) {
	env := newServiceEnv(t)
	creator := env.seedUser(t, "creator2@example.com", domain.RoleMember)
	moderator := env.seedUser(t, "mod2@example.com", domain.RoleModerator)

	created, err := env.material.SubmitMaterial(userCtx(creator), sampleSubmission())
	if err != nil {
		t.Fatalf("SubmitMaterial: %v", err)
	}

	for _, reason := range []string{"abcd", strings.Repeat("x", 501)} {
		if _, err := env.modSvc.RejectMaterial(userCtx(moderator), created.ID, reason); !errors.Is(err, apierr.ErrInvalidArgument) {
			t.Fatalf("reason %q: want invalid argument, got %v", reason[:4], err)
		}
	}

	rejected, err := env.modSvc.RejectMaterial(userCtx(moderator), created.ID, "Faltan cantidades en la composición.")
	if err != nil {
		t.Fatalf("RejectMaterial: %v", err)
	}
	if rejected.Status != domain.MaterialStatusRejected {
		t.Fatalf("status after reject: got=%s", rejected.Status)
	}

	feed, err := env.notifSvc.ListRecent(userCtx(creator), 0)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(feed) != 1 || feed[0].Kind != domain.NotificationKindRejected {
		t.Fatalf("creator feed: %+v", feed)
	}
	if !strings.Contains(feed[0].Message, "Faltan cantidades") {
		t.Fatalf("rejection reason missing from message: %q", feed[0].Message)
	}

	// Editing the rejected recipe sends it back to moderation.
	resubmitted, err := env.material.UpdateMaterial(userCtx(creator), created.ID, sampleSubmission())
	if err != nil {
		t.Fatalf("UpdateMaterial: %v", err)
	}
	if resubmitted.Status != domain.MaterialStatusPending {
		t.Fatalf("status after resubmission: got=%s", resubmitted.Status)
	}
	if resubmitted.RejectionReason != "" {
		t.Fatalf("rejection reason should reset, got %q", resubmitted.RejectionReason)
	}
}

func TestModerationRequiresRole(t *testing.T) {
	env := newServiceEnv(t)
	creator := env.seedUser(t, "creator3@example.com", domain.RoleMember)

	created, err := env.material.SubmitMaterial(userCtx(creator), sampleSubmission())
	if err != nil {
		t.Fatalf("SubmitMaterial: %v", err)
	}

	if _, err := env.modSvc.ApproveMaterial(userCtx(creator), created.ID); !errors.Is(err, apierr.ErrForbidden) {
		t.Fatalf("member approve: want forbidden, got %v", err)
	}
	if _, err := env.modSvc.ApproveMaterial(context.Background(), created.ID); !errors.Is(err, apierr.ErrUnauthorized) {
		t.Fatalf("anonymous approve: want unauthorized, got %v", err)
	}

	// The material is untouched after the refused attempts.
	loaded, err := env.material.GetMaterial(userCtx(creator), created.ID)
	if err != nil {
		t.Fatalf("GetMaterial: %v", err)
	}
	if loaded.Status != domain.MaterialStatusPending {
		t.Fatalf("status: want pending, got %s", loaded.Status)
	}
}
