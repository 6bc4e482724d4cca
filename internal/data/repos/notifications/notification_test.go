package notifications

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/biomateca/biomateca-backend/internal/data/repos/testutil"
	"github.com/biomateca/biomateca-backend/internal/domain"
	"github.com/biomateca/biomateca-backend/internal/platform/dbctx"
)

func TestNotificationRepoFeed(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)

	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewNotificationRepo(gdb, testutil.Logger(t))

	recipient := &domain.User{
		ID:          uuid.New(),
		Email:       "notifrepo@example.com",
		Password:    "pw",
		DisplayName: "Recipient",
		Role:        domain.RoleMember,
	}
	if err := tx.WithContext(dbc.Ctx).Create(recipient).Error; err != nil {
		t.Fatalf("seed recipient: %v", err)
	}

	var created []*domain.Notification
	for i := 0; i < 20; i++ {
		created = append(created, &domain.Notification{
			ID:          uuid.New(),
			RecipientID: recipient.ID,
			Title:       "Material aprobado",
			Message:     "Tu receta ya es pública.",
			Kind:        domain.NotificationKindApproved,
		})
	}
	if _, err := repo.Create(dbc, created); err != nil {
		t.Fatalf("Create: %v", err)
	}

	recent, err := repo.ListRecentByRecipient(dbc, recipient.ID, 0)
	if err != nil {
		t.Fatalf("ListRecentByRecipient: %v", err)
	}
	if len(recent) != 15 {
		t.Fatalf("recent len: want=15 got=%d", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].CreatedAt.After(recent[i-1].CreatedAt) {
			t.Fatalf("feed not newest-first at index %d", i)
		}
	}

	unread, err := repo.CountUnreadByRecipient(dbc, recipient.ID)
	if err != nil {
		t.Fatalf("CountUnreadByRecipient: %v", err)
	}
	if unread != 20 {
		t.Fatalf("unread: want=20 got=%d", unread)
	}

	target := recent[0]
	if err := repo.MarkRead(dbc, recipient.ID, target.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	// Marking an already-read row is a no-op, not an error.
	if err := repo.MarkRead(dbc, recipient.ID, target.ID); err != nil {
		t.Fatalf("MarkRead (repeat): %v", err)
	}

	unread, err = repo.CountUnreadByRecipient(dbc, recipient.ID)
	if err != nil {
		t.Fatalf("CountUnreadByRecipient after mark: %v", err)
	}
	if unread != 19 {
		t.Fatalf("unread after mark: want=19 got=%d", unread)
	}

	// A different user cannot mark someone else's notification.
	if err := repo.MarkRead(dbc, uuid.New(), recent[1].ID); err != nil {
		t.Fatalf("MarkRead (foreign recipient): %v", err)
	}
	unread, err = repo.CountUnreadByRecipient(dbc, recipient.ID)
	if err != nil {
		t.Fatalf("CountUnreadByRecipient final: %v", err)
	}
	if unread != 19 {
		t.Fatalf("unread after foreign mark: want=19 got=%d", unread)
	}
}
