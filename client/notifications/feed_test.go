package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/biomateca/biomateca-backend/client/api"
	"github.com/biomateca/biomateca-backend/client/invalidation"
	"github.com/biomateca/biomateca-backend/internal/domain"
	"github.com/biomateca/biomateca-backend/internal/realtime"
)

type feedServer struct {
	mu            sync.Mutex
	notifications []domain.Notification
	readCalls     []uuid.UUID
	readStatus    int
}

func (fs *feedServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		switch {
		case r.URL.Path == "/api/notifications":
			json.NewEncoder(w).Encode(map[string]any{"notifications": fs.notifications})
		case r.URL.Path == "/api/notifications/unread-count":
			unread := 0
			for _, n := range fs.notifications {
				if !n.Read {
					unread++
				}
			}
			json.NewEncoder(w).Encode(map[string]any{"count": unread})
		case strings.HasSuffix(r.URL.Path, "/read"):
			parts := strings.Split(r.URL.Path, "/")
			id, err := uuid.Parse(parts[3])
			if err != nil {
				t.Errorf("bad notification id in %s", r.URL.Path)
				return
			}
			fs.readCalls = append(fs.readCalls, id)
			if fs.readStatus >= 400 {
				w.WriteHeader(fs.readStatus)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"ok": true})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
}

func newTestFeed(t *testing.T, fs *feedServer) (*Feed, *invalidation.Coordinator) {
	t.Helper()
	srv := httptest.NewServer(fs.handler(t))
	t.Cleanup(srv.Close)

	c := api.NewWithBaseURL(srv.URL)
	c.SetToken("member-token")
	views := invalidation.NewCoordinator()
	f := NewFeed(c, views)
	t.Cleanup(f.Close)
	return f, views
}

func unreadNotification(title string) domain.Notification {
	return domain.Notification{
		ID:    uuid.New(),
		Title: title,
		Kind:  domain.NotificationKindApproved,
	}
}

func TestFeedDedupesRealtimeEvents(t *testing.T) {
	older := unreadNotification("Material aprobado")
	fs := &feedServer{notifications: []domain.Notification{older}}
	f, views := newTestFeed(t, fs)

	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.UnreadCount() != 1 {
		t.Fatalf("unread = %d after load", f.UnreadCount())
	}

	fresh := unreadNotification("Material rechazado")
	msg := realtime.SSEMessage{
		Event: realtime.SSEEventMaterialApproved,
		Data:  map[string]any{"notification": &fresh, "material_id": uuid.New().String()},
	}
	f.Apply(msg)
	f.Apply(msg) // replayed event

	recent := f.Recent()
	if len(recent) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(recent))
	}
	if recent[0].ID != fresh.ID {
		t.Fatal("newest notification should sit at the head")
	}
	if f.UnreadCount() != 2 {
		t.Fatalf("unread = %d, replay must not double-count", f.UnreadCount())
	}
	if !views.Dirty(invalidation.ViewApprovedMaterials) {
		t.Fatal("an approval should mark the approved catalog stale")
	}
}

func TestFeedLoadKeepsInFlightPush(t *testing.T) {
	stored := unreadNotification("Material aprobado")
	fs := &feedServer{notifications: []domain.Notification{stored}}
	f, _ := newTestFeed(t, fs)

	// An event lands before the initial fetch response does; its entry is
	// not in the fetched slice yet.
	pushed := unreadNotification("Material rechazado")
	f.Apply(realtime.SSEMessage{
		Event: realtime.SSEEventNotificationCreated,
		Data:  map[string]any{"notification": &pushed},
	})

	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	recent := f.Recent()
	if len(recent) != 2 {
		t.Fatalf("expected pushed + fetched entries, got %d", len(recent))
	}
	if recent[0].ID != pushed.ID || recent[1].ID != stored.ID {
		t.Fatalf("pushed entry should stay at the head: %v", recent)
	}
	if f.UnreadCount() != 2 {
		t.Fatalf("unread = %d, want server count plus the in-flight push", f.UnreadCount())
	}

	// Once the server knows the entry, a reload does not duplicate it.
	fs.mu.Lock()
	fs.notifications = []domain.Notification{pushed, stored}
	fs.mu.Unlock()
	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := len(f.Recent()); got != 2 {
		t.Fatalf("reload duplicated entries: %d", got)
	}
}

func TestFeedInboxDelivery(t *testing.T) {
	fs := &feedServer{}
	f, _ := newTestFeed(t, fs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	n := unreadNotification("Material aprobado")
	f.Inbox() <- realtime.SSEMessage{
		Event: realtime.SSEEventNotificationCreated,
		Data:  map[string]any{"notification": &n},
	}

	deadline := time.After(2 * time.Second)
	for f.UnreadCount() != 1 {
		select {
		case <-deadline:
			t.Fatal("inbox message never reached the feed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestFeedOptimisticMarkRead(t *testing.T) {
	a := unreadNotification("a")
	ledger := []domain.Notification{a, unreadNotification("b")}
	for _, title := range []string{"c", "d", "e"} {
		n := unreadNotification(title)
		n.Read = true
		ledger = append(ledger, n)
	}
	fs := &feedServer{notifications: ledger, readStatus: http.StatusBadGateway}
	f, _ := newTestFeed(t, fs)

	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.UnreadCount() != 2 {
		t.Fatalf("unread = %d after load, want 2 of 5", f.UnreadCount())
	}

	f.MarkRead(context.Background(), a.ID)
	if f.UnreadCount() != 1 {
		t.Fatal("mark-read must drop the counter before the request settles")
	}

	// Idempotent: a second mark neither decrements nor re-posts.
	f.MarkRead(context.Background(), a.ID)
	if f.UnreadCount() != 1 {
		t.Fatal("repeated mark-read must not decrement again")
	}

	f.Close()
	fs.mu.Lock()
	calls := len(fs.readCalls)
	fs.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly 1 persist call, got %d", calls)
	}
	// The persist failed (502) but the optimistic state stands.
	if f.UnreadCount() != 1 {
		t.Fatal("a failed persist must not roll the counter back")
	}
}

func TestFeedOpenHighlightsDeepLink(t *testing.T) {
	materialID := uuid.New()
	n := unreadNotification("Material aprobado")
	n.MaterialID = &materialID
	n.LinkTarget = "/materiales/" + materialID.String()

	fs := &feedServer{notifications: []domain.Notification{n}}
	f, _ := newTestFeed(t, fs)
	if err := f.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	current := time.Now()
	f.now = func() time.Time { return current }

	if target := f.Open(context.Background(), n.ID); target != n.LinkTarget {
		t.Fatalf("Open returned %q, want %q", target, n.LinkTarget)
	}
	if !f.Highlighted(materialID) {
		t.Fatal("material should be highlighted right after opening")
	}

	current = current.Add(4 * time.Second)
	if f.Highlighted(materialID) {
		t.Fatal("highlight should expire after the window")
	}
}

func TestFeedCapsRecentSlice(t *testing.T) {
	fs := &feedServer{}
	f, _ := newTestFeed(t, fs)

	for i := 0; i < FeedLimit+5; i++ {
		n := unreadNotification("n")
		f.Apply(realtime.SSEMessage{
			Event: realtime.SSEEventNotificationCreated,
			Data:  map[string]any{"notification": &n},
		})
	}
	if got := len(f.Recent()); got != FeedLimit {
		t.Fatalf("recent slice holds %d entries, cap is %d", got, FeedLimit)
	}
}
