package moderation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/biomateca/biomateca-backend/client/api"
	"github.com/biomateca/biomateca-backend/client/invalidation"
	"github.com/biomateca/biomateca-backend/internal/domain"
)

// moderationServer is a minimal stand-in for the moderation endpoints with
// scriptable decision outcomes.
type moderationServer struct {
	mu       sync.Mutex
	pending  []domain.Material
	statuses map[uuid.UUID]int
	hits     int
}

func (ms *moderationServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ms.mu.Lock()
		defer ms.mu.Unlock()
		ms.hits++
		switch {
		case r.URL.Path == "/api/moderation/pending":
			json.NewEncoder(w).Encode(map[string]any{"materials": ms.pending})
		case r.URL.Path == "/api/moderation/pending/count":
			json.NewEncoder(w).Encode(map[string]any{"count": len(ms.pending)})
		case strings.HasPrefix(r.URL.Path, "/api/moderation/materials/"):
			parts := strings.Split(r.URL.Path, "/")
			id, err := uuid.Parse(parts[4])
			if err != nil {
				t.Errorf("bad material id in %s", r.URL.Path)
				return
			}
			if status, ok := ms.statuses[id]; ok && status >= 400 {
				w.WriteHeader(status)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{"message": "already moderated", "code": "already_moderated"},
				})
				return
			}
			json.NewEncoder(w).Encode(domain.Material{ID: id, Status: domain.MaterialStatusApproved})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestQueue(t *testing.T, ms *moderationServer) (*Queue, *invalidation.Coordinator) {
	t.Helper()
	srv := httptest.NewServer(ms.handler(t))
	t.Cleanup(srv.Close)

	c := api.NewWithBaseURL(srv.URL)
	c.SetToken("moderator-token")
	views := invalidation.NewCoordinator()
	return NewQueue(c, views), views
}

func pendingMaterial(name string) domain.Material {
	return domain.Material{ID: uuid.New(), Name: name, Status: domain.MaterialStatusPending}
}

func TestQueueApproveRemovesRowOnce(t *testing.T) {
	a, b := pendingMaterial("a"), pendingMaterial("b")
	ms := &moderationServer{pending: []domain.Material{a, b}, statuses: map[uuid.UUID]int{}}
	q, views := newTestQueue(t, ms)

	if err := q.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if q.PendingCount() != 2 {
		t.Fatalf("expected 2 pending, got %d", q.PendingCount())
	}

	if res := q.Approve(context.Background(), a.ID); !res.Success {
		t.Fatalf("approve failed: %s", res.Message)
	}
	if got := q.Pending(); len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("expected only %s left, got %v", b.ID, got)
	}
	if q.PendingCount() != 1 {
		t.Fatalf("count = %d after approve", q.PendingCount())
	}
	if !views.Dirty(invalidation.ViewPendingMaterials) || !views.Dirty(invalidation.ViewApprovedMaterials) || !views.Dirty(invalidation.ViewModerationCounts) {
		t.Fatal("a decision must mark pending, approved and counts stale")
	}

	// Double invoke: the server accepts again but the local state only
	// changes once.
	if res := q.Approve(context.Background(), a.ID); !res.Success {
		t.Fatalf("second approve failed: %s", res.Message)
	}
	if q.PendingCount() != 1 || len(q.Pending()) != 1 {
		t.Fatal("a repeated decision must not mutate local state twice")
	}
}

func TestQueueConflictLeavesStateIntact(t *testing.T) {
	a := pendingMaterial("a")
	ms := &moderationServer{
		pending:  []domain.Material{a},
		statuses: map[uuid.UUID]int{a.ID: http.StatusConflict},
	}
	q, views := newTestQueue(t, ms)

	if err := q.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	res := q.Approve(context.Background(), a.ID)
	if res.Success {
		t.Fatal("conflicting approve should fail")
	}
	if !strings.Contains(res.Message, "already moderated") {
		t.Fatalf("unexpected message %q", res.Message)
	}
	if len(q.Pending()) != 1 || q.PendingCount() != 1 {
		t.Fatal("a failed decision must leave the queue untouched")
	}
	if !views.Dirty(invalidation.ViewPendingMaterials) || !views.Dirty(invalidation.ViewModerationCounts) {
		t.Fatal("a conflict should still ask for a refresh")
	}
	if views.Dirty(invalidation.ViewApprovedMaterials) {
		t.Fatal("a conflict proves nothing about the approved list")
	}
}

func TestQueueRejectValidatesReasonLocally(t *testing.T) {
	a := pendingMaterial("a")
	ms := &moderationServer{pending: []domain.Material{a}, statuses: map[uuid.UUID]int{}}
	q, _ := newTestQueue(t, ms)

	if err := q.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	baseline := ms.hits

	for _, reason := range []string{"abcd", strings.Repeat("x", 501)} {
		if res := q.Reject(context.Background(), a.ID, reason); res.Success {
			t.Fatalf("reason of length %d should fail locally", len(reason))
		}
	}
	if ms.hits != baseline {
		t.Fatalf("invalid reasons reached the network: %d extra requests", ms.hits-baseline)
	}

	if res := q.Reject(context.Background(), a.ID, "contenido incompleto"); !res.Success {
		t.Fatalf("valid reject failed: %s", res.Message)
	}
	if len(q.Pending()) != 0 {
		t.Fatal("rejected material should leave the local queue")
	}
}
