// Package moderation drives the moderator dashboard: the pending queue,
// approve and reject actions, and the staleness signals those decisions
// leave behind.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/biomateca/biomateca-backend/client/api"
	"github.com/biomateca/biomateca-backend/client/invalidation"
	"github.com/biomateca/biomateca-backend/internal/domain"
)

const (
	reasonMinLen = 5
	reasonMaxLen = 500
)

var errReasonLength = fmt.Errorf("el motivo debe tener entre %d y %d caracteres", reasonMinLen, reasonMaxLen)

// Queue mirrors the server's pending list for one moderator session. A
// decision removes the row locally exactly once; everything else waits for
// the next Refresh.
type Queue struct {
	api   *api.Client
	views *invalidation.Coordinator

	mu    sync.Mutex
	items []domain.Material
	count int
}

func NewQueue(c *api.Client, views *invalidation.Coordinator) *Queue {
	return &Queue{api: c, views: views}
}

// Refresh re-pulls the pending list and counter from the server.
func (q *Queue) Refresh(ctx context.Context) error {
	var list struct {
		Materials []domain.Material `json:"materials"`
	}
	if err := q.api.GetJSON(ctx, "/api/moderation/pending", &list); err != nil {
		return err
	}
	var counter struct {
		Count int `json:"count"`
	}
	if err := q.api.GetJSON(ctx, "/api/moderation/pending/count", &counter); err != nil {
		return err
	}

	q.mu.Lock()
	q.items = list.Materials
	q.count = counter.Count
	q.mu.Unlock()
	return nil
}

func (q *Queue) Pending() []domain.Material {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Material, len(q.items))
	copy(out, q.items)
	return out
}

func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *Queue) Approve(ctx context.Context, id uuid.UUID) api.Result {
	return q.decide(ctx, id, func() error {
		return q.api.PostJSON(ctx, "/api/moderation/materials/"+id.String()+"/approve", nil, nil)
	})
}

// Reject validates the reason length locally so an obviously bad reason
// never costs a round trip.
func (q *Queue) Reject(ctx context.Context, id uuid.UUID, reason string) api.Result {
	if n := utf8.RuneCountInString(reason); n < reasonMinLen || n > reasonMaxLen {
		return api.Normalize(errReasonLength)
	}
	return q.decide(ctx, id, func() error {
		payload := map[string]string{"reason": reason}
		return q.api.PostJSON(ctx, "/api/moderation/materials/"+id.String()+"/reject", payload, nil)
	})
}

func (q *Queue) decide(ctx context.Context, id uuid.UUID, call func() error) api.Result {
	if err := call(); err != nil {
		// Someone else already decided, or the material vanished: the
		// local copy is stale, so ask for a refresh instead of mutating.
		var se *api.StatusError
		if errors.As(err, &se) && (se.Status == http.StatusConflict || se.Status == http.StatusNotFound) {
			q.views.Signal(invalidation.ViewPendingMaterials, invalidation.ViewModerationCounts)
		}
		return api.Normalize(err)
	}

	q.removeLocal(id)
	q.views.Signal(
		invalidation.ViewPendingMaterials,
		invalidation.ViewApprovedMaterials,
		invalidation.ViewModerationCounts,
	)
	return api.Result{Success: true}
}

// removeLocal drops the row and decrements the counter at most once; a
// second call for the same id is a no-op.
func (q *Queue) removeLocal(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, m := range q.items {
		if m.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			if q.count > 0 {
				q.count--
			}
			return true
		}
	}
	return false
}
