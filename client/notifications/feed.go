// Package notifications keeps a user's notification dropdown live: an
// initial pull of the recent feed, SSE events drained from an inbox
// channel, and optimistic read marks.
package notifications

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/biomateca/biomateca-backend/client/api"
	"github.com/biomateca/biomateca-backend/client/invalidation"
	"github.com/biomateca/biomateca-backend/internal/domain"
	"github.com/biomateca/biomateca-backend/internal/realtime"
)

const (
	// FeedLimit mirrors the server's recent-feed cap.
	FeedLimit = 15

	highlightWindow = 3 * time.Second
	inboxSize       = 32
)

// Feed is the client-side notification state for one session. SSE messages
// are pushed into Inbox() and drained by Run; nothing in here is invoked
// by the transport directly.
type Feed struct {
	api   *api.Client
	views *invalidation.Coordinator
	inbox chan realtime.SSEMessage
	done  chan struct{}

	mu        sync.Mutex
	items     []domain.Notification
	unread    int
	highlight map[uuid.UUID]time.Time

	wg  sync.WaitGroup
	now func() time.Time
}

func NewFeed(c *api.Client, views *invalidation.Coordinator) *Feed {
	return &Feed{
		api:       c,
		views:     views,
		inbox:     make(chan realtime.SSEMessage, inboxSize),
		done:      make(chan struct{}),
		highlight: map[uuid.UUID]time.Time{},
		now:       time.Now,
	}
}

// Inbox is where the SSE transport drops decoded messages.
func (f *Feed) Inbox() chan<- realtime.SSEMessage { return f.inbox }

// Load pulls the server's recent slice and merges it under anything that
// was pushed while the fetch was in flight, so a race between the initial
// fetch and an SSE insert loses nothing.
func (f *Feed) Load(ctx context.Context) error {
	var list struct {
		Notifications []domain.Notification `json:"notifications"`
	}
	if err := f.api.GetJSON(ctx, "/api/notifications", &list); err != nil {
		return err
	}
	var counter struct {
		Count int `json:"count"`
	}
	if err := f.api.GetJSON(ctx, "/api/notifications/unread-count", &counter); err != nil {
		return err
	}

	f.mu.Lock()
	fetched := map[uuid.UUID]bool{}
	for _, n := range list.Notifications {
		fetched[n.ID] = true
	}
	var pushed []domain.Notification
	unread := counter.Count
	for _, n := range f.items {
		if fetched[n.ID] {
			continue
		}
		pushed = append(pushed, n)
		if !n.Read {
			unread++
		}
	}
	merged := append(pushed, list.Notifications...)
	if len(merged) > FeedLimit {
		merged = merged[:FeedLimit]
	}
	f.items = merged
	f.unread = unread
	f.mu.Unlock()
	return nil
}

// Run drains the inbox until the context ends or Close is called.
func (f *Feed) Run(ctx context.Context) {
	for {
		select {
		case msg := <-f.inbox:
			f.Apply(msg)
		case <-ctx.Done():
			return
		case <-f.done:
			return
		}
	}
}

type eventPayload struct {
	Notification *domain.Notification `json:"notification"`
	MaterialID   string               `json:"material_id"`
}

// Apply folds one SSE message into the feed. Payloads arrive either as the
// in-process structs or as decoded JSON maps, so they pass through a
// re-marshal to normalize.
func (f *Feed) Apply(msg realtime.SSEMessage) {
	var payload eventPayload
	if raw, err := json.Marshal(msg.Data); err == nil {
		_ = json.Unmarshal(raw, &payload)
	}

	switch msg.Event {
	case realtime.SSEEventNotificationCreated:
		f.prepend(payload.Notification)
	case realtime.SSEEventMaterialApproved:
		f.prepend(payload.Notification)
		f.views.Signal(invalidation.ViewApprovedMaterials)
	case realtime.SSEEventMaterialRejected:
		f.prepend(payload.Notification)
	case realtime.SSEEventMaterialSubmitted:
		f.views.Signal(invalidation.ViewPendingMaterials, invalidation.ViewModerationCounts)
	}
}

// prepend inserts the newest notification at the head, deduplicating by id
// so a replayed event never double-counts.
func (f *Feed) prepend(n *domain.Notification) {
	if n == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.items {
		if existing.ID == n.ID {
			return
		}
	}
	f.items = append([]domain.Notification{*n}, f.items...)
	if len(f.items) > FeedLimit {
		f.items = f.items[:FeedLimit]
	}
	if !n.Read {
		f.unread++
	}
}

func (f *Feed) Recent() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Notification, len(f.items))
	copy(out, f.items)
	return out
}

func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread
}

// MarkRead flips the local row immediately and persists in the background.
// Marking twice is a no-op, and a failed persist does not roll the local
// state back; the next Load reconciles.
func (f *Feed) MarkRead(ctx context.Context, id uuid.UUID) {
	f.mu.Lock()
	changed := false
	for i := range f.items {
		if f.items[i].ID == id && !f.items[i].Read {
			f.items[i].Read = true
			if f.unread > 0 {
				f.unread--
			}
			changed = true
			break
		}
	}
	f.mu.Unlock()
	if !changed {
		return
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		_ = f.api.PostJSON(ctx, "/api/notifications/"+id.String()+"/read", nil, nil)
	}()
}

// Open marks the notification read and returns its deep link. The target
// material stays highlighted for a few seconds after navigation.
func (f *Feed) Open(ctx context.Context, id uuid.UUID) string {
	f.MarkRead(ctx, id)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.items {
		if n.ID == id {
			if n.MaterialID != nil {
				f.highlight[*n.MaterialID] = f.now().Add(highlightWindow)
			}
			return n.LinkTarget
		}
	}
	return ""
}

// Highlighted reports whether the material's deep-link highlight is still
// active.
func (f *Feed) Highlighted(materialID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	until, ok := f.highlight[materialID]
	if !ok {
		return false
	}
	if f.now().After(until) {
		delete(f.highlight, materialID)
		return false
	}
	return true
}

// Close stops Run and waits for in-flight read marks.
func (f *Feed) Close() {
	select {
	case <-f.done:
	default:
		close(f.done)
	}
	f.wg.Wait()
}
