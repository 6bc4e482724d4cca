// Package invalidation coalesces staleness signals from moderation and
// realtime events into one refresh per view.
package invalidation

import "sync"

// View names shared by the client-side modules.
const (
	ViewPendingMaterials  = "materials:pending"
	ViewApprovedMaterials = "materials:approved"
	ViewModerationCounts  = "moderation:counts"
	ViewNotifications     = "notifications"
)

// Coordinator maps view names to refresh callbacks. Signals accumulate
// until Flush, and duplicate signals for the same view collapse into a
// single refresh.
type Coordinator struct {
	mu         sync.Mutex
	refreshers map[string]func()
	dirty      map[string]bool
}

func NewCoordinator() *Coordinator {
	return &Coordinator{
		refreshers: map[string]func(){},
		dirty:      map[string]bool{},
	}
}

func (c *Coordinator) Register(view string, refresh func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshers[view] = refresh
}

// Signal marks views stale. Views without a registered refresher are
// still recorded so a later Register picks them up on the next Flush.
func (c *Coordinator) Signal(views ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range views {
		c.dirty[v] = true
	}
}

// Flush runs each dirty view's refresher once and clears the dirty set.
func (c *Coordinator) Flush() {
	c.mu.Lock()
	var pending []func()
	for view := range c.dirty {
		if fn, ok := c.refreshers[view]; ok {
			pending = append(pending, fn)
			delete(c.dirty, view)
		}
	}
	c.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// Dirty reports whether the view awaits a refresh.
func (c *Coordinator) Dirty(view string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty[view]
}
