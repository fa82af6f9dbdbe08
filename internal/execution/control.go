package execution

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Control carries the in-process cancellation flag of one running execution.
type Control struct {
	cancelled atomic.Bool
}

// Cancel requests cooperative cancellation.
func (c *Control) Cancel() { c.cancelled.Store(true) }

// Cancelled reports whether cancellation was requested.
func (c *Control) Cancelled() bool { return c.cancelled.Load() }

// Controls tracks the executions running in this process.
type Controls struct {
	mu      sync.Mutex
	entries map[int64]*Control
}

// NewControls returns an empty registry.
func NewControls() *Controls {
	return &Controls{entries: make(map[int64]*Control)}
}

// Register creates the control for id.
func (c *Controls) Register(id int64) *Control {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctl := &Control{}
	c.entries[id] = ctl
	return ctl
}

// Cancel flags id if it runs in this process.
func (c *Controls) Cancel(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctl, ok := c.entries[id]
	if ok {
		ctl.Cancel()
	}
	return ok
}

// Remove forgets id once its run has ended.
func (c *Controls) Remove(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Active lists running execution ids in ascending order.
func (c *Controls) Active() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int64, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
