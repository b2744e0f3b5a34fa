// Package background runs cancellable, pausable jobs on their own goroutine
// and exposes their progress through a latest-wins status slot.
package background

import (
	"sync"
	"sync/atomic"
	"time"
)

// PausePollInterval is how long a paused job sleeps between cancellation checks.
const PausePollInterval = 10 * time.Millisecond

// ControlToken is shared between a running job and its Handle.
// Cancellation is sticky: once cancelled, a token never reverts.
type ControlToken[S any] struct {
	cancelled atomic.Bool
	paused    atomic.Bool

	mu        sync.Mutex
	status    S
	hasStatus bool
}

// NewControlToken returns a token that is neither paused nor cancelled.
func NewControlToken[S any]() *ControlToken[S] {
	return &ControlToken[S]{}
}

// Cancel requests cancellation. Safe to call any number of times.
func (c *ControlToken[S]) Cancel() {
	c.cancelled.Store(true)
}

// Pause asks the job to block at its next suspension point.
func (c *ControlToken[S]) Pause() {
	c.paused.Store(true)
}

// Resume releases a paused job.
func (c *ControlToken[S]) Resume() {
	c.paused.Store(false)
}

// IsCancelled reports whether cancellation was requested.
func (c *ControlToken[S]) IsCancelled() bool {
	return c.cancelled.Load()
}

// IsPaused reports whether the job is currently asked to pause.
func (c *ControlToken[S]) IsPaused() bool {
	return c.paused.Load()
}

// IsCancelledWithPause is the suspension point for jobs. It blocks while the
// token is paused and not cancelled, then reports whether cancellation was
// requested. Cancel always wins over Pause.
func (c *ControlToken[S]) IsCancelledWithPause() bool {
	for c.paused.Load() && !c.cancelled.Load() {
		time.Sleep(PausePollInterval)
	}

	return c.cancelled.Load()
}

// SetStatus overwrites the status slot. Unread statuses are dropped.
func (c *ControlToken[S]) SetStatus(status S) {
	c.mu.Lock()
	c.status = status
	c.hasStatus = true
	c.mu.Unlock()
}

// TakeStatus returns the latest status and clears the slot.
// The second return value is false when nothing was published since the last read.
func (c *ControlToken[S]) TakeStatus() (S, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero S

	if !c.hasStatus {
		return zero, false
	}

	status := c.status
	c.status = zero
	c.hasStatus = false

	return status, true
}
