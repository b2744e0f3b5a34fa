package background

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"
)

type result[T any] struct {
	outcome Outcome[T]
	err     error
}

// handleState is referenced by the job goroutine. It must never point back
// at the Handle so an abandoned Handle can be collected and cancel its job.
type handleState[T any] struct {
	done     chan struct{}
	res      result[T]
	consumed atomic.Bool
}

// Handle controls a job started with Spawn.
// Exactly one result is ever delivered; later reads return ErrResultConsumed.
// A Handle that becomes unreachable before its result is read cancels the job.
type Handle[T, S any] struct {
	ctl     *ControlToken[S]
	state   *handleState[T]
	cleanup runtime.Cleanup
}

// Spawn starts job on its own goroutine and returns immediately.
// Cancelling ctx cancels the job's token.
func Spawn[T, S any](ctx context.Context, job Job[T, S]) *Handle[T, S] {
	ctl := NewControlToken[S]()
	state := &handleState[T]{done: make(chan struct{})}

	stopAfter := context.AfterFunc(ctx, ctl.Cancel)

	go func() {
		defer close(state.done)
		defer stopAfter()

		state.res = runGuarded(job, ctl)
	}()

	h := &Handle[T, S]{ctl: ctl, state: state}
	h.cleanup = runtime.AddCleanup(h, func(c *ControlToken[S]) { c.Cancel() }, ctl)

	return h
}

func runGuarded[T, S any](job Job[T, S], ctl *ControlToken[S]) (res result[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = result[T]{err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()

	outcome, err := job.Run(ctl)

	return result[T]{outcome: outcome, err: err}
}

// Done is closed once the job has returned.
func (h *Handle[T, S]) Done() <-chan struct{} {
	return h.state.done
}

// Poll returns the result if the job has finished. The boolean is false while
// the job is still running.
func (h *Handle[T, S]) Poll() (Outcome[T], bool, error) {
	select {
	case <-h.state.done:
		outcome, err := h.take()

		return outcome, true, err
	default:
		return Outcome[T]{}, false, nil
	}
}

// WaitTimeout waits up to d for the job to finish.
func (h *Handle[T, S]) WaitTimeout(d time.Duration) (Outcome[T], bool, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-h.state.done:
		outcome, err := h.take()

		return outcome, true, err
	case <-timer.C:
		return Outcome[T]{}, false, nil
	}
}

// Wait blocks until the job finishes and returns its result.
func (h *Handle[T, S]) Wait() (Outcome[T], error) {
	<-h.state.done

	return h.take()
}

func (h *Handle[T, S]) take() (Outcome[T], error) {
	if h.state.consumed.Swap(true) {
		return Outcome[T]{}, ErrResultConsumed
	}

	h.cleanup.Stop()

	return h.state.res.outcome, h.state.res.err
}

// Cancel requests cancellation without waiting.
func (h *Handle[T, S]) Cancel() { h.ctl.Cancel() }

// Pause asks the job to suspend at its next checkpoint.
func (h *Handle[T, S]) Pause() { h.ctl.Pause() }

// Resume releases a paused job.
func (h *Handle[T, S]) Resume() { h.ctl.Resume() }

// IsPaused reports the current pause request.
func (h *Handle[T, S]) IsPaused() bool { return h.ctl.IsPaused() }

// Status returns the latest status the job published, consuming it.
func (h *Handle[T, S]) Status() (S, bool) {
	return h.ctl.TakeStatus()
}

// Close cancels the job if its result has not been read. It does not wait.
func (h *Handle[T, S]) Close() {
	if !h.state.consumed.Load() {
		h.ctl.Cancel()
	}

	h.cleanup.Stop()
}
