package background_test

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/compactor/pkg/background"
)

const (
	shortWait = 20 * time.Millisecond
	longWait  = 2 * time.Second
)

var errBoom = errors.New("boom")

// counterJob counts until cancelled, checking the token every step.
func counterJob(limit int) background.JobFunc[int, int] {
	return func(ctl *background.ControlToken[int]) (background.Outcome[int], error) {
		n := 0

		for n < limit {
			if ctl.IsCancelledWithPause() {
				return background.Stopped(n), nil
			}

			n++
			ctl.SetStatus(n)
			time.Sleep(time.Millisecond)
		}

		return background.Completed(n), nil
	}
}

func TestSpawn_Completes(t *testing.T) {
	t.Parallel()

	h := background.Spawn[int, int](context.Background(), counterJob(5))

	outcome, err := h.Wait()
	require.NoError(t, err)
	assert.False(t, outcome.Stopped)
	assert.Equal(t, 5, outcome.Value)
}

func TestSpawn_CancelReturnsPartial(t *testing.T) {
	t.Parallel()

	h := background.Spawn[int, int](context.Background(), counterJob(1_000_000))

	time.Sleep(shortWait)
	h.Cancel()

	outcome, done, err := h.WaitTimeout(longWait)
	require.True(t, done)
	require.NoError(t, err)
	assert.True(t, outcome.Stopped)
	assert.Positive(t, outcome.Value)
}

func TestSpawn_ContextCancelsJob(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	h := background.Spawn[int, int](ctx, counterJob(1_000_000))

	cancel()

	outcome, err := h.Wait()
	require.NoError(t, err)
	assert.True(t, outcome.Stopped)
}

func TestHandle_PollBeforeAndAfter(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	job := background.JobFunc[string, struct{}](func(_ *background.ControlToken[struct{}]) (background.Outcome[string], error) {
		<-release

		return background.Completed("ok"), nil
	})

	h := background.Spawn[string, struct{}](context.Background(), job)

	_, done, err := h.Poll()
	require.NoError(t, err)
	assert.False(t, done)

	close(release)
	<-h.Done()

	outcome, done, err := h.Poll()
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "ok", outcome.Value)

	_, _, err = h.Poll()
	assert.ErrorIs(t, err, background.ErrResultConsumed)
}

func TestHandle_WaitTimeoutExpires(t *testing.T) {
	t.Parallel()

	h := background.Spawn[int, int](context.Background(), counterJob(1_000_000))
	defer h.Close()

	_, done, err := h.WaitTimeout(shortWait)
	require.NoError(t, err)
	assert.False(t, done)
}

func TestHandle_PanicBecomesError(t *testing.T) {
	t.Parallel()

	job := background.JobFunc[int, int](func(_ *background.ControlToken[int]) (background.Outcome[int], error) {
		panic("kaboom")
	})

	_, err := background.Spawn[int, int](context.Background(), job).Wait()
	require.Error(t, err)
	require.ErrorIs(t, err, background.ErrJobPanicked)

	var panicErr *background.PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
}

func TestHandle_JobErrorIsNotPanic(t *testing.T) {
	t.Parallel()

	job := background.JobFunc[int, int](func(_ *background.ControlToken[int]) (background.Outcome[int], error) {
		return background.Outcome[int]{}, errBoom
	})

	_, err := background.Spawn[int, int](context.Background(), job).Wait()
	require.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, background.ErrJobPanicked)
}

func TestHandle_StatusAndPause(t *testing.T) {
	t.Parallel()

	h := background.Spawn[int, int](context.Background(), counterJob(1_000_000))
	defer h.Close()

	require.Eventually(t, func() bool {
		_, ok := h.Status()

		return ok
	}, longWait, time.Millisecond)

	h.Pause()
	h.Pause()
	assert.True(t, h.IsPaused())

	time.Sleep(shortWait)

	first, _ := h.Status()
	time.Sleep(shortWait)

	_, fresh := h.Status()
	assert.False(t, fresh, "a paused job publishes nothing after %d", first)

	h.Resume()

	require.Eventually(t, func() bool {
		_, ok := h.Status()

		return ok
	}, longWait, time.Millisecond)
}

func TestHandle_CloseCancels(t *testing.T) {
	t.Parallel()

	var stopped atomic.Bool

	job := background.JobFunc[int, int](func(ctl *background.ControlToken[int]) (background.Outcome[int], error) {
		for !ctl.IsCancelledWithPause() {
			time.Sleep(time.Millisecond)
		}

		stopped.Store(true)

		return background.Stopped(0), nil
	})

	h := background.Spawn[int, int](context.Background(), job)
	h.Close()

	require.Eventually(t, stopped.Load, longWait, time.Millisecond)
}

func TestHandle_DroppedHandleCancels(t *testing.T) {
	t.Parallel()

	var stopped atomic.Bool

	job := background.JobFunc[int, int](func(ctl *background.ControlToken[int]) (background.Outcome[int], error) {
		for !ctl.IsCancelledWithPause() {
			time.Sleep(time.Millisecond)
		}

		stopped.Store(true)

		return background.Stopped(0), nil
	})

	func() {
		_ = background.Spawn[int, int](context.Background(), job)
	}()

	require.Eventually(t, func() bool {
		runtime.GC()

		return stopped.Load()
	}, longWait, 5*time.Millisecond)
}
