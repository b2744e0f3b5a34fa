package background_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/compactor/pkg/background"
)

const resumeDelay = 30 * time.Millisecond

func TestControlToken_CancelIsSticky(t *testing.T) {
	t.Parallel()

	ctl := background.NewControlToken[int]()
	assert.False(t, ctl.IsCancelled())

	ctl.Cancel()
	ctl.Cancel()
	ctl.Resume()

	assert.True(t, ctl.IsCancelled())
	assert.True(t, ctl.IsCancelledWithPause())
}

func TestControlToken_StatusLatestWins(t *testing.T) {
	t.Parallel()

	ctl := background.NewControlToken[string]()

	_, ok := ctl.TakeStatus()
	assert.False(t, ok)

	ctl.SetStatus("first")
	ctl.SetStatus("second")

	status, ok := ctl.TakeStatus()
	assert.True(t, ok)
	assert.Equal(t, "second", status)

	_, ok = ctl.TakeStatus()
	assert.False(t, ok, "status slot is cleared on read")
}

func TestControlToken_PauseBlocksUntilResume(t *testing.T) {
	t.Parallel()

	ctl := background.NewControlToken[int]()
	ctl.Pause()

	start := time.Now()

	go func() {
		time.Sleep(resumeDelay)
		ctl.Resume()
	}()

	cancelled := ctl.IsCancelledWithPause()

	assert.False(t, cancelled)
	assert.GreaterOrEqual(t, time.Since(start), resumeDelay)
}

func TestControlToken_CancelWinsOverPause(t *testing.T) {
	t.Parallel()

	ctl := background.NewControlToken[int]()
	ctl.Pause()

	go func() {
		time.Sleep(resumeDelay)
		ctl.Cancel()
	}()

	assert.True(t, ctl.IsCancelledWithPause())
	assert.True(t, ctl.IsPaused(), "cancel does not clear the pause flag")
}

func TestControlToken_PauseResumeIdempotent(t *testing.T) {
	t.Parallel()

	once := background.NewControlToken[int]()
	once.Pause()
	once.Resume()

	twice := background.NewControlToken[int]()
	twice.Pause()
	twice.Pause()
	twice.Resume()
	twice.Resume()

	resumedOnly := background.NewControlToken[int]()
	resumedOnly.Resume()

	for _, ctl := range []*background.ControlToken[int]{once, twice, resumedOnly} {
		assert.False(t, ctl.IsPaused())
		assert.False(t, ctl.IsCancelledWithPause())
	}
}
