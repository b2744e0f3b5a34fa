// Package progress defines the outbound notifications a scan or compaction
// run emits and the inbound commands that steer it.
package progress

import (
	"time"

	"github.com/Sumatoshi-tech/compactor/pkg/inventory"
)

// NoFraction marks a status without a known completion fraction.
const NoFraction = -1.0

// Command steers a running job.
type Command int

// Commands.
const (
	Pause Command = iota + 1
	Resume
	Stop
)

func (c Command) String() string {
	switch c {
	case Pause:
		return "pause"
	case Resume:
		return "resume"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Reporter receives notifications. Implementations must not block for long:
// they are called from the loop that drives the job.
type Reporter interface {
	// Status is a transient message with a fraction in [0,1] or NoFraction.
	Status(message string, fraction float64)
	// Summary is the latest aggregate of the folder being processed.
	Summary(summary inventory.Summary)
	Paused()
	Resumed()
	// Compacting starts a compaction run; mode is "compress" or "decompress".
	Compacting(mode string)
	Scanned(summary inventory.Summary, elapsed time.Duration)
	Compacted(before, after inventory.Summary, elapsed time.Duration)
	Stopped(summary inventory.Summary, elapsed time.Duration)
}

// Nop discards every notification.
type Nop struct{}

var _ Reporter = Nop{}

func (Nop) Status(string, float64) {}

func (Nop) Summary(inventory.Summary) {}

func (Nop) Paused() {}

func (Nop) Resumed() {}

func (Nop) Compacting(string) {}

func (Nop) Scanned(inventory.Summary, time.Duration) {}

func (Nop) Compacted(inventory.Summary, inventory.Summary, time.Duration) {}

func (Nop) Stopped(inventory.Summary, time.Duration) {}
