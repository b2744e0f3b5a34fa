package progress

import (
	"sync"
	"time"

	"github.com/Sumatoshi-tech/compactor/pkg/inventory"
)

// Event names recorded by Recorder.
const (
	EventStatus     = "status"
	EventSummary    = "summary"
	EventPaused     = "paused"
	EventResumed    = "resumed"
	EventCompacting = "compacting"
	EventScanned    = "scanned"
	EventCompacted  = "compacted"
	EventStopped    = "stopped"
)

// Event is one recorded notification.
type Event struct {
	Name     string
	Message  string
	Fraction float64
	Summary  inventory.Summary
	Before   inventory.Summary
	Elapsed  time.Duration
}

// Recorder keeps every notification in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

var _ Reporter = (*Recorder)(nil)

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Event(nil), r.events...)
}

// Names returns the event names in order.
func (r *Recorder) Names() []string {
	events := r.Events()
	names := make([]string, 0, len(events))

	for _, e := range events {
		names = append(names, e.Name)
	}

	return names
}

// Last returns the most recent event with the given name.
func (r *Recorder) Last(name string) (Event, bool) {
	events := r.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Name == name {
			return events[i], true
		}
	}

	return Event{}, false
}

func (r *Recorder) Status(message string, fraction float64) {
	r.add(Event{Name: EventStatus, Message: message, Fraction: fraction})
}

func (r *Recorder) Summary(summary inventory.Summary) {
	r.add(Event{Name: EventSummary, Summary: summary})
}

func (r *Recorder) Paused() { r.add(Event{Name: EventPaused}) }

func (r *Recorder) Resumed() { r.add(Event{Name: EventResumed}) }

// Compacting records the mode in Event.Message.
func (r *Recorder) Compacting(mode string) { r.add(Event{Name: EventCompacting, Message: mode}) }

func (r *Recorder) Scanned(summary inventory.Summary, elapsed time.Duration) {
	r.add(Event{Name: EventScanned, Summary: summary, Elapsed: elapsed})
}

func (r *Recorder) Compacted(before, after inventory.Summary, elapsed time.Duration) {
	r.add(Event{Name: EventCompacted, Before: before, Summary: after, Elapsed: elapsed})
}

func (r *Recorder) Stopped(summary inventory.Summary, elapsed time.Duration) {
	r.add(Event{Name: EventStopped, Summary: summary, Elapsed: elapsed})
}
