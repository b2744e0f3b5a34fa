package progress

import (
	"sync"
	"time"
)

const defaultSmoothing = 0.2

// Stats is a point-in-time view of a Meter.
type Stats struct {
	Done    uint64
	Total   uint64
	RateBps float64
	ETA     time.Duration
	Percent float64
}

// Meter tracks processed bytes against a total with a smoothed rate.
type Meter struct {
	mu       sync.Mutex
	total    uint64
	done     uint64
	lastAt   time.Time
	lastDone uint64
	rate     ema
	now      func() time.Time
}

// NewMeter returns a meter using the wall clock.
func NewMeter(total uint64) *Meter {
	return NewMeterWithNow(total, time.Now)
}

// NewMeterWithNow returns a meter with a custom clock.
func NewMeterWithNow(total uint64, now func() time.Time) *Meter {
	if now == nil {
		now = time.Now
	}

	return &Meter{total: total, rate: ema{alpha: defaultSmoothing}, now: now, lastAt: now()}
}

// Add records n more bytes processed.
func (m *Meter) Add(n uint64) {
	if n == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.done += n

	elapsed := now.Sub(m.lastAt).Seconds()
	if elapsed <= 0 {
		return
	}

	m.rate.update(float64(m.done-m.lastDone) / elapsed)

	m.lastAt = now
	m.lastDone = m.done
}

// Fraction returns done/total, or NoFraction when the total is unknown.
func (m *Meter) Fraction() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.fraction()
}

func (m *Meter) fraction() float64 {
	if m.total == 0 {
		return NoFraction
	}

	f := float64(m.done) / float64(m.total)
	if f > 1 {
		return 1
	}

	return f
}

// Snapshot returns the current stats.
func (m *Meter) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{Done: m.done, Total: m.total, RateBps: m.rate.value}

	if f := m.fraction(); f >= 0 {
		stats.Percent = f * 100
	}

	if stats.RateBps > 0 && m.total > m.done {
		stats.ETA = time.Duration(float64(m.total-m.done) / stats.RateBps * float64(time.Second))
	}

	return stats
}
