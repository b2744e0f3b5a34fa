package progress

// ema is an exponential moving average. The first sample seeds it.
type ema struct {
	alpha  float64
	value  float64
	seeded bool
}

func (e *ema) update(v float64) float64 {
	if !e.seeded {
		e.value, e.seeded = v, true

		return v
	}

	e.value = e.alpha*v + (1-e.alpha)*e.value

	return e.value
}
