package terminal

import (
	"fmt"
	"strings"
)

// Progress bar characters.
const (
	ProgressFilled = "█"
	ProgressEmpty  = "░"
)

const (
	barWidth          = 20
	percentMultiplier = 100
	// statusOverhead is the width taken by "[bar] 100% " before the message.
	statusOverhead = barWidth + len("[] 100% ")
)

// DrawProgressBar draws a bar of width cells. value is clamped to [0, 1].
// Example: DrawProgressBar(0.7, 10) returns "███████░░░".
func DrawProgressBar(value float64, width int) string {
	value = min(max(value, 0), 1)

	filled := int(value * float64(width))

	return strings.Repeat(ProgressFilled, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// StatusLine renders one progress line that fits in cfg.Width. A negative
// fraction omits the bar.
func (cfg Config) StatusLine(message string, fraction float64) string {
	width := max(cfg.Width, MinWidth)

	if fraction < 0 {
		return TruncateLeft(message, width)
	}

	bar := cfg.Colorize(DrawProgressBar(fraction, barWidth), ColorBlue)
	pct := int(min(max(fraction, 0), 1) * percentMultiplier)

	return fmt.Sprintf("[%s] %3d%% %s", bar, pct, TruncateLeft(message, width-statusOverhead))
}
