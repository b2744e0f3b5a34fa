package terminal

import "github.com/fatih/color"

// Color is a foreground colour.
type Color int

// Colours used by the CLI.
const (
	ColorNone Color = iota
	ColorGreen
	ColorYellow
	ColorRed
	ColorBlue
	ColorGray
)

// Ratio thresholds for ColorForRatio.
const (
	RatioGood = 0.6
	RatioFair = 0.9
)

var attrs = map[Color]color.Attribute{
	ColorGreen:  color.FgGreen,
	ColorYellow: color.FgYellow,
	ColorRed:    color.FgRed,
	ColorBlue:   color.FgBlue,
	ColorGray:   color.FgHiBlack,
}

// Colorize applies c to text unless colour is disabled.
func (cfg Config) Colorize(text string, c Color) string {
	attr, ok := attrs[c]
	if cfg.NoColor || !ok {
		return text
	}

	painter := color.New(attr)
	painter.EnableColor()

	return painter.Sprint(text)
}

// ColorForRatio picks a colour for a physical/logical ratio; lower is better.
func ColorForRatio(ratio float64) Color {
	switch {
	case ratio <= RatioGood:
		return ColorGreen
	case ratio <= RatioFair:
		return ColorYellow
	default:
		return ColorRed
	}
}
