// Package terminal renders progress lines and summaries for the CLI.
package terminal

import (
	"os"
	"strconv"

	"github.com/fatih/color"
)

// Width limits.
const (
	DefaultWidth = 80
	MinWidth     = 40
	MaxWidth     = 200
)

// Config holds terminal rendering configuration.
type Config struct {
	Width   int
	NoColor bool
}

// NewConfig derives a Config from the environment. Colour is off when
// NO_COLOR is set or stdout is not a terminal.
func NewConfig() Config {
	return Config{
		Width:   DetectWidth(),
		NoColor: os.Getenv("NO_COLOR") != "" || color.NoColor,
	}
}

// DetectWidth returns the terminal width from COLUMNS, clamped to
// [MinWidth, MaxWidth], or DefaultWidth if unset or invalid.
func DetectWidth() int {
	width, err := strconv.Atoi(os.Getenv("COLUMNS"))
	if err != nil || width <= 0 {
		return DefaultWidth
	}

	return min(max(width, MinWidth), MaxWidth)
}
