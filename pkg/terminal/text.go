package terminal

import "strings"

// Ellipsis marks truncated text.
const Ellipsis = "..."

// TruncateLeft keeps the end of s, which for paths is the file name.
func TruncateLeft(s string, maxWidth int) string {
	r := []rune(s)
	if len(r) <= maxWidth {
		return s
	}

	if maxWidth <= len(Ellipsis) {
		return strings.Repeat(".", max(maxWidth, 0))
	}

	return Ellipsis + string(r[len(r)-maxWidth+len(Ellipsis):])
}

// PadRight pads s with spaces on the right to reach width.
func PadRight(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}

	return s + strings.Repeat(" ", width-n)
}
