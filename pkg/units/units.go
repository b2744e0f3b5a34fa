// Package units provides size multipliers and human-readable size
// formatting in binary (1024) or decimal (1000) units.
package units

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Binary size multipliers.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

// Format renders n bytes as "4.0 KiB", or "4.1 kB" when decimal is set.
func Format(n uint64, decimal bool) string {
	if decimal {
		return humanize.Bytes(n)
	}

	return humanize.IBytes(n)
}

// Rate renders a bytes-per-second rate.
func Rate(bps float64, decimal bool) string {
	if bps <= 0 {
		return "-"
	}

	return Format(uint64(bps), decimal) + "/s"
}

// Parse accepts both "4KiB" and "4kB" forms as well as plain byte counts.
func Parse(s string) (uint64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", s, err)
	}

	return n, nil
}
