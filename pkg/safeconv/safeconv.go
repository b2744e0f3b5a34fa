// Package safeconv converts between the signed sizes reported by the
// operating system and the unsigned sizes kept by the inventory.
package safeconv

import "math"

// Int64 converts v to int64, saturating at math.MaxInt64.
func Int64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(v)
}

// Uint64 converts v to uint64, clamping negative values to zero.
func Uint64(v int64) uint64 {
	if v < 0 {
		return 0
	}

	return uint64(v)
}

// Delta returns before-after as a signed value, saturating in both directions.
func Delta(before, after uint64) int64 {
	if before >= after {
		return Int64(before - after)
	}

	return -Int64(after - before)
}

// MustUint64ToInt converts v to int, panicking on overflow.
// Use only when overflow is logically impossible.
func MustUint64ToInt(v uint64) int {
	if v > uint64(math.MaxInt) {
		panic("safeconv: uint64 to int overflow")
	}

	return int(v)
}
