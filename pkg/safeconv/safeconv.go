// Package safeconv converts between integer types used for byte sizes.
package safeconv

import "math"

// MustInt64ToUint64 converts a size to uint64, panics if negative.
// Use only for values that cannot be negative, such as file sizes.
func MustInt64ToUint64(v int64) uint64 {
	if v < 0 {
		panic("safeconv: negative int64 to uint64 conversion")
	}

	return uint64(v)
}

// Uint64ToInt64 converts v if it fits in an int64.
func Uint64ToInt64(v uint64) (int64, bool) {
	if v > math.MaxInt64 {
		return 0, false
	}

	return int64(v), true
}
