// Package sizing provides safe size arithmetic and conversions to prevent overflow.
package sizing

import (
	"math"

	"github.com/meigma/unitypack/core/internal/unitytype"
)

// ToInt converts an int64 to int, returning ErrSizeOverflow if it doesn't fit
// or is negative.
func ToInt(size int64) (int, error) {
	if size < 0 || size > int64(math.MaxInt) {
		return 0, unitytype.ErrSizeOverflow
	}
	return int(size), nil
}

// ToInt64 converts a uint64 to int64, returning ErrSizeOverflow if it doesn't fit.
func ToInt64(size uint64) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, unitytype.ErrSizeOverflow
	}
	return int64(size), nil
}

// AddInt64 adds two non-negative int64 values, returning (result, false) on overflow.
func AddInt64(a, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// MulInt64 multiplies two non-negative int64 values, returning (result, false) on overflow.
func MulInt64(a, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt64/b {
		return 0, false
	}
	return a * b, true
}
