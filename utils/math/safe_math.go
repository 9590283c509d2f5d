// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"errors"
)

// Unsigned is a constraint that permits any unsigned integer type.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

var (
	ErrOverflow  = errors.New("overflow")
	ErrUnderflow = errors.New("underflow")
)

// MaxUint returns the maximum value of an unsigned integer of type T.
func MaxUint[T Unsigned]() T {
	return ^T(0)
}

// Add returns:
// 1) a + b
// 2) If there is overflow, an error
func Add[T Unsigned](a, b T) (T, error) {
	if a > MaxUint[T]()-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub returns:
// 1) a - b
// 2) If there is underflow, an error
func Sub[T Unsigned](a, b T) (T, error) {
	if a < b {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// Mul returns:
// 1) a * b
// 2) If there is overflow, an error
func Mul[T Unsigned](a, b T) (T, error) {
	if b != 0 && a > MaxUint[T]()/b {
		return 0, ErrOverflow
	}
	return a * b, nil
}

// CeilDiv returns a / b rounded up. b must be non-zero.
func CeilDiv[T Unsigned](a, b T) T {
	if a == 0 {
		return 0
	}
	return (a-1)/b + 1
}

// ExceedsRatio reports whether amount exceeds ratio of limit. The
// comparison is done in float space to avoid overflowing on large amounts.
// A non-positive ratio or zero limit never matches.
func ExceedsRatio(amount, limit uint64, ratio float64) bool {
	if ratio <= 0 || limit == 0 {
		return false
	}
	return float64(amount) > float64(limit)*ratio
}
