// Package numeric provides checked unsigned arithmetic. Every balance,
// supply, and counter mutation in the engine goes through these helpers so
// overflow and underflow surface as errors instead of wrapping silently.
package numeric

import (
	"errors"
	"math"
	"math/bits"
)

// ErrNumOverflow reports a checked add, sub, mul, or div that left the uint64
// range.
var ErrNumOverflow = errors.New("numeric overflow")

// Add returns a+b or ErrNumOverflow.
func Add(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrNumOverflow
	}
	return a + b, nil
}

// Sub returns a-b or ErrNumOverflow when b exceeds a.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrNumOverflow
	}
	return a - b, nil
}

// Mul returns a*b or ErrNumOverflow.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrNumOverflow
	}
	return lo, nil
}

// MulDiv returns floor(a*b/c) computed with a 128-bit intermediate, so the
// product may exceed uint64 as long as the quotient fits. c must be nonzero.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrNumOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, ErrNumOverflow
	}
	q, _ := bits.Div64(hi, lo, c)
	return q, nil
}
