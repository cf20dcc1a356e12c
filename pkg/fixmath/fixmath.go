// Package fixmath implements the fixed-precision arithmetic behind the
// bonding-curve pricing. All operands are big.Float values at 128 bits of
// mantissa precision, enough headroom that the two-decimal rounding step is
// exact for any price the engine can represent.
package fixmath

import (
	"errors"
	"math/big"
)

// Prec is the mantissa precision used for every intermediate value.
const Prec = 128

// RatioScale is the parts-per-million denominator for reverse ratios.
const RatioScale = 1_000_000

var (
	// ErrNonPositive reports a logarithm of zero or a negative value.
	ErrNonPositive = errors.New("value must be positive")
	// ErrOutOfRange reports a result that does not fit in uint64.
	ErrOutOfRange = errors.New("value out of uint64 range")
)

var ln2 = mustParse("0.69314718055994530941723212145817656807")

func mustParse(s string) *big.Float {
	f, _, err := big.ParseFloat(s, 10, Prec, big.ToNearestEven)
	if err != nil {
		panic(err)
	}
	return f
}

func newFloat() *big.Float { return new(big.Float).SetPrec(Prec) }

// FromUint converts an unsigned integer to a working float.
func FromUint(v uint64) *big.Float { return newFloat().SetUint64(v) }

// Ln returns the natural logarithm of x for x > 0.
//
// The argument is reduced to m*2^k with m in [0.5, 1) and ln(m) evaluated via
// the atanh series 2*(z + z^3/3 + ...) with z = (m-1)/(m+1), which converges
// well inside that interval.
func Ln(x *big.Float) (*big.Float, error) {
	if x.Sign() <= 0 {
		return nil, ErrNonPositive
	}

	m := newFloat()
	k := x.MantExp(m)

	one := FromUint(1)
	num := newFloat().Sub(m, one)
	den := newFloat().Add(m, one)
	z := newFloat().Quo(num, den)
	z2 := newFloat().Mul(z, z)

	sum := newFloat().Set(z)
	term := newFloat().Set(z)
	for n := 3; n < 200; n += 2 {
		term.Mul(term, z2)
		contrib := newFloat().Quo(term, FromUint(uint64(n)))
		if contrib.Sign() == 0 {
			break
		}
		sum.Add(sum, contrib)
	}
	sum.Mul(sum, FromUint(2))

	kPart := newFloat().Mul(newFloat().SetInt64(int64(k)), ln2)
	return sum.Add(sum, kPart), nil
}

// Exp returns e^x.
//
// x is reduced by the nearest multiple of ln2, the residual evaluated by
// Taylor series, and the power of two restored via the exponent field.
func Exp(x *big.Float) *big.Float {
	q := newFloat().Quo(x, ln2)
	// Round the multiple to nearest so the residual stays within [-ln2/2, ln2/2].
	half := newFloat().Quo(FromUint(1), FromUint(2))
	if q.Sign() >= 0 {
		q.Add(q, half)
	} else {
		q.Sub(q, half)
	}
	k64, _ := q.Int64()

	r := newFloat().Mul(newFloat().SetInt64(k64), ln2)
	r.Sub(x, r)

	sum := FromUint(1)
	term := FromUint(1)
	for n := uint64(1); n < 200; n++ {
		term.Mul(term, r)
		term.Quo(term, FromUint(n))
		if term.Sign() == 0 {
			break
		}
		sum.Add(sum, term)
	}

	return sum.SetMantExp(sum, int(k64))
}

// Pow computes x^(1_000_000/reverseRatio). A reverse ratio of exactly one
// million short-circuits to x itself so the identity exponent loses no
// precision. x must be non-negative; zero raised to any positive exponent is
// zero.
func Pow(x *big.Float, reverseRatio uint64) (*big.Float, error) {
	if reverseRatio == 0 {
		return nil, ErrNonPositive
	}
	if x.Sign() < 0 {
		return nil, ErrNonPositive
	}
	if reverseRatio == RatioScale {
		return newFloat().Set(x), nil
	}
	if x.Sign() == 0 {
		return newFloat(), nil
	}

	lnX, err := Ln(x)
	if err != nil {
		return nil, err
	}
	exponent := newFloat().Quo(FromUint(RatioScale), FromUint(reverseRatio))
	return Exp(lnX.Mul(lnX, exponent)), nil
}

// Round2 rounds a non-negative value to two decimal places: scale by 100,
// round half up to an integer, scale back. The two-stage shape is part of the
// pricing contract and must not be collapsed into a single rounding.
func Round2(x *big.Float) *big.Float {
	scaled := newFloat().Mul(x, FromUint(100))
	scaled.Add(scaled, newFloat().Quo(FromUint(1), FromUint(2)))
	i, _ := scaled.Int(nil)
	return newFloat().Quo(newFloat().SetInt(i), FromUint(100))
}

// CeilUint rounds a non-negative value up to the nearest unsigned integer.
func CeilUint(x *big.Float) (uint64, error) {
	if x.Sign() < 0 {
		return 0, ErrOutOfRange
	}
	i, _ := x.Int(nil)
	trunc := newFloat().SetInt(i)
	if trunc.Cmp(x) < 0 {
		i.Add(i, big.NewInt(1))
	}
	if !i.IsUint64() {
		return 0, ErrOutOfRange
	}
	return i.Uint64(), nil
}

// FloorUint truncates a non-negative value to the nearest unsigned integer.
func FloorUint(x *big.Float) (uint64, error) {
	if x.Sign() < 0 {
		return 0, ErrOutOfRange
	}
	i, _ := x.Int(nil)
	if !i.IsUint64() {
		return 0, ErrOutOfRange
	}
	return i.Uint64(), nil
}
