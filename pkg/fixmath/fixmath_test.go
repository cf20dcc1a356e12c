package fixmath

import (
	"math"
	"math/big"
	"testing"
)

func toFloat64(t *testing.T, f *big.Float) float64 {
	t.Helper()
	v, _ := f.Float64()
	return v
}

func TestPowIdentityRatio(t *testing.T) {
	x := FromUint(7)
	got, err := Pow(x, RatioScale)
	if err != nil {
		t.Fatalf("pow: %v", err)
	}
	if got.Cmp(x) != 0 {
		t.Fatalf("expected identity, got %s", got.Text('f', 10))
	}
}

func TestPowSquares(t *testing.T) {
	cases := []struct {
		base uint64
		want float64
	}{
		{1, 1},
		{2, 4},
		{5, 25},
		{25, 625},
	}
	for _, tc := range cases {
		got, err := Pow(FromUint(tc.base), 500_000)
		if err != nil {
			t.Fatalf("pow(%d): %v", tc.base, err)
		}
		if v := toFloat64(t, got); math.Abs(v-tc.want) > 1e-9 {
			t.Fatalf("pow(%d)^2 = %v, want %v", tc.base, v, tc.want)
		}
	}
}

func TestPowZeroBase(t *testing.T) {
	got, err := Pow(newFloat(), 500_000)
	if err != nil {
		t.Fatalf("pow: %v", err)
	}
	if got.Sign() != 0 {
		t.Fatalf("expected zero, got %s", got.Text('f', 10))
	}
}

func TestPowFractionalExponent(t *testing.T) {
	// 4^(1e6/2e5 * 1e-6 inverse) => reverseRatio 2_000_000 gives exponent 0.5.
	got, err := Pow(FromUint(4), 2_000_000)
	if err != nil {
		t.Fatalf("pow: %v", err)
	}
	if v := toFloat64(t, got); math.Abs(v-2) > 1e-9 {
		t.Fatalf("sqrt(4) = %v, want 2", v)
	}
}

func TestLnExpRoundTrip(t *testing.T) {
	for _, v := range []uint64{1, 2, 3, 10, 1000, 123456789} {
		ln, err := Ln(FromUint(v))
		if err != nil {
			t.Fatalf("ln(%d): %v", v, err)
		}
		back := Exp(ln)
		if got := toFloat64(t, back); math.Abs(got-float64(v))/float64(v) > 1e-12 {
			t.Fatalf("exp(ln(%d)) = %v", v, got)
		}
	}
}

func TestLnRejectsNonPositive(t *testing.T) {
	if _, err := Ln(newFloat()); err != ErrNonPositive {
		t.Fatalf("expected ErrNonPositive, got %v", err)
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.554", "1.55"},
		{"1.555", "1.56"},
		{"1.5555", "1.56"},
		{"12500.0000001", "12500"},
		{"0.004", "0"},
		{"0.005", "0.01"},
	}
	for _, tc := range cases {
		in := mustParse(tc.in)
		want := mustParse(tc.want)
		if got := Round2(in); got.Cmp(want) != 0 {
			t.Fatalf("Round2(%s) = %s, want %s", tc.in, got.Text('f', 4), tc.want)
		}
	}
}

func TestCeilAndFloor(t *testing.T) {
	x := mustParse("1.56")
	c, err := CeilUint(x)
	if err != nil {
		t.Fatalf("ceil: %v", err)
	}
	if c != 2 {
		t.Fatalf("ceil(1.56) = %d, want 2", c)
	}
	f, err := FloorUint(x)
	if err != nil {
		t.Fatalf("floor: %v", err)
	}
	if f != 1 {
		t.Fatalf("floor(1.56) = %d, want 1", f)
	}

	exact := FromUint(42)
	if c, _ = CeilUint(exact); c != 42 {
		t.Fatalf("ceil(42) = %d", c)
	}
	if f, _ = FloorUint(exact); f != 42 {
		t.Fatalf("floor(42) = %d", f)
	}
}
