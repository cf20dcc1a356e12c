package exchange

import (
	"math/big"

	"github.com/R3E-Network/token_engine/pkg/fixmath"
)

// Bancor-style curve pricing. The reverse ratio is the reserve ratio in
// parts per million; exponents are its reciprocal. Buy prices are rounded to
// two decimals and then ceiled, sell payouts are truncated, so rounding
// always favors the pool.

// FirstBuyCost prices the very first purchase from a pool, where the curve
// integral is undefined at zero supply: round2(r * m * amount^(1/r)),
// ceiled.
func FirstBuyCost(reverseRatio, m, amount uint64) (uint64, error) {
	pow, err := fixmath.Pow(fixmath.FromUint(amount), reverseRatio)
	if err != nil {
		return 0, err
	}

	r := new(big.Float).SetPrec(fixmath.Prec).Quo(
		fixmath.FromUint(reverseRatio), fixmath.FromUint(fixmath.RatioScale))
	cost := pow.Mul(pow, r)
	cost.Mul(cost, fixmath.FromUint(m))
	return fixmath.CeilUint(fixmath.Round2(cost))
}

// BuyCost prices a purchase of amount tokens against the current pool
// state: round2(poolBalance * ((1 + amount/totalSupply)^(1/r) - 1)),
// ceiled.
func BuyCost(poolBalance, amount, totalSupply, reverseRatio uint64) (uint64, error) {
	if totalSupply == 0 {
		return 0, fixmath.ErrNonPositive
	}
	ratio := new(big.Float).SetPrec(fixmath.Prec).Quo(
		fixmath.FromUint(amount), fixmath.FromUint(totalSupply))
	base := ratio.Add(ratio, fixmath.FromUint(1))

	pow, err := fixmath.Pow(base, reverseRatio)
	if err != nil {
		return 0, err
	}
	pow.Sub(pow, fixmath.FromUint(1))
	pow.Mul(pow, fixmath.FromUint(poolBalance))
	return fixmath.CeilUint(fixmath.Round2(pow))
}

// SellReceive prices a sale of amount tokens back to the pool:
// poolBalance * (1 - (1 - amount/totalSupply)^(1/r)), truncated.
func SellReceive(poolBalance, amount, totalSupply, reverseRatio uint64) (uint64, error) {
	if totalSupply == 0 {
		return 0, fixmath.ErrNonPositive
	}
	ratio := new(big.Float).SetPrec(fixmath.Prec).Quo(
		fixmath.FromUint(amount), fixmath.FromUint(totalSupply))
	base := new(big.Float).SetPrec(fixmath.Prec).Sub(fixmath.FromUint(1), ratio)

	pow, err := fixmath.Pow(base, reverseRatio)
	if err != nil {
		return 0, err
	}
	receive := new(big.Float).SetPrec(fixmath.Prec).Sub(fixmath.FromUint(1), pow)
	receive.Mul(receive, fixmath.FromUint(poolBalance))
	return fixmath.FloorUint(receive)
}
