package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/token_engine/pkg/fixmath"
)

func TestFirstBuyCost(t *testing.T) {
	// Square curve: 0.5 * 1000 * 5^2 = 12500.
	cost, err := FirstBuyCost(500_000, 1000, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(12500), cost)

	// Linear curve: 1 * m * amount.
	cost, err = FirstBuyCost(fixmath.RatioScale, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(21), cost)

	// Buying nothing costs nothing.
	cost, err = FirstBuyCost(500_000, 1000, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), cost)
}

func TestBuyCost(t *testing.T) {
	// 2 * ((1 + 1/3)^2 - 1) = 1.55..., rounds to 1.56, ceils to 2.
	cost, err := BuyCost(2, 1, 3, 500_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cost)

	// Linear curve doubles the pool when supply doubles.
	cost, err = BuyCost(100, 5, 5, fixmath.RatioScale)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), cost)

	_, err = BuyCost(2, 1, 0, 500_000)
	assert.ErrorIs(t, err, fixmath.ErrNonPositive)
}

func TestSellReceive(t *testing.T) {
	// 2 * (1 - (1 - 1/2)^2) = 1.5, truncates to 1.
	receive, err := SellReceive(2, 1, 2, 500_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receive)

	// Selling the entire supply drains the pool exactly.
	receive, err = SellReceive(12500, 5, 5, 500_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(12500), receive)

	_, err = SellReceive(2, 1, 0, 500_000)
	assert.ErrorIs(t, err, fixmath.ErrNonPositive)
}

// Selling back never pays out more than buying in cost, for any mix of
// rounding directions.
func TestRoundTripFavorsPool(t *testing.T) {
	ratios := []uint64{200_000, 500_000, fixmath.RatioScale, 2_000_000}
	for _, rr := range ratios {
		first, err := FirstBuyCost(rr, 1000, 10)
		require.NoError(t, err)

		cost, err := BuyCost(first, 4, 10, rr)
		require.NoError(t, err)

		back, err := SellReceive(first+cost, 4, 14, rr)
		require.NoError(t, err)
		assert.LessOrEqual(t, back, cost, "ratio %d", rr)
	}
}
