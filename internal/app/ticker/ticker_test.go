package ticker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/token_engine/internal/app/chain"
)

func TestBlockTickerAdvances(t *testing.T) {
	clock := chain.NewManualClock(0)
	tk := New(clock, "@every 10ms", nil)

	require.NoError(t, tk.Start(context.Background()))
	defer func() {
		require.NoError(t, tk.Stop(context.Background()))
	}()

	deadline := time.Now().Add(2 * time.Second)
	for clock.Current() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Greater(t, clock.Current(), uint64(0))
}

func TestBlockTickerBadSchedule(t *testing.T) {
	tk := New(chain.NewManualClock(0), "not a schedule", nil)
	assert.Error(t, tk.Start(context.Background()))
}
