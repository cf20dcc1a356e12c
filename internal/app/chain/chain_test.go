package chain

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBankTransfer(t *testing.T) {
	ctx := context.Background()
	bank := NewBank()
	require.NoError(t, bank.Deposit("alice", 100))

	require.NoError(t, bank.Transfer(ctx, "alice", "bob", 40))

	aliceBal, err := bank.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(60), aliceBal)

	bobBal, err := bank.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(40), bobBal)
}

func TestBankTransferInsufficient(t *testing.T) {
	ctx := context.Background()
	bank := NewBank()
	require.NoError(t, bank.Deposit("alice", 10))

	err := bank.Transfer(ctx, "alice", "bob", 11)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	bal, err := bank.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), bal)
}

func TestBankZeroTransferIsNoop(t *testing.T) {
	ctx := context.Background()
	bank := NewBank()
	require.NoError(t, bank.Transfer(ctx, "nobody", "anyone", 0))
}

func TestManualClock(t *testing.T) {
	clock := NewManualClock(5)
	assert.Equal(t, uint64(5), clock.Current())

	clock.Advance(3)
	assert.Equal(t, uint64(8), clock.Current())

	clock.Set(4)
	assert.Equal(t, uint64(8), clock.Current(), "clock never moves backwards")

	clock.Set(20)
	assert.Equal(t, uint64(20), clock.Current())
}

func TestModuleAccountStable(t *testing.T) {
	a := ModuleAccount("exchange")
	b := ModuleAccount("exchange")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, ModuleAccount("graph"))
	assert.Len(t, a, 64)
}

func TestFixedRandomness(t *testing.T) {
	r := FixedRandomness([]byte{1, 2, 3})
	if !bytes.Equal(r.Seed(), []byte{1, 2, 3}) {
		t.Fatalf("unexpected seed %v", r.Seed())
	}
	seed := r.Seed()
	seed[0] = 9
	assert.Equal(t, byte(1), r.Seed()[0], "seed must be a copy")
}

func TestCryptoRandomnessFresh(t *testing.T) {
	r := CryptoRandomness{}
	if bytes.Equal(r.Seed(), r.Seed()) {
		t.Fatal("consecutive seeds should differ")
	}
}
