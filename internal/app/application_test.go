package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/token_engine/internal/app/chain"
	"github.com/R3E-Network/token_engine/internal/app/domain/collection"
)

// The zero-options application must come up wired end to end: one shared
// memory store, an in-process bank, and a manual clock.
func TestNewDefaults(t *testing.T) {
	ctx := context.Background()
	application, err := New(Options{})
	require.NoError(t, err)

	col, err := application.Collections.Create(ctx, "alice", "ipfs://meta", collection.TypeNonFungible)
	require.NoError(t, err)
	_, _, err = application.Tokens.MintNonFungible(ctx, "alice", "alice", col.ID, 5, "u")
	require.NoError(t, err)

	orderID, err := application.Exchange.SellNFT(ctx, "alice", col.ID, 0, 5, 10)
	require.NoError(t, err)
	ord, err := application.Exchange.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), ord.Amount)

	assert.GreaterOrEqual(t, application.Events.Count(), 3)
}

func TestNewWithInjectedCollaborators(t *testing.T) {
	ctx := context.Background()
	bank := chain.NewBank()
	clock := chain.NewManualClock(42)
	application, err := New(Options{Currency: bank, Clock: clock})
	require.NoError(t, err)

	require.NoError(t, bank.Deposit("alice", 10))
	account, err := application.DAO.CreateDAO(ctx, "alice", "guild", "", 10, 2, 1, 100, 3, 5, 1)
	require.NoError(t, err)

	d, err := application.DAO.GetDAO(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), d.SummoningTime)
}
