package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/token_engine/internal/app/chain"
	"github.com/R3E-Network/token_engine/internal/app/domain/collection"
	"github.com/R3E-Network/token_engine/internal/app/domain/graph"
	"github.com/R3E-Network/token_engine/internal/app/services/identifier"
	colsvc "github.com/R3E-Network/token_engine/internal/app/services/collection"
	toksvc "github.com/R3E-Network/token_engine/internal/app/services/token"
	"github.com/R3E-Network/token_engine/internal/app/storage/memory"
)

type fixture struct {
	linker *Service
	ledger *toksvc.Service
	colID  string
}

// newFixture mints five single-token records 0..4 for alice in one
// non-fungible collection.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	ids := identifier.New(store, chain.FixedRandomness([]byte("seed")), chain.SHA256{}, nil)
	registry := colsvc.New(store, ids, nil, nil)
	ledger := toksvc.New(registry, store, nil, nil)
	linker := New(ledger, registry, store, nil, nil)

	col, err := registry.Create(ctx, "alice", "", collection.TypeNonFungible)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, _, err := ledger.MintNonFungible(ctx, "alice", "alice", col.ID, 1, "u")
		require.NoError(t, err)
	}
	return &fixture{linker: linker, ledger: ledger, colID: col.ID}
}

func (f *fixture) node(id uint64) graph.Node {
	return graph.Node{CollectionID: f.colID, TokenID: id}
}

func TestLinkEscrowsChild(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.linker.Link(ctx, "alice", f.node(1), f.node(0)))

	rng, err := f.ledger.GetToken(ctx, f.colID, 1)
	require.NoError(t, err)
	assert.Equal(t, f.linker.Account(), rng.Owner, "linked child sits in custody")

	owner, root, err := f.linker.FindRootOwner(ctx, f.node(1))
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
	assert.Equal(t, f.node(0), root)
}

func TestLinkChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.linker.Link(ctx, "alice", f.node(1), graph.Node{CollectionID: "missing", TokenID: 0})
	assert.ErrorIs(t, err, ErrParentCollectionNotFound)

	err = f.linker.Link(ctx, "alice", f.node(1), f.node(1))
	assert.ErrorIs(t, err, ErrLinkToSelfOrDescendant)

	err = f.linker.Link(ctx, "mallory", f.node(1), f.node(0))
	assert.ErrorIs(t, err, ErrPermissionDenied)

	err = f.linker.Link(ctx, "alice", graph.Node{CollectionID: f.colID, TokenID: 99}, f.node(0))
	assert.ErrorIs(t, err, toksvc.ErrTokenNotFound)
}

func TestLinkRejectsAncestorUnderDescendant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// 0 <- 1 <- 2, then attaching 0 under 2 would close a cycle.
	require.NoError(t, f.linker.Link(ctx, "alice", f.node(1), f.node(0)))
	require.NoError(t, f.linker.Link(ctx, "alice", f.node(2), f.node(1)))

	err := f.linker.Link(ctx, "alice", f.node(0), f.node(2))
	assert.ErrorIs(t, err, ErrLinkToSelfOrDescendant)
}

func TestIsAncestor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.linker.Link(ctx, "alice", f.node(1), f.node(0)))
	require.NoError(t, f.linker.Link(ctx, "alice", f.node(2), f.node(1)))

	is, err := f.linker.IsAncestor(ctx, f.node(0), f.node(2))
	require.NoError(t, err)
	assert.True(t, is)

	is, err = f.linker.IsAncestor(ctx, f.node(2), f.node(0))
	require.NoError(t, err)
	assert.False(t, is)
}

func TestReparentKeepsCustody(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.linker.Link(ctx, "alice", f.node(2), f.node(0)))

	// Move 2 from under 0 to under 1. Token stays in custody.
	require.NoError(t, f.linker.Link(ctx, "alice", f.node(2), f.node(1)))

	owner, root, err := f.linker.FindRootOwner(ctx, f.node(2))
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
	assert.Equal(t, f.node(1), root)

	rng, err := f.ledger.GetToken(ctx, f.colID, 2)
	require.NoError(t, err)
	assert.Equal(t, f.linker.Account(), rng.Owner)

	err = f.linker.Link(ctx, "mallory", f.node(2), f.node(3))
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestRecover(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.linker.Link(ctx, "alice", f.node(1), f.node(0)))
	require.NoError(t, f.linker.Link(ctx, "alice", f.node(2), f.node(1)))

	// Token 1 still has a child, token 3 was never linked.
	assert.ErrorIs(t, f.linker.Recover(ctx, "alice", f.node(1)), ErrRecoverParentToken)
	assert.ErrorIs(t, f.linker.Recover(ctx, "alice", f.node(3)), ErrRecoverUnlinkedToken)
	assert.ErrorIs(t, f.linker.Recover(ctx, "mallory", f.node(2)), ErrPermissionDenied)

	require.NoError(t, f.linker.Recover(ctx, "alice", f.node(2)))
	rng, err := f.ledger.GetToken(ctx, f.colID, 2)
	require.NoError(t, err)
	assert.Equal(t, "alice", rng.Owner)

	// Now 1 is a leaf again and can be recovered too.
	require.NoError(t, f.linker.Recover(ctx, "alice", f.node(1)))
}

func TestRootTransferMovesAuthority(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.linker.Link(ctx, "alice", f.node(1), f.node(0)))

	// Selling the root token hands the whole subtree to bob.
	require.NoError(t, f.ledger.TransferNonFungible(ctx, "alice", "bob", f.colID, 0, 1))

	owner, _, err := f.linker.FindRootOwner(ctx, f.node(1))
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)

	assert.ErrorIs(t, f.linker.Recover(ctx, "alice", f.node(1)), ErrPermissionDenied)
	require.NoError(t, f.linker.Recover(ctx, "bob", f.node(1)))
}
