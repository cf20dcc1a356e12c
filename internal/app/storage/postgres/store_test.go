package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/token_engine/internal/app/domain/collection"
	"github.com/R3E-Network/token_engine/internal/app/domain/dao"
	"github.com/R3E-Network/token_engine/internal/app/domain/exchange"
	"github.com/R3E-Network/token_engine/internal/app/domain/token"
	"github.com/R3E-Network/token_engine/internal/app/storage"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set, skipping postgres integration test")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := New(db)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestNonceRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetNonce(ctx, 42))
	value, err := store.GetNonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), value)
}

func TestCollectionLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	col := collection.Collection{ID: "pg-col-1", Owner: "alice", URI: "ipfs://x", TokenType: collection.TypeNonFungible}
	require.NoError(t, store.CreateCollection(ctx, col))
	t.Cleanup(func() { _ = store.DeleteCollection(ctx, col.ID) })

	got, err := store.GetCollection(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, col, got)

	col.TotalSupply = 10
	require.NoError(t, store.UpdateCollection(ctx, col))
	got, err = store.GetCollection(ctx, col.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.TotalSupply)

	_, err = store.GetCollection(ctx, "pg-col-missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.UpdateCollection(ctx, collection.Collection{ID: "pg-col-missing"}), storage.ErrNotFound)
}

func TestRangesAndBalances(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	const colID = "pg-col-ranges"
	t.Cleanup(func() { _ = store.DeleteCollectionRanges(ctx, colID) })

	rng := token.Range{CollectionID: colID, StartIdx: 0, EndIdx: 9, Owner: "alice"}
	require.NoError(t, store.PutRange(ctx, rng))

	got, err := store.GetRange(ctx, colID, 0)
	require.NoError(t, err)
	assert.Equal(t, rng, got)

	require.NoError(t, store.SetBalance(ctx, colID, "alice", 10))
	balance, err := store.GetBalance(ctx, colID, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), balance)

	// Missing balances read as zero rather than not-found.
	balance, err = store.GetBalance(ctx, colID, "bob")
	require.NoError(t, err)
	assert.Zero(t, balance)

	_, minted, err := store.GetLastTokenID(ctx, colID)
	require.NoError(t, err)
	assert.False(t, minted)

	require.NoError(t, store.SetLastTokenID(ctx, colID, 9))
	lastID, minted, err := store.GetLastTokenID(ctx, colID)
	require.NoError(t, err)
	assert.True(t, minted)
	assert.Equal(t, uint64(9), lastID)

	require.NoError(t, store.DeleteRange(ctx, colID, 0))
	assert.ErrorIs(t, store.DeleteRange(ctx, colID, 0), storage.ErrNotFound)
}

func TestOrderSequence(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	first, err := store.NextOrderID(ctx)
	require.NoError(t, err)
	second, err := store.NextOrderID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first+1, second)

	ord := exchange.Order{ID: second, CollectionID: "pg-col-orders", StartIdx: 3, Seller: "alice", Price: 5, Amount: 4}
	require.NoError(t, store.PutOrder(ctx, ord))
	t.Cleanup(func() { _ = store.DeleteOrder(ctx, ord.ID) })

	got, err := store.GetOrder(ctx, ord.ID)
	require.NoError(t, err)
	assert.Equal(t, ord, got)
}

func TestProposalTributeNFT(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	const daoAccount = "pg-dao-1"

	require.NoError(t, store.PutDAO(ctx, dao.DAO{
		AccountID: daoAccount, EscrowID: "pg-dao-1-escrow", Summoner: "alice",
		PeriodDuration: 10, VotingPeriod: 2, GracePeriod: 1, TotalShares: 100, DilutionBound: 3,
	}))

	id, err := store.NextProposalID(ctx, daoAccount)
	require.NoError(t, err)

	p := dao.Proposal{
		ID:        id,
		Applicant: "bob",
		Proposer:  "bob",
		TributeNFT: &dao.TributeNFT{
			CollectionID: "pg-col-tribute",
			TokenID:      7,
		},
		Action: []byte(`{"kind":"noop"}`),
	}
	require.NoError(t, store.PutProposal(ctx, daoAccount, p))

	got, err := store.GetProposal(ctx, daoAccount, id)
	require.NoError(t, err)
	require.NotNil(t, got.TributeNFT)
	assert.Equal(t, *p.TributeNFT, *got.TributeNFT)
	assert.Equal(t, p.Action, got.Action)

	index, err := store.AppendQueue(ctx, daoAccount, id)
	require.NoError(t, err)
	queued, err := store.QueueAt(ctx, daoAccount, index)
	require.NoError(t, err)
	assert.Equal(t, id, queued)

	voted, err := store.HasVoted(ctx, daoAccount, index, "alice")
	require.NoError(t, err)
	assert.False(t, voted)
	require.NoError(t, store.RecordVote(ctx, daoAccount, index, "alice"))
	voted, err = store.HasVoted(ctx, daoAccount, index, "alice")
	require.NoError(t, err)
	assert.True(t, voted)
}
