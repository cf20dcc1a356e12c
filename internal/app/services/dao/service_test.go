package dao

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/token_engine/internal/app/chain"
	"github.com/R3E-Network/token_engine/internal/app/domain/collection"
	"github.com/R3E-Network/token_engine/internal/app/domain/dao"
	"github.com/R3E-Network/token_engine/internal/app/services/identifier"
	colsvc "github.com/R3E-Network/token_engine/internal/app/services/collection"
	toksvc "github.com/R3E-Network/token_engine/internal/app/services/token"
	"github.com/R3E-Network/token_engine/internal/app/storage/memory"
)

type fixture struct {
	engine   *Service
	ledger   *toksvc.Service
	registry *colsvc.Service
	bank     *chain.Bank
	clock    *chain.ManualClock
}

func newFixture(t *testing.T, executor chain.ActionExecutor) *fixture {
	t.Helper()
	store := memory.New()
	ids := identifier.New(store, chain.FixedRandomness([]byte("seed")), chain.SHA256{}, nil)
	registry := colsvc.New(store, ids, nil, nil)
	ledger := toksvc.New(registry, store, nil, nil)
	bank := chain.NewBank()
	clock := chain.NewManualClock(0)
	engine := New(ids, ledger, bank, clock, executor, store, nil, nil)

	return &fixture{engine: engine, ledger: ledger, registry: registry, bank: bank, clock: clock}
}

// summon creates a DAO with period duration 10, voting 2, grace 1,
// summoner shares 100, dilution bound 3, deposit 10, reward 2.
func (f *fixture) summon(t *testing.T) string {
	t.Helper()
	account, err := f.engine.CreateDAO(context.Background(), "alice", "guild", "", 10, 2, 1, 100, 3, 10, 2)
	require.NoError(t, err)
	return account
}

func TestCreateDAO(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	account := f.summon(t)

	d, err := f.engine.GetDAO(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, "alice", d.Summoner)
	assert.Equal(t, uint64(100), d.TotalShares)
	assert.NotEmpty(t, d.EscrowID)
	assert.NotEqual(t, d.AccountID, d.EscrowID)

	member, err := f.engine.GetMember(ctx, account, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), member.Shares)
}

func TestCreateDAOValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.engine.CreateDAO(ctx, "alice", "g", "", 10, 2, 1, 100, 3, 1, 2)
	assert.ErrorIs(t, err, ErrDepositLessThanReward)
	_, err = f.engine.CreateDAO(ctx, "alice", "g", "", 0, 2, 1, 100, 3, 10, 2)
	assert.ErrorIs(t, err, ErrZeroPeriodDuration)
	_, err = f.engine.CreateDAO(ctx, "alice", "g", "", 10, 0, 1, 100, 3, 10, 2)
	assert.ErrorIs(t, err, ErrZeroVotingPeriod)
	_, err = f.engine.CreateDAO(ctx, "alice", "g", "", 10, 2, 0, 100, 3, 10, 2)
	assert.ErrorIs(t, err, ErrZeroGracePeriod)
	_, err = f.engine.CreateDAO(ctx, "alice", "g", "", 10, 2, 1, 100, 0, 10, 2)
	assert.ErrorIs(t, err, ErrZeroDilutionBound)
	_, err = f.engine.CreateDAO(ctx, "alice", "g", "", 10, 2, 1, 0, 3, 10, 2)
	assert.ErrorIs(t, err, ErrAmountLessThanOne)
}

func TestSubmitAndCancelProposal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	account := f.summon(t)
	require.NoError(t, f.bank.Deposit("bob", 50))

	id, err := f.engine.SubmitProposal(ctx, "bob", account, "bob", 10, 30, nil, "fund bob", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)

	d, err := f.engine.GetDAO(ctx, account)
	require.NoError(t, err)
	escrowBal, err := f.bank.Balance(ctx, d.EscrowID)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), escrowBal)

	assert.ErrorIs(t, f.engine.CancelProposal(ctx, "mallory", account, id), ErrPermissionDenied)
	require.NoError(t, f.engine.CancelProposal(ctx, "bob", account, id))
	assert.ErrorIs(t, f.engine.CancelProposal(ctx, "bob", account, id), ErrProposalCancelled)

	bobBal, err := f.bank.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), bobBal)
}

func TestSubmitProposalWithNFTTribute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	account := f.summon(t)

	col, err := f.registry.Create(ctx, "bob", "", collection.TypeNonFungible)
	require.NoError(t, err)
	_, _, err = f.ledger.MintNonFungible(ctx, "bob", "bob", col.ID, 3, "u")
	require.NoError(t, err)

	id, err := f.engine.SubmitProposal(ctx, "bob", account, "bob", 10, 0,
		&dao.TributeNFT{CollectionID: col.ID, TokenID: 0}, "", nil)
	require.NoError(t, err)

	p, err := f.engine.GetProposal(ctx, account, id)
	require.NoError(t, err)
	require.NotNil(t, p.TributeNFT)
	// The ledger moves the top id of the range [0, 2].
	assert.Equal(t, uint64(2), p.TributeNFT.TokenID)

	d, err := f.engine.GetDAO(ctx, account)
	require.NoError(t, err)
	rng, err := f.ledger.GetToken(ctx, col.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, d.EscrowID, rng.Owner)

	// Cancelling hands the escrowed token back.
	require.NoError(t, f.engine.CancelProposal(ctx, "bob", account, id))
	rng, err = f.ledger.GetToken(ctx, col.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "bob", rng.Owner)
}

func TestSponsorProposal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	account := f.summon(t)
	require.NoError(t, f.bank.Deposit("alice", 100))

	id, err := f.engine.SubmitProposal(ctx, "bob", account, "bob", 10, 0, nil, "", nil)
	require.NoError(t, err)

	_, err = f.engine.SponsorProposal(ctx, "mallory", account, id)
	assert.ErrorIs(t, err, ErrNotMember)

	index, err := f.engine.SponsorProposal(ctx, "alice", account, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), index)

	_, err = f.engine.SponsorProposal(ctx, "alice", account, id)
	assert.ErrorIs(t, err, ErrAlreadySponsored)

	d, err := f.engine.GetDAO(ctx, account)
	require.NoError(t, err)
	escrowBal, err := f.bank.Balance(ctx, d.EscrowID)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), escrowBal, "deposit escrowed")
}

func TestSponsorQueueMonotonicStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	account := f.summon(t)
	require.NoError(t, f.bank.Deposit("alice", 100))

	first, err := f.engine.SubmitProposal(ctx, "bob", account, "bob", 1, 0, nil, "", nil)
	require.NoError(t, err)
	second, err := f.engine.SubmitProposal(ctx, "bob", account, "bob", 1, 0, nil, "", nil)
	require.NoError(t, err)

	// Both sponsored in period 5: the second starts no earlier than the
	// first, whatever order they were submitted in.
	f.clock.Advance(50)
	_, err = f.engine.SponsorProposal(ctx, "alice", account, first)
	require.NoError(t, err)
	_, err = f.engine.SponsorProposal(ctx, "alice", account, second)
	require.NoError(t, err)

	p1, err := f.engine.GetProposal(ctx, account, first)
	require.NoError(t, err)
	p2, err := f.engine.GetProposal(ctx, account, second)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), p1.StartingPeriod)
	assert.GreaterOrEqual(t, p2.StartingPeriod, p1.StartingPeriod)
}

// sponsoredProposal submits and sponsors a proposal for applicant with the
// given tribute, returning its queue index.
func (f *fixture) sponsoredProposal(t *testing.T, account, proposer, applicant string, sharesRequested, tribute uint64, action []byte) uint64 {
	t.Helper()
	ctx := context.Background()
	id, err := f.engine.SubmitProposal(ctx, proposer, account, applicant, sharesRequested, tribute, nil, "", action)
	require.NoError(t, err)
	index, err := f.engine.SponsorProposal(ctx, "alice", account, id)
	require.NoError(t, err)
	return index
}

func TestVoteProposal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	account := f.summon(t)
	require.NoError(t, f.bank.Deposit("alice", 100))
	index := f.sponsoredProposal(t, account, "bob", "bob", 10, 0, nil)

	assert.ErrorIs(t, f.engine.VoteProposal(ctx, "mallory", account, index, true), ErrNotMember)
	assert.ErrorIs(t, f.engine.VoteProposal(ctx, "alice", account, 7, true), ErrProposalNotFound)

	require.NoError(t, f.engine.VoteProposal(ctx, "alice", account, index, true))
	assert.ErrorIs(t, f.engine.VoteProposal(ctx, "alice", account, index, true), ErrAlreadyVoted)

	p, err := f.engine.GetProposal(ctx, account, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), p.YesVotes)
	assert.Equal(t, uint64(100), p.MaxTotalSharesAtYesVote)

	// Voting window is starting_period + voting_period.
	f.clock.Advance(100)
	index2 := f.sponsoredProposal(t, account, "bob", "bob", 1, 0, nil)
	f.clock.Advance(20)
	assert.ErrorIs(t, f.engine.VoteProposal(ctx, "alice", account, index2, false), ErrPeriodExpired)
}

func TestProcessProposalPass(t *testing.T) {
	ctx := context.Background()
	var dispatched []byte
	var dispatchedAs string
	executor := chain.ExecutorFunc(func(_ context.Context, action []byte, asAccount string) error {
		dispatched = action
		dispatchedAs = asAccount
		return nil
	})
	f := newFixture(t, executor)
	account := f.summon(t)
	require.NoError(t, f.bank.Deposit("alice", 100))
	require.NoError(t, f.bank.Deposit("bob", 40))

	id, err := f.engine.SubmitProposal(ctx, "bob", account, "bob", 10, 40, nil, "", []byte("payload"))
	require.NoError(t, err)
	index, err := f.engine.SponsorProposal(ctx, "alice", account, id)
	require.NoError(t, err)
	require.NoError(t, f.engine.VoteProposal(ctx, "alice", account, index, true))

	assert.ErrorIs(t, f.engine.ProcessProposal(ctx, "carol", account, index), ErrProposalNotReady)
	f.clock.Advance(30) // past voting (2) + grace (1) periods of duration 10
	require.NoError(t, f.engine.ProcessProposal(ctx, "carol", account, index))
	assert.ErrorIs(t, f.engine.ProcessProposal(ctx, "carol", account, index), ErrAlreadyProcessed)

	p, err := f.engine.GetProposal(ctx, account, id)
	require.NoError(t, err)
	assert.True(t, p.DidPass)
	assert.True(t, p.Executed)
	assert.Equal(t, []byte("payload"), dispatched)
	assert.Equal(t, account, dispatchedAs)

	member, err := f.engine.GetMember(ctx, account, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), member.Shares)

	d, err := f.engine.GetDAO(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, uint64(110), d.TotalShares)

	// Tribute landed in the treasury, reward with carol, deposit remainder
	// back with alice.
	treasury, err := f.bank.Balance(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), treasury)
	carol, err := f.bank.Balance(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), carol)
	alice, err := f.bank.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(98), alice)
}

func TestProcessProposalFailReturnsTribute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	account := f.summon(t)
	require.NoError(t, f.bank.Deposit("alice", 100))
	require.NoError(t, f.bank.Deposit("bob", 40))

	id, err := f.engine.SubmitProposal(ctx, "bob", account, "bob", 10, 40, nil, "", nil)
	require.NoError(t, err)
	index, err := f.engine.SponsorProposal(ctx, "alice", account, id)
	require.NoError(t, err)
	require.NoError(t, f.engine.VoteProposal(ctx, "alice", account, index, false))

	f.clock.Advance(30)
	require.NoError(t, f.engine.ProcessProposal(ctx, "carol", account, index))

	p, err := f.engine.GetProposal(ctx, account, id)
	require.NoError(t, err)
	assert.True(t, p.Processed)
	assert.False(t, p.DidPass)

	bob, err := f.bank.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint64(40), bob)

	_, err = f.engine.GetMember(ctx, account, "bob")
	assert.ErrorIs(t, err, ErrNotMember)
}

func TestProcessProposalStrictOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	account := f.summon(t)
	require.NoError(t, f.bank.Deposit("alice", 100))

	f.sponsoredProposal(t, account, "bob", "bob", 1, 0, nil)
	second := f.sponsoredProposal(t, account, "bob", "bob", 1, 0, nil)

	f.clock.Advance(100)
	assert.ErrorIs(t, f.engine.ProcessProposal(ctx, "carol", account, second), ErrPrevProposalUnprocessed)
	require.NoError(t, f.engine.ProcessProposal(ctx, "carol", account, 0))
	require.NoError(t, f.engine.ProcessProposal(ctx, "carol", account, second))
}

func TestDilutionGuard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	// Dilution bound 2: a pass needs total_shares*2 > max shares seen at
	// yes time.
	account, err := f.engine.CreateDAO(ctx, "alice", "guild", "", 10, 2, 1, 1000, 2, 0, 0)
	require.NoError(t, err)

	// First grant carol 10 shares so she can carry the second vote.
	grant, err := f.engine.SubmitProposal(ctx, "carol", account, "carol", 10, 0, nil, "", nil)
	require.NoError(t, err)
	grantIdx, err := f.engine.SponsorProposal(ctx, "alice", account, grant)
	require.NoError(t, err)
	require.NoError(t, f.engine.VoteProposal(ctx, "alice", account, grantIdx, true))
	f.clock.Advance(30)
	require.NoError(t, f.engine.ProcessProposal(ctx, "dave", account, grantIdx))

	// Carol votes yes against 1010 total shares, then alice mass-exits.
	id, err := f.engine.SubmitProposal(ctx, "bob", account, "bob", 5, 0, nil, "", nil)
	require.NoError(t, err)
	index, err := f.engine.SponsorProposal(ctx, "alice", account, id)
	require.NoError(t, err)
	require.NoError(t, f.engine.VoteProposal(ctx, "carol", account, index, true))

	// Total drops to 410: 410*2 <= 1010 trips the guard at processing.
	require.NoError(t, f.engine.Ragequit(ctx, "alice", account, 600))
	f.clock.Advance(30)
	require.NoError(t, f.engine.ProcessProposal(ctx, "dave", account, index))

	p, err := f.engine.GetProposal(ctx, account, id)
	require.NoError(t, err)
	assert.True(t, p.Processed)
	assert.False(t, p.DidPass, "yes majority auto-rejected by dilution guard")
}

func TestRagequit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	account := f.summon(t)

	// Treasury of 1000 against 100 total shares.
	require.NoError(t, f.bank.Deposit(account, 1000))

	assert.ErrorIs(t, f.engine.Ragequit(ctx, "alice", account, 0), ErrAmountLessThanOne)
	assert.ErrorIs(t, f.engine.Ragequit(ctx, "alice", account, 101), ErrNotEnoughShares)
	assert.ErrorIs(t, f.engine.Ragequit(ctx, "mallory", account, 1), ErrNotMember)

	// floor(1000 * 33 / 100) = 330.
	require.NoError(t, f.engine.Ragequit(ctx, "alice", account, 33))

	bal, err := f.bank.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(330), bal)

	d, err := f.engine.GetDAO(ctx, account)
	require.NoError(t, err)
	assert.Equal(t, uint64(67), d.TotalShares)

	member, err := f.engine.GetMember(ctx, account, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(67), member.Shares)
}

func TestRagequitBlockedByPendingYesVote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	account := f.summon(t)
	require.NoError(t, f.bank.Deposit("alice", 100))

	index := f.sponsoredProposal(t, account, "bob", "bob", 1, 0, nil)
	require.NoError(t, f.engine.VoteProposal(ctx, "alice", account, index, true))

	assert.ErrorIs(t, f.engine.Ragequit(ctx, "alice", account, 10), ErrUnprocessedYesVote)

	f.clock.Advance(100)
	require.NoError(t, f.engine.ProcessProposal(ctx, "carol", account, index))
	require.NoError(t, f.engine.Ragequit(ctx, "alice", account, 10))
}
