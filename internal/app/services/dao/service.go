// Package dao implements Moloch-style governance: share-weighted voting over
// a FIFO proposal queue, tribute escrow, a dilution guard at processing
// time, and proportional ragequit redemption. Each organization owns a
// treasury account and an escrow account derived at creation.
package dao

import (
	"context"
	"errors"
	"fmt"

	"github.com/R3E-Network/token_engine/internal/app/chain"
	"github.com/R3E-Network/token_engine/internal/app/domain/dao"
	"github.com/R3E-Network/token_engine/internal/app/domain/numeric"
	"github.com/R3E-Network/token_engine/internal/app/domain/token"
	"github.com/R3E-Network/token_engine/internal/app/events"
	"github.com/R3E-Network/token_engine/internal/app/storage"
	"github.com/R3E-Network/token_engine/pkg/logger"
)

var (
	ErrDepositLessThanReward   = errors.New("proposal deposit less than processing reward")
	ErrZeroPeriodDuration      = errors.New("period duration must be positive")
	ErrZeroVotingPeriod        = errors.New("voting period must be positive")
	ErrZeroGracePeriod         = errors.New("grace period must be positive")
	ErrZeroDilutionBound       = errors.New("dilution bound must be positive")
	ErrDAONotFound             = errors.New("dao not found")
	ErrProposalNotFound        = errors.New("proposal not found")
	ErrNotMember               = errors.New("account is not a member")
	ErrPermissionDenied        = errors.New("permission denied")
	ErrAlreadySponsored        = errors.New("proposal already sponsored")
	ErrProposalCancelled       = errors.New("proposal is cancelled")
	ErrPeriodExpired           = errors.New("voting period has expired")
	ErrProposalNotReady        = errors.New("grace period has not elapsed")
	ErrAlreadyProcessed        = errors.New("proposal already processed")
	ErrPrevProposalUnprocessed = errors.New("previous queued proposal not processed")
	ErrAlreadyVoted            = errors.New("member already voted on this proposal")
	ErrNotEnoughShares         = errors.New("not enough shares")
	ErrUnprocessedYesVote      = errors.New("highest yes-voted proposal not processed")
	ErrAmountLessThanOne       = errors.New("amount must be at least one")
)

// IdentifierSource derives the treasury and escrow account ids.
type IdentifierSource interface {
	GenerateScopedID(ctx context.Context, salt []byte, caller string) (string, error)
}

// TokenLedger is the slice of the token service the engine consumes for NFT
// tribute escrow.
type TokenLedger interface {
	GetToken(ctx context.Context, collectionID string, startIdx uint64) (token.Range, error)
	TransferNonFungible(ctx context.Context, who, receiver, collectionID string, startIdx, amount uint64) error
}

// Service is the governance engine.
type Service struct {
	ids      IdentifierSource
	tokens   TokenLedger
	currency chain.Currency
	clock    chain.BlockClock
	executor chain.ActionExecutor
	store    storage.DAOStore
	events   *events.Recorder
	log      *logger.Logger
}

// New constructs a dao service.
func New(ids IdentifierSource, tokens TokenLedger, currency chain.Currency, clock chain.BlockClock, executor chain.ActionExecutor, store storage.DAOStore, rec *events.Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("dao")
	}
	if executor == nil {
		executor = chain.NopExecutor{}
	}
	return &Service{
		ids:      ids,
		tokens:   tokens,
		currency: currency,
		clock:    clock,
		executor: executor,
		store:    store,
		events:   rec,
		log:      log,
	}
}

// CreateDAO registers a new organization and seeds the summoner as its first
// member. Returns the treasury account id.
func (s *Service) CreateDAO(ctx context.Context, summoner, name, metadata string, periodDuration, votingPeriod, gracePeriod, summonerShares, dilutionBound, proposalDeposit, processingReward uint64) (string, error) {
	if proposalDeposit < processingReward {
		return "", ErrDepositLessThanReward
	}
	if periodDuration == 0 {
		return "", ErrZeroPeriodDuration
	}
	if votingPeriod == 0 {
		return "", ErrZeroVotingPeriod
	}
	if gracePeriod == 0 {
		return "", ErrZeroGracePeriod
	}
	if dilutionBound == 0 {
		return "", ErrZeroDilutionBound
	}
	if summonerShares < 1 {
		return "", ErrAmountLessThanOne
	}

	account, err := s.ids.GenerateScopedID(ctx, []byte("dao"), summoner)
	if err != nil {
		return "", fmt.Errorf("derive dao account: %w", err)
	}
	escrow, err := s.ids.GenerateScopedID(ctx, []byte("dao/escrow"), account)
	if err != nil {
		return "", fmt.Errorf("derive escrow account: %w", err)
	}

	d := dao.DAO{
		AccountID:        account,
		EscrowID:         escrow,
		Name:             name,
		Summoner:         summoner,
		Metadata:         metadata,
		PeriodDuration:   periodDuration,
		VotingPeriod:     votingPeriod,
		GracePeriod:      gracePeriod,
		TotalShares:      summonerShares,
		SummoningTime:    s.clock.Current(),
		DilutionBound:    dilutionBound,
		ProposalDeposit:  proposalDeposit,
		ProcessingReward: processingReward,
	}
	if err := s.store.PutDAO(ctx, d); err != nil {
		return "", fmt.Errorf("store dao: %w", err)
	}
	if err := s.store.PutMember(ctx, account, summoner, dao.Member{Shares: summonerShares}); err != nil {
		return "", fmt.Errorf("store summoner membership: %w", err)
	}

	s.events.Emit("dao.created", map[string]any{
		"dao_account": account,
		"escrow_id":   escrow,
		"name":        name,
		"summoner":    summoner,
		"shares":      summonerShares,
	})
	s.log.WithField("dao_account", account).
		WithField("summoner", summoner).
		Info("dao created")
	return account, nil
}

// SubmitProposal escrows the tribute and records a draft proposal. Anyone
// may submit; sponsorship by a member puts it in the voting queue. Returns
// the proposal id.
func (s *Service) SubmitProposal(ctx context.Context, proposer, daoAccount, applicant string, sharesRequested, tributeOffered uint64, tributeNFT *dao.TributeNFT, details string, action []byte) (uint64, error) {
	d, err := s.getDAO(ctx, daoAccount)
	if err != nil {
		return 0, err
	}

	if tributeOffered > 0 {
		if err := s.currency.Transfer(ctx, proposer, d.EscrowID, tributeOffered); err != nil {
			return 0, fmt.Errorf("escrow tribute: %w", err)
		}
	}
	var escrowedNFT *dao.TributeNFT
	if tributeNFT != nil {
		rng, err := s.tokens.GetToken(ctx, tributeNFT.CollectionID, tributeNFT.TokenID)
		if err != nil {
			return 0, fmt.Errorf("resolve tribute token: %w", err)
		}
		// A transfer moves the top id of the range, so that is the one the
		// escrow holds and the one to move on return or award.
		escrowedNFT = &dao.TributeNFT{CollectionID: tributeNFT.CollectionID, TokenID: rng.EndIdx}
		if err := s.tokens.TransferNonFungible(ctx, proposer, d.EscrowID, tributeNFT.CollectionID, tributeNFT.TokenID, 1); err != nil {
			return 0, fmt.Errorf("escrow tribute token: %w", err)
		}
	}

	id, err := s.store.NextProposalID(ctx, daoAccount)
	if err != nil {
		return 0, err
	}
	p := dao.Proposal{
		ID:              id,
		Applicant:       applicant,
		Proposer:        proposer,
		SharesRequested: sharesRequested,
		TributeOffered:  tributeOffered,
		TributeNFT:      escrowedNFT,
		Details:         details,
		Action:          action,
	}
	if err := s.store.PutProposal(ctx, daoAccount, p); err != nil {
		return 0, fmt.Errorf("store proposal: %w", err)
	}

	s.events.Emit("proposal.submitted", map[string]any{
		"dao_account":      daoAccount,
		"proposal_id":      id,
		"proposer":         proposer,
		"applicant":        applicant,
		"shares_requested": sharesRequested,
		"tribute_offered":  tributeOffered,
	})
	return id, nil
}

// CancelProposal returns the tribute to the proposer and marks the proposal
// cancelled. Only unsponsored proposals can be cancelled, and only by their
// proposer.
func (s *Service) CancelProposal(ctx context.Context, who, daoAccount string, proposalID uint64) error {
	d, err := s.getDAO(ctx, daoAccount)
	if err != nil {
		return err
	}
	p, err := s.getProposal(ctx, daoAccount, proposalID)
	if err != nil {
		return err
	}
	if p.Proposer != who {
		return ErrPermissionDenied
	}
	if p.Sponsored {
		return ErrAlreadySponsored
	}
	if p.Cancelled {
		return ErrProposalCancelled
	}

	if err := s.moveTribute(ctx, d, p, p.Proposer); err != nil {
		return err
	}
	p.Cancelled = true
	if err := s.store.PutProposal(ctx, daoAccount, p); err != nil {
		return fmt.Errorf("store proposal: %w", err)
	}

	s.events.Emit("proposal.cancelled", map[string]any{
		"dao_account": daoAccount,
		"proposal_id": proposalID,
	})
	return nil
}

// SponsorProposal charges the sponsor the proposal deposit and appends the
// proposal to the voting queue. Starting periods are monotonic: a proposal
// never starts voting before one queued ahead of it. Returns the queue
// index.
func (s *Service) SponsorProposal(ctx context.Context, sponsor, daoAccount string, proposalID uint64) (uint64, error) {
	d, err := s.getDAO(ctx, daoAccount)
	if err != nil {
		return 0, err
	}
	if _, err := s.getMember(ctx, daoAccount, sponsor); err != nil {
		return 0, err
	}
	p, err := s.getProposal(ctx, daoAccount, proposalID)
	if err != nil {
		return 0, err
	}
	if p.Cancelled {
		return 0, ErrProposalCancelled
	}
	if p.Sponsored {
		return 0, ErrAlreadySponsored
	}

	if d.ProposalDeposit > 0 {
		if err := s.currency.Transfer(ctx, sponsor, d.EscrowID, d.ProposalDeposit); err != nil {
			return 0, fmt.Errorf("escrow deposit: %w", err)
		}
	}

	starting := s.currentPeriod(d)
	length, err := s.store.QueueLength(ctx, daoAccount)
	if err != nil {
		return 0, err
	}
	if length > 0 {
		lastID, err := s.store.QueueAt(ctx, daoAccount, length-1)
		if err != nil {
			return 0, err
		}
		last, err := s.getProposal(ctx, daoAccount, lastID)
		if err != nil {
			return 0, err
		}
		if last.StartingPeriod > starting {
			starting = last.StartingPeriod
		}
	}

	p.Sponsor = sponsor
	p.Sponsored = true
	p.StartingPeriod = starting
	if err := s.store.PutProposal(ctx, daoAccount, p); err != nil {
		return 0, fmt.Errorf("store proposal: %w", err)
	}
	index, err := s.store.AppendQueue(ctx, daoAccount, proposalID)
	if err != nil {
		return 0, fmt.Errorf("append queue: %w", err)
	}

	s.events.Emit("proposal.sponsored", map[string]any{
		"dao_account":     daoAccount,
		"proposal_id":     proposalID,
		"sponsor":         sponsor,
		"queue_index":     index,
		"starting_period": starting,
	})
	return index, nil
}

// VoteProposal casts the voter's full share weight on the proposal at the
// given queue index.
func (s *Service) VoteProposal(ctx context.Context, voter, daoAccount string, queueIndex uint64, approve bool) error {
	d, err := s.getDAO(ctx, daoAccount)
	if err != nil {
		return err
	}
	member, err := s.getMember(ctx, daoAccount, voter)
	if err != nil {
		return err
	}
	proposalID, err := s.store.QueueAt(ctx, daoAccount, queueIndex)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrProposalNotFound
	}
	if err != nil {
		return err
	}
	p, err := s.getProposal(ctx, daoAccount, proposalID)
	if err != nil {
		return err
	}

	if s.currentPeriod(d) >= p.StartingPeriod+d.VotingPeriod {
		return ErrPeriodExpired
	}
	voted, err := s.store.HasVoted(ctx, daoAccount, queueIndex, voter)
	if err != nil {
		return err
	}
	if voted {
		return ErrAlreadyVoted
	}

	if approve {
		yes, err := numeric.Add(p.YesVotes, member.Shares)
		if err != nil {
			return err
		}
		p.YesVotes = yes
		if p.MaxTotalSharesAtYesVote < d.TotalShares {
			p.MaxTotalSharesAtYesVote = d.TotalShares
		}
		if member.HighestIndexYesVote < queueIndex {
			member.HighestIndexYesVote = queueIndex
		}
		if err := s.store.PutMember(ctx, daoAccount, voter, member); err != nil {
			return fmt.Errorf("store membership: %w", err)
		}
	} else {
		no, err := numeric.Add(p.NoVotes, member.Shares)
		if err != nil {
			return err
		}
		p.NoVotes = no
	}

	if err := s.store.RecordVote(ctx, daoAccount, queueIndex, voter); err != nil {
		return fmt.Errorf("record vote: %w", err)
	}
	if err := s.store.PutProposal(ctx, daoAccount, p); err != nil {
		return fmt.Errorf("store proposal: %w", err)
	}

	s.events.Emit("proposal.voted", map[string]any{
		"dao_account": daoAccount,
		"proposal_id": proposalID,
		"queue_index": queueIndex,
		"voter":       voter,
		"approve":     approve,
		"shares":      member.Shares,
	})
	return nil
}

// ProcessProposal settles the proposal at the given queue index once its
// grace period has elapsed. Queue entries must be processed strictly in
// order.
func (s *Service) ProcessProposal(ctx context.Context, processor, daoAccount string, queueIndex uint64) error {
	d, err := s.getDAO(ctx, daoAccount)
	if err != nil {
		return err
	}
	proposalID, err := s.store.QueueAt(ctx, daoAccount, queueIndex)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrProposalNotFound
	}
	if err != nil {
		return err
	}
	p, err := s.getProposal(ctx, daoAccount, proposalID)
	if err != nil {
		return err
	}

	if s.currentPeriod(d) < p.StartingPeriod+d.VotingPeriod+d.GracePeriod {
		return ErrProposalNotReady
	}
	if p.Processed {
		return ErrAlreadyProcessed
	}
	if queueIndex > 0 {
		prevID, err := s.store.QueueAt(ctx, daoAccount, queueIndex-1)
		if err != nil {
			return err
		}
		prev, err := s.getProposal(ctx, daoAccount, prevID)
		if err != nil {
			return err
		}
		if !prev.Processed {
			return ErrPrevProposalUnprocessed
		}
	}

	didPass := p.YesVotes > p.NoVotes
	if didPass && p.MaxTotalSharesAtYesVote > 0 {
		// Dilution guard: auto-reject when total shares shrank too far
		// below the denominator the yes votes were cast against.
		bound, err := numeric.Mul(d.TotalShares, d.DilutionBound)
		if err != nil {
			return err
		}
		if bound <= p.MaxTotalSharesAtYesVote {
			didPass = false
		}
	}

	if didPass {
		applicant, err := s.store.GetMember(ctx, daoAccount, p.Applicant)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		shares, err := numeric.Add(applicant.Shares, p.SharesRequested)
		if err != nil {
			return err
		}
		total, err := numeric.Add(d.TotalShares, p.SharesRequested)
		if err != nil {
			return err
		}
		applicant.Shares = shares
		d.TotalShares = total
		if err := s.store.PutMember(ctx, daoAccount, p.Applicant, applicant); err != nil {
			return fmt.Errorf("store applicant membership: %w", err)
		}
		if err := s.store.PutDAO(ctx, d); err != nil {
			return fmt.Errorf("store dao: %w", err)
		}
		if err := s.moveTribute(ctx, d, p, d.AccountID); err != nil {
			return err
		}
		if len(p.Action) > 0 {
			// Action failures fail the dispatch, not the processing.
			p.Executed = s.executor.Dispatch(ctx, p.Action, d.AccountID) == nil
		}
	} else {
		if err := s.moveTribute(ctx, d, p, p.Proposer); err != nil {
			return err
		}
	}

	if d.ProcessingReward > 0 {
		if err := s.currency.Transfer(ctx, d.EscrowID, processor, d.ProcessingReward); err != nil {
			return fmt.Errorf("pay processing reward: %w", err)
		}
	}
	if refund := d.ProposalDeposit - d.ProcessingReward; refund > 0 {
		if err := s.currency.Transfer(ctx, d.EscrowID, p.Sponsor, refund); err != nil {
			return fmt.Errorf("refund deposit: %w", err)
		}
	}

	p.Processed = true
	p.DidPass = didPass
	if err := s.store.PutProposal(ctx, daoAccount, p); err != nil {
		return fmt.Errorf("store proposal: %w", err)
	}

	s.events.Emit("proposal.processed", map[string]any{
		"dao_account": daoAccount,
		"proposal_id": proposalID,
		"queue_index": queueIndex,
		"processor":   processor,
		"did_pass":    didPass,
		"executed":    p.Executed,
	})
	return nil
}

// Ragequit burns sharesToBurn of the member's shares for a proportional
// slice of the treasury.
func (s *Service) Ragequit(ctx context.Context, who, daoAccount string, sharesToBurn uint64) error {
	d, err := s.getDAO(ctx, daoAccount)
	if err != nil {
		return err
	}
	if sharesToBurn < 1 {
		return ErrAmountLessThanOne
	}
	member, err := s.getMember(ctx, daoAccount, who)
	if err != nil {
		return err
	}
	if sharesToBurn > member.Shares {
		return ErrNotEnoughShares
	}

	// A yes vote blocks exit until the voted proposal is settled, so the
	// payout cannot be drained ahead of a grant the member supported.
	length, err := s.store.QueueLength(ctx, daoAccount)
	if err != nil {
		return err
	}
	if member.HighestIndexYesVote < length {
		proposalID, err := s.store.QueueAt(ctx, daoAccount, member.HighestIndexYesVote)
		if err != nil {
			return err
		}
		p, err := s.getProposal(ctx, daoAccount, proposalID)
		if err != nil {
			return err
		}
		if !p.Processed {
			return ErrUnprocessedYesVote
		}
	}

	balance, err := s.currency.Balance(ctx, d.AccountID)
	if err != nil {
		return err
	}
	payout, err := numeric.MulDiv(balance, sharesToBurn, d.TotalShares)
	if err != nil {
		return err
	}

	member.Shares -= sharesToBurn
	d.TotalShares -= sharesToBurn
	if err := s.store.PutMember(ctx, daoAccount, who, member); err != nil {
		return fmt.Errorf("store membership: %w", err)
	}
	if err := s.store.PutDAO(ctx, d); err != nil {
		return fmt.Errorf("store dao: %w", err)
	}
	if payout > 0 {
		if err := s.currency.Transfer(ctx, d.AccountID, who, payout); err != nil {
			return fmt.Errorf("pay redemption: %w", err)
		}
	}

	s.events.Emit("member.ragequit", map[string]any{
		"dao_account":  daoAccount,
		"member":       who,
		"shares_burnt": sharesToBurn,
		"payout":       payout,
	})
	return nil
}

// GetDAO returns an organization by treasury account.
func (s *Service) GetDAO(ctx context.Context, daoAccount string) (dao.DAO, error) {
	return s.getDAO(ctx, daoAccount)
}

// ListDAOs returns all organizations.
func (s *Service) ListDAOs(ctx context.Context) ([]dao.DAO, error) {
	return s.store.ListDAOs(ctx)
}

// GetProposal returns a proposal by id.
func (s *Service) GetProposal(ctx context.Context, daoAccount string, proposalID uint64) (dao.Proposal, error) {
	if _, err := s.getDAO(ctx, daoAccount); err != nil {
		return dao.Proposal{}, err
	}
	return s.getProposal(ctx, daoAccount, proposalID)
}

// GetMember returns a membership record.
func (s *Service) GetMember(ctx context.Context, daoAccount, account string) (dao.Member, error) {
	if _, err := s.getDAO(ctx, daoAccount); err != nil {
		return dao.Member{}, err
	}
	return s.getMember(ctx, daoAccount, account)
}

// CurrentPeriod reports the voting period the DAO is currently in.
func (s *Service) CurrentPeriod(ctx context.Context, daoAccount string) (uint64, error) {
	d, err := s.getDAO(ctx, daoAccount)
	if err != nil {
		return 0, err
	}
	return s.currentPeriod(d), nil
}

func (s *Service) currentPeriod(d dao.DAO) uint64 {
	return (s.clock.Current() - d.SummoningTime) / d.PeriodDuration
}

func (s *Service) getDAO(ctx context.Context, daoAccount string) (dao.DAO, error) {
	d, err := s.store.GetDAO(ctx, daoAccount)
	if errors.Is(err, storage.ErrNotFound) {
		return dao.DAO{}, ErrDAONotFound
	}
	return d, err
}

func (s *Service) getProposal(ctx context.Context, daoAccount string, id uint64) (dao.Proposal, error) {
	p, err := s.store.GetProposal(ctx, daoAccount, id)
	if errors.Is(err, storage.ErrNotFound) {
		return dao.Proposal{}, ErrProposalNotFound
	}
	return p, err
}

func (s *Service) getMember(ctx context.Context, daoAccount, account string) (dao.Member, error) {
	member, err := s.store.GetMember(ctx, daoAccount, account)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && member.Shares == 0) {
		return dao.Member{}, ErrNotMember
	}
	return member, err
}

// moveTribute moves the proposal's escrowed tribute to the given account.
func (s *Service) moveTribute(ctx context.Context, d dao.DAO, p dao.Proposal, to string) error {
	if p.TributeOffered > 0 {
		if err := s.currency.Transfer(ctx, d.EscrowID, to, p.TributeOffered); err != nil {
			return fmt.Errorf("move tribute: %w", err)
		}
	}
	if p.TributeNFT != nil {
		if err := s.tokens.TransferNonFungible(ctx, d.EscrowID, to, p.TributeNFT.CollectionID, p.TributeNFT.TokenID, 1); err != nil {
			return fmt.Errorf("move tribute token: %w", err)
		}
	}
	return nil
}
