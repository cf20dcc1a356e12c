package dao

// DAO holds the governance parameters and share accounting of one
// organization. AccountID doubles as the treasury account; EscrowID holds
// tribute and deposits for in-flight proposals.
type DAO struct {
	AccountID        string
	EscrowID         string
	Name             string
	Summoner         string
	Metadata         string
	PeriodDuration   uint64
	VotingPeriod     uint64
	GracePeriod      uint64
	TotalShares      uint64
	SummoningTime    uint64
	DilutionBound    uint64
	ProposalDeposit  uint64
	ProcessingReward uint64
}

// Member is one account's membership in a DAO. HighestIndexYesVote is the
// largest queue index the member has voted yes on; ragequit is blocked until
// that proposal is processed.
type Member struct {
	Shares              uint64
	HighestIndexYesVote uint64
}

// TributeNFT names the non-fungible token pledged with a proposal. TokenID is
// the id held in escrow, recorded at submit time so the return and award
// paths move the same token.
type TributeNFT struct {
	CollectionID string
	TokenID      uint64
}

// Proposal is one governance proposal. Sponsor is empty until a member
// sponsors it into the queue. MaxTotalSharesAtYesVote captures the largest
// total-share count observed while collecting yes votes and feeds the
// dilution check at processing time.
type Proposal struct {
	ID                      uint64
	Applicant               string
	Proposer                string
	Sponsor                 string
	SharesRequested         uint64
	TributeOffered          uint64
	TributeNFT              *TributeNFT
	StartingPeriod          uint64
	YesVotes                uint64
	NoVotes                 uint64
	Details                 string
	Action                  []byte
	Sponsored               bool
	Processed               bool
	DidPass                 bool
	Cancelled               bool
	Executed                bool
	MaxTotalSharesAtYesVote uint64
}
