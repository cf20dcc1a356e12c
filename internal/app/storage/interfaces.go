// Package storage declares the persistence interfaces the engine services
// depend on. Implementations live in the memory and postgres subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/R3E-Network/token_engine/internal/app/domain/collection"
	"github.com/R3E-Network/token_engine/internal/app/domain/dao"
	"github.com/R3E-Network/token_engine/internal/app/domain/exchange"
	"github.com/R3E-Network/token_engine/internal/app/domain/graph"
	"github.com/R3E-Network/token_engine/internal/app/domain/subtoken"
	"github.com/R3E-Network/token_engine/internal/app/domain/token"
)

// ErrNotFound reports a missing record. Services translate it into their
// domain-specific not-found errors.
var ErrNotFound = errors.New("record not found")

// NonceStore persists the process-wide identifier nonce.
type NonceStore interface {
	GetNonce(ctx context.Context) (uint64, error)
	SetNonce(ctx context.Context, value uint64) error
}

// CollectionStore persists collection registry entries.
type CollectionStore interface {
	CreateCollection(ctx context.Context, col collection.Collection) error
	UpdateCollection(ctx context.Context, col collection.Collection) error
	GetCollection(ctx context.Context, id string) (collection.Collection, error)
	DeleteCollection(ctx context.Context, id string) error
	ListCollections(ctx context.Context) ([]collection.Collection, error)
}

// TokenStore persists token ranges and the derived per-account balance,
// burned-counter, and last-id bookkeeping kept in lockstep with them.
type TokenStore interface {
	PutRange(ctx context.Context, rng token.Range) error
	GetRange(ctx context.Context, collectionID string, startIdx uint64) (token.Range, error)
	DeleteRange(ctx context.Context, collectionID string, startIdx uint64) error
	ListRanges(ctx context.Context, collectionID string) ([]token.Range, error)
	DeleteCollectionRanges(ctx context.Context, collectionID string) error

	GetBalance(ctx context.Context, collectionID, account string) (uint64, error)
	SetBalance(ctx context.Context, collectionID, account string, amount uint64) error

	GetBurned(ctx context.Context, collectionID string) (uint64, error)
	SetBurned(ctx context.Context, collectionID string, amount uint64) error

	// GetLastTokenID reports the highest minted id and whether the
	// collection has minted at all; the first mint starts at id zero.
	GetLastTokenID(ctx context.Context, collectionID string) (uint64, bool, error)
	SetLastTokenID(ctx context.Context, collectionID string, id uint64) error
}

// GraphStore persists parent/child token links with a reverse index for
// child lookups.
type GraphStore interface {
	PutLink(ctx context.Context, link graph.Link) error
	GetLink(ctx context.Context, child graph.Node) (graph.Link, error)
	DeleteLink(ctx context.Context, child graph.Node) error
	HasChildren(ctx context.Context, parent graph.Node) (bool, error)
}

// SubTokenStore persists the parent-token locks backing derived collections.
type SubTokenStore interface {
	PutLock(ctx context.Context, lock subtoken.Lock) error
	GetLock(ctx context.Context, derivedCollectionID string) (subtoken.Lock, error)
	DeleteLock(ctx context.Context, derivedCollectionID string) error
}

// ExchangeStore persists sell orders and bonding pools.
type ExchangeStore interface {
	NextOrderID(ctx context.Context) (uint64, error)
	PutOrder(ctx context.Context, ord exchange.Order) error
	GetOrder(ctx context.Context, id uint64) (exchange.Order, error)
	DeleteOrder(ctx context.Context, id uint64) error
	ListOrders(ctx context.Context) ([]exchange.Order, error)

	PutPool(ctx context.Context, pool exchange.Pool) error
	GetPool(ctx context.Context, collectionID, seller string) (exchange.Pool, error)
	DeletePool(ctx context.Context, collectionID, seller string) error
	ListPools(ctx context.Context) ([]exchange.Pool, error)
}

// DAOStore persists DAOs, memberships, proposals, the sponsorship queue, and
// the per-queue-slot vote registry.
type DAOStore interface {
	PutDAO(ctx context.Context, d dao.DAO) error
	GetDAO(ctx context.Context, account string) (dao.DAO, error)
	ListDAOs(ctx context.Context) ([]dao.DAO, error)

	PutMember(ctx context.Context, daoAccount, member string, m dao.Member) error
	GetMember(ctx context.Context, daoAccount, member string) (dao.Member, error)

	NextProposalID(ctx context.Context, daoAccount string) (uint64, error)
	PutProposal(ctx context.Context, daoAccount string, p dao.Proposal) error
	GetProposal(ctx context.Context, daoAccount string, id uint64) (dao.Proposal, error)

	// AppendQueue adds a sponsored proposal to the processing queue and
	// returns its queue index.
	AppendQueue(ctx context.Context, daoAccount string, proposalID uint64) (uint64, error)
	QueueAt(ctx context.Context, daoAccount string, index uint64) (uint64, error)
	QueueLength(ctx context.Context, daoAccount string) (uint64, error)

	HasVoted(ctx context.Context, daoAccount string, index uint64, member string) (bool, error)
	RecordVote(ctx context.Context, daoAccount string, index uint64, member string) error
}
