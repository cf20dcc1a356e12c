package memory

import (
	"context"
	"math"
	"sync"

	"github.com/R3E-Network/token_engine/internal/app/domain/collection"
	"github.com/R3E-Network/token_engine/internal/app/domain/dao"
	"github.com/R3E-Network/token_engine/internal/app/domain/exchange"
	"github.com/R3E-Network/token_engine/internal/app/domain/graph"
	"github.com/R3E-Network/token_engine/internal/app/domain/numeric"
	"github.com/R3E-Network/token_engine/internal/app/domain/subtoken"
	"github.com/R3E-Network/token_engine/internal/app/domain/token"
	"github.com/R3E-Network/token_engine/internal/app/storage"
)

type rangeKey struct {
	collectionID string
	startIdx     uint64
}

type balanceKey struct {
	collectionID string
	account      string
}

type poolKey struct {
	collectionID string
	seller       string
}

type memberKey struct {
	daoAccount string
	member     string
}

type proposalKey struct {
	daoAccount string
	id         uint64
}

type voteKey struct {
	daoAccount string
	index      uint64
	member     string
}

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and single-node
// deployments.
type Store struct {
	mu sync.RWMutex

	nonce uint64

	collections map[string]collection.Collection

	ranges   map[rangeKey]token.Range
	balances map[balanceKey]uint64
	burned   map[string]uint64
	lastIDs  map[string]uint64

	links    map[graph.Node]graph.Link
	children map[graph.Node]map[graph.Node]struct{}

	locks map[string]subtoken.Lock

	nextOrderID uint64
	orders      map[uint64]exchange.Order
	pools       map[poolKey]exchange.Pool

	daos        map[string]dao.DAO
	members     map[memberKey]dao.Member
	proposalIDs map[string]uint64
	proposals   map[proposalKey]dao.Proposal
	queues      map[string][]uint64
	votes       map[voteKey]struct{}
}

var _ storage.NonceStore = (*Store)(nil)
var _ storage.CollectionStore = (*Store)(nil)
var _ storage.TokenStore = (*Store)(nil)
var _ storage.GraphStore = (*Store)(nil)
var _ storage.SubTokenStore = (*Store)(nil)
var _ storage.ExchangeStore = (*Store)(nil)
var _ storage.DAOStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		collections: make(map[string]collection.Collection),
		ranges:      make(map[rangeKey]token.Range),
		balances:    make(map[balanceKey]uint64),
		burned:      make(map[string]uint64),
		lastIDs:     make(map[string]uint64),
		links:       make(map[graph.Node]graph.Link),
		children:    make(map[graph.Node]map[graph.Node]struct{}),
		locks:       make(map[string]subtoken.Lock),
		orders:      make(map[uint64]exchange.Order),
		pools:       make(map[poolKey]exchange.Pool),
		daos:        make(map[string]dao.DAO),
		members:     make(map[memberKey]dao.Member),
		proposalIDs: make(map[string]uint64),
		proposals:   make(map[proposalKey]dao.Proposal),
		queues:      make(map[string][]uint64),
		votes:       make(map[voteKey]struct{}),
	}
}

// NonceStore implementation ---------------------------------------------------

func (s *Store) GetNonce(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nonce, nil
}

func (s *Store) SetNonce(_ context.Context, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonce = value
	return nil
}

// CollectionStore implementation ----------------------------------------------

func (s *Store) CreateCollection(_ context.Context, col collection.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[col.ID] = col
	return nil
}

func (s *Store) UpdateCollection(_ context.Context, col collection.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[col.ID]; !ok {
		return storage.ErrNotFound
	}
	s.collections[col.ID] = col
	return nil
}

func (s *Store) GetCollection(_ context.Context, id string) (collection.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[id]
	if !ok {
		return collection.Collection{}, storage.ErrNotFound
	}
	return col, nil
}

func (s *Store) DeleteCollection(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.collections, id)
	return nil
}

func (s *Store) ListCollections(_ context.Context) ([]collection.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]collection.Collection, 0, len(s.collections))
	for _, col := range s.collections {
		result = append(result, col)
	}
	return result, nil
}

// TokenStore implementation ---------------------------------------------------

func (s *Store) PutRange(_ context.Context, rng token.Range) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranges[rangeKey{rng.CollectionID, rng.StartIdx}] = rng
	return nil
}

func (s *Store) GetRange(_ context.Context, collectionID string, startIdx uint64) (token.Range, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rng, ok := s.ranges[rangeKey{collectionID, startIdx}]
	if !ok {
		return token.Range{}, storage.ErrNotFound
	}
	return rng, nil
}

func (s *Store) DeleteRange(_ context.Context, collectionID string, startIdx uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := rangeKey{collectionID, startIdx}
	if _, ok := s.ranges[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.ranges, key)
	return nil
}

func (s *Store) ListRanges(_ context.Context, collectionID string) ([]token.Range, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]token.Range, 0)
	for key, rng := range s.ranges {
		if key.collectionID == collectionID {
			result = append(result, rng)
		}
	}
	return result, nil
}

func (s *Store) DeleteCollectionRanges(_ context.Context, collectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.ranges {
		if key.collectionID == collectionID {
			delete(s.ranges, key)
		}
	}
	for key := range s.balances {
		if key.collectionID == collectionID {
			delete(s.balances, key)
		}
	}
	delete(s.lastIDs, collectionID)
	return nil
}

func (s *Store) GetBalance(_ context.Context, collectionID, account string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[balanceKey{collectionID, account}], nil
}

func (s *Store) SetBalance(_ context.Context, collectionID, account string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := balanceKey{collectionID, account}
	if amount == 0 {
		delete(s.balances, key)
		return nil
	}
	s.balances[key] = amount
	return nil
}

func (s *Store) GetBurned(_ context.Context, collectionID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.burned[collectionID], nil
}

func (s *Store) SetBurned(_ context.Context, collectionID string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.burned[collectionID] = amount
	return nil
}

func (s *Store) GetLastTokenID(_ context.Context, collectionID string) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.lastIDs[collectionID]
	return id, ok, nil
}

func (s *Store) SetLastTokenID(_ context.Context, collectionID string, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastIDs[collectionID] = id
	return nil
}

// GraphStore implementation ---------------------------------------------------

func (s *Store) PutLink(_ context.Context, link graph.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.links[link.Child]; ok {
		s.removeChildLocked(old.Parent, old.Child)
	}
	s.links[link.Child] = link
	kids, ok := s.children[link.Parent]
	if !ok {
		kids = make(map[graph.Node]struct{})
		s.children[link.Parent] = kids
	}
	kids[link.Child] = struct{}{}
	return nil
}

func (s *Store) GetLink(_ context.Context, child graph.Node) (graph.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[child]
	if !ok {
		return graph.Link{}, storage.ErrNotFound
	}
	return link, nil
}

func (s *Store) DeleteLink(_ context.Context, child graph.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[child]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.links, child)
	s.removeChildLocked(link.Parent, child)
	return nil
}

func (s *Store) HasChildren(_ context.Context, parent graph.Node) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.children[parent]) > 0, nil
}

func (s *Store) removeChildLocked(parent, child graph.Node) {
	kids := s.children[parent]
	delete(kids, child)
	if len(kids) == 0 {
		delete(s.children, parent)
	}
}

// SubTokenStore implementation ------------------------------------------------

func (s *Store) PutLock(_ context.Context, lock subtoken.Lock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks[lock.DerivedCollectionID] = lock
	return nil
}

func (s *Store) GetLock(_ context.Context, derivedCollectionID string) (subtoken.Lock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lock, ok := s.locks[derivedCollectionID]
	if !ok {
		return subtoken.Lock{}, storage.ErrNotFound
	}
	return lock, nil
}

func (s *Store) DeleteLock(_ context.Context, derivedCollectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locks[derivedCollectionID]; !ok {
		return storage.ErrNotFound
	}
	delete(s.locks, derivedCollectionID)
	return nil
}

// ExchangeStore implementation ------------------------------------------------

func (s *Store) NextOrderID(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nextOrderID == math.MaxUint64 {
		return 0, numeric.ErrNumOverflow
	}
	id := s.nextOrderID
	s.nextOrderID++
	return id, nil
}

func (s *Store) PutOrder(_ context.Context, ord exchange.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[ord.ID] = ord
	return nil
}

func (s *Store) GetOrder(_ context.Context, id uint64) (exchange.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ord, ok := s.orders[id]
	if !ok {
		return exchange.Order{}, storage.ErrNotFound
	}
	return ord, nil
}

func (s *Store) DeleteOrder(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.orders, id)
	return nil
}

func (s *Store) ListOrders(_ context.Context) ([]exchange.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]exchange.Order, 0, len(s.orders))
	for _, ord := range s.orders {
		result = append(result, ord)
	}
	return result, nil
}

func (s *Store) PutPool(_ context.Context, pool exchange.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[poolKey{pool.CollectionID, pool.Seller}] = pool
	return nil
}

func (s *Store) GetPool(_ context.Context, collectionID, seller string) (exchange.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pool, ok := s.pools[poolKey{collectionID, seller}]
	if !ok {
		return exchange.Pool{}, storage.ErrNotFound
	}
	return pool, nil
}

func (s *Store) DeletePool(_ context.Context, collectionID, seller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := poolKey{collectionID, seller}
	if _, ok := s.pools[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.pools, key)
	return nil
}

func (s *Store) ListPools(_ context.Context) ([]exchange.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]exchange.Pool, 0, len(s.pools))
	for _, pool := range s.pools {
		result = append(result, pool)
	}
	return result, nil
}

// DAOStore implementation -----------------------------------------------------

func (s *Store) PutDAO(_ context.Context, d dao.DAO) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daos[d.AccountID] = d
	return nil
}

func (s *Store) GetDAO(_ context.Context, account string) (dao.DAO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.daos[account]
	if !ok {
		return dao.DAO{}, storage.ErrNotFound
	}
	return d, nil
}

func (s *Store) ListDAOs(_ context.Context) ([]dao.DAO, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]dao.DAO, 0, len(s.daos))
	for _, d := range s.daos {
		result = append(result, d)
	}
	return result, nil
}

func (s *Store) PutMember(_ context.Context, daoAccount, member string, m dao.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[memberKey{daoAccount, member}] = m
	return nil
}

func (s *Store) GetMember(_ context.Context, daoAccount, member string) (dao.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[memberKey{daoAccount, member}]
	if !ok {
		return dao.Member{}, storage.ErrNotFound
	}
	return m, nil
}

func (s *Store) NextProposalID(_ context.Context, daoAccount string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.proposalIDs[daoAccount]
	if id == math.MaxUint64 {
		return 0, numeric.ErrNumOverflow
	}
	s.proposalIDs[daoAccount] = id + 1
	return id, nil
}

func (s *Store) PutProposal(_ context.Context, daoAccount string, p dao.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[proposalKey{daoAccount, p.ID}] = cloneProposal(p)
	return nil
}

func (s *Store) GetProposal(_ context.Context, daoAccount string, id uint64) (dao.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.proposals[proposalKey{daoAccount, id}]
	if !ok {
		return dao.Proposal{}, storage.ErrNotFound
	}
	return cloneProposal(p), nil
}

func (s *Store) AppendQueue(_ context.Context, daoAccount string, proposalID uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queues[daoAccount] = append(s.queues[daoAccount], proposalID)
	return uint64(len(s.queues[daoAccount]) - 1), nil
}

func (s *Store) QueueAt(_ context.Context, daoAccount string, index uint64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	queue := s.queues[daoAccount]
	if index >= uint64(len(queue)) {
		return 0, storage.ErrNotFound
	}
	return queue[index], nil
}

func (s *Store) QueueLength(_ context.Context, daoAccount string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.queues[daoAccount])), nil
}

func (s *Store) HasVoted(_ context.Context, daoAccount string, index uint64, member string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.votes[voteKey{daoAccount, index, member}]
	return ok, nil
}

func (s *Store) RecordVote(_ context.Context, daoAccount string, index uint64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[voteKey{daoAccount, index, member}] = struct{}{}
	return nil
}

// Helpers --------------------------------------------------------------------

func cloneProposal(p dao.Proposal) dao.Proposal {
	if p.TributeNFT != nil {
		nft := *p.TributeNFT
		p.TributeNFT = &nft
	}
	p.Action = append([]byte(nil), p.Action...)
	return p
}
