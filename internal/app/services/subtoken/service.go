// Package subtoken implements derivative collections backed by a locked
// parent token. Creating a derivative moves one parent token into factory
// custody and registers a new collection owned by the factory account; the
// lock creator mints against it through the factory. Recover tears the
// derivative down and returns the parent token once every minted unit is
// back with the creator and nothing was burned.
package subtoken

import (
	"context"
	"errors"
	"fmt"

	"github.com/R3E-Network/token_engine/internal/app/chain"
	"github.com/R3E-Network/token_engine/internal/app/domain/collection"
	"github.com/R3E-Network/token_engine/internal/app/domain/subtoken"
	"github.com/R3E-Network/token_engine/internal/app/domain/token"
	"github.com/R3E-Network/token_engine/internal/app/events"
	"github.com/R3E-Network/token_engine/internal/app/storage"
	"github.com/R3E-Network/token_engine/pkg/logger"
)

var (
	ErrLockNotFound      = errors.New("derived collection has no lock")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrBurnedTokensExist = errors.New("derived collection has burned tokens")
	ErrOutstandingSupply = errors.New("derived supply not fully held by creator")
)

// CollectionRegistry is the slice of the collection service the factory
// consumes.
type CollectionRegistry interface {
	Create(ctx context.Context, owner, uri string, tokenType collection.TokenType) (collection.Collection, error)
	Get(ctx context.Context, id string) (collection.Collection, error)
	Destroy(ctx context.Context, id string) error
}

// TokenLedger is the slice of the token service the factory consumes.
type TokenLedger interface {
	GetToken(ctx context.Context, collectionID string, startIdx uint64) (token.Range, error)
	TransferNonFungible(ctx context.Context, who, receiver, collectionID string, startIdx, amount uint64) error
	MintNonFungible(ctx context.Context, who, receiver, collectionID string, amount uint64, uri string) (uint64, uint64, error)
	MintFungible(ctx context.Context, who, receiver, collectionID string, amount uint64) error
	Balance(ctx context.Context, collectionID, account string) (uint64, error)
	BurnedAmount(ctx context.Context, collectionID string) (uint64, error)
	DestroyCollectionTokens(ctx context.Context, collectionID string) error
}

// Service is the subtoken factory. Account is the custody account owning
// locked parent tokens and every derived collection.
type Service struct {
	registry CollectionRegistry
	tokens   TokenLedger
	store    storage.SubTokenStore
	account  string
	events   *events.Recorder
	log      *logger.Logger
}

// New constructs a subtoken factory service.
func New(registry CollectionRegistry, tokens TokenLedger, store storage.SubTokenStore, rec *events.Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("subtoken")
	}
	return &Service{
		registry: registry,
		tokens:   tokens,
		store:    store,
		account:  chain.ModuleAccount("subtoken"),
		events:   rec,
		log:      log,
	}
}

// Account returns the factory custody account.
func (s *Service) Account() string {
	return s.account
}

// Create locks one token of the caller into custody and registers a derived
// collection. Returns the derived collection id.
func (s *Service) Create(ctx context.Context, creator, parentCollectionID string, tokenID uint64, uri string, tokenType collection.TokenType) (string, error) {
	rng, err := s.tokens.GetToken(ctx, parentCollectionID, tokenID)
	if err != nil {
		return "", fmt.Errorf("resolve parent token: %w", err)
	}
	if rng.Owner != creator {
		return "", ErrPermissionDenied
	}

	escrowedID := rng.EndIdx
	if err := s.tokens.TransferNonFungible(ctx, creator, s.account, parentCollectionID, tokenID, 1); err != nil {
		return "", fmt.Errorf("lock parent token: %w", err)
	}

	derived, err := s.registry.Create(ctx, s.account, uri, tokenType)
	if err != nil {
		return "", fmt.Errorf("create derived collection: %w", err)
	}

	lock := subtoken.Lock{
		DerivedCollectionID: derived.ID,
		ParentCollectionID:  parentCollectionID,
		TokenID:             tokenID,
		EscrowedID:          escrowedID,
		Creator:             creator,
	}
	if err := s.store.PutLock(ctx, lock); err != nil {
		return "", fmt.Errorf("store lock: %w", err)
	}

	s.events.Emit("subtoken.created", map[string]any{
		"derived_collection": derived.ID,
		"parent_collection":  parentCollectionID,
		"parent_token":       tokenID,
		"creator":            creator,
	})
	s.log.WithField("derived_collection", derived.ID).
		WithField("creator", creator).
		Info("derived collection created")
	return derived.ID, nil
}

// MintNonFungible mints derivative tokens to receiver. Only the lock
// creator may mint.
func (s *Service) MintNonFungible(ctx context.Context, who, receiver, derivedCollectionID string, amount uint64, uri string) (uint64, uint64, error) {
	lock, err := s.getLock(ctx, derivedCollectionID)
	if err != nil {
		return 0, 0, err
	}
	if lock.Creator != who {
		return 0, 0, ErrPermissionDenied
	}
	// The derived collection is owned by the factory account, so the mint
	// itself runs with factory authority.
	return s.tokens.MintNonFungible(ctx, s.account, receiver, derivedCollectionID, amount, uri)
}

// MintFungible mints fungible derivative units to receiver. Only the lock
// creator may mint.
func (s *Service) MintFungible(ctx context.Context, who, receiver, derivedCollectionID string, amount uint64) error {
	lock, err := s.getLock(ctx, derivedCollectionID)
	if err != nil {
		return err
	}
	if lock.Creator != who {
		return ErrPermissionDenied
	}
	return s.tokens.MintFungible(ctx, s.account, receiver, derivedCollectionID, amount)
}

// Recover destroys the derived collection and returns the locked parent
// token. The creator must hold the entire derived supply and nothing may
// have been burned.
func (s *Service) Recover(ctx context.Context, who, derivedCollectionID string) error {
	lock, err := s.getLock(ctx, derivedCollectionID)
	if err != nil {
		return err
	}
	if lock.Creator != who {
		return ErrPermissionDenied
	}

	burned, err := s.tokens.BurnedAmount(ctx, derivedCollectionID)
	if err != nil {
		return err
	}
	if burned != 0 {
		return ErrBurnedTokensExist
	}

	col, err := s.registry.Get(ctx, derivedCollectionID)
	if err != nil {
		return err
	}
	balance, err := s.tokens.Balance(ctx, derivedCollectionID, who)
	if err != nil {
		return err
	}
	if balance != col.TotalSupply {
		return ErrOutstandingSupply
	}

	if err := s.tokens.DestroyCollectionTokens(ctx, derivedCollectionID); err != nil {
		return err
	}
	if err := s.registry.Destroy(ctx, derivedCollectionID); err != nil {
		return err
	}
	if err := s.tokens.TransferNonFungible(ctx, s.account, who, lock.ParentCollectionID, lock.EscrowedID, 1); err != nil {
		return fmt.Errorf("release parent token: %w", err)
	}
	if err := s.store.DeleteLock(ctx, derivedCollectionID); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}

	s.events.Emit("subtoken.recovered", map[string]any{
		"derived_collection": derivedCollectionID,
		"parent_collection":  lock.ParentCollectionID,
		"parent_token":       lock.TokenID,
		"creator":            who,
	})
	return nil
}

// Lock returns the lock backing a derived collection.
func (s *Service) Lock(ctx context.Context, derivedCollectionID string) (subtoken.Lock, error) {
	return s.getLock(ctx, derivedCollectionID)
}

func (s *Service) getLock(ctx context.Context, derivedCollectionID string) (subtoken.Lock, error) {
	lock, err := s.store.GetLock(ctx, derivedCollectionID)
	if errors.Is(err, storage.ErrNotFound) {
		return subtoken.Lock{}, ErrLockNotFound
	}
	return lock, err
}
