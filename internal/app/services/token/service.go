// Package token implements the range-compacted ownership ledger. Contiguous
// non-fungible ids with one owner and one URI live in a single range record;
// transfers and burns split ranges from the top down. Per-account balances,
// the burned counter, and the collection total supply are updated in
// lockstep at every mutation site.
package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/R3E-Network/token_engine/internal/app/domain/collection"
	"github.com/R3E-Network/token_engine/internal/app/domain/numeric"
	"github.com/R3E-Network/token_engine/internal/app/domain/token"
	"github.com/R3E-Network/token_engine/internal/app/events"
	"github.com/R3E-Network/token_engine/internal/app/storage"
	"github.com/R3E-Network/token_engine/pkg/logger"
)

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrTokenNotFound      = errors.New("token not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrReceiverIsSender   = errors.New("receiver is sender")
	ErrAmountLessThanOne  = errors.New("amount must be at least one")
	ErrAmountTooLarge     = errors.New("amount exceeds available tokens")
	ErrWrongTokenType     = errors.New("wrong token type for operation")
)

// CollectionRegistry is the slice of the collection service the ledger
// consumes.
type CollectionRegistry interface {
	Get(ctx context.Context, id string) (collection.Collection, error)
	Exists(ctx context.Context, id string) (bool, error)
	AddTotalSupply(ctx context.Context, id string, amount uint64) (uint64, error)
	SubTotalSupply(ctx context.Context, id string, amount uint64) (uint64, error)
}

// Service is the token ledger.
type Service struct {
	registry CollectionRegistry
	store    storage.TokenStore
	events   *events.Recorder
	log      *logger.Logger
}

// New constructs a token ledger service.
func New(registry CollectionRegistry, store storage.TokenStore, rec *events.Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("token")
	}
	return &Service{
		registry: registry,
		store:    store,
		events:   rec,
		log:      log,
	}
}

func (s *Service) getCollection(ctx context.Context, id string) (collection.Collection, error) {
	exists, err := s.registry.Exists(ctx, id)
	if err != nil {
		return collection.Collection{}, err
	}
	if !exists {
		return collection.Collection{}, ErrCollectionNotFound
	}
	return s.registry.Get(ctx, id)
}

// MintNonFungible appends a new range of amount token ids to the collection,
// owned by receiver. Only the collection owner may mint. Returns the minted
// range bounds.
func (s *Service) MintNonFungible(ctx context.Context, who, receiver, collectionID string, amount uint64, uri string) (uint64, uint64, error) {
	if amount < 1 {
		return 0, 0, ErrAmountLessThanOne
	}
	col, err := s.getCollection(ctx, collectionID)
	if err != nil {
		return 0, 0, err
	}
	if col.TokenType == collection.TypeFungible {
		return 0, 0, ErrWrongTokenType
	}
	if col.Owner != who {
		return 0, 0, ErrPermissionDenied
	}

	startIdx := uint64(0)
	last, minted, err := s.store.GetLastTokenID(ctx, collectionID)
	if err != nil {
		return 0, 0, err
	}
	if minted {
		if startIdx, err = numeric.Add(last, 1); err != nil {
			return 0, 0, err
		}
	}
	endIdx, err := numeric.Add(startIdx, amount-1)
	if err != nil {
		return 0, 0, err
	}

	balance, err := s.store.GetBalance(ctx, collectionID, receiver)
	if err != nil {
		return 0, 0, err
	}
	newBalance, err := numeric.Add(balance, amount)
	if err != nil {
		return 0, 0, err
	}
	// Supply overflow must surface before any write lands.
	if _, err = numeric.Add(col.TotalSupply, amount); err != nil {
		return 0, 0, err
	}

	rng := token.Range{
		CollectionID: collectionID,
		StartIdx:     startIdx,
		EndIdx:       endIdx,
		Owner:        receiver,
		URI:          uri,
	}
	if err := s.store.PutRange(ctx, rng); err != nil {
		return 0, 0, fmt.Errorf("store range: %w", err)
	}
	if err := s.store.SetBalance(ctx, collectionID, receiver, newBalance); err != nil {
		return 0, 0, fmt.Errorf("store balance: %w", err)
	}
	if err := s.store.SetLastTokenID(ctx, collectionID, endIdx); err != nil {
		return 0, 0, fmt.Errorf("store last id: %w", err)
	}
	newSupply, err := s.registry.AddTotalSupply(ctx, collectionID, amount)
	if err != nil {
		return 0, 0, err
	}

	s.events.Emit("token.minted_non_fungible", map[string]any{
		"collection_id": collectionID,
		"receiver":      receiver,
		"start_idx":     startIdx,
		"end_idx":       endIdx,
		"total_supply":  newSupply,
	})
	s.log.WithField("collection_id", collectionID).
		WithField("receiver", receiver).
		WithField("amount", amount).
		Info("non-fungible tokens minted")
	return startIdx, endIdx, nil
}

// MintFungible credits amount fungible units to receiver. Only the
// collection owner may mint.
func (s *Service) MintFungible(ctx context.Context, who, receiver, collectionID string, amount uint64) error {
	if amount < 1 {
		return ErrAmountLessThanOne
	}
	col, err := s.getCollection(ctx, collectionID)
	if err != nil {
		return err
	}
	if col.TokenType == collection.TypeNonFungible {
		return ErrWrongTokenType
	}
	if col.Owner != who {
		return ErrPermissionDenied
	}

	balance, err := s.store.GetBalance(ctx, collectionID, receiver)
	if err != nil {
		return err
	}
	newBalance, err := numeric.Add(balance, amount)
	if err != nil {
		return err
	}
	if _, err = numeric.Add(col.TotalSupply, amount); err != nil {
		return err
	}

	if err := s.store.SetBalance(ctx, collectionID, receiver, newBalance); err != nil {
		return fmt.Errorf("store balance: %w", err)
	}
	newSupply, err := s.registry.AddTotalSupply(ctx, collectionID, amount)
	if err != nil {
		return err
	}

	s.events.Emit("token.minted_fungible", map[string]any{
		"collection_id": collectionID,
		"receiver":      receiver,
		"amount":        amount,
		"total_supply":  newSupply,
	})
	return nil
}

// TransferNonFungible moves amount ids out of the range keyed at startIdx.
// The moved slice is always the top of the range: the receiver gets
// [end-amount+1, end] and the sender keeps the low remainder under the
// original key.
func (s *Service) TransferNonFungible(ctx context.Context, who, receiver, collectionID string, startIdx, amount uint64) error {
	if who == receiver {
		return ErrReceiverIsSender
	}
	if amount < 1 {
		return ErrAmountLessThanOne
	}
	col, err := s.getCollection(ctx, collectionID)
	if err != nil {
		return err
	}
	rng, err := s.store.GetRange(ctx, collectionID, startIdx)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrTokenNotFound
	}
	if err != nil {
		return err
	}
	if col.TokenType == collection.TypeFungible {
		return ErrWrongTokenType
	}
	if rng.Owner != who {
		return ErrPermissionDenied
	}
	if amount > 1 && rng.Size() < amount {
		return ErrAmountTooLarge
	}

	senderBalance, err := s.store.GetBalance(ctx, collectionID, who)
	if err != nil {
		return err
	}
	newSenderBalance, err := numeric.Sub(senderBalance, amount)
	if err != nil {
		return err
	}
	receiverBalance, err := s.store.GetBalance(ctx, collectionID, receiver)
	if err != nil {
		return err
	}
	newReceiverBalance, err := numeric.Add(receiverBalance, amount)
	if err != nil {
		return err
	}

	receiverStart := rng.EndIdx - amount + 1
	if receiverStart == rng.StartIdx {
		// Whole range moves; the record changes owner in place.
		rng.Owner = receiver
		if err := s.store.PutRange(ctx, rng); err != nil {
			return fmt.Errorf("store range: %w", err)
		}
	} else {
		moved := token.Range{
			CollectionID: collectionID,
			StartIdx:     receiverStart,
			EndIdx:       rng.EndIdx,
			Owner:        receiver,
			URI:          rng.URI,
		}
		if err := s.store.PutRange(ctx, moved); err != nil {
			return fmt.Errorf("store range: %w", err)
		}
		rng.EndIdx = receiverStart - 1
		if err := s.store.PutRange(ctx, rng); err != nil {
			return fmt.Errorf("store range: %w", err)
		}
	}

	if err := s.store.SetBalance(ctx, collectionID, who, newSenderBalance); err != nil {
		return fmt.Errorf("store balance: %w", err)
	}
	if err := s.store.SetBalance(ctx, collectionID, receiver, newReceiverBalance); err != nil {
		return fmt.Errorf("store balance: %w", err)
	}

	s.events.Emit("token.transferred_non_fungible", map[string]any{
		"collection_id": collectionID,
		"from":          who,
		"to":            receiver,
		"start_idx":     startIdx,
		"amount":        amount,
	})
	return nil
}

// TransferFungible moves fungible units between accounts.
func (s *Service) TransferFungible(ctx context.Context, who, receiver, collectionID string, amount uint64) error {
	if who == receiver {
		return ErrReceiverIsSender
	}
	if amount < 1 {
		return ErrAmountLessThanOne
	}
	col, err := s.getCollection(ctx, collectionID)
	if err != nil {
		return err
	}
	if col.TokenType == collection.TypeNonFungible {
		return ErrWrongTokenType
	}

	senderBalance, err := s.store.GetBalance(ctx, collectionID, who)
	if err != nil {
		return err
	}
	if senderBalance < amount {
		return ErrAmountTooLarge
	}
	receiverBalance, err := s.store.GetBalance(ctx, collectionID, receiver)
	if err != nil {
		return err
	}
	newReceiverBalance, err := numeric.Add(receiverBalance, amount)
	if err != nil {
		return err
	}

	if err := s.store.SetBalance(ctx, collectionID, who, senderBalance-amount); err != nil {
		return fmt.Errorf("store balance: %w", err)
	}
	if err := s.store.SetBalance(ctx, collectionID, receiver, newReceiverBalance); err != nil {
		return fmt.Errorf("store balance: %w", err)
	}

	s.events.Emit("token.transferred_fungible", map[string]any{
		"collection_id": collectionID,
		"from":          who,
		"to":            receiver,
		"amount":        amount,
	})
	return nil
}

// BurnNonFungible removes amount ids from the top of the range keyed at
// startIdx, increments the burned counter, and lowers total supply.
func (s *Service) BurnNonFungible(ctx context.Context, who, collectionID string, startIdx, amount uint64) error {
	if amount < 1 {
		return ErrAmountLessThanOne
	}
	col, err := s.getCollection(ctx, collectionID)
	if err != nil {
		return err
	}
	rng, err := s.store.GetRange(ctx, collectionID, startIdx)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrTokenNotFound
	}
	if err != nil {
		return err
	}
	if col.TokenType == collection.TypeFungible {
		return ErrWrongTokenType
	}
	if rng.Owner != who {
		return ErrPermissionDenied
	}
	if amount > 1 && rng.Size() < amount {
		return ErrAmountTooLarge
	}

	balance, err := s.store.GetBalance(ctx, collectionID, who)
	if err != nil {
		return err
	}
	newBalance, err := numeric.Sub(balance, amount)
	if err != nil {
		return err
	}
	burned, err := s.store.GetBurned(ctx, collectionID)
	if err != nil {
		return err
	}
	newBurned, err := numeric.Add(burned, amount)
	if err != nil {
		return err
	}
	if _, err = numeric.Sub(col.TotalSupply, amount); err != nil {
		return err
	}

	burnStart := rng.EndIdx - amount + 1
	if burnStart == rng.StartIdx {
		if err := s.store.DeleteRange(ctx, collectionID, startIdx); err != nil {
			return fmt.Errorf("delete range: %w", err)
		}
	} else {
		rng.EndIdx = burnStart - 1
		if err := s.store.PutRange(ctx, rng); err != nil {
			return fmt.Errorf("store range: %w", err)
		}
	}

	if err := s.store.SetBalance(ctx, collectionID, who, newBalance); err != nil {
		return fmt.Errorf("store balance: %w", err)
	}
	if err := s.store.SetBurned(ctx, collectionID, newBurned); err != nil {
		return fmt.Errorf("store burned counter: %w", err)
	}
	newSupply, err := s.registry.SubTotalSupply(ctx, collectionID, amount)
	if err != nil {
		return err
	}

	s.events.Emit("token.burned_non_fungible", map[string]any{
		"collection_id": collectionID,
		"owner":         who,
		"start_idx":     startIdx,
		"amount":        amount,
		"total_supply":  newSupply,
	})
	return nil
}

// BurnFungible destroys fungible units held by who.
func (s *Service) BurnFungible(ctx context.Context, who, collectionID string, amount uint64) error {
	if amount < 1 {
		return ErrAmountLessThanOne
	}
	col, err := s.getCollection(ctx, collectionID)
	if err != nil {
		return err
	}
	if col.TokenType == collection.TypeNonFungible {
		return ErrWrongTokenType
	}

	balance, err := s.store.GetBalance(ctx, collectionID, who)
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrAmountTooLarge
	}
	burned, err := s.store.GetBurned(ctx, collectionID)
	if err != nil {
		return err
	}
	newBurned, err := numeric.Add(burned, amount)
	if err != nil {
		return err
	}
	if _, err = numeric.Sub(col.TotalSupply, amount); err != nil {
		return err
	}

	if err := s.store.SetBalance(ctx, collectionID, who, balance-amount); err != nil {
		return fmt.Errorf("store balance: %w", err)
	}
	if err := s.store.SetBurned(ctx, collectionID, newBurned); err != nil {
		return fmt.Errorf("store burned counter: %w", err)
	}
	newSupply, err := s.registry.SubTotalSupply(ctx, collectionID, amount)
	if err != nil {
		return err
	}

	s.events.Emit("token.burned_fungible", map[string]any{
		"collection_id": collectionID,
		"owner":         who,
		"amount":        amount,
		"total_supply":  newSupply,
	})
	return nil
}

// TokenExists reports whether a range record exists at the given key.
func (s *Service) TokenExists(ctx context.Context, collectionID string, startIdx uint64) (bool, error) {
	_, err := s.store.GetRange(ctx, collectionID, startIdx)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetToken returns the range record keyed at startIdx.
func (s *Service) GetToken(ctx context.Context, collectionID string, startIdx uint64) (token.Range, error) {
	rng, err := s.store.GetRange(ctx, collectionID, startIdx)
	if errors.Is(err, storage.ErrNotFound) {
		return token.Range{}, ErrTokenNotFound
	}
	return rng, err
}

// Balance returns the units of a collection held by an account.
func (s *Service) Balance(ctx context.Context, collectionID, account string) (uint64, error) {
	return s.store.GetBalance(ctx, collectionID, account)
}

// BurnedAmount returns the collection's monotonic burned counter.
func (s *Service) BurnedAmount(ctx context.Context, collectionID string) (uint64, error) {
	return s.store.GetBurned(ctx, collectionID)
}

// ListRanges returns all range records of a collection.
func (s *Service) ListRanges(ctx context.Context, collectionID string) ([]token.Range, error) {
	return s.store.ListRanges(ctx, collectionID)
}

// DestroyCollectionTokens drops every range, balance, and mint counter under
// a collection. Used when a whole collection is torn down.
func (s *Service) DestroyCollectionTokens(ctx context.Context, collectionID string) error {
	if err := s.store.DeleteCollectionRanges(ctx, collectionID); err != nil {
		return fmt.Errorf("delete collection ranges: %w", err)
	}
	s.events.Emit("token.collection_destroyed", map[string]any{"collection_id": collectionID})
	return nil
}
