// Package collection implements the collection registry: metadata ownership
// and the checked total-supply accounting every other engine component leans
// on.
package collection

import (
	"context"
	"errors"
	"fmt"

	"github.com/R3E-Network/token_engine/internal/app/domain/collection"
	"github.com/R3E-Network/token_engine/internal/app/domain/numeric"
	"github.com/R3E-Network/token_engine/internal/app/events"
	"github.com/R3E-Network/token_engine/internal/app/storage"
	"github.com/R3E-Network/token_engine/pkg/logger"
)

// ErrCollectionNotFound reports an unknown collection id.
var ErrCollectionNotFound = errors.New("collection not found")

var idSalt = []byte("collection")

// IdentifierSource issues fresh ids for new collections.
type IdentifierSource interface {
	GenerateID(ctx context.Context, salt []byte) (string, error)
}

// Service is the collection registry.
type Service struct {
	store  storage.CollectionStore
	ids    IdentifierSource
	events *events.Recorder
	log    *logger.Logger
}

// New constructs a collection registry service.
func New(store storage.CollectionStore, ids IdentifierSource, rec *events.Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("collection")
	}
	return &Service{
		store:  store,
		ids:    ids,
		events: rec,
		log:    log,
	}
}

// Create allocates an id and registers a new collection with zero supply.
func (s *Service) Create(ctx context.Context, owner, uri string, tokenType collection.TokenType) (collection.Collection, error) {
	id, err := s.ids.GenerateID(ctx, idSalt)
	if err != nil {
		return collection.Collection{}, fmt.Errorf("generate collection id: %w", err)
	}

	col := collection.Collection{
		ID:        id,
		Owner:     owner,
		URI:       uri,
		TokenType: tokenType,
	}
	if err := s.store.CreateCollection(ctx, col); err != nil {
		return collection.Collection{}, fmt.Errorf("store collection: %w", err)
	}

	s.events.Emit("collection.created", map[string]any{
		"collection_id": id,
		"owner":         owner,
		"token_type":    tokenType.String(),
	})
	s.log.WithField("collection_id", id).
		WithField("owner", owner).
		Info("collection created")
	return col, nil
}

// Get returns a collection by id.
func (s *Service) Get(ctx context.Context, id string) (collection.Collection, error) {
	col, err := s.store.GetCollection(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return collection.Collection{}, ErrCollectionNotFound
	}
	if err != nil {
		return collection.Collection{}, err
	}
	return col, nil
}

// Exists reports whether a collection id is registered.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.store.GetCollection(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns all registered collections.
func (s *Service) List(ctx context.Context) ([]collection.Collection, error) {
	return s.store.ListCollections(ctx)
}

// AddTotalSupply raises a collection's total supply with checked arithmetic
// and returns the new total.
func (s *Service) AddTotalSupply(ctx context.Context, id string, amount uint64) (uint64, error) {
	col, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	col.TotalSupply, err = numeric.Add(col.TotalSupply, amount)
	if err != nil {
		return 0, err
	}
	if err := s.store.UpdateCollection(ctx, col); err != nil {
		return 0, fmt.Errorf("update collection: %w", err)
	}
	return col.TotalSupply, nil
}

// SubTotalSupply lowers a collection's total supply; subtracting more than
// the current supply fails the checked arithmetic.
func (s *Service) SubTotalSupply(ctx context.Context, id string, amount uint64) (uint64, error) {
	col, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	col.TotalSupply, err = numeric.Sub(col.TotalSupply, amount)
	if err != nil {
		return 0, err
	}
	if err := s.store.UpdateCollection(ctx, col); err != nil {
		return 0, fmt.Errorf("update collection: %w", err)
	}
	return col.TotalSupply, nil
}

// Destroy removes a registry entry. The caller is responsible for having
// cleared the collection's token state first.
func (s *Service) Destroy(ctx context.Context, id string) error {
	if err := s.store.DeleteCollection(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrCollectionNotFound
		}
		return err
	}

	s.events.Emit("collection.destroyed", map[string]any{"collection_id": id})
	s.log.WithField("collection_id", id).Info("collection destroyed")
	return nil
}
