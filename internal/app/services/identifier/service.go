// Package identifier derives collision-resistant ids for collections, DAOs,
// and escrow accounts from a monotonic nonce, a fresh random seed, and a
// caller-supplied salt.
package identifier

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/R3E-Network/token_engine/internal/app/chain"
	"github.com/R3E-Network/token_engine/internal/app/domain/numeric"
	"github.com/R3E-Network/token_engine/internal/app/storage"
	"github.com/R3E-Network/token_engine/pkg/logger"
)

// Service issues identifiers. Every id-generating call consumes exactly one
// nonce; reusing a nonce would break the uniqueness guarantee.
type Service struct {
	nonces storage.NonceStore
	random chain.Randomness
	hasher chain.Hasher
	log    *logger.Logger
}

// New constructs an identifier service.
func New(nonces storage.NonceStore, random chain.Randomness, hasher chain.Hasher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("identifier")
	}
	return &Service{
		nonces: nonces,
		random: random,
		hasher: hasher,
		log:    log,
	}
}

// NonceIncrement advances the process-wide nonce and returns the new value.
func (s *Service) NonceIncrement(ctx context.Context) (uint64, error) {
	nonce, err := s.nonces.GetNonce(ctx)
	if err != nil {
		return 0, fmt.Errorf("read nonce: %w", err)
	}
	if nonce == math.MaxUint64 {
		return 0, numeric.ErrNumOverflow
	}
	nonce++
	if err := s.nonces.SetNonce(ctx, nonce); err != nil {
		return 0, fmt.Errorf("write nonce: %w", err)
	}
	return nonce, nil
}

// GenerateID derives a new id as Hash(salt || seed || nonce).
func (s *Service) GenerateID(ctx context.Context, salt []byte) (string, error) {
	nonce, err := s.NonceIncrement(ctx)
	if err != nil {
		return "", err
	}

	preimage := make([]byte, 0, len(salt)+40)
	preimage = append(preimage, salt...)
	preimage = append(preimage, s.random.Seed()...)
	preimage = binary.LittleEndian.AppendUint64(preimage, nonce)
	return hex.EncodeToString(s.hasher.Hash(preimage)), nil
}

// GenerateScopedID derives a new id bound to a caller account with a nested
// hash: Hash(Hash(salt || seed) || caller || nonce).
func (s *Service) GenerateScopedID(ctx context.Context, salt []byte, caller string) (string, error) {
	nonce, err := s.NonceIncrement(ctx)
	if err != nil {
		return "", err
	}

	inner := make([]byte, 0, len(salt)+32)
	inner = append(inner, salt...)
	inner = append(inner, s.random.Seed()...)
	innerHash := s.hasher.Hash(inner)

	outer := make([]byte, 0, len(innerHash)+len(caller)+8)
	outer = append(outer, innerHash...)
	outer = append(outer, caller...)
	outer = binary.LittleEndian.AppendUint64(outer, nonce)
	return hex.EncodeToString(s.hasher.Hash(outer)), nil
}
