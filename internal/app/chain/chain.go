// Package chain defines the injected capabilities the engine consumes from
// its host environment: a native currency ledger, a randomness source, a
// block clock, hashing, and an opaque action executor. In-process
// implementations suitable for tests and single-node deployments live
// alongside the interfaces.
package chain

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/R3E-Network/token_engine/internal/app/domain/numeric"
)

// ErrInsufficientBalance reports a currency transfer exceeding the sender's
// balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Currency moves native balance between accounts. Callers skip the call
// entirely for zero amounts; implementations still accept zero as a no-op.
type Currency interface {
	Transfer(ctx context.Context, from, to string, amount uint64) error
	Balance(ctx context.Context, account string) (uint64, error)
}

// Randomness supplies a fresh seed per call.
type Randomness interface {
	Seed() []byte
}

// BlockClock reports the current block height. Heights only move forward.
type BlockClock interface {
	Current() uint64
}

// Hasher is a 256-bit collision-resistant hash.
type Hasher interface {
	Hash(data []byte) []byte
}

// ActionExecutor decodes and runs an opaque action payload with the
// authority of the given account. Failures are reported, never panicked.
type ActionExecutor interface {
	Dispatch(ctx context.Context, action []byte, asAccount string) error
}

// ModuleAccount derives the stable custody account id for an engine module.
func ModuleAccount(tag string) string {
	sum := sha256.Sum256([]byte("modl/" + tag))
	return hex.EncodeToString(sum[:])
}

// Bank is an in-memory Currency ledger guarded by a mutex.
type Bank struct {
	mu       sync.RWMutex
	balances map[string]uint64
}

var _ Currency = (*Bank)(nil)

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{balances: make(map[string]uint64)}
}

// Deposit credits an account, used to seed genesis balances.
func (b *Bank) Deposit(account string, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	next, err := numeric.Add(b.balances[account], amount)
	if err != nil {
		return err
	}
	b.balances[account] = next
	return nil
}

// Transfer moves amount from one account to another.
func (b *Bank) Transfer(_ context.Context, from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.balances[from] < amount {
		return ErrInsufficientBalance
	}
	next, err := numeric.Add(b.balances[to], amount)
	if err != nil {
		return err
	}
	b.balances[from] -= amount
	b.balances[to] = next
	return nil
}

// Balance returns the current balance of an account, zero when unknown.
func (b *Bank) Balance(_ context.Context, account string) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[account], nil
}

// ManualClock is a BlockClock advanced explicitly, by tests or by the block
// ticker in the daemon.
type ManualClock struct {
	mu     sync.RWMutex
	height uint64
}

var _ BlockClock = (*ManualClock)(nil)

// NewManualClock starts at the given height.
func NewManualClock(height uint64) *ManualClock {
	return &ManualClock{height: height}
}

// Current returns the current height.
func (c *ManualClock) Current() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height
}

// Advance moves the clock forward by n blocks.
func (c *ManualClock) Advance(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height += n
}

// Set jumps to an absolute height if it is not behind the current one.
func (c *ManualClock) Set(height uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if height > c.height {
		c.height = height
	}
}

// CryptoRandomness reads seeds from the operating system entropy pool.
type CryptoRandomness struct{}

var _ Randomness = CryptoRandomness{}

// Seed returns 32 fresh random bytes.
func (CryptoRandomness) Seed() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// The OS entropy pool failing is not a recoverable engine state.
		panic(err)
	}
	return buf
}

// FixedRandomness returns the same seed on every call, for deterministic
// tests.
type FixedRandomness []byte

var _ Randomness = FixedRandomness(nil)

// Seed returns the fixed bytes.
func (r FixedRandomness) Seed() []byte {
	return append([]byte(nil), r...)
}

// SHA256 implements Hasher with crypto/sha256.
type SHA256 struct{}

var _ Hasher = SHA256{}

// Hash returns the SHA-256 digest of data.
func (SHA256) Hash(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// NopExecutor accepts every action without running anything.
type NopExecutor struct{}

var _ ActionExecutor = NopExecutor{}

// Dispatch discards the action.
func (NopExecutor) Dispatch(context.Context, []byte, string) error {
	return nil
}

// ExecutorFunc adapts a function to the ActionExecutor interface.
type ExecutorFunc func(ctx context.Context, action []byte, asAccount string) error

var _ ActionExecutor = ExecutorFunc(nil)

// Dispatch calls the wrapped function.
func (f ExecutorFunc) Dispatch(ctx context.Context, action []byte, asAccount string) error {
	return f(ctx, action, asAccount)
}
