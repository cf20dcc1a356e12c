// Package exchange implements the fixed order book for non-fungible tokens
// and the bonding-curve pools for fungible ones. Listed tokens and pool
// stock sit in the exchange custody account; pool proceeds are escrowed
// there as well.
package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/R3E-Network/token_engine/internal/app/chain"
	"github.com/R3E-Network/token_engine/internal/app/domain/collection"
	"github.com/R3E-Network/token_engine/internal/app/domain/exchange"
	"github.com/R3E-Network/token_engine/internal/app/domain/numeric"
	"github.com/R3E-Network/token_engine/internal/app/domain/token"
	"github.com/R3E-Network/token_engine/internal/app/events"
	"github.com/R3E-Network/token_engine/internal/app/storage"
	"github.com/R3E-Network/token_engine/pkg/logger"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrPoolExists              = errors.New("pool already exists for collection and seller")
	ErrPoolNotFound            = errors.New("pool not found")
	ErrReverseRatioLessThanOne = errors.New("reverse ratio must be at least one")
	ErrMLessThanOne            = errors.New("curve multiplier must be at least one")
	ErrExpiredSoldTime         = errors.New("pool sale window has expired")
	ErrCannotWithdraw          = errors.New("pool sale window has not expired yet")
	ErrAmountLessThanOne       = errors.New("amount must be at least one")
	ErrAmountTooLarge          = errors.New("amount exceeds available tokens")
	ErrPermissionDenied        = errors.New("permission denied")
	ErrCollectionNotFound      = errors.New("collection not found")
	ErrWrongTokenType          = errors.New("wrong token type for operation")
)

// TokenLedger is the slice of the token service the exchange consumes.
type TokenLedger interface {
	GetToken(ctx context.Context, collectionID string, startIdx uint64) (token.Range, error)
	TransferNonFungible(ctx context.Context, who, receiver, collectionID string, startIdx, amount uint64) error
	TransferFungible(ctx context.Context, who, receiver, collectionID string, amount uint64) error
}

// CollectionRegistry is the slice of the collection service the exchange
// consumes.
type CollectionRegistry interface {
	Get(ctx context.Context, id string) (collection.Collection, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// Service is the exchange engine.
type Service struct {
	tokens   TokenLedger
	registry CollectionRegistry
	currency chain.Currency
	clock    chain.BlockClock
	store    storage.ExchangeStore
	account  string
	events   *events.Recorder
	log      *logger.Logger
}

// New constructs an exchange service.
func New(tokens TokenLedger, registry CollectionRegistry, currency chain.Currency, clock chain.BlockClock, store storage.ExchangeStore, rec *events.Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("exchange")
	}
	return &Service{
		tokens:   tokens,
		registry: registry,
		currency: currency,
		clock:    clock,
		store:    store,
		account:  chain.ModuleAccount("exchange"),
		events:   rec,
		log:      log,
	}
}

// Account returns the exchange custody account.
func (s *Service) Account() string {
	return s.account
}

// SellNFT escrows amount tokens from the range keyed at tokenID and opens a
// sell order at the given per-unit price. Returns the order id.
func (s *Service) SellNFT(ctx context.Context, seller, collectionID string, tokenID, amount, price uint64) (uint64, error) {
	if amount < 1 {
		return 0, ErrAmountLessThanOne
	}
	rng, err := s.tokens.GetToken(ctx, collectionID, tokenID)
	if err != nil {
		return 0, fmt.Errorf("resolve listed token: %w", err)
	}
	if rng.Owner != seller {
		return 0, ErrPermissionDenied
	}
	if rng.Size() < amount {
		return 0, ErrAmountTooLarge
	}

	// A transfer moves the top slice, so custody holds [end-amount+1, end].
	custodyStart := rng.EndIdx - amount + 1
	if err := s.tokens.TransferNonFungible(ctx, seller, s.account, collectionID, tokenID, amount); err != nil {
		return 0, fmt.Errorf("escrow listed tokens: %w", err)
	}

	orderID, err := s.store.NextOrderID(ctx)
	if err != nil {
		return 0, err
	}
	ord := exchange.Order{
		ID:           orderID,
		CollectionID: collectionID,
		StartIdx:     custodyStart,
		Seller:       seller,
		Price:        price,
		Amount:       amount,
	}
	if err := s.store.PutOrder(ctx, ord); err != nil {
		return 0, fmt.Errorf("store order: %w", err)
	}

	s.events.Emit("order.created", map[string]any{
		"order_id":      orderID,
		"collection_id": collectionID,
		"seller":        seller,
		"start_idx":     custodyStart,
		"amount":        amount,
		"price":         price,
	})
	s.log.WithField("order_id", orderID).
		WithField("seller", seller).
		WithField("amount", amount).
		Info("sell order created")
	return orderID, nil
}

// BuyNFT purchases amount tokens from an order. Buyers consume the low end
// of the escrowed range; a partial fill advances the order's start index
// past the sold slice.
func (s *Service) BuyNFT(ctx context.Context, buyer string, orderID, amount uint64) error {
	if amount < 1 {
		return ErrAmountLessThanOne
	}
	ord, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	if amount > ord.Amount {
		return ErrAmountTooLarge
	}

	cost, err := numeric.Mul(ord.Price, amount)
	if err != nil {
		return err
	}
	custody, err := s.tokens.GetToken(ctx, ord.CollectionID, ord.StartIdx)
	if err != nil {
		return fmt.Errorf("resolve escrowed tokens: %w", err)
	}

	if cost > 0 {
		if err := s.currency.Transfer(ctx, buyer, ord.Seller, cost); err != nil {
			return fmt.Errorf("pay seller: %w", err)
		}
	}

	// Release the whole escrowed range to the buyer, then take back the
	// unsold tail, leaving the buyer with the low slice [start, start+k-1]
	// and custody re-keyed at start+k.
	remaining := ord.Amount
	if err := s.tokens.TransferNonFungible(ctx, s.account, buyer, ord.CollectionID, ord.StartIdx, remaining); err != nil {
		return fmt.Errorf("release tokens: %w", err)
	}

	if amount == remaining {
		if err := s.store.DeleteOrder(ctx, orderID); err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
	} else {
		giveBack := remaining - amount
		if err := s.tokens.TransferNonFungible(ctx, buyer, s.account, ord.CollectionID, ord.StartIdx, giveBack); err != nil {
			return fmt.Errorf("return unsold tail: %w", err)
		}
		newStart := custody.EndIdx - giveBack + 1
		unsold, err := s.tokens.GetToken(ctx, ord.CollectionID, newStart)
		if err != nil {
			return fmt.Errorf("resolve unsold tokens: %w", err)
		}
		ord.StartIdx = unsold.StartIdx
		ord.Amount = giveBack
		if err := s.store.PutOrder(ctx, ord); err != nil {
			return fmt.Errorf("store order: %w", err)
		}
	}

	s.events.Emit("order.sold", map[string]any{
		"order_id":      orderID,
		"collection_id": ord.CollectionID,
		"buyer":         buyer,
		"seller":        ord.Seller,
		"amount":        amount,
		"cost":          cost,
	})
	return nil
}

// CancelNFTOrder returns the escrowed tokens to the seller and deletes the
// order.
func (s *Service) CancelNFTOrder(ctx context.Context, seller string, orderID uint64) error {
	ord, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	if ord.Seller != seller {
		return ErrPermissionDenied
	}

	if err := s.tokens.TransferNonFungible(ctx, s.account, seller, ord.CollectionID, ord.StartIdx, ord.Amount); err != nil {
		return fmt.Errorf("return escrowed tokens: %w", err)
	}
	if err := s.store.DeleteOrder(ctx, orderID); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	s.events.Emit("order.cancelled", map[string]any{
		"order_id":      orderID,
		"collection_id": ord.CollectionID,
		"seller":        seller,
		"amount":        ord.Amount,
	})
	return nil
}

// CreateSemiTokenPool escrows amount fungible tokens and opens a
// bonding-curve pool running for duration blocks.
func (s *Service) CreateSemiTokenPool(ctx context.Context, seller, collectionID string, amount, reverseRatio, m, duration uint64) error {
	if reverseRatio < 1 {
		return ErrReverseRatioLessThanOne
	}
	if m < 1 {
		return ErrMLessThanOne
	}
	if amount < 1 {
		return ErrAmountLessThanOne
	}

	if _, err := s.store.GetPool(ctx, collectionID, seller); err == nil {
		return ErrPoolExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	exists, err := s.registry.Exists(ctx, collectionID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrCollectionNotFound
	}
	col, err := s.registry.Get(ctx, collectionID)
	if err != nil {
		return err
	}
	if col.TokenType != collection.TypeFungible {
		return ErrWrongTokenType
	}

	endTime, err := numeric.Add(s.clock.Current(), duration)
	if err != nil {
		return err
	}
	if err := s.tokens.TransferFungible(ctx, seller, s.account, collectionID, amount); err != nil {
		return fmt.Errorf("escrow pool stock: %w", err)
	}

	pool := exchange.Pool{
		CollectionID: collectionID,
		Seller:       seller,
		Supply:       amount,
		ReverseRatio: reverseRatio,
		M:            m,
		EndTime:      endTime,
	}
	if err := s.store.PutPool(ctx, pool); err != nil {
		return fmt.Errorf("store pool: %w", err)
	}

	s.events.Emit("pool.created", map[string]any{
		"collection_id": collectionID,
		"seller":        seller,
		"supply":        amount,
		"reverse_ratio": reverseRatio,
		"m":             m,
		"end_time":      endTime,
	})
	s.log.WithField("collection_id", collectionID).
		WithField("seller", seller).
		Info("bonding pool created")
	return nil
}

// BuySemiToken purchases amount tokens from a pool at the curve price.
func (s *Service) BuySemiToken(ctx context.Context, buyer, collectionID, seller string, amount uint64) error {
	if amount < 1 {
		return ErrAmountLessThanOne
	}
	pool, err := s.store.GetPool(ctx, collectionID, seller)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrPoolNotFound
	}
	if err != nil {
		return err
	}
	if amount > pool.Supply {
		return ErrAmountTooLarge
	}
	if s.clock.Current() > pool.EndTime {
		return ErrExpiredSoldTime
	}

	var cost uint64
	if pool.Sold == 0 {
		cost, err = FirstBuyCost(pool.ReverseRatio, pool.M, amount)
	} else {
		cost, err = BuyCost(pool.PoolBalance, amount, pool.Sold, pool.ReverseRatio)
	}
	if err != nil {
		return err
	}
	newBalance, err := numeric.Add(pool.PoolBalance, cost)
	if err != nil {
		return err
	}

	if cost > 0 {
		if err := s.currency.Transfer(ctx, buyer, s.account, cost); err != nil {
			return fmt.Errorf("pay pool: %w", err)
		}
	}
	if err := s.tokens.TransferFungible(ctx, s.account, buyer, collectionID, amount); err != nil {
		return fmt.Errorf("release pool stock: %w", err)
	}

	pool.Sold += amount
	pool.Supply -= amount
	pool.PoolBalance = newBalance
	if err := s.store.PutPool(ctx, pool); err != nil {
		return fmt.Errorf("store pool: %w", err)
	}

	s.events.Emit("pool.bought", map[string]any{
		"collection_id": collectionID,
		"seller":        seller,
		"buyer":         buyer,
		"amount":        amount,
		"cost":          cost,
	})
	return nil
}

// SellSemiToken sells amount tokens back to a pool for the curve payout.
func (s *Service) SellSemiToken(ctx context.Context, holder, collectionID, poolSeller string, amount uint64) error {
	if amount < 1 {
		return ErrAmountLessThanOne
	}
	pool, err := s.store.GetPool(ctx, collectionID, poolSeller)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrPoolNotFound
	}
	if err != nil {
		return err
	}
	if amount > pool.Sold {
		return ErrAmountTooLarge
	}
	if s.clock.Current() > pool.EndTime {
		return ErrExpiredSoldTime
	}

	receive, err := SellReceive(pool.PoolBalance, amount, pool.Sold, pool.ReverseRatio)
	if err != nil {
		return err
	}
	newBalance, err := numeric.Sub(pool.PoolBalance, receive)
	if err != nil {
		return err
	}
	newSupply, err := numeric.Add(pool.Supply, amount)
	if err != nil {
		return err
	}

	if err := s.tokens.TransferFungible(ctx, holder, s.account, collectionID, amount); err != nil {
		return fmt.Errorf("return pool stock: %w", err)
	}
	if receive > 0 {
		if err := s.currency.Transfer(ctx, s.account, holder, receive); err != nil {
			return fmt.Errorf("pay holder: %w", err)
		}
	}

	pool.Sold -= amount
	pool.Supply = newSupply
	pool.PoolBalance = newBalance
	if err := s.store.PutPool(ctx, pool); err != nil {
		return fmt.Errorf("store pool: %w", err)
	}

	s.events.Emit("pool.sold", map[string]any{
		"collection_id": collectionID,
		"seller":        poolSeller,
		"holder":        holder,
		"amount":        amount,
		"receive":       receive,
	})
	return nil
}

// WithdrawPool closes an expired pool and returns its remaining stock and
// balance to the creator.
func (s *Service) WithdrawPool(ctx context.Context, owner, collectionID string) error {
	pool, err := s.store.GetPool(ctx, collectionID, owner)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrPoolNotFound
	}
	if err != nil {
		return err
	}
	if s.clock.Current() <= pool.EndTime {
		return ErrCannotWithdraw
	}

	if pool.Supply > 0 {
		if err := s.tokens.TransferFungible(ctx, s.account, owner, collectionID, pool.Supply); err != nil {
			return fmt.Errorf("return pool stock: %w", err)
		}
	}
	if pool.PoolBalance > 0 {
		if err := s.currency.Transfer(ctx, s.account, owner, pool.PoolBalance); err != nil {
			return fmt.Errorf("return pool balance: %w", err)
		}
	}
	if err := s.store.DeletePool(ctx, collectionID, owner); err != nil {
		return fmt.Errorf("delete pool: %w", err)
	}

	s.events.Emit("pool.withdrawn", map[string]any{
		"collection_id": collectionID,
		"seller":        owner,
		"supply":        pool.Supply,
		"pool_balance":  pool.PoolBalance,
	})
	return nil
}

// GetOrder returns an open order.
func (s *Service) GetOrder(ctx context.Context, orderID uint64) (exchange.Order, error) {
	ord, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, storage.ErrNotFound) {
		return exchange.Order{}, ErrOrderNotFound
	}
	return ord, err
}

// ListOrders returns all open orders.
func (s *Service) ListOrders(ctx context.Context) ([]exchange.Order, error) {
	return s.store.ListOrders(ctx)
}

// GetPool returns a pool by collection and seller.
func (s *Service) GetPool(ctx context.Context, collectionID, seller string) (exchange.Pool, error) {
	pool, err := s.store.GetPool(ctx, collectionID, seller)
	if errors.Is(err, storage.ErrNotFound) {
		return exchange.Pool{}, ErrPoolNotFound
	}
	return pool, err
}

// ListPools returns all open pools.
func (s *Service) ListPools(ctx context.Context) ([]exchange.Pool, error) {
	return s.store.ListPools(ctx)
}
