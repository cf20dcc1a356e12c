// Package app composes the engine: it wires stores, chain capabilities, and
// the domain services together and owns their lifecycle. Business logic
// lives in the service packages, persistence in storage.
package app

import (
	"context"
	"fmt"

	"github.com/R3E-Network/token_engine/internal/app/chain"
	"github.com/R3E-Network/token_engine/internal/app/events"
	"github.com/R3E-Network/token_engine/internal/app/metrics"
	colsvc "github.com/R3E-Network/token_engine/internal/app/services/collection"
	daosvc "github.com/R3E-Network/token_engine/internal/app/services/dao"
	exchangesvc "github.com/R3E-Network/token_engine/internal/app/services/exchange"
	graphsvc "github.com/R3E-Network/token_engine/internal/app/services/graph"
	"github.com/R3E-Network/token_engine/internal/app/services/identifier"
	subtokensvc "github.com/R3E-Network/token_engine/internal/app/services/subtoken"
	toksvc "github.com/R3E-Network/token_engine/internal/app/services/token"
	"github.com/R3E-Network/token_engine/internal/app/storage"
	"github.com/R3E-Network/token_engine/internal/app/storage/memory"
	"github.com/R3E-Network/token_engine/internal/app/system"
	"github.com/R3E-Network/token_engine/pkg/logger"
)

// DefaultEventBuffer is the ring size of the event recorder when the caller
// does not supply one.
const DefaultEventBuffer = 1024

// Stores encapsulates persistence dependencies. Nil stores default to a
// shared in-memory implementation.
type Stores struct {
	Nonces      storage.NonceStore
	Collections storage.CollectionStore
	Tokens      storage.TokenStore
	Graph       storage.GraphStore
	SubTokens   storage.SubTokenStore
	Exchange    storage.ExchangeStore
	DAO         storage.DAOStore
}

// Options carries the injectable collaborators. Zero values get sensible
// in-process defaults, so app.New(app.Options{}) yields a working engine.
type Options struct {
	Stores   Stores
	Currency chain.Currency
	Clock    chain.BlockClock
	Random   chain.Randomness
	Hasher   chain.Hasher
	Executor chain.ActionExecutor
	Events   *events.Recorder
	Metrics  *metrics.Collector
	Logger   *logger.Logger
}

// Application ties the domain services together.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Events   *events.Recorder
	Metrics  *metrics.Collector
	Currency chain.Currency
	Clock    chain.BlockClock

	Identifiers *identifier.Service
	Collections *colsvc.Service
	Tokens      *toksvc.Service
	Graph       *graphsvc.Service
	SubTokens   *subtokensvc.Service
	Exchange    *exchangesvc.Service
	DAO         *daosvc.Service
}

// New builds a fully initialised application.
func New(opts Options) (*Application, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault("app")
	}

	stores := opts.Stores
	mem := memory.New()
	if stores.Nonces == nil {
		stores.Nonces = mem
	}
	if stores.Collections == nil {
		stores.Collections = mem
	}
	if stores.Tokens == nil {
		stores.Tokens = mem
	}
	if stores.Graph == nil {
		stores.Graph = mem
	}
	if stores.SubTokens == nil {
		stores.SubTokens = mem
	}
	if stores.Exchange == nil {
		stores.Exchange = mem
	}
	if stores.DAO == nil {
		stores.DAO = mem
	}

	currency := opts.Currency
	if currency == nil {
		currency = chain.NewBank()
	}
	clock := opts.Clock
	if clock == nil {
		clock = chain.NewManualClock(0)
	}
	random := opts.Random
	if random == nil {
		random = chain.CryptoRandomness{}
	}
	var hasher chain.Hasher = chain.SHA256{}
	if opts.Hasher != nil {
		hasher = opts.Hasher
	}
	executor := opts.Executor
	if executor == nil {
		executor = chain.NopExecutor{}
	}
	rec := opts.Events
	if rec == nil {
		rec = events.NewRecorder(DefaultEventBuffer)
	}
	collector := opts.Metrics
	if collector == nil {
		collector = metrics.NewCollector("")
	}

	ids := identifier.New(stores.Nonces, random, hasher, log.WithField("component", "identifier"))
	collections := colsvc.New(stores.Collections, ids, rec, log.WithField("component", "collection"))
	tokens := toksvc.New(collections, stores.Tokens, rec, log.WithField("component", "token"))
	linker := graphsvc.New(tokens, collections, stores.Graph, rec, log.WithField("component", "graph"))
	factory := subtokensvc.New(collections, tokens, stores.SubTokens, rec, log.WithField("component", "subtoken"))
	exchange := exchangesvc.New(tokens, collections, currency, clock, stores.Exchange, rec, log.WithField("component", "exchange"))
	governance := daosvc.New(ids, tokens, currency, clock, executor, stores.DAO, rec, log.WithField("component", "dao"))

	rec.Subscribe(func(events.Event) {
		collector.EventEmitted()
	})

	return &Application{
		manager:     system.NewManager(),
		log:         log,
		Events:      rec,
		Metrics:     collector,
		Currency:    currency,
		Clock:       clock,
		Identifiers: ids,
		Collections: collections,
		Tokens:      tokens,
		Graph:       linker,
		SubTokens:   factory,
		Exchange:    exchange,
		DAO:         governance,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before
// Start.
func (a *Application) Attach(svc system.Service) error {
	if err := a.manager.Register(svc); err != nil {
		return fmt.Errorf("register %s: %w", svc.Name(), err)
	}
	return nil
}

// Start begins all attached services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all attached services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
