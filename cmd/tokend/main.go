// Command tokend runs the token engine daemon: the accounting services, the
// block ticker, and the REST API in one process.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/R3E-Network/token_engine/internal/app"
	"github.com/R3E-Network/token_engine/internal/app/chain"
	"github.com/R3E-Network/token_engine/internal/app/events"
	"github.com/R3E-Network/token_engine/internal/app/httpapi"
	"github.com/R3E-Network/token_engine/internal/app/storage/postgres"
	"github.com/R3E-Network/token_engine/internal/app/ticker"
	"github.com/R3E-Network/token_engine/internal/config"
	"github.com/R3E-Network/token_engine/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		logger.NewDefault("tokend").WithError(err).Error("daemon exited")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		Pretty:    cfg.Logging.Pretty,
		Component: "tokend",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var stores app.Stores
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		store := postgres.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		stores = app.Stores{
			Nonces:      store,
			Collections: store,
			Tokens:      store,
			Graph:       store,
			SubTokens:   store,
			Exchange:    store,
			DAO:         store,
		}
		log.Info("using postgres storage")
	} else {
		log.Info("using in-memory storage")
	}

	clock := chain.NewManualClock(0)
	application, err := app.New(app.Options{
		Stores: stores,
		Clock:  clock,
		Events: events.NewRecorder(cfg.Engine.EventBuffer),
		Logger: log,
	})
	if err != nil {
		return err
	}
	if err := application.Attach(ticker.New(clock, cfg.Engine.BlockCron, log.WithField("component", "ticker"))); err != nil {
		return err
	}
	if err := application.Start(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httpapi.NewHandler(application),
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.HTTP.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.HTTP.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Warn("http shutdown")
	}
	return application.Stop(shutdownCtx)
}
