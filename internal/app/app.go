// Package app wires the store, ledger, audit bus and services for one
// process run.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/grachmannico95/bank-ledger/internal/config"
	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/internal/eventbus"
	"github.com/grachmannico95/bank-ledger/internal/handler"
	"github.com/grachmannico95/bank-ledger/internal/ledger"
	"github.com/grachmannico95/bank-ledger/internal/rates"
	"github.com/grachmannico95/bank-ledger/internal/server"
	"github.com/grachmannico95/bank-ledger/internal/service"
	"github.com/grachmannico95/bank-ledger/internal/storage"
	"github.com/grachmannico95/bank-ledger/pkg/logger"
)

type App struct {
	Config  *config.Config
	Logger  *logger.Logger
	Store   storage.Store
	Ledger  *ledger.Ledger
	Bus     eventbus.EventBus
	Imports service.ImportService
	Queries service.LedgerService
}

// DefaultAccount builds the account used until one is saved.
func DefaultAccount(cfg config.LedgerConfig) (domain.AccountConfig, error) {
	accountType, err := domain.ParseAccountType(cfg.AccountType)
	if err != nil {
		return domain.AccountConfig{}, err
	}
	account := domain.AccountConfig{
		Type:         accountType,
		CreditLimit:  cfg.CreditLimit,
		HomeCurrency: strings.ToUpper(strings.TrimSpace(cfg.HomeCurrency)),
	}
	if err := account.Validate(); err != nil {
		return domain.AccountConfig{}, err
	}
	return account, nil
}

// Open acquires the store and starts the audit bus. The caller must Close
// the returned App.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	defaults, err := DefaultAccount(cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("account defaults: %w", err)
	}

	strategy, err := rates.ParseStrategy(cfg.Ledger.RateStrategy)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.Ledger, log)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New(log, &eventbus.Config{
		ChannelBuffer: cfg.EventBus.ChannelBufferSize,
		MaxRetries:    cfg.Worker.MaxRetries,
		RetryDelay:    100 * time.Millisecond,
	})
	auditConsumer := eventbus.NewAuditConsumer(store, log, cfg.Worker.PoolSize)
	if err := bus.Subscribe(eventbus.EventTypeImportFinished, auditConsumer); err != nil {
		store.Close()
		return nil, fmt.Errorf("subscribe audit consumer: %w", err)
	}
	if err := bus.Start(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("start event bus: %w", err)
	}

	l := ledger.New(store, log)

	return &App{
		Config:  cfg,
		Logger:  log,
		Store:   store,
		Ledger:  l,
		Bus:     bus,
		Imports: service.NewImportService(l, bus, log, service.WithRateStrategy(strategy)),
		Queries: service.NewLedgerService(store, l, defaults, log),
	}, nil
}

// Server builds the HTTP server over the app's services.
func (a *App) Server() *server.Server {
	return server.New(
		a.Config,
		a.Logger,
		handler.NewLedgerHandler(a.Imports, a.Queries, a.Logger),
		handler.NewHealthHandler(a.Store),
	)
}

// Close drains pending audit events and then releases the store.
func (a *App) Close(ctx context.Context) error {
	busErr := a.Bus.Shutdown(ctx)
	if busErr != nil {
		a.Logger.Error(ctx, "Event bus shutdown error",
			"error", busErr,
		)
	}
	return errors.Join(busErr, a.Store.Close())
}
