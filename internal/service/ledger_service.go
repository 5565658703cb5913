package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/internal/ledger"
	"github.com/grachmannico95/bank-ledger/pkg/logger"
)

// LedgerService answers balance and history queries and manages the stored
// account configuration.
type LedgerService interface {
	Balance(ctx context.Context, asOf *domain.Date) (float64, error)
	Transactions(ctx context.Context, start, end *domain.Date) ([]domain.Transaction, error)
	Account(ctx context.Context) (domain.AccountConfig, error)
	SetAccount(ctx context.Context, cfg domain.AccountConfig) error
	ImportRuns(ctx context.Context) ([]domain.ImportRun, error)
	ImportRun(ctx context.Context, id string) (*domain.ImportRun, error)
	Clear(ctx context.Context) (int, error)
}

type ledgerService struct {
	ledger   *ledger.Ledger
	repo     domain.Repository
	defaults domain.AccountConfig
	logger   *logger.Logger
}

// NewLedgerService returns a LedgerService. defaults is the account used
// until one has been saved.
func NewLedgerService(repo domain.Repository, l *ledger.Ledger, defaults domain.AccountConfig, log *logger.Logger) LedgerService {
	return &ledgerService{
		ledger:   l,
		repo:     repo,
		defaults: defaults,
		logger:   log,
	}
}

func (s *ledgerService) Balance(ctx context.Context, asOf *domain.Date) (float64, error) {
	return s.ledger.BalanceAsOf(ctx, asOf)
}

func (s *ledgerService) Transactions(ctx context.Context, start, end *domain.Date) ([]domain.Transaction, error) {
	return s.ledger.TransactionsInRange(ctx, start, end)
}

func (s *ledgerService) Account(ctx context.Context) (domain.AccountConfig, error) {
	cfg, err := s.repo.GetAccountConfig(ctx)
	if errors.Is(err, domain.ErrAccountNotConfigured) {
		return s.defaults, nil
	}
	if err != nil {
		s.logger.Error(ctx, "Failed to read account configuration",
			"error", err,
		)
		return domain.AccountConfig{}, err
	}
	return *cfg, nil
}

// SetAccount saves cfg. Stored amounts are in the current home currency, so
// the currency may only change while the ledger is empty.
func (s *ledgerService) SetAccount(ctx context.Context, cfg domain.AccountConfig) error {
	cfg.HomeCurrency = strings.ToUpper(strings.TrimSpace(cfg.HomeCurrency))
	if cfg.HomeCurrency == "" {
		cfg.HomeCurrency = s.defaults.HomeCurrency
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	current, err := s.Account(ctx)
	if err != nil {
		return err
	}
	if current.HomeCurrency != cfg.HomeCurrency {
		txs, err := s.ledger.TransactionsInRange(ctx, nil, nil)
		if err != nil {
			return err
		}
		if len(txs) > 0 {
			s.logger.Warn(ctx, "Refusing home currency change",
				"from", current.HomeCurrency,
				"to", cfg.HomeCurrency,
				"transactions", len(txs),
			)
			return fmt.Errorf("%w: %d transactions are stored in %s", domain.ErrHomeCurrencyInUse, len(txs), current.HomeCurrency)
		}
	}

	if err := s.repo.SaveAccountConfig(ctx, cfg); err != nil {
		s.logger.Error(ctx, "Failed to save account configuration",
			"error", err,
		)
		return err
	}

	s.logger.Info(ctx, "Account configuration saved",
		"account_type", cfg.Type,
		"credit_limit", cfg.CreditLimit,
		"home_currency", cfg.HomeCurrency,
	)
	return nil
}

func (s *ledgerService) ImportRuns(ctx context.Context) ([]domain.ImportRun, error) {
	return s.repo.ListImportRuns(ctx)
}

func (s *ledgerService) ImportRun(ctx context.Context, id string) (*domain.ImportRun, error) {
	return s.repo.GetImportRun(ctx, id)
}

func (s *ledgerService) Clear(ctx context.Context) (int, error) {
	return s.ledger.ClearAll(ctx)
}
