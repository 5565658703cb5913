// Package ledger is the read and commit surface over the transaction store.
package ledger

import (
	"context"
	"fmt"

	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/pkg/logger"
)

type Ledger struct {
	repo   domain.Repository
	logger *logger.Logger
}

func New(repo domain.Repository, log *logger.Logger) *Ledger {
	return &Ledger{
		repo:   repo,
		logger: log,
	}
}

// BalanceAsOf sums every stored amount dated on or before asOf.
// A nil asOf sums the whole ledger.
func (l *Ledger) BalanceAsOf(ctx context.Context, asOf *domain.Date) (float64, error) {
	balance, err := l.repo.SumAmounts(ctx, asOf)
	if err != nil {
		l.logger.Error(ctx, "Failed to compute balance",
			"as_of", asOf,
			"error", err,
		)
		return 0, fmt.Errorf("compute balance: %w", err)
	}
	return balance, nil
}

// TransactionsInRange lists transactions dated within [start, end], ordered
// by date and then by insertion order. Either bound may be nil.
func (l *Ledger) TransactionsInRange(ctx context.Context, start, end *domain.Date) ([]domain.Transaction, error) {
	txs, err := l.repo.ListTransactions(ctx, domain.TransactionFilter{Start: start, End: end})
	if err != nil {
		l.logger.Error(ctx, "Failed to list transactions",
			"start", start,
			"end", end,
			"error", err,
		)
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (l *Ledger) Exists(ctx context.Context, reference string) (bool, error) {
	return l.repo.TransactionExists(ctx, reference)
}

// CommitAll persists rows as a single atomic unit.
func (l *Ledger) CommitAll(ctx context.Context, rows []domain.Transaction) error {
	if len(rows) == 0 {
		return nil
	}

	if err := l.repo.InsertTransactions(ctx, rows); err != nil {
		l.logger.Error(ctx, "Failed to commit transactions",
			"count", len(rows),
			"error", err,
		)
		return fmt.Errorf("commit %d transactions: %w", len(rows), err)
	}

	l.logger.Info(ctx, "Transactions committed",
		"count", len(rows),
	)
	return nil
}

// ClearAll deletes every stored transaction and returns how many were removed.
func (l *Ledger) ClearAll(ctx context.Context) (int, error) {
	n, err := l.repo.DeleteAllTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear ledger: %w", err)
	}

	l.logger.Warn(ctx, "Ledger cleared",
		"deleted", n,
	)
	return n, nil
}
