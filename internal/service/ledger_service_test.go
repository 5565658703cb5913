package service

import (
	"context"
	"testing"

	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/internal/ledger"
	"github.com/grachmannico95/bank-ledger/internal/storage"
	"github.com/grachmannico95/bank-ledger/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerService(t *testing.T) (LedgerService, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	l := ledger.New(store, logger.NewNop())
	return NewLedgerService(store, l, domain.DefaultAccountConfig(), logger.NewNop()), store
}

func TestLedgerService_AccountDefaultsUntilSaved(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	cfg, err := svc.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAccountConfig(), cfg)

	require.NoError(t, svc.SetAccount(ctx, domain.AccountConfig{Type: domain.AccountTypeCredit, CreditLimit: 20000}))

	cfg, err = svc.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountTypeCredit, cfg.Type)
	assert.Equal(t, 20000.0, cfg.CreditLimit)
	assert.Equal(t, "USD", cfg.HomeCurrency)
}

func TestLedgerService_SetAccountValidates(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	err := svc.SetAccount(ctx, domain.AccountConfig{Type: "Savings"})
	assert.ErrorIs(t, err, domain.ErrUnknownAccountType)

	err = svc.SetAccount(ctx, domain.AccountConfig{Type: domain.AccountTypeCredit, CreditLimit: -5})
	assert.ErrorIs(t, err, domain.ErrInvalidCreditLimit)

	cfg, err := svc.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountTypeDebit, cfg.Type)
}

func TestLedgerService_QueriesAndClear(t *testing.T) {
	svc, store := newLedgerService(t)
	ctx := context.Background()

	require.NoError(t, store.InsertTransactions(ctx, []domain.Transaction{
		{Reference: "AAAAAAAAAAAAAAA1", Date: domain.MustParseDate("2023-07-01"), Amount: 10, Currency: "USD"},
		{Reference: "AAAAAAAAAAAAAAA2", Date: domain.MustParseDate("2023-07-05"), Amount: 5, Currency: "USD"},
	}))

	asOf := domain.MustParseDate("2023-07-02")
	balance, err := svc.Balance(ctx, &asOf)
	require.NoError(t, err)
	assert.Equal(t, 10.0, balance)

	txs, err := svc.Transactions(ctx, &asOf, nil)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "AAAAAAAAAAAAAAA2", txs[0].Reference)

	n, err := svc.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	runs, err := svc.ImportRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = svc.ImportRun(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrImportRunNotFound)
}

func TestLedgerService_SetAccountNormalizesCurrency(t *testing.T) {
	svc, _ := newLedgerService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetAccount(ctx, domain.AccountConfig{Type: domain.AccountTypeDebit, HomeCurrency: " eur "}))

	cfg, err := svc.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, "EUR", cfg.HomeCurrency)
}

func TestLedgerService_HomeCurrencyLockedByStoredRows(t *testing.T) {
	svc, store := newLedgerService(t)
	ctx := context.Background()

	require.NoError(t, store.InsertTransactions(ctx, []domain.Transaction{
		{Reference: "AAAAAAAAAAAAAAA1", Date: domain.MustParseDate("2023-07-01"), Amount: 100, Currency: "USD"},
	}))

	err := svc.SetAccount(ctx, domain.AccountConfig{Type: domain.AccountTypeDebit, HomeCurrency: "EUR"})
	assert.ErrorIs(t, err, domain.ErrHomeCurrencyInUse)

	cfg, err := svc.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USD", cfg.HomeCurrency)

	// same currency, different type is fine
	require.NoError(t, svc.SetAccount(ctx, domain.AccountConfig{Type: domain.AccountTypeCredit, CreditLimit: 50, HomeCurrency: "usd"}))

	// an empty ledger accepts a new currency
	_, err = svc.Clear(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.SetAccount(ctx, domain.AccountConfig{Type: domain.AccountTypeDebit, HomeCurrency: "EUR"}))
}
