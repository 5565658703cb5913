package domain

import "context"

type Repository interface {
	// Transaction store
	InsertTransactions(ctx context.Context, txs []Transaction) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	SumAmounts(ctx context.Context, asOf *Date) (float64, error)
	TransactionExists(ctx context.Context, reference string) (bool, error)
	DeleteAllTransactions(ctx context.Context) (int, error)

	// Account configuration
	GetAccountConfig(ctx context.Context) (*AccountConfig, error)
	SaveAccountConfig(ctx context.Context, cfg AccountConfig) error

	// Import audit trail
	RecordImportRun(ctx context.Context, run ImportRun) error
	GetImportRun(ctx context.Context, id string) (*ImportRun, error)
	ListImportRuns(ctx context.Context) ([]ImportRun, error)

	// Idempotency tracking
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID string) error
}
