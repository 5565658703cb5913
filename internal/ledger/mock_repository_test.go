package ledger

import (
	"context"

	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/stretchr/testify/mock"
)

// mockRepository embeds domain.Repository so only the methods under test
// need stubbing.
type mockRepository struct {
	mock.Mock
	domain.Repository
}

func (m *mockRepository) InsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	args := m.Called(ctx, txs)
	return args.Error(0)
}

func (m *mockRepository) SumAmounts(ctx context.Context, asOf *domain.Date) (float64, error) {
	args := m.Called(ctx, asOf)
	return args.Get(0).(float64), args.Error(1)
}
