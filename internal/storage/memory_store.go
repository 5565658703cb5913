package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/grachmannico95/bank-ledger/internal/domain"
)

type MemoryStore struct {
	transactions    []domain.Transaction
	references      map[string]struct{}
	account         *domain.AccountConfig
	importRuns      []domain.ImportRun
	processedEvents map[string]bool
	mu              sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		references:      make(map[string]struct{}),
		processedEvents: make(map[string]bool),
	}
}

// InsertTransactions appends txs in order, or nothing at all if any
// reference is already stored or repeated within txs.
func (s *MemoryStore) InsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		if _, exists := s.references[tx.Reference]; exists {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateReference, tx.Reference)
		}
		if _, exists := seen[tx.Reference]; exists {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateReference, tx.Reference)
		}
		seen[tx.Reference] = struct{}{}
	}

	for _, tx := range txs {
		s.transactions = append(s.transactions, tx)
		s.references[tx.Reference] = struct{}{}
	}

	return nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := []domain.Transaction{}
	for _, tx := range s.transactions {
		if filter.Includes(tx.Date) {
			filtered = append(filtered, tx)
		}
	}

	// Stable sort keeps insertion order within a date.
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Date.Before(filtered[j].Date)
	})

	return filtered, nil
}

func (s *MemoryStore) SumAmounts(ctx context.Context, asOf *domain.Date) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var balance float64
	for _, tx := range s.transactions {
		if asOf != nil && tx.Date.After(*asOf) {
			continue
		}
		balance += tx.Amount
	}

	return balance, nil
}

func (s *MemoryStore) TransactionExists(ctx context.Context, reference string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.references[reference]
	return exists, nil
}

func (s *MemoryStore) DeleteAllTransactions(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.transactions)
	s.transactions = nil
	s.references = make(map[string]struct{})

	return n, nil
}

func (s *MemoryStore) GetAccountConfig(ctx context.Context) (*domain.AccountConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.account == nil {
		return nil, domain.ErrAccountNotConfigured
	}

	cfg := *s.account
	return &cfg, nil
}

func (s *MemoryStore) SaveAccountConfig(ctx context.Context, cfg domain.AccountConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.account = &cfg

	return nil
}

func (s *MemoryStore) RecordImportRun(ctx context.Context, run domain.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.importRuns {
		if s.importRuns[i].ID == run.ID {
			s.importRuns[i] = run
			return nil
		}
	}
	s.importRuns = append(s.importRuns, run)

	return nil
}

func (s *MemoryStore) GetImportRun(ctx context.Context, id string) (*domain.ImportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, run := range s.importRuns {
		if run.ID == id {
			found := run
			return &found, nil
		}
	}

	return nil, domain.ErrImportRunNotFound
}

// ListImportRuns returns runs newest first.
func (s *MemoryStore) ListImportRuns(ctx context.Context) ([]domain.ImportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]domain.ImportRun, len(s.importRuns))
	copy(runs, s.importRuns)
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	return runs, nil
}

func (s *MemoryStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.processedEvents[eventID], nil
}

func (s *MemoryStore) MarkEventProcessed(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processedEvents[eventID] = true

	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) Kind() string { return KindMemory }

func (s *MemoryStore) Ping(context.Context) error { return nil }
