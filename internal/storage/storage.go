// Package storage implements domain.Repository in memory and on SQLite.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/grachmannico95/bank-ledger/internal/config"
	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/pkg/logger"
)

const (
	KindSQLite = "sqlite"
	KindMemory = "memory"
)

// Store is a repository that holds resources until closed.
type Store interface {
	domain.Repository
	io.Closer
	Kind() string
	Ping(ctx context.Context) error
}

// Open returns the store selected by cfg.Store. The caller owns it and must
// close it.
func Open(ctx context.Context, cfg config.LedgerConfig, log *logger.Logger) (Store, error) {
	switch cfg.Store {
	case KindSQLite, "":
		return NewSQLiteStore(ctx, cfg.DBPath, log, WithCommitRetries(cfg.CommitRetries))
	case KindMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store %q, expected %s or %s", cfg.Store, KindSQLite, KindMemory)
	}
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
