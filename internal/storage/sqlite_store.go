package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/pkg/logger"
	"github.com/grachmannico95/bank-ledger/pkg/retry"
	"github.com/mattn/go-sqlite3"
)

const (
	memoryPath = ":memory:"
	// fixed width so stored timestamps sort lexically
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// SQLiteStore keeps the ledger in a single SQLite file.
type SQLiteStore struct {
	db            *sql.DB
	path          string
	logger        *logger.Logger
	commitRetries int
	retryDelay    time.Duration
}

type SQLiteOption func(*SQLiteStore)

// WithCommitRetries sets how many times a commit is attempted while the
// database reports itself busy or locked.
func WithCommitRetries(n int) SQLiteOption {
	return func(s *SQLiteStore) {
		s.commitRetries = n
	}
}

func WithRetryDelay(d time.Duration) SQLiteOption {
	return func(s *SQLiteStore) {
		s.retryDelay = d
	}
}

// NewSQLiteStore opens the database at path, creating its directory if
// needed, and migrates the schema to the latest version.
func NewSQLiteStore(ctx context.Context, path string, log *logger.Logger, opts ...SQLiteOption) (*SQLiteStore, error) {
	dsn := memoryPath
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("%w: create database directory: %w", domain.ErrFatalIO, err)
		}
		dsn = fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", domain.ErrFatalIO, err)
	}
	if path == memoryPath {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %w", domain.ErrFatalIO, err)
	}

	pre, post, err := migrateUp(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrFatalIO, err)
	}
	log.Debug(ctx, "Database schema ready",
		"path", path,
		"pre_migration_version", pre,
		"post_migration_version", post,
	)

	s := &SQLiteStore{
		db:            db,
		path:          path,
		logger:        log,
		commitRetries: 3,
		retryDelay:    100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Kind() string { return KindSQLite }

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrFatalIO, err)
	}
	return nil
}

// InsertTransactions writes txs in one database transaction. Busy or locked
// commits are retried; everything else rolls back and is returned.
func (s *SQLiteStore) InsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	return retry.Do(ctx, func() error {
		err := s.insertTransactions(ctx, txs)
		if isBusy(err) {
			s.logger.Warn(ctx, "Database busy, retrying commit",
				"count", len(txs),
				"error", err,
			)
		}
		return err
	},
		retry.WithMaxAttempts(s.commitRetries),
		retry.WithBaseDelay(s.retryDelay),
		retry.WithMaxDelay(2*time.Second),
		retry.WithRetryable(isBusy),
	)
}

func (s *SQLiteStore) insertTransactions(ctx context.Context, txs []domain.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (transaction_reference, date, description, amount, currency)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		_, err := stmt.ExecContext(ctx, t.Reference, t.Date.String(), t.Description, t.Amount, t.Currency)
		if err != nil {
			if isConstraint(err) {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateReference, t.Reference)
			}
			return fmt.Errorf("insert %s: %w", t.Reference, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	query := `SELECT transaction_reference, date, description, amount, currency FROM transactions WHERE 1=1`
	var args []interface{}
	if filter.Start != nil {
		query += ` AND date >= ?`
		args = append(args, filter.Start.String())
	}
	if filter.End != nil {
		query += ` AND date <= ?`
		args = append(args, filter.End.String())
	}
	query += ` ORDER BY date, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := []domain.Transaction{}
	for rows.Next() {
		var (
			t       domain.Transaction
			rawDate string
		)
		if err := rows.Scan(&t.Reference, &rawDate, &t.Description, &t.Amount, &t.Currency); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Date, err = domain.ParseDate(rawDate)
		if err != nil {
			return nil, fmt.Errorf("stored transaction %s: %w", t.Reference, err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return txs, nil
}

func (s *SQLiteStore) SumAmounts(ctx context.Context, asOf *domain.Date) (float64, error) {
	var (
		balance float64
		err     error
	)
	if asOf == nil {
		err = s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM transactions`).Scan(&balance)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE date <= ?`, asOf.String()).Scan(&balance)
	}
	if err != nil {
		return 0, fmt.Errorf("sum amounts: %w", err)
	}
	return balance, nil
}

func (s *SQLiteStore) TransactionExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM transactions WHERE transaction_reference = ?)`, reference,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check reference %s: %w", reference, err)
	}
	return exists, nil
}

func (s *SQLiteStore) DeleteAllTransactions(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions`)
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) GetAccountConfig(ctx context.Context) (*domain.AccountConfig, error) {
	var (
		cfg         domain.AccountConfig
		accountType string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT account_type, credit_limit, home_currency FROM account_config WHERE id = 1`,
	).Scan(&accountType, &cfg.CreditLimit, &cfg.HomeCurrency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("read account config: %w", err)
	}
	cfg.Type = domain.AccountType(accountType)
	return &cfg, nil
}

func (s *SQLiteStore) SaveAccountConfig(ctx context.Context, cfg domain.AccountConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_config (id, account_type, credit_limit, home_currency, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_type = excluded.account_type,
			credit_limit = excluded.credit_limit,
			home_currency = excluded.home_currency,
			updated_at = excluded.updated_at`,
		string(cfg.Type), cfg.CreditLimit, cfg.HomeCurrency, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("save account config: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordImportRun(ctx context.Context, run domain.ImportRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO import_runs (
			id, status, batch_name, rates_name, rows_read, rows_committed, rows_skipped,
			initial_balance, final_balance, abort_reason, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), run.BatchName, run.RatesName,
		run.RowsRead, run.RowsCommitted, run.RowsSkipped,
		run.InitialBalance, run.FinalBalance, run.AbortReason,
		run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record import run %s: %w", run.ID, err)
	}
	return nil
}

const importRunColumns = `id, status, batch_name, rates_name, rows_read, rows_committed, rows_skipped,
	initial_balance, final_balance, abort_reason, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanImportRun(row rowScanner) (domain.ImportRun, error) {
	var (
		run                 domain.ImportRun
		status              string
		startedAt, finished string
	)
	err := row.Scan(&run.ID, &status, &run.BatchName, &run.RatesName,
		&run.RowsRead, &run.RowsCommitted, &run.RowsSkipped,
		&run.InitialBalance, &run.FinalBalance, &run.AbortReason,
		&startedAt, &finished)
	if err != nil {
		return run, err
	}

	run.Status = domain.ImportStatus(status)
	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return run, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return run, fmt.Errorf("parse finished_at: %w", err)
	}
	return run, nil
}

func (s *SQLiteStore) GetImportRun(ctx context.Context, id string) (*domain.ImportRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+importRunColumns+` FROM import_runs WHERE id = ?`, id)
	run, err := scanImportRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrImportRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read import run %s: %w", id, err)
	}
	return &run, nil
}

// ListImportRuns returns runs newest first.
func (s *SQLiteStore) ListImportRuns(ctx context.Context) ([]domain.ImportRun, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+importRunColumns+` FROM import_runs ORDER BY started_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query import runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.ImportRun{}
	for rows.Next() {
		run, err := scanImportRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan import run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate import runs: %w", err)
	}
	return runs, nil
}

func (s *SQLiteStore) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = ?)`, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check event %s: %w", eventID, err)
	}
	return exists, nil
}

func (s *SQLiteStore) MarkEventProcessed(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_events (event_id, processed_at) VALUES (?, ?)`,
		eventID, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("mark event %s: %w", eventID, err)
	}
	return nil
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

func isConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}
