package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/internal/ledger"
	"github.com/grachmannico95/bank-ledger/internal/policy"
	"github.com/grachmannico95/bank-ledger/internal/rates"
	"github.com/grachmannico95/bank-ledger/internal/reference"
	"github.com/grachmannico95/bank-ledger/pkg/logger"
)

const batchFieldCount = 5

// RowIssue describes a batch row that was skipped.
type RowIssue struct {
	Line      int      `json:"line" yaml:"line"`
	Reference string   `json:"transaction_reference,omitempty" yaml:"transaction_reference,omitempty"`
	Row       []string `json:"row" yaml:"row"`
	Err       error    `json:"-" yaml:"-"`
}

func (i RowIssue) Error() string {
	if i.Reference != "" {
		return fmt.Sprintf("line %d (%s): %v", i.Line, i.Reference, i.Err)
	}
	return fmt.Sprintf("line %d: %v", i.Line, i.Err)
}

// batchStager validates rows in order and keeps the accepted ones, already
// converted to the home currency, until the whole batch is known to be good.
type batchStager struct {
	ledger    *ledger.Ledger
	table     *rates.Table
	account   domain.AccountConfig
	logger    *logger.Logger
	projected float64
	staged    []domain.Transaction
	seen      map[string]struct{}
	skipped   []RowIssue
}

func newBatchStager(l *ledger.Ledger, table *rates.Table, account domain.AccountConfig, initial float64, log *logger.Logger) *batchStager {
	return &batchStager{
		ledger:    l,
		table:     table,
		account:   account,
		logger:    log,
		projected: initial,
		seen:      make(map[string]struct{}),
	}
}

// stage takes one data row. Row-level problems are recorded as skips and
// yield nil. A returned error either aborts the batch (isBatchAbort) or is
// fatal.
func (b *batchStager) stage(ctx context.Context, line int, record []string) error {
	tx, err := parseBatchRow(record)
	if err != nil {
		b.skip(ctx, line, tx.Reference, record, err)
		return nil
	}

	if _, dup := b.seen[tx.Reference]; dup {
		b.skip(ctx, line, tx.Reference, record, fmt.Errorf("%w: repeated in batch", domain.ErrDuplicateReference))
		return nil
	}
	exists, err := b.ledger.Exists(ctx, tx.Reference)
	if err != nil {
		return fmt.Errorf("%w: check reference %s: %v", domain.ErrFatalIO, tx.Reference, err)
	}
	if exists {
		b.skip(ctx, line, tx.Reference, record, fmt.Errorf("%w: already imported", domain.ErrDuplicateReference))
		return nil
	}

	converted, err := b.table.Convert(tx.Amount, tx.Currency, b.account.HomeCurrency, tx.Date)
	if err != nil {
		return err
	}

	projected := b.projected + converted
	if err := policy.CheckAccount(b.account, projected); err != nil {
		return err
	}

	b.projected = projected
	b.seen[tx.Reference] = struct{}{}
	tx.Amount = converted
	tx.Currency = b.account.HomeCurrency
	b.staged = append(b.staged, tx)

	b.logger.Debug(ctx, "Row staged",
		"line", line,
		"reference", tx.Reference,
		"amount", converted,
		"projected_balance", projected,
	)
	return nil
}

func (b *batchStager) skip(ctx context.Context, line int, ref string, record []string, err error) {
	b.logger.Warn(ctx, "Skipping batch row",
		"line", line,
		"reference", ref,
		"error", err,
	)
	b.skipped = append(b.skipped, RowIssue{
		Line:      line,
		Reference: ref,
		Row:       append([]string(nil), record...),
		Err:       err,
	})
}

// parseBatchRow reads "transaction_reference,date,description,amount,currency".
// The returned transaction carries the reference whenever one was read so
// skips can be reported against it.
func parseBatchRow(record []string) (domain.Transaction, error) {
	if len(record) != batchFieldCount {
		return domain.Transaction{}, fmt.Errorf("%w: expected %d fields, got %d", domain.ErrMalformedRow, batchFieldCount, len(record))
	}

	tx := domain.Transaction{
		Reference:   strings.TrimSpace(record[0]),
		Description: strings.TrimSpace(record[2]),
		Currency:    strings.TrimSpace(record[4]),
	}

	date, err := domain.ParseDate(strings.TrimSpace(record[1]))
	if err != nil {
		return tx, err
	}
	tx.Date = date

	amount, err := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return tx, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, record[3])
	}
	tx.Amount = amount

	if !reference.IsValid(tx.Reference) {
		return tx, fmt.Errorf("%w: %q must be %d letters or digits", domain.ErrInvalidReference, tx.Reference, reference.Length)
	}

	return tx, nil
}

func isBatchAbort(err error) bool {
	return errors.Is(err, domain.ErrConversionUnavailable) || errors.Is(err, domain.ErrBalanceViolation)
}
