package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/internal/eventbus"
	"github.com/grachmannico95/bank-ledger/internal/ledger"
	"github.com/grachmannico95/bank-ledger/internal/policy"
	"github.com/grachmannico95/bank-ledger/internal/rates"
	"github.com/grachmannico95/bank-ledger/internal/reference"
	"github.com/grachmannico95/bank-ledger/pkg/logger"
)

type ImportService interface {
	Import(ctx context.Context, req ImportRequest) (*ImportResult, error)
	Record(ctx context.Context, req RecordRequest) (*RecordResult, error)
}

type ImportRequest struct {
	Batch     io.Reader
	Rates     io.Reader
	BatchName string
	RatesName string
	Account   domain.AccountConfig
}

// ImportResult is the outcome of an import that ran to completion, whether
// the batch was committed or rolled back.
type ImportResult struct {
	RunID          string               `json:"run_id" yaml:"run_id"`
	Status         domain.ImportStatus  `json:"status" yaml:"status"`
	Account        domain.AccountConfig `json:"account" yaml:"account"`
	InitialBalance float64              `json:"initial_balance" yaml:"initial_balance"`
	FinalBalance   float64              `json:"final_balance" yaml:"final_balance"`
	RowsRead       int                  `json:"rows_read" yaml:"rows_read"`
	Committed      []domain.Transaction `json:"committed" yaml:"committed"`
	// Transactions is the whole ledger after a commit.
	Transactions   []domain.Transaction `json:"transactions" yaml:"transactions"`
	Skipped        []RowIssue           `json:"skipped" yaml:"skipped"`
	RateIssues     []rates.RowIssue     `json:"rate_issues" yaml:"rate_issues"`
	AbortLine      int                  `json:"abort_line,omitempty" yaml:"abort_line,omitempty"`
	AbortReason    string               `json:"abort_reason,omitempty" yaml:"abort_reason,omitempty"`
	AbortErr       error                `json:"-" yaml:"-"`
	StartedAt      time.Time            `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time            `json:"finished_at" yaml:"finished_at"`
}

func (r *ImportResult) Succeeded() bool {
	return r.Status == domain.ImportStatusCommitted
}

func (r *ImportResult) run(batchName, ratesName string) domain.ImportRun {
	return domain.ImportRun{
		ID:             r.RunID,
		Status:         r.Status,
		BatchName:      batchName,
		RatesName:      ratesName,
		RowsRead:       r.RowsRead,
		RowsCommitted:  len(r.Committed),
		RowsSkipped:    len(r.Skipped),
		InitialBalance: r.InitialBalance,
		FinalBalance:   r.FinalBalance,
		AbortReason:    r.AbortReason,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
	}
}

type RecordRequest struct {
	Date        domain.Date
	Description string
	Amount      float64
	Account     domain.AccountConfig
}

type RecordResult struct {
	Transaction domain.Transaction `json:"transaction" yaml:"transaction"`
	Balance     float64            `json:"balance" yaml:"balance"`
}

type importService struct {
	// mu serializes writers: the balance read, staging and commit of one
	// import must not interleave with another.
	mu       sync.Mutex
	ledger   *ledger.Ledger
	bus      eventbus.EventBus
	strategy rates.Strategy
	logger   *logger.Logger
	now      func() time.Time
}

type ImportOption func(*importService)

func WithRateStrategy(s rates.Strategy) ImportOption {
	return func(svc *importService) {
		svc.strategy = s
	}
}

func WithClock(now func() time.Time) ImportOption {
	return func(svc *importService) {
		svc.now = now
	}
}

// NewImportService wires the pipeline. bus may be nil, in which case no
// audit events are published.
func NewImportService(l *ledger.Ledger, bus eventbus.EventBus, log *logger.Logger, opts ...ImportOption) ImportService {
	svc := &importService{
		ledger:   l,
		bus:      bus,
		strategy: rates.StrategyRatio,
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *importService) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &ImportResult{
		RunID:        uuid.New().String(),
		Account:      req.Account,
		StartedAt:    s.now(),
		Committed:    []domain.Transaction{},
		Transactions: []domain.Transaction{},
		Skipped:      []RowIssue{},
		RateIssues:   []rates.RowIssue{},
	}
	ctx = logger.WithImportID(ctx, result.RunID)

	if err := req.Account.Validate(); err != nil {
		s.logger.Error(ctx, "Invalid account configuration",
			"error", err,
		)
		return nil, err
	}

	s.logger.Info(ctx, "Starting import",
		"batch", req.BatchName,
		"rates", req.RatesName,
		"account_type", req.Account.Type,
		"credit_limit", req.Account.CreditLimit,
		"home_currency", req.Account.HomeCurrency,
	)

	table, rateIssues, err := rates.Parse(ctx, req.Rates,
		rates.WithStrategy(s.strategy),
		rates.WithLogger(s.logger),
	)
	if err != nil {
		s.logger.Error(ctx, "Failed to load rates",
			"error", err,
		)
		return nil, err
	}
	if rateIssues != nil {
		result.RateIssues = rateIssues
	}

	initial, err := s.ledger.BalanceAsOf(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFatalIO, err)
	}
	result.InitialBalance = initial

	stager := newBatchStager(s.ledger, table, req.Account, initial, s.logger)
	outcome, err := s.stageAll(ctx, req.Batch, stager)
	if err != nil {
		s.logger.Error(ctx, "Import failed",
			"error", err,
		)
		return nil, err
	}
	result.RowsRead = outcome.rowsRead
	result.Skipped = append(result.Skipped, stager.skipped...)

	if outcome.abort != nil {
		result.Status = domain.ImportStatusRolledBack
		result.FinalBalance = initial
		result.AbortLine = outcome.abortLine
		result.AbortReason = outcome.abort.Error()
		result.AbortErr = outcome.abort
		result.FinishedAt = s.now()

		s.logger.Warn(ctx, "Import rolled back",
			"line", outcome.abortLine,
			"reason", outcome.abort,
			"balance", initial,
		)
		s.publish(ctx, result, req)
		return result, nil
	}

	if err := s.ledger.CommitAll(ctx, stager.staged); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFatalIO, err)
	}

	final, err := s.ledger.BalanceAsOf(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFatalIO, err)
	}

	listing, err := s.ledger.TransactionsInRange(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFatalIO, err)
	}

	result.Status = domain.ImportStatusCommitted
	result.FinalBalance = final
	result.Transactions = listing
	result.Committed = append(result.Committed, stager.staged...)
	result.FinishedAt = s.now()

	s.logger.Info(ctx, "Import successful",
		"rows_read", outcome.rowsRead,
		"committed", len(stager.staged),
		"skipped", len(stager.skipped),
		"balance", final,
	)
	s.publish(ctx, result, req)

	return result, nil
}

type stageOutcome struct {
	rowsRead  int
	abort     error
	abortLine int
}

// stageAll feeds every data row to the stager. It stops at the first batch
// abort, which is reported in the outcome with its line; no later rows are
// read.
func (s *importService) stageAll(ctx context.Context, r io.Reader, stager *batchStager) (stageOutcome, error) {
	csvReader := csv.NewReader(r)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	var outcome stageOutcome
	header := true
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			if header {
				header = false
				continue
			}
			outcome.rowsRead++
			stager.skip(ctx, parseErr.StartLine, "", record, fmt.Errorf("%w: %v", domain.ErrMalformedRow, parseErr.Err))
			continue
		}
		if err != nil {
			return outcome, fmt.Errorf("%w: reading batch: %v", domain.ErrFatalIO, err)
		}

		if header {
			header = false
			continue
		}

		outcome.rowsRead++
		line, _ := csvReader.FieldPos(0)
		if err := stager.stage(ctx, line, record); err != nil {
			if isBatchAbort(err) {
				outcome.abort = err
				outcome.abortLine = line
				return outcome, nil
			}
			return outcome, err
		}
	}

	return outcome, nil
}

func (s *importService) publish(ctx context.Context, result *ImportResult, req ImportRequest) {
	if s.bus == nil {
		return
	}

	event := eventbus.NewImportFinishedEvent(result.run(req.BatchName, req.RatesName))
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Error(ctx, "Failed to publish import event",
			"event_id", event.ID,
			"error", err,
		)
	}
}

// maxReferenceAttempts bounds the search for an unused generated reference.
const maxReferenceAttempts = 5

func (s *importService) Record(ctx context.Context, req RecordRequest) (*RecordResult, error) {
	if err := req.Account.Validate(); err != nil {
		return nil, err
	}
	if req.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", domain.ErrInvalidDate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := s.freshReference(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.BalanceAsOf(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFatalIO, err)
	}

	projected := balance + req.Amount
	if err := policy.CheckAccount(req.Account, projected); err != nil {
		s.logger.Warn(ctx, "Transaction rejected",
			"reference", ref,
			"amount", req.Amount,
			"error", err,
		)
		return nil, err
	}

	tx := domain.Transaction{
		Reference:   ref,
		Date:        req.Date,
		Description: req.Description,
		Amount:      req.Amount,
		Currency:    req.Account.HomeCurrency,
	}
	if err := s.ledger.CommitAll(ctx, []domain.Transaction{tx}); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrFatalIO, err)
	}

	s.logger.Info(ctx, "Transaction recorded",
		"reference", ref,
		"amount", req.Amount,
		"balance", projected,
	)

	return &RecordResult{Transaction: tx, Balance: projected}, nil
}

func (s *importService) freshReference(ctx context.Context) (string, error) {
	for i := 0; i < maxReferenceAttempts; i++ {
		ref, err := reference.Generate()
		if err != nil {
			return "", fmt.Errorf("generate reference: %w", err)
		}
		exists, err := s.ledger.Exists(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrFatalIO, err)
		}
		if !exists {
			return ref, nil
		}
	}
	return "", fmt.Errorf("no unused reference after %d attempts", maxReferenceAttempts)
}
