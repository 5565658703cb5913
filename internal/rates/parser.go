package rates

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/pkg/logger"
)

const rateFieldCount = 4

// RowIssue describes a rate row that was skipped.
type RowIssue struct {
	Line int      `json:"line" yaml:"line"`
	Row  []string `json:"row" yaml:"row"`
	Err  error    `json:"-" yaml:"-"`
}

func (i RowIssue) Error() string {
	return fmt.Sprintf("line %d: %v", i.Line, i.Err)
}

type parseConfig struct {
	strategy Strategy
	logger   *logger.Logger
}

type Option func(*parseConfig)

func WithStrategy(s Strategy) Option {
	return func(c *parseConfig) {
		c.strategy = s
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(c *parseConfig) {
		c.logger = log
	}
}

// Parse reads "currency,rate,base_currency,date" rows after a header row.
// Malformed rows are skipped and reported; only read failures are fatal.
func Parse(ctx context.Context, r io.Reader, opts ...Option) (*Table, []RowIssue, error) {
	cfg := &parseConfig{
		strategy: StrategyRatio,
		logger:   logger.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	csvReader := csv.NewReader(r)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	table := newTable()
	var issues []RowIssue

	lineNumber := 0
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		lineNumber++

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			// a header that fails to parse is still the header
			if lineNumber == 1 {
				continue
			}
			issue := RowIssue{Line: lineNumber, Err: fmt.Errorf("%w: %v", domain.ErrMalformedRateRow, err)}
			cfg.logger.Warn(ctx, "Skipping invalid rate row",
				"line", lineNumber,
				"error", issue.Err,
			)
			issues = append(issues, issue)
			continue
		}
		if err != nil {
			return nil, issues, fmt.Errorf("%w: reading rates: %v", domain.ErrFatalIO, err)
		}

		// header
		if lineNumber == 1 {
			continue
		}

		currency, date, rate, err := parseRateRow(record)
		if err != nil {
			issue := RowIssue{Line: lineNumber, Row: append([]string(nil), record...), Err: err}
			cfg.logger.Warn(ctx, "Skipping invalid rate row",
				"line", lineNumber,
				"row", record,
				"error", err,
			)
			issues = append(issues, issue)
			continue
		}

		table.put(currency, date, rate, cfg.strategy)
	}

	cfg.logger.Debug(ctx, "Rates loaded",
		"rows", lineNumber,
		"keys", table.Len(),
		"skipped", len(issues),
		"strategy", cfg.strategy,
	)

	return table, issues, nil
}

func parseRateRow(record []string) (string, domain.Date, float64, error) {
	if len(record) != rateFieldCount {
		return "", domain.Date{}, 0, fmt.Errorf("%w: expected %d fields, got %d", domain.ErrMalformedRateRow, rateFieldCount, len(record))
	}

	currency := strings.TrimSpace(record[0])

	rate, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
	if err != nil {
		return "", domain.Date{}, 0, fmt.Errorf("%w: rate %q is not a number", domain.ErrMalformedRateRow, record[1])
	}
	if rate <= 0 || math.IsInf(rate, 0) || math.IsNaN(rate) {
		return "", domain.Date{}, 0, fmt.Errorf("%w: rate %q must be a positive finite number", domain.ErrMalformedRateRow, record[1])
	}

	// record[2] is the base currency; rates are relative to an implicit base.

	date, err := domain.ParseDate(strings.TrimSpace(record[3]))
	if err != nil {
		return "", domain.Date{}, 0, fmt.Errorf("%w: %v", domain.ErrMalformedRateRow, err)
	}

	return currency, date, rate, nil
}
