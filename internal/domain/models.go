package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultHomeCurrency is the account currency when none is configured.
const DefaultHomeCurrency = "USD"

type AccountType string

const (
	AccountTypeDebit  AccountType = "Debit"
	AccountTypeCredit AccountType = "Credit"
)

// ParseAccountType accepts the account type name case-insensitively.
func ParseAccountType(s string) (AccountType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debit":
		return AccountTypeDebit, nil
	case "credit":
		return AccountTypeCredit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAccountType, s)
	}
}

type Transaction struct {
	Reference   string  `json:"transaction_reference" yaml:"transaction_reference"`
	Date        Date    `json:"date" yaml:"date"`
	Description string  `json:"description" yaml:"description"`
	Amount      float64 `json:"amount" yaml:"amount"`
	Currency    string  `json:"currency" yaml:"currency"`
}

// AccountConfig is the account setup an import runs against.
type AccountConfig struct {
	Type         AccountType `json:"account_type" yaml:"account_type"`
	CreditLimit  float64     `json:"credit_limit" yaml:"credit_limit"`
	HomeCurrency string      `json:"home_currency" yaml:"home_currency"`
}

// DefaultAccountConfig is a Debit account with no credit in the default currency.
func DefaultAccountConfig() AccountConfig {
	return AccountConfig{
		Type:         AccountTypeDebit,
		HomeCurrency: DefaultHomeCurrency,
	}
}

func (c AccountConfig) Validate() error {
	if c.Type != AccountTypeDebit && c.Type != AccountTypeCredit {
		return fmt.Errorf("%w: %q", ErrUnknownAccountType, c.Type)
	}
	if c.CreditLimit < 0 {
		return fmt.Errorf("%w: %v must not be negative", ErrInvalidCreditLimit, c.CreditLimit)
	}
	if strings.TrimSpace(c.HomeCurrency) == "" {
		return fmt.Errorf("%w: home currency is empty", ErrInvalidCurrency)
	}
	return nil
}

type ImportStatus string

const (
	ImportStatusCommitted  ImportStatus = "committed"
	ImportStatusRolledBack ImportStatus = "rolled_back"
)

// ImportRun is the audit record of one finished import.
type ImportRun struct {
	ID             string       `json:"id" yaml:"id"`
	Status         ImportStatus `json:"status" yaml:"status"`
	BatchName      string       `json:"batch_name" yaml:"batch_name"`
	RatesName      string       `json:"rates_name" yaml:"rates_name"`
	RowsRead       int          `json:"rows_read" yaml:"rows_read"`
	RowsCommitted  int          `json:"rows_committed" yaml:"rows_committed"`
	RowsSkipped    int          `json:"rows_skipped" yaml:"rows_skipped"`
	InitialBalance float64      `json:"initial_balance" yaml:"initial_balance"`
	FinalBalance   float64      `json:"final_balance" yaml:"final_balance"`
	AbortReason    string       `json:"abort_reason,omitempty" yaml:"abort_reason,omitempty"`
	StartedAt      time.Time    `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time    `json:"finished_at" yaml:"finished_at"`
}

// TransactionFilter selects stored transactions by inclusive date bounds.
// A nil bound is open.
type TransactionFilter struct {
	Start *Date
	End   *Date
}

// Includes reports whether d falls within the filter bounds.
func (f TransactionFilter) Includes(d Date) bool {
	if f.Start != nil && d.Before(*f.Start) {
		return false
	}
	if f.End != nil && d.After(*f.End) {
		return false
	}
	return true
}
