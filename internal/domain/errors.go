package domain

import "errors"

// Row-level problems. The import skips the row and keeps going.
var (
	ErrMalformedRow       = errors.New("malformed row")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidReference   = errors.New("invalid transaction reference")
	ErrDuplicateReference = errors.New("duplicate transaction reference")
	ErrMalformedRateRow   = errors.New("malformed rate row")
)

// Batch-level problems. Nothing from the batch is committed.
var (
	ErrConversionUnavailable = errors.New("currency conversion unavailable")
	ErrBalanceViolation      = errors.New("balance violation")
	ErrNegativeBalance       = errors.New("debit account balance would go negative")
	ErrCreditLimitExceeded   = errors.New("credit limit exceeded")
)

var (
	ErrFatalIO              = errors.New("fatal I/O error")
	ErrUnknownAccountType   = errors.New("unknown account type")
	ErrInvalidCreditLimit   = errors.New("invalid credit limit")
	ErrInvalidCurrency      = errors.New("invalid currency")
	ErrAccountNotConfigured = errors.New("account not configured")
	ErrImportRunNotFound    = errors.New("import run not found")
	ErrHomeCurrencyInUse    = errors.New("home currency cannot change while transactions are stored")
)
