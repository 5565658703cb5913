// Package policy holds the balance rules for each account type.
package policy

import (
	"fmt"

	"github.com/grachmannico95/bank-ledger/internal/domain"
)

// Check returns nil when projected is an allowed balance for the account,
// or an error wrapping domain.ErrBalanceViolation when it is not.
func Check(accountType domain.AccountType, creditLimit, projected float64) error {
	switch accountType {
	case domain.AccountTypeDebit:
		if projected < 0 {
			return violation(domain.ErrNegativeBalance, projected, 0)
		}
		return nil
	case domain.AccountTypeCredit:
		if projected < -creditLimit {
			return violation(domain.ErrCreditLimitExceeded, projected, -creditLimit)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownAccountType, accountType)
	}
}

// CheckAccount applies Check with the type and limit from cfg.
func CheckAccount(cfg domain.AccountConfig, projected float64) error {
	return Check(cfg.Type, cfg.CreditLimit, projected)
}

func violation(reason error, projected, floor float64) error {
	return fmt.Errorf("%w: %w: projected balance %.2f is below %.2f", domain.ErrBalanceViolation, reason, projected, floor)
}
