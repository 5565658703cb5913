// Package rates loads exchange rates keyed by currency and date and converts
// amounts between currencies with them.
package rates

import (
	"fmt"

	"github.com/grachmannico95/bank-ledger/internal/domain"
)

// Strategy decides what happens when a (currency, date) key appears twice.
type Strategy string

const (
	// StrategyRatio stores new/previous for a repeated key.
	StrategyRatio Strategy = "ratio"
	// StrategyLastWriteWins overwrites a repeated key.
	StrategyLastWriteWins Strategy = "last-write-wins"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyRatio, StrategyLastWriteWins:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown rate strategy %q", s)
	}
}

type key struct {
	currency string
	date     domain.Date
}

// Table is an immutable set of rates for one import run.
type Table struct {
	rates map[key]float64
}

func newTable() *Table {
	return &Table{rates: make(map[key]float64)}
}

func (t *Table) put(currency string, date domain.Date, rate float64, strategy Strategy) {
	k := key{currency: currency, date: date}
	prev, exists := t.rates[k]
	if exists && strategy == StrategyRatio {
		t.rates[k] = rate / prev
		return
	}
	t.rates[k] = rate
}

// Rate returns the stored rate for currency on date.
func (t *Table) Rate(currency string, date domain.Date) (float64, bool) {
	rate, ok := t.rates[key{currency: currency, date: date}]
	return rate, ok
}

func (t *Table) Len() int {
	return len(t.rates)
}

// Convert converts amount from one currency to another using the rates of
// the given date. There is no fallback to earlier dates.
func (t *Table) Convert(amount float64, from, to string, date domain.Date) (float64, error) {
	if from == to {
		return amount, nil
	}

	fromRate, ok := t.Rate(from, date)
	if !ok {
		return 0, fmt.Errorf("%w: no %s rate on %s", domain.ErrConversionUnavailable, from, date)
	}
	toRate, ok := t.Rate(to, date)
	if !ok {
		return 0, fmt.Errorf("%w: no %s rate on %s", domain.ErrConversionUnavailable, to, date)
	}

	return amount * toRate / fromRate, nil
}
