package report

import (
	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/internal/service"
)

func (r *Renderer) Import(res *service.ImportResult) error {
	view := newImportView(res)
	if ok, err := r.structured(view); ok {
		return err
	}

	for _, issue := range view.RateIssues {
		r.printf("Skipped rate row %d: %s\n", issue.Line, issue.Reason)
	}
	for _, issue := range view.Skipped {
		if issue.Reference != "" {
			r.printf("Skipped line %d (%s): %s\n", issue.Line, issue.Reference, issue.Reason)
		} else {
			r.printf("Skipped line %d: %s\n", issue.Line, issue.Reason)
		}
	}

	currency := res.Account.HomeCurrency
	r.printf("Balance before import: %s %s\n", Money(res.InitialBalance), currency)

	if !res.Succeeded() {
		r.printf("Aborted at line %d: %s\n", res.AbortLine, res.AbortReason)
		r.printf("%s\n", view.Message)
		return nil
	}

	r.printf("Rows read: %d, committed: %d, skipped: %d\n", view.RowsRead, len(view.Committed), len(view.Skipped))
	r.printf("%s\n", view.Message)
	r.printf("\nTransactions:\n")
	if len(res.Transactions) == 0 {
		r.printf("No transactions.\n")
		return nil
	}
	r.transactionLines(res.Transactions)
	return nil
}

func (r *Renderer) Balance(asOf *domain.Date, balance float64, currency string) error {
	if ok, err := r.structured(balanceView{AsOf: asOf, Balance: cents(balance), Currency: currency}); ok {
		return err
	}

	if asOf != nil {
		r.printf("Balance as of %s: %s %s\n", asOf, Money(balance), currency)
		return nil
	}
	r.printf("Balance: %s %s\n", Money(balance), currency)
	return nil
}

func (r *Renderer) Transactions(txs []domain.Transaction) error {
	if ok, err := r.structured(transactionViews(txs)); ok {
		return err
	}

	if len(txs) == 0 {
		r.printf("No transactions.\n")
		return nil
	}
	r.transactionLines(txs)
	return nil
}

func (r *Renderer) transactionLines(txs []domain.Transaction) {
	for _, tx := range txs {
		r.printf("%s %16s %12s %s  %s\n", tx.Date, tx.Reference, Money(tx.Amount), tx.Currency, tx.Description)
	}
}

func (r *Renderer) Account(cfg domain.AccountConfig) error {
	if ok, err := r.structured(cfg); ok {
		return err
	}

	if cfg.Type == domain.AccountTypeCredit {
		r.printf("Account type: %s (credit limit %s %s)\n", cfg.Type, Money(cfg.CreditLimit), cfg.HomeCurrency)
		return nil
	}
	r.printf("Account type: %s (%s)\n", cfg.Type, cfg.HomeCurrency)
	return nil
}

func (r *Renderer) Record(res *service.RecordResult) error {
	if ok, err := r.structured(struct {
		Transaction transactionView `json:"transaction" yaml:"transaction"`
		Balance     float64         `json:"balance" yaml:"balance"`
	}{transactionViews([]domain.Transaction{res.Transaction})[0], cents(res.Balance)}); ok {
		return err
	}

	r.transactionLines([]domain.Transaction{res.Transaction})
	r.printf("New balance: %s %s\n", Money(res.Balance), res.Transaction.Currency)
	return nil
}

func (r *Renderer) ImportRuns(runs []domain.ImportRun) error {
	if ok, err := r.structured(importRunViews(runs)); ok {
		return err
	}

	if len(runs) == 0 {
		r.printf("No imports recorded.\n")
		return nil
	}
	for _, run := range runs {
		r.printf("%s %s %-11s %s read=%d committed=%d skipped=%d balance=%s",
			run.StartedAt.Format("2006-01-02 15:04:05"), run.ID, run.Status, run.BatchName,
			run.RowsRead, run.RowsCommitted, run.RowsSkipped, Money(run.FinalBalance))
		if run.AbortReason != "" {
			r.printf(" reason=%q", run.AbortReason)
		}
		r.printf("\n")
	}
	return nil
}

func (r *Renderer) Cleared(n int) error {
	if ok, err := r.structured(map[string]int{"deleted": n}); ok {
		return err
	}
	r.printf("Deleted %d transactions.\n", n)
	return nil
}
