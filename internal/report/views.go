package report

import (
	"fmt"
	"time"

	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/internal/rates"
	"github.com/grachmannico95/bank-ledger/internal/service"
)

type transactionView struct {
	Reference   string      `json:"transaction_reference" yaml:"transaction_reference"`
	Date        domain.Date `json:"date" yaml:"date"`
	Description string      `json:"description" yaml:"description"`
	Amount      float64     `json:"amount" yaml:"amount"`
	Currency    string      `json:"currency" yaml:"currency"`
}

func transactionViews(txs []domain.Transaction) []transactionView {
	views := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, transactionView{
			Reference:   tx.Reference,
			Date:        tx.Date,
			Description: tx.Description,
			Amount:      cents(tx.Amount),
			Currency:    tx.Currency,
		})
	}
	return views
}

type issueView struct {
	Line      int    `json:"line" yaml:"line"`
	Reference string `json:"transaction_reference,omitempty" yaml:"transaction_reference,omitempty"`
	Reason    string `json:"reason" yaml:"reason"`
}

func reason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

type importView struct {
	RunID          string               `json:"run_id" yaml:"run_id"`
	Status         domain.ImportStatus  `json:"status" yaml:"status"`
	Message        string               `json:"message" yaml:"message"`
	Account        domain.AccountConfig `json:"account" yaml:"account"`
	InitialBalance float64              `json:"initial_balance" yaml:"initial_balance"`
	FinalBalance   float64              `json:"final_balance" yaml:"final_balance"`
	RowsRead       int                  `json:"rows_read" yaml:"rows_read"`
	Committed      []transactionView    `json:"committed" yaml:"committed"`
	Transactions   []transactionView    `json:"transactions" yaml:"transactions"`
	Skipped        []issueView          `json:"skipped" yaml:"skipped"`
	RateIssues     []issueView          `json:"rate_issues" yaml:"rate_issues"`
	AbortLine      int                  `json:"abort_line,omitempty" yaml:"abort_line,omitempty"`
	AbortReason    string               `json:"abort_reason,omitempty" yaml:"abort_reason,omitempty"`
	StartedAt      time.Time            `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time            `json:"finished_at" yaml:"finished_at"`
}

// ImportMessage is the one-line outcome of an import.
func ImportMessage(res *service.ImportResult) string {
	currency := res.Account.HomeCurrency
	if res.Succeeded() {
		return fmt.Sprintf("Import successful. New balance: %s %s", Money(res.FinalBalance), currency)
	}
	return fmt.Sprintf("Import rolled back. Current balance remains: %s %s", Money(res.FinalBalance), currency)
}

func newImportView(res *service.ImportResult) importView {
	view := importView{
		RunID:          res.RunID,
		Status:         res.Status,
		Message:        ImportMessage(res),
		Account:        res.Account,
		InitialBalance: cents(res.InitialBalance),
		FinalBalance:   cents(res.FinalBalance),
		RowsRead:       res.RowsRead,
		Committed:      transactionViews(res.Committed),
		Transactions:   transactionViews(res.Transactions),
		Skipped:        make([]issueView, 0, len(res.Skipped)),
		RateIssues:     make([]issueView, 0, len(res.RateIssues)),
		AbortLine:      res.AbortLine,
		AbortReason:    res.AbortReason,
		StartedAt:      res.StartedAt,
		FinishedAt:     res.FinishedAt,
	}
	for _, issue := range res.Skipped {
		view.Skipped = append(view.Skipped, issueView{Line: issue.Line, Reference: issue.Reference, Reason: reason(issue.Err)})
	}
	for _, issue := range res.RateIssues {
		view.RateIssues = append(view.RateIssues, rateIssueView(issue))
	}
	return view
}

func rateIssueView(issue rates.RowIssue) issueView {
	return issueView{Line: issue.Line, Reason: reason(issue.Err)}
}

type balanceView struct {
	AsOf     *domain.Date `json:"as_of,omitempty" yaml:"as_of,omitempty"`
	Balance  float64      `json:"balance" yaml:"balance"`
	Currency string       `json:"currency" yaml:"currency"`
}

type importRunView struct {
	ID             string              `json:"id" yaml:"id"`
	Status         domain.ImportStatus `json:"status" yaml:"status"`
	BatchName      string              `json:"batch_name" yaml:"batch_name"`
	RatesName      string              `json:"rates_name" yaml:"rates_name"`
	RowsRead       int                 `json:"rows_read" yaml:"rows_read"`
	RowsCommitted  int                 `json:"rows_committed" yaml:"rows_committed"`
	RowsSkipped    int                 `json:"rows_skipped" yaml:"rows_skipped"`
	InitialBalance float64             `json:"initial_balance" yaml:"initial_balance"`
	FinalBalance   float64             `json:"final_balance" yaml:"final_balance"`
	AbortReason    string              `json:"abort_reason,omitempty" yaml:"abort_reason,omitempty"`
	StartedAt      time.Time           `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time           `json:"finished_at" yaml:"finished_at"`
}

func importRunViews(runs []domain.ImportRun) []importRunView {
	views := make([]importRunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, importRunView{
			ID:             run.ID,
			Status:         run.Status,
			BatchName:      run.BatchName,
			RatesName:      run.RatesName,
			RowsRead:       run.RowsRead,
			RowsCommitted:  run.RowsCommitted,
			RowsSkipped:    run.RowsSkipped,
			InitialBalance: cents(run.InitialBalance),
			FinalBalance:   cents(run.FinalBalance),
			AbortReason:    run.AbortReason,
			StartedAt:      run.StartedAt,
			FinishedAt:     run.FinishedAt,
		})
	}
	return views
}
