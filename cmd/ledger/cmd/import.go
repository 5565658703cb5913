package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/grachmannico95/bank-ledger/internal/app"
	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/internal/report"
	"github.com/grachmannico95/bank-ledger/internal/service"
	"github.com/spf13/cobra"
)

func newImportCmd(opts *options) *cobra.Command {
	var (
		accountType string
		creditLimit float64
	)

	cmd := &cobra.Command{
		Use:   "import <transactions.csv> <currency_rates.csv>",
		Short: "Import a batch of transactions",
		Long: `Import a CSV batch of transactions, converting amounts with the
given exchange rates.

The batch has a header row and the columns
  transaction_reference,date,description,amount,currency
and the rates file has a header row and the columns
  currency,rate,base_currency,date

A rolled back import is reported, not treated as a failure.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App, r *report.Renderer) error {
				account, err := a.Queries.Account(ctx)
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("account-type") {
					if account.Type, err = domain.ParseAccountType(accountType); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("credit-limit") {
					account.CreditLimit = creditLimit
				}

				batch, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("%w: %v", domain.ErrFatalIO, err)
				}
				defer batch.Close()

				rateFile, err := os.Open(args[1])
				if err != nil {
					return fmt.Errorf("%w: %v", domain.ErrFatalIO, err)
				}
				defer rateFile.Close()

				result, err := a.Imports.Import(ctx, service.ImportRequest{
					Batch:     batch,
					Rates:     rateFile,
					BatchName: filepath.Base(args[0]),
					RatesName: filepath.Base(args[1]),
					Account:   account,
				})
				if err != nil {
					return err
				}
				return r.Import(result)
			})
		},
	}

	cmd.Flags().StringVar(&accountType, "account-type", "", "override the account type for this import (Debit or Credit)")
	cmd.Flags().Float64Var(&creditLimit, "credit-limit", 0, "override the credit limit for this import")

	return cmd
}
