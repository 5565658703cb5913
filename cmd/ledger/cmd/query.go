package cmd

import (
	"context"
	"fmt"

	"github.com/grachmannico95/bank-ledger/internal/app"
	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/internal/report"
	"github.com/spf13/cobra"
)

func newBalanceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [date]",
		Short: "Show the balance, optionally as of a date (inclusive)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, err := dateArg(args, 0)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App, r *report.Renderer) error {
				balance, err := a.Queries.Balance(ctx, asOf)
				if err != nil {
					return err
				}
				account, err := a.Queries.Account(ctx)
				if err != nil {
					return err
				}
				return r.Balance(asOf, balance, account.HomeCurrency)
			})
		},
	}
}

func newTransactionsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "transactions [start] [end]",
		Short: "List transactions between two dates (inclusive)",
		Long: `List stored transactions ordered by date. Either bound may be
omitted or given as "-" to leave it open.

Example:
  ledger transactions
  ledger transactions 2023-07-01
  ledger transactions - 2023-07-31`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := dateArg(args, 0)
			if err != nil {
				return err
			}
			end, err := dateArg(args, 1)
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App, r *report.Renderer) error {
				txs, err := a.Queries.Transactions(ctx, start, end)
				if err != nil {
					return err
				}
				return r.Transactions(txs)
			})
		},
	}
}

func newImportsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "imports",
		Short: "Show the history of imports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App, r *report.Renderer) error {
				runs, err := a.Queries.ImportRuns(ctx)
				if err != nil {
					return err
				}
				return r.ImportRuns(runs)
			})
		},
	}
}

// dateArg parses args[i] as a date. A missing argument or "-" is nil.
func dateArg(args []string, i int) (*domain.Date, error) {
	if i >= len(args) || args[i] == "" || args[i] == "-" {
		return nil, nil
	}
	d, err := domain.ParseDate(args[i])
	if err != nil {
		return nil, fmt.Errorf("argument %d: %w", i+1, err)
	}
	return &d, nil
}
