package cmd

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/grachmannico95/bank-ledger/internal/app"
	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/internal/report"
	"github.com/grachmannico95/bank-ledger/internal/service"
	"github.com/spf13/cobra"
)

func newAddCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "add <date> <amount> <description...>",
		Short: "Record one transaction in the home currency",
		Long: `Record a single transaction with a freshly generated reference.
The amount is in the account's home currency and is subject to the same
balance rules as an import. Put "--" before the arguments when the
amount is negative.

Example:
  ledger add 2023-07-04 250 Cash deposit
  ledger add -- 2023-07-04 -12.50 Coffee beans`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := domain.ParseDate(args[0])
			if err != nil {
				return err
			}
			amount, err := strconv.ParseFloat(args[1], 64)
			if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
				return fmt.Errorf("%w: %q", domain.ErrInvalidAmount, args[1])
			}
			description := strings.Join(args[2:], " ")

			return opts.withApp(cmd, func(ctx context.Context, a *app.App, r *report.Renderer) error {
				account, err := a.Queries.Account(ctx)
				if err != nil {
					return err
				}
				res, err := a.Imports.Record(ctx, service.RecordRequest{
					Date:        date,
					Description: description,
					Amount:      amount,
					Account:     account,
				})
				if err != nil {
					return err
				}
				return r.Record(res)
			})
		},
	}
}
