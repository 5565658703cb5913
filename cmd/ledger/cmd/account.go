package cmd

import (
	"context"

	"github.com/grachmannico95/bank-ledger/internal/app"
	"github.com/grachmannico95/bank-ledger/internal/domain"
	"github.com/grachmannico95/bank-ledger/internal/report"
	"github.com/spf13/cobra"
)

func newSetAccountTypeCmd(opts *options) *cobra.Command {
	var (
		creditLimit  float64
		homeCurrency string
	)

	cmd := &cobra.Command{
		Use:   "set-account-type <Debit|Credit>",
		Short: "Set the account type used by later imports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountType, err := domain.ParseAccountType(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App, r *report.Renderer) error {
				current, err := a.Queries.Account(ctx)
				if err != nil {
					return err
				}

				cfg := domain.AccountConfig{
					Type:         accountType,
					CreditLimit:  creditLimit,
					HomeCurrency: current.HomeCurrency,
				}
				if cmd.Flags().Changed("home-currency") {
					cfg.HomeCurrency = homeCurrency
				}
				if err := a.Queries.SetAccount(ctx, cfg); err != nil {
					return err
				}

				saved, err := a.Queries.Account(ctx)
				if err != nil {
					return err
				}
				return r.Account(saved)
			})
		},
	}

	cmd.Flags().Float64Var(&creditLimit, "credit-limit", 0, "credit limit for Credit accounts")
	cmd.Flags().StringVar(&homeCurrency, "home-currency", "", "currency every amount is stored in")

	return cmd
}

func newAccountCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show the account configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App, r *report.Renderer) error {
				cfg, err := a.Queries.Account(ctx)
				if err != nil {
					return err
				}
				return r.Account(cfg)
			})
		},
	}
}
