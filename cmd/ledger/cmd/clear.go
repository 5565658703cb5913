package cmd

import (
	"context"
	"errors"

	"github.com/grachmannico95/bank-ledger/internal/app"
	"github.com/grachmannico95/bank-ledger/internal/report"
	"github.com/spf13/cobra"
)

func newClearCmd(opts *options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear --yes",
		Short: "Delete every stored transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear the ledger without --yes")
			}
			return opts.withApp(cmd, func(ctx context.Context, a *app.App, r *report.Renderer) error {
				n, err := a.Queries.Clear(ctx)
				if err != nil {
					return err
				}
				return r.Cleared(n)
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all transactions")

	return cmd
}
