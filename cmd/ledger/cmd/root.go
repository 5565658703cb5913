// Package cmd provides the ledger CLI commands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/grachmannico95/bank-ledger/internal/app"
	"github.com/grachmannico95/bank-ledger/internal/config"
	"github.com/grachmannico95/bank-ledger/internal/report"
	"github.com/grachmannico95/bank-ledger/pkg/logger"
	"github.com/spf13/cobra"
)

// options holds the global flags. Unset flags leave the environment
// configuration alone.
type options struct {
	dbPath       string
	store        string
	output       string
	logLevel     string
	rateStrategy string

	// loadConfig is swapped in tests to skip .env loading.
	loadConfig func() *config.Config
}

// NewRootCmd builds the command tree writing reports to out.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	return newRootCmd(out, errOut, config.Load)
}

func newRootCmd(out, errOut io.Writer, load func() *config.Config) *cobra.Command {
	opts := &options{loadConfig: load}

	rootCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Single-account ledger with validated CSV imports",
		Long: `ledger keeps the transactions of one bank account and imports
batches of them from CSV, converting every amount into the account's
home currency.

An import is all-or-nothing: if any accepted row would take a Debit
account below zero, or a Credit account below its credit limit, or has
no exchange rate for its date, nothing from the batch is stored.
Rows already imported are skipped, so re-running an import is safe.

Example:
  ledger set-account-type Credit --credit-limit 20000
  ledger import transactions.csv currency_rates.csv
  ledger balance 2023-07-03
  ledger transactions 2023-07-01 2023-07-31 --output json`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (default from LEDGER_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&opts.store, "store", "", "record store: sqlite or memory (default from LEDGER_STORE)")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format: text, json or yaml")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (default from LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&opts.rateStrategy, "rate-strategy", "", "duplicate rate handling: ratio or last-write-wins")

	rootCmd.AddCommand(
		newImportCmd(opts),
		newBalanceCmd(opts),
		newTransactionsCmd(opts),
		newSetAccountTypeCmd(opts),
		newAccountCmd(opts),
		newAddCmd(opts),
		newImportsCmd(opts),
		newClearCmd(opts),
		newServeCmd(opts),
	)

	return rootCmd
}

// Execute runs the CLI against the process streams.
func Execute() error {
	rootCmd := NewRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func (o *options) config() *config.Config {
	cfg := o.loadConfig()
	if o.dbPath != "" {
		cfg.Ledger.DBPath = o.dbPath
	}
	if o.store != "" {
		cfg.Ledger.Store = o.store
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.rateStrategy != "" {
		cfg.Ledger.RateStrategy = o.rateStrategy
	}
	return cfg
}

// withApp opens the ledger for the duration of fn and always closes it,
// draining audit events before the store goes away.
func (o *options) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, r *report.Renderer) error) error {
	format, err := report.ParseFormat(o.output)
	if err != nil {
		return err
	}

	cfg := o.config()
	log := logger.New(cfg.Logging.Level, logger.WithFormat(cfg.Logging.Format))
	defer log.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}

	runErr := fn(ctx, a, report.New(cmd.OutOrStdout(), format))

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
