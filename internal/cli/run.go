package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/charter-reconciler/internal/adapters/report"
	"github.com/eshaffer321/charter-reconciler/internal/application/reconcile"
)

// ErrRunHadErrors makes the process exit non-zero when any transaction was
// skipped because of an error.
var ErrRunHadErrors = errors.New("run completed with errors")

type runFunc func(ctx context.Context, engine *reconcile.Engine, flags RunFlags) (*reconcile.Result, error)

func newMatchCommand(app *App) *cobra.Command {
	var flags RunFlags
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Link unmatched transactions to business records",
		Long: `Match generates and scores candidate business records for every unmatched
transaction and links those with exactly one strong candidate. Transactions
naming several records in their memo are allocated across them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runBatch(cmd.Context(), "match", flags,
				func(ctx context.Context, e *reconcile.Engine, f RunFlags) (*reconcile.Result, error) {
					return e.LinkTransactions(ctx, f.ToLinkOptions())
				})
		},
	}
	addRunFlags(cmd, &flags)
	cmd.Flags().IntVar(&flags.Limit, "limit", 0, "maximum transactions to process (0 = all)")
	return cmd
}

func newAllocateCommand(app *App) *cobra.Command {
	var flags RunFlags
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Split batch deposits across open business records",
		Long: `Allocate spreads each deposit proportionally across the open business
records dated within the allocation window. Deposits are chosen by --ids, or
by payment method (--methods, defaulting to allocation.deposit_methods).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runBatch(cmd.Context(), "allocate", flags,
				func(ctx context.Context, e *reconcile.Engine, f RunFlags) (*reconcile.Result, error) {
					return e.AllocateDeposits(ctx, f.ToAllocateOptions())
				})
		},
	}
	addRunFlags(cmd, &flags)
	cmd.Flags().BoolVar(&flags.Recompute, "recompute", false, "replace existing allocation rows")
	return cmd
}

func (a *App) runBatch(ctx context.Context, name string, flags RunFlags, run runFunc) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var opts []reconcile.Option
	if flags.ReportCSV != "" {
		sink, err := report.CreateCSVSink(flags.ReportCSV)
		if err != nil {
			return err
		}
		defer func() {
			if err := sink.Close(); err != nil {
				a.Logger.Error("Failed to close report", "path", flags.ReportCSV, "error", err)
			}
		}()
		opts = append(opts, reconcile.WithSink(sink))
	}

	engine, err := reconcile.NewEngine(store, a.engineConfig(), a.logger(name), opts...)
	if err != nil {
		return err
	}

	PrintHeader(a.out, name, flags.DryRun)
	result, runErr := run(ctx, engine, flags)
	if result != nil {
		PrintSummary(a.out, result)
	}
	if runErr != nil {
		return fmt.Errorf("%s: %w", name, runErr)
	}
	if result.Errored() > 0 {
		return ErrRunHadErrors
	}
	return nil
}
