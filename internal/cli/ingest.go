package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/charter-reconciler/internal/adapters/ingest"
)

func newIngestCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load canonical CSV files into the store",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "transactions FILE",
			Short: "Import bank transactions (date, amount, method, memo, external_reference, account)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.ingest(cmd.Context(), args[0], (*ingest.Importer).ImportTransactions)
			},
		},
		&cobra.Command{
			Use:   "records FILE",
			Short: "Import business records (business_key, date, amount_due, placeholder)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.ingest(cmd.Context(), args[0], (*ingest.Importer).ImportRecords)
			},
		},
	)
	return cmd
}

type importFunc func(*ingest.Importer, context.Context, io.Reader) (*ingest.Summary, error)

func (a *App) ingest(ctx context.Context, path string, run importFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	summary, err := run(ingest.NewImporter(store, a.logger("ingest")), ctx, f)
	if summary != nil {
		fmt.Fprintf(a.out, "%s: rows=%d inserted=%d duplicates=%d invalid=%d\n",
			path, summary.Rows, summary.Inserted, summary.Duplicates, len(summary.Invalid))
		for _, e := range summary.Invalid {
			fmt.Fprintf(a.out, "  %v\n", e)
		}
	}
	return err
}
