package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUnlinkCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink TRANSACTION_ID RECORD_ID",
		Short: "Clear a transaction's link to a business record",
		Long: `Unlink removes a direct link. The record id must match the current link,
so a stale command cannot clear a link someone else has since replaced.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := app.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.ClearLink(ctx, args[0], args[1]); err != nil {
				return err
			}

			app.logger("unlink").Info("Link cleared", "transaction_id", args[0], "business_record_id", args[1])
			fmt.Fprintf(app.out, "unlinked %s from %s\n", args[0], args[1])
			return nil
		},
	}
}
