package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/charter-reconciler/internal/api"
)

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	Addr string
}

func newServeCommand(app *App) *cobra.Command {
	flags := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only report API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runServe(cmd.Context(), flags)
		},
	}
	cmd.Flags().StringVar(&flags.Addr, "addr", "", "listen address (default from api.addr)")
	return cmd
}

// runServe runs the API server until ctx is cancelled.
func (a *App) runServe(ctx context.Context, flags *ServeFlags) error {
	logger := a.logger("api")

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	apiCfg := api.ConfigFrom(a.Config.API)
	if flags.Addr != "" {
		apiCfg.Addr = flags.Addr
	}

	server := api.NewServer(apiCfg, store, logger)

	// Handle graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		logger.Info("received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}
