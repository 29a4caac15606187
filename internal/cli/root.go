// Package cli builds the reconciler command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/eshaffer321/charter-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/charter-reconciler/internal/infrastructure/config"
	"github.com/eshaffer321/charter-reconciler/internal/infrastructure/logging"
	"github.com/eshaffer321/charter-reconciler/internal/infrastructure/storage"
)

var (
	version = "dev"
	commit  = "unknown"
)

// App carries global flags and the state built from them.
type App struct {
	ConfigPath string
	EnvFile    string
	Verbose    bool

	Config *config.Config
	Logger *slog.Logger

	out io.Writer
	err io.Writer
}

// NewRootCommand returns the reconciler command with every subcommand
// attached.
func NewRootCommand() *cobra.Command {
	app := &App{}

	root := &cobra.Command{
		Use:   "reconciler",
		Short: "Link payments to reservations and allocate batch deposits",
		Long: `Reconciler links incoming payment transactions to business records
(reservations, charters) and splits aggregated deposits across the records
they pay.

Examples:
  reconciler ingest records reservations.csv
  reconciler ingest transactions bank.csv
  reconciler match --dry-run --report-csv match.csv
  reconciler allocate --methods batch_deposit
  reconciler serve`,
		Version:       fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			app.out = cmd.OutOrStdout()
			app.err = cmd.ErrOrStderr()
			return app.init()
		},
	}

	root.PersistentFlags().StringVarP(&app.ConfigPath, "config", "c", "config.yaml", "config file; falls back to RECONCILER_* environment variables when missing")
	root.PersistentFlags().StringVar(&app.EnvFile, "env-file", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newMatchCommand(app),
		newAllocateCommand(app),
		newIngestCommand(app),
		newUnlinkCommand(app),
		newServeCommand(app),
	)
	return root
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// SetVersionInfo sets the version reported by --version.
func SetVersionInfo(v, c string) {
	version = v
	commit = c
}

func (a *App) init() error {
	if err := godotenv.Load(a.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", a.EnvFile, err)
	}

	cfg, err := config.LoadOrEnv(a.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.Verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.Config = cfg
	a.Logger = logging.NewLoggerTo(a.err, cfg.Observability.Logging)
	return nil
}

func (a *App) logger(component string) *slog.Logger {
	return a.Logger.With(logging.ComponentKey, component)
}

func (a *App) openStore(ctx context.Context) (*storage.Storage, error) {
	return storage.NewStorage(ctx, storage.Options{
		Driver: a.Config.Storage.Driver,
		DSN:    a.Config.DataSource(),
		Logger: a.Logger,
	})
}

func (a *App) engineConfig() reconcile.Config {
	return reconcile.Config{
		Matcher:              a.Config.MatcherConfig(),
		Allocator:            a.Config.AllocatorConfig(),
		AllowedMatchTypes:    a.Config.AllowedMatchTypes(),
		AllocationWindowDays: a.Config.Allocation.WindowDays,
		DepositMethods:       a.Config.Allocation.DepositMethods,
	}
}
