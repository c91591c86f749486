// Package main is the entrypoint for the orgtree admin CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/MacJediWizard/orgtree/internal/config"
	"github.com/MacJediWizard/orgtree/internal/db"
	"github.com/MacJediWizard/orgtree/internal/store"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// globalFlags override the server configuration for one invocation.
type globalFlags struct {
	databaseURL string
	sqlitePath  string
	verbose     bool
	timeout     time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "orgtreectl",
		Short: "orgtree administration tool",
		Long: `orgtreectl manages an orgtree database directly.

It reads the same configuration as orgtree-server (ORGTREE_CONFIG, .env and
environment variables). Use it to apply migrations and to issue API keys
before the first operator login.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.databaseURL, "database-url", "", "PostgreSQL URL (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&flags.sqlitePath, "sqlite-path", "", "SQLite file (overrides SQLITE_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log at debug level")
	rootCmd.PersistentFlags().DurationVar(&flags.timeout, "timeout", 5*time.Minute, "Overall command timeout")

	rootCmd.AddCommand(
		newVersionCmd(),
		newMigrateCmd(flags),
		newAPIKeyCmd(flags),
		newHashPasswordCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "orgtreectl %s\n", Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// env is what a subcommand needs to reach the database.
type env struct {
	cfg    config.ServerConfig
	exec   db.Executor
	stores *store.Stores
	logger zerolog.Logger
}

func (e *env) Close() {
	e.stores.Close()
}

// connect loads configuration, applies flag overrides and opens the backend.
// Migrations are not applied.
func connect(ctx context.Context, flags *globalFlags) (*env, error) {
	level := zerolog.InfoLevel
	if flags.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if flags.databaseURL != "" {
		cfg.DatabaseURL = flags.databaseURL
	}
	if flags.sqlitePath != "" {
		cfg.DatabaseURL = ""
		cfg.SQLitePath = flags.sqlitePath
	}

	dbCfg := cfg.Database()
	dbCfg.MaxConns = 2
	dbCfg.MinConns = 0

	exec, err := db.Open(ctx, dbCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", dbCfg.Backend(), err)
	}
	logger.Debug().Str("backend", exec.Dialect().Name()).Msg("connected")

	return &env{
		cfg:  cfg,
		exec: exec,
		stores: store.New(exec, store.Options{
			DefaultPageSize: cfg.PageSizeDefault,
			MaxPageSize:     cfg.PageSizeMax,
		}),
		logger: logger,
	}, nil
}

func commandContext(cmd *cobra.Command, flags *globalFlags) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), flags.timeout)
}
