package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MacJediWizard/orgtree/internal/db"
)

func newMigrateCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd, flags)
			defer cancel()

			e, err := connect(ctx, flags)
			if err != nil {
				return err
			}
			defer e.Close()

			e.logger.Info().Msg("running database migrations")
			if err := e.exec.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			version, err := e.exec.CurrentVersion(ctx)
			if err != nil {
				e.logger.Warn().Err(err).Msg("could not get current version")
				return nil
			}
			e.logger.Info().Int("version", version).Msg("migrations complete")
			return nil
		},
	}

	cmd.AddCommand(newMigrateStatusCmd(flags))
	return cmd
}

func newMigrateStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version and available migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd, flags)
			defer cancel()

			e, err := connect(ctx, flags)
			if err != nil {
				return err
			}
			defer e.Close()

			backend := e.exec.Dialect().Name()
			current, err := e.exec.CurrentVersion(ctx)
			if err != nil {
				return fmt.Errorf("get schema version: %w", err)
			}

			migrations, err := db.GetMigrations(backend)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend:                %s\n", backend)
			fmt.Fprintf(out, "Current schema version: %d\n", current)
			if len(migrations) == 0 {
				fmt.Fprintln(out, "No migrations found")
				return nil
			}
			fmt.Fprintln(out, "Available migrations:")
			for _, m := range migrations {
				state := "pending"
				if m.Version <= current {
					state = "applied"
				}
				fmt.Fprintf(out, "  %03d: %-40s %s\n", m.Version, m.Name, state)
			}
			return nil
		},
	}
}
