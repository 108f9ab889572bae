package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	pg "deja/internal/adapters/storage/postgres"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}
	cmd.AddCommand(
		newMigrateStepCommand(pg.MigrateUp, "Apply all pending migrations"),
		newMigrateStepCommand(pg.MigrateDown, "Revert all migrations"),
		newMigrateVersionCommand(),
	)
	return cmd
}

func newMigrateStepCommand(dir pg.MigrateDirection, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(dir),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if db == nil {
				return errors.New("database.dsn is required")
			}
			defer db.Close()

			if err := pg.Migrate(db, dir); err != nil {
				return fmt.Errorf("migrate %s: %w", dir, err)
			}
			log.Info().Str("direction", string(dir)).Msg("migrations applied")
			return nil
		},
	}
}

func newMigrateVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if db == nil {
				return errors.New("database.dsn is required")
			}
			defer db.Close()

			version, dirty, err := pg.MigrationVersion(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
			return nil
		},
	}
}
