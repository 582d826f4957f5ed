package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onnwee/contact-bot/config"
	"github.com/onnwee/contact-bot/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the database schema",
		Long:  `All subcommands require DB_DSN.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(cmd, func(database *sql.DB) error {
					if err := db.RunMigrations(database); err != nil {
						return err
					}
					return printVersion(cmd, database)
				})
			},
		},
		&cobra.Command{
			Use:   "rollback",
			Short: "Revert the most recent migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(cmd, func(database *sql.DB) error {
					if err := db.MigrateDown(database); err != nil {
						return err
					}
					return printVersion(cmd, database)
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(cmd, func(database *sql.DB) error {
					return printVersion(cmd, database)
				})
			},
		},
	)
	return cmd
}

func withDB(cmd *cobra.Command, fn func(*sql.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DBDsn == "" {
		return errors.New("DB_DSN environment variable is required")
	}
	database, err := db.Connect(cmd.Context(), cfg.DBDsn)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()
	return fn(database)
}

func printVersion(cmd *cobra.Command, database *sql.DB) error {
	v, dirty, err := db.MigrationVersion(database)
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", v, state)
	return err
}
