package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atlekbai/document_registry/internal/config"
	"github.com/atlekbai/document_registry/internal/db"
)

func newMigrateCmd() *cobra.Command {
	var databaseURL string

	resolve := func() (string, error) {
		if databaseURL != "" {
			return databaseURL, nil
		}
		cfg, err := config.Load()
		if err != nil {
			return "", err
		}
		return cfg.DatabaseURL, nil
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the schemas, schema_fields and documents tables",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres URL (defaults to DATABASE_URL)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				url, err := resolve()
				if err != nil {
					return err
				}
				if err := db.Migrate(url); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				url, err := resolve()
				if err != nil {
					return err
				}
				if err := db.MigrateDown(url); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied migration version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				url, err := resolve()
				if err != nil {
					return err
				}
				v, dirty, err := db.Version(url)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %v)\n", v, dirty)
				return nil
			},
		},
	)
	return cmd
}
