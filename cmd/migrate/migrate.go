// Package migrate provides the migrate command
package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evalgrid/postit/internal/app"
	"github.com/evalgrid/postit/internal/logger"
)

// Command creates and returns the migrate command
func Command(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long:  `Migrate opens the configured SQLite or MySQL database and creates the catalog, annotation and association tables.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := ctx.OpenManager()
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			ctx.Log("migrate").Info("schema up to date",
				logger.String("driver", ctx.Settings.Store.Driver),
				logger.Bool("mysql", m.IsMySQL()))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema migrated (%s)\n", m.Path())
			return err
		},
	}
}
