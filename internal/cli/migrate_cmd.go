package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plandeck/plandeck/internal/db"
)

func newMigrateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Applies the full migration set. Safe to re-run; already-applied statements are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.Migrate(app.Database); err != nil {
				return fmt.Errorf("applying migrations: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
