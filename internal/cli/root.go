package cli

import (
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/plandeck/plandeck/internal/db"
)

// App holds the shared dependencies for CLI commands.
type App struct {
	Database *sql.DB
	UoW      db.UnitOfWork
}

// NewRootCmd creates the top-level "plandeck" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "plandeck",
		Short:         "Test management backend core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCmd(app),
		newSeedCmd(app),
		newPermissionsCmd(),
	)

	return root
}
