package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plandeck/plandeck/internal/perm"
)

func newPermissionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "permissions",
		Short: "List the permission vocabularies",
		Long:  "Prints every company-scope and project-scope permission key a role may grant.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Company scope:")
			for _, key := range perm.CompanyKeys() {
				fmt.Fprintf(out, "  %s\n", key)
			}
			fmt.Fprintln(out, "Project scope:")
			for _, key := range perm.ProjectKeys() {
				fmt.Fprintf(out, "  %s\n", key)
			}
			return nil
		},
	}
}
