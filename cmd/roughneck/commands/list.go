package commands

import (
	"github.com/spf13/cobra"

	"github.com/mjtechguy/roughneck/cmd/roughneck/handlers"
)

// List returns the list command.
func List() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List deployments and their lifecycle phase",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.List(cmd.OutOrStdout(), jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")

	return cmd
}
