package commands

import (
	"github.com/spf13/cobra"

	"github.com/mjtechguy/roughneck/cmd/roughneck/handlers"
)

// Update returns the update command.
func Update() *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "update <name>",
		Short: "Update selected tooling on a ready deployment",
		Long: `Update re-runs selected parts of the server configuration: developer
tools or TLS certificates. Without --tags an interactive checkbox asks
what to update.

Example:
  roughneck update dev --tags devtools`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Update(cmd.Context(), args[0], tags)
		},
	}

	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Update roles to run (devtools, tls)")

	return cmd
}
