package commands

import (
	"github.com/spf13/cobra"

	"github.com/mjtechguy/roughneck/cmd/roughneck/handlers"
)

// Provision returns the provision command.
//
// Provision re-runs the full configuration convergence against an existing
// server without touching infrastructure.
func Provision() *cobra.Command {
	return &cobra.Command{
		Use:   "provision <name>",
		Short: "Re-run the server configuration without provisioning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Provision(cmd.Context(), args[0])
		},
	}
}
