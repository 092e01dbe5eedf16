package commands

import (
	"github.com/spf13/cobra"

	"github.com/mjtechguy/roughneck/cmd/roughneck/handlers"
)

// SSH returns the ssh command.
func SSH() *cobra.Command {
	return &cobra.Command{
		Use:   "ssh <name>",
		Short: "Open an SSH session to a deployment's server",
		Long: `SSH connects to the deployment's server with its key pair and the
provider's default login user.

Example:
  roughneck ssh dev`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.SSH(cmd.Context(), args[0])
		},
	}
}
