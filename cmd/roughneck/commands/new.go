package commands

import (
	"github.com/spf13/cobra"

	"github.com/mjtechguy/roughneck/cmd/roughneck/handlers"
)

// New returns the new command.
//
// The new command creates a deployment, walks through the configuration
// wizard, and offers to deploy immediately.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "new <name>",
		Short: "Create and configure a new deployment",
		Long: `New creates an isolated deployment and walks through its configuration:
cloud provider, credentials, server location and size, SSH access,
firewall, optional tooling, and TLS.

The provisioning templates are pinned into the deployment's directory at
creation time, so later upgrades of roughneck never change an existing
deployment.

Example:
  roughneck new dev`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.New(cmd.Context(), args[0])
		},
	}
}
