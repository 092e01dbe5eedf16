package commands

import (
	"github.com/spf13/cobra"

	"github.com/mjtechguy/roughneck/cmd/roughneck/handlers"
)

// Deploy returns the deploy command.
//
// Deploy resumes a deployment from wherever it stopped: a fresh record is
// provisioned and configured, an interrupted or failed one continues from
// its actual state, a ready one is left untouched.
func Deploy() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy <name>",
		Short: "Provision and configure a deployment",
		Long: `Deploy drives a deployment to ready: provision infrastructure, wait for
SSH connectivity, and converge the software configuration.

The command is safe to re-run. It picks up where the previous run
stopped - a deployment that is already ready is not touched, and a failed
one resumes from the failed step after asking how to proceed.

Example:
  roughneck deploy dev`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Deploy(cmd.Context(), args[0])
		},
	}
}
