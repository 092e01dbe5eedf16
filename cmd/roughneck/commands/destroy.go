package commands

import (
	"github.com/spf13/cobra"

	"github.com/mjtechguy/roughneck/cmd/roughneck/handlers"
)

// Destroy returns the destroy command.
//
// Destroy tears down all cloud resources of a deployment. The local record
// survives until the operator confirms its removal, so the history of what
// was deployed is never lost by accident.
func Destroy() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "destroy <name>",
		Aliases: []string{"rm"},
		Short:   "Destroy a deployment's cloud resources",
		Long: `Destroy removes the deployment's server and every resource created for
it. Confirmation requires typing the deployment name back exactly;
"Prod" does not confirm "prod".

After the infrastructure is gone the command offers to delete the local
record as well.

Example:
  roughneck destroy dev

WARNING: This operation is irreversible. All data on the server is lost.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Destroy(cmd.Context(), args[0], force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the typed-name confirmation")

	return cmd
}
