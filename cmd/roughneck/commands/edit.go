package commands

import (
	"github.com/spf13/cobra"

	"github.com/mjtechguy/roughneck/cmd/roughneck/handlers"
)

// Edit returns the edit command.
//
// Edit opens the deployment's configuration record in $EDITOR. Changing
// the provider while infrastructure exists is rejected; everything else
// can be changed and redeployed.
func Edit() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <name>",
		Short: "Edit a deployment's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Edit(cmd.Context(), args[0])
		},
	}
}
