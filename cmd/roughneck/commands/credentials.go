package commands

import (
	"github.com/spf13/cobra"

	"github.com/mjtechguy/roughneck/cmd/roughneck/handlers"
)

// Credentials returns the credentials command.
//
// Credential profiles are stored age-encrypted and referenced from
// deployments by name, so configuration records never contain plaintext
// secrets.
func Credentials() *cobra.Command {
	return &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"creds"},
		Short:   "Manage encrypted credential profiles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Credentials(cmd.Context())
		},
	}
}
