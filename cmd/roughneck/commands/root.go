// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation. Command execution is delegated to
// handler functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/mjtechguy/roughneck/cmd/roughneck/handlers"
)

// Root returns the root command for the roughneck CLI.
//
// Bare invocation on a terminal opens the interactive menu; otherwise the
// usage text is printed.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roughneck",
		Short: "Provision cloud dev environments on Hetzner, AWS or DigitalOcean",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if handlers.Interactive() {
				return handlers.Menu(cmd.Context())
			}
			return cmd.Help()
		},
	}

	cmd.AddCommand(New())
	cmd.AddCommand(Deploy())
	cmd.AddCommand(Update())
	cmd.AddCommand(Edit())
	cmd.AddCommand(Destroy())
	cmd.AddCommand(List())
	cmd.AddCommand(SSH())
	cmd.AddCommand(Credentials())
	cmd.AddCommand(Provision())
	cmd.AddCommand(Version())

	return cmd
}
