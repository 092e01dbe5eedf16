package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build metadata, stamped by goreleaser.
var buildInfo = struct {
	version string
	commit  string
	date    string
}{"dev", "none", "unknown"}

// SetVersionInfo records the build metadata reported by the version command.
func SetVersionInfo(version, commit, date string) {
	buildInfo.version, buildInfo.commit, buildInfo.date = version, commit, date
}

// Version returns the version command.
func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the roughneck version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "roughneck %s (commit %s, built %s)\n",
				buildInfo.version, buildInfo.commit, buildInfo.date)
		},
	}
}
