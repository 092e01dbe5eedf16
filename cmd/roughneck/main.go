// Package main is the entry point for the roughneck CLI.
//
// roughneck provisions remote development environments on Hetzner Cloud,
// AWS, or DigitalOcean: it creates a server through the bundled
// infrastructure templates, waits for SSH, and converges the software
// configuration. Every deployment is isolated on disk and can be resumed,
// retried, updated, and destroyed independently.
//
// Commands: new, deploy, update, edit, destroy, list, ssh, credentials,
// provision.
//
// For detailed usage information, run:
//
//	roughneck --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mjtechguy/roughneck/cmd/roughneck/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
