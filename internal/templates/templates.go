// Package templates bundles the terraform and ansible sources that get
// pinned into each deployment directory at creation time. Deployments
// always run against their own pinned copy, so upgrading the orchestrator
// never changes what an existing deployment would apply.
package templates

import (
	"embed"
	"io/fs"
)

//go:embed all:terraform all:ansible
var assets embed.FS

// Assets returns the bundled template tree. Its root contains the
// terraform/ and ansible/ subtrees.
func Assets() fs.FS {
	return assets
}

// Providers lists the provider names that have a bundled terraform tree,
// in menu order.
func Providers() []string {
	return []string{"hetzner", "aws", "digitalocean"}
}
