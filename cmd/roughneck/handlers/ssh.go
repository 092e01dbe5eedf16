package handlers

import (
	"context"

	"github.com/mjtechguy/roughneck/internal/deployment"
	"github.com/mjtechguy/roughneck/internal/provider"
	"github.com/mjtechguy/roughneck/internal/sshutil"
)

// connectSSH execs the system ssh - replaced in tests.
var connectSSH = sshutil.Connect

// SSH handles the ssh command. It opens an interactive shell on the
// deployment's server using its key and the provider's default user.
func SSH(ctx context.Context, name string) error {
	store := openStore()
	dep, err := store.Open(name)
	if err != nil {
		return err
	}
	if _, err := requireAddress(dep); err != nil {
		return err
	}
	adapter, err := provider.Get(providerOf(dep))
	if err != nil {
		return err
	}
	return connectSSH(ctx, dep, adapter.DefaultUser())
}

// providerOf prefers the provider that actually holds the infrastructure
// over the configured one, so ssh keeps working mid-edit.
func providerOf(dep *deployment.Deployment) string {
	if dep.State.Provider != "" {
		return dep.State.Provider
	}
	return dep.Config.Provider
}
