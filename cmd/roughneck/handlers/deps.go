// Package handlers implements the command logic behind the CLI. Commands
// parse flags and delegate here; everything here is framework-free and
// testable through the factory function variables below.
package handlers

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/mjtechguy/roughneck/internal/ansible"
	"github.com/mjtechguy/roughneck/internal/deployment"
	"github.com/mjtechguy/roughneck/internal/engine"
	"github.com/mjtechguy/roughneck/internal/provider"
	"github.com/mjtechguy/roughneck/internal/templates"
	"github.com/mjtechguy/roughneck/internal/terraform"
	"github.com/mjtechguy/roughneck/internal/util/prerequisites"
	"github.com/mjtechguy/roughneck/internal/vault"
)

// lifecycleEngine is the engine surface the handlers need.
type lifecycleEngine interface {
	Run(ctx context.Context, dep *deployment.Deployment) (*engine.Outcome, error)
	Skip(ctx context.Context, dep *deployment.Deployment) (*engine.Outcome, error)
	ValidateEdit(dep *deployment.Deployment, edited *deployment.Config) error
	Destroy(ctx context.Context, dep *deployment.Deployment) error
}

// Factory function variables - can be replaced in tests.
var (
	// storeRoot resolves the data directory.
	storeRoot = deployment.DefaultRoot

	// newStore creates the deployment store with the bundled templates.
	newStore = func(root string) *deployment.Store {
		s := deployment.NewStore(root)
		s.Templates = templates.Assets()
		return s
	}

	// newVault creates the credential vault rooted at the data directory.
	newVault = func(root string) *vault.Vault {
		return vault.New(root)
	}

	// newEngine creates a lifecycle engine whose provisioning driver
	// carries the given credential environment.
	newEngine = func(store *deployment.Store, env map[string]string) lifecycleEngine {
		return engine.New(store, &terraform.Driver{Env: env}, &ansible.Driver{})
	}

	// newConfigurer creates the configuration driver used outside the
	// engine (update tags, re-provision, validate).
	newConfigurer = func() *ansible.Driver {
		return &ansible.Driver{}
	}

	// checkPrerequisites verifies the required external tools.
	checkPrerequisites = func() error {
		return prerequisites.CheckDefault().Error()
	}

	// openEditor opens $EDITOR (vi when unset) on a file.
	openEditor = func(ctx context.Context, path string) error {
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}
		cmd := exec.CommandContext(ctx, editor, path)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	}
)

// openStore resolves the data directory and returns the store.
func openStore() *deployment.Store {
	return newStore(storeRoot())
}

// credentialEnv resolves the deployment's credentials - a vault profile
// when one is referenced, the inline fields otherwise - and maps them to
// the environment variables the provisioning backend expects. Profile
// secrets are resolved into a copy so the stored record stays clean.
func credentialEnv(ctx context.Context, v *vault.Vault, cfg *deployment.Config) (map[string]string, error) {
	adapter, err := provider.Get(cfg.Provider)
	if err != nil {
		return nil, err
	}
	resolved := *cfg
	if cfg.CredentialProfile != "" {
		if err := v.Resolve(ctx, &resolved); err != nil {
			return nil, err
		}
	}
	return adapter.CredentialEnv(&resolved), nil
}

// lockAndOpen acquires the deployment lock and opens the record. The
// returned release func must run on every exit path.
func lockAndOpen(store *deployment.Store, name string) (*deployment.Deployment, func(), error) {
	if !store.Exists(name) {
		return nil, nil, fmt.Errorf("no deployment named %q: %w", name, deployment.ErrNotFound)
	}
	release, err := store.Lock(name)
	if err != nil {
		return nil, nil, err
	}
	dep, err := store.Open(name)
	if err != nil {
		release()
		return nil, nil, err
	}
	return dep, release, nil
}

// requireAddress returns the deployment's server address or an error
// telling the operator to provision first.
func requireAddress(dep *deployment.Deployment) (string, error) {
	if dep.State.Address == "" {
		return "", fmt.Errorf("%s has no server yet: run deploy first", dep.Name)
	}
	return dep.State.Address, nil
}
