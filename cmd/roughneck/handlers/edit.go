package handlers

import (
	"context"

	"github.com/mjtechguy/roughneck/internal/ui"
)

// confirmRedeploy asks whether to apply an edited config - replaced in tests.
var confirmRedeploy = func(ctx context.Context) (bool, error) {
	return ui.Confirm(ctx, "Deploy the changed configuration now?")
}

// Edit handles the edit command.
//
// It opens the deployment's configuration record in $EDITOR, rejects
// provider changes while infrastructure exists, and offers to deploy the
// result.
func Edit(ctx context.Context, name string) error {
	store := openStore()
	dep, release, err := lockAndOpen(store, name)
	if err != nil {
		return err
	}
	defer release()

	if err := editConfig(ctx, store, dep); err != nil {
		return err
	}
	ui.Success("Updated configuration for %s", name)

	if !interactive() {
		return nil
	}
	deploy, err := confirmRedeploy(ctx)
	if err != nil || !deploy {
		return err
	}
	return runLifecycle(ctx, store, newVault(store.Root), dep)
}
