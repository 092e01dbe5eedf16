package handlers

import (
	"context"

	"github.com/mjtechguy/roughneck/internal/ui"
)

// Factory function variables for destroy - can be replaced in tests.
var (
	// confirmDestroy demands the exact deployment name typed back.
	confirmDestroy = ui.ConfirmDestroy

	// confirmDeleteRecord asks whether to remove the local record after
	// the infrastructure is gone.
	confirmDeleteRecord = func(ctx context.Context, name string) (bool, error) {
		return ui.Confirm(ctx, "Remove the local record for "+name+" as well?")
	}
)

// Destroy handles the destroy command.
//
// It tears down the deployment's infrastructure and, once that succeeds,
// offers to delete the local record. Confirmation demands the exact name
// typed back unless --force was given.
func Destroy(ctx context.Context, name string, force bool) error {
	store := openStore()
	dep, release, err := lockAndOpen(store, name)
	if err != nil {
		return err
	}
	defer release()

	if !force {
		if err := confirmDestroy(ctx, name); err != nil {
			return err
		}
	}

	env, err := credentialEnv(ctx, newVault(store.Root), dep.Config)
	if err != nil {
		return err
	}
	if err := newEngine(store, env).Destroy(ctx, dep); err != nil {
		return err
	}
	ui.Success("Destroyed %s", name)

	if !interactive() {
		return nil
	}
	remove, err := confirmDeleteRecord(ctx, name)
	if err != nil || !remove {
		return err
	}
	release()
	if err := store.Delete(name); err != nil {
		return err
	}
	ui.Info("Removed %s", dep.Dir)
	return nil
}
