package handlers

import (
	"context"

	"github.com/mjtechguy/roughneck/internal/ui"
)

// Provision handles the provision command.
//
// It re-runs the full configuration convergence against an existing
// server without touching infrastructure. Useful after manual changes on
// the host or an interrupted configuration run.
func Provision(ctx context.Context, name string) error {
	if err := checkPrerequisites(); err != nil {
		return err
	}
	store := openStore()
	dep, release, err := lockAndOpen(store, name)
	if err != nil {
		return err
	}
	defer release()

	if _, err := requireAddress(dep); err != nil {
		return err
	}
	if err := newConfigurer().Converge(ctx, dep); err != nil {
		return err
	}
	ui.Success("Configuration converged on %s", name)
	return nil
}
