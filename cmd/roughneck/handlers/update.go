package handlers

import (
	"context"
	"fmt"

	"github.com/mjtechguy/roughneck/internal/deployment"
	"github.com/mjtechguy/roughneck/internal/ui"
)

// updateTags are the tagged roles the update playbook can re-run.
var updateTags = []ui.Choice{
	{Value: "devtools", Label: "Developer tools (docker, code-server, cli tooling)"},
	{Value: "tls", Label: "TLS certificates and proxy configuration"},
}

// chooseTags prompts for the roles to update - replaced in tests.
var chooseTags = func(ctx context.Context) ([]string, error) {
	return ui.MultiSelect(ctx, "What should be updated?", updateTags)
}

// Update handles the update command.
//
// It re-runs selected tagged roles of the configuration playbooks against
// a ready deployment. Tags come from flags or an interactive checkbox.
func Update(ctx context.Context, name string, tags []string) error {
	if err := checkPrerequisites(); err != nil {
		return err
	}
	store := openStore()
	dep, release, err := lockAndOpen(store, name)
	if err != nil {
		return err
	}
	defer release()

	if dep.State.Phase != deployment.PhaseReady {
		return fmt.Errorf("%s is not ready (phase %s): deploy first", name, dep.State.EffectivePhase())
	}

	if len(tags) == 0 {
		if !interactive() {
			return fmt.Errorf("no update tags given: pass --tags")
		}
		tags, err = chooseTags(ctx)
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			ui.Info("Nothing selected")
			return nil
		}
	}

	if err := newConfigurer().Update(ctx, dep, tags); err != nil {
		return err
	}
	ui.Success("Updated %s: %v", name, tags)
	return nil
}
