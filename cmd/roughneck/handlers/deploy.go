package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/mjtechguy/roughneck/internal/deployment"
	"github.com/mjtechguy/roughneck/internal/engine"
	"github.com/mjtechguy/roughneck/internal/provider"
	"github.com/mjtechguy/roughneck/internal/ui"
	"github.com/mjtechguy/roughneck/internal/vault"
)

// Factory function variables for deploy - can be replaced in tests.
var (
	// chooseAction prompts the operator for a recovery decision.
	chooseAction = promptAction

	// chooseSize prompts for a replacement server size after a capacity
	// failure.
	chooseSize = promptSize

	// interactive reports whether prompting is possible.
	interactive = ui.IsInteractive

	// validateReady runs the post-deploy health checks on the server.
	validateReady = func(ctx context.Context, dep *deployment.Deployment) error {
		return newConfigurer().Validate(ctx, dep)
	}
)

// Deploy handles the deploy command.
//
// It drives the deployment's lifecycle as far as it can go, prompting the
// operator whenever the engine stops for a decision: retry, edit the
// configuration, pick a different size after a capacity failure, skip a
// failed step, or abort. Abort is a clean exit, not a failure.
func Deploy(ctx context.Context, name string) error {
	if err := checkPrerequisites(); err != nil {
		return err
	}
	store := openStore()
	dep, release, err := lockAndOpen(store, name)
	if err != nil {
		return err
	}
	defer release()

	return runLifecycle(ctx, store, newVault(store.Root), dep)
}

// runLifecycle runs the engine in a loop, feeding operator decisions back
// until the deployment is ready, aborted, or failed without recourse.
func runLifecycle(ctx context.Context, store *deployment.Store, v *vault.Vault, dep *deployment.Deployment) error {
	run := func() (*engine.Outcome, error) {
		env, err := credentialEnv(ctx, v, dep.Config)
		if err != nil {
			return nil, err
		}
		return newEngine(store, env).Run(ctx, dep)
	}

	out, err := run()
	for {
		if err != nil {
			return err
		}
		if out.Decision == nil {
			if valErr := validateReady(ctx, dep); valErr != nil {
				ui.Warning("Health checks reported problems on %s: %v", dep.Name, valErr)
			}
			reportReady(dep)
			return nil
		}

		decision := out.Decision
		if decision.Kind == engine.DecisionRecovery {
			ui.Error("%s failed during %s: %v", dep.Name, decision.FailedAt, decision.Cause)
		}
		if !interactive() {
			if decision.Kind == engine.DecisionDNSPause {
				return fmt.Errorf("%s needs DNS pointed at %s before configuration; re-run deploy on a terminal", dep.Name, dep.State.Address)
			}
			return decision.Cause
		}

		action, err := chooseAction(ctx, dep, decision)
		if err != nil {
			return err
		}

		switch action {
		case engine.ActionAbort:
			ui.Info("Leaving %s in phase %s", dep.Name, dep.State.EffectivePhase())
			return nil
		case engine.ActionSkip:
			env, envErr := credentialEnv(ctx, v, dep.Config)
			if envErr != nil {
				return envErr
			}
			out, err = newEngine(store, env).Skip(ctx, dep)
		case engine.ActionEdit:
			if editErr := editConfig(ctx, store, dep); editErr != nil {
				ui.Error("%v", editErr)
			}
			out, err = run()
		case engine.ActionReselect:
			if selErr := reselectSize(ctx, v, store, dep, decision); selErr != nil {
				return selErr
			}
			out, err = run()
		default: // retry, continue
			out, err = run()
		}
	}
}

func reportReady(dep *deployment.Deployment) {
	ui.Success("Deployment %s is ready", dep.Name)
	if dep.State.Address != "" {
		ui.Info("Connect with: roughneck ssh %s  (%s)", dep.Name, dep.State.Address)
	}
}

// promptAction renders a decision as a menu and returns the chosen action.
func promptAction(ctx context.Context, dep *deployment.Deployment, d *engine.Decision) (engine.Action, error) {
	if d.Kind == engine.DecisionDNSPause {
		ui.Header("DNS Setup")
		ui.Info("Point %s at %s, then continue.", dep.Config.DomainName, dep.State.Address)
		choice, err := ui.Select(ctx, "Continue with configuration?", []ui.Choice{
			{Value: string(engine.ActionContinue), Label: "Continue - DNS is set up"},
			{Value: string(engine.ActionAbort), Label: "Abort - finish later with deploy"},
		})
		return engine.Action(choice), err
	}

	labels := map[engine.Action]string{
		engine.ActionRetry:    "Retry the failed step",
		engine.ActionEdit:     "Edit the configuration and retry",
		engine.ActionSkip:     "Skip this step",
		engine.ActionAbort:    "Abort and keep what exists",
		engine.ActionReselect: fmt.Sprintf("Pick a different size (%q is unavailable in %q)", d.Size, d.Location),
	}
	choices := make([]ui.Choice, 0, len(d.Actions))
	for _, a := range d.Actions {
		choices = append(choices, ui.Choice{Value: string(a), Label: labels[a]})
	}
	choice, err := ui.Select(ctx, "How do you want to proceed?", choices)
	return engine.Action(choice), err
}

// promptSize fetches the live catalog and prompts for a replacement size.
func promptSize(ctx context.Context, cfg *deployment.Config, adapter provider.Adapter) (string, error) {
	catalog, err := adapter.Catalog(ctx, cfg)
	if err != nil {
		return "", err
	}
	choices := make([]ui.Choice, 0, len(catalog.Sizes))
	for _, s := range catalog.Sizes {
		if s.ID == cfg.Size() {
			continue
		}
		choices = append(choices, ui.Choice{Value: s.ID, Label: s.Label})
	}
	if len(choices) == 0 {
		return "", fmt.Errorf("no alternative sizes available in %s", cfg.Region())
	}
	return ui.Select(ctx, "Server Size", choices)
}

// reselectSize replaces the configured server size and persists the record.
func reselectSize(ctx context.Context, v *vault.Vault, store *deployment.Store, dep *deployment.Deployment, d *engine.Decision) error {
	adapter, err := provider.Get(dep.Config.Provider)
	if err != nil {
		return err
	}
	resolved := *dep.Config
	if resolved.CredentialProfile != "" {
		if err := v.Resolve(ctx, &resolved); err != nil {
			return err
		}
	}
	size, err := chooseSize(ctx, &resolved, adapter)
	if err != nil {
		return err
	}
	dep.Config.SetSize(size)
	return store.SaveConfig(dep)
}

// editConfig opens the config record in $EDITOR, validates the result, and
// keeps or reverts it. Provider changes with live infrastructure are
// rejected and the previous record restored.
func editConfig(ctx context.Context, store *deployment.Store, dep *deployment.Deployment) error {
	original, err := os.ReadFile(dep.ConfigPath())
	if err != nil {
		return err
	}
	if err := openEditor(ctx, dep.ConfigPath()); err != nil {
		return fmt.Errorf("editor failed: %w", err)
	}
	edited, err := os.ReadFile(dep.ConfigPath())
	if err != nil {
		return err
	}
	cfg := deployment.ParseConfig(edited)

	if err := newEngine(store, nil).ValidateEdit(dep, cfg); err != nil {
		if restoreErr := os.WriteFile(dep.ConfigPath(), original, 0o600); restoreErr != nil {
			return fmt.Errorf("%w (and restoring the previous config failed: %v)", err, restoreErr)
		}
		return err
	}
	dep.Config = cfg
	return nil
}
