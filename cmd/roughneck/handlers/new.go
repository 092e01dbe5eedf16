package handlers

import (
	"context"

	"github.com/mjtechguy/roughneck/internal/deployment"
	"github.com/mjtechguy/roughneck/internal/deployment/wizard"
	"github.com/mjtechguy/roughneck/internal/provider"
	"github.com/mjtechguy/roughneck/internal/ui"
)

// Factory function variables for new - can be replaced in tests.
var (
	// runWizard fills a fresh config interactively.
	runWizard = wizard.Run

	// confirmDeploy asks whether to deploy right after creation.
	confirmDeploy = func(ctx context.Context) (bool, error) {
		return ui.Confirm(ctx, "Deploy now?")
	}
)

// New handles the new command.
//
// It creates an isolated deployment record, runs the configuration wizard,
// shows a summary, and, once confirmed, persists the record with the
// bundled provisioning templates pinned and starts the deployment.
func New(ctx context.Context, name string) error {
	if err := deployment.ValidateName(name); err != nil {
		return err
	}
	if err := checkPrerequisites(); err != nil {
		return err
	}

	store := openStore()
	v := newVault(store.Root)

	dep, err := store.Create(name)
	if err != nil {
		return err
	}
	cfg := &deployment.Config{ProjectName: name}
	if err := runWizard(ctx, cfg, v); err != nil {
		// The record was created but never configured; remove it so a
		// cancelled wizard does not leave a half-made deployment behind.
		_ = store.Delete(name)
		return err
	}
	dep.Config = cfg
	if err := store.SaveConfig(dep); err != nil {
		return err
	}

	printSummary(dep)

	deploy, err := confirmDeploy(ctx)
	if err != nil || !deploy {
		if err == nil {
			ui.Info("Created %s. Deploy later with: roughneck deploy %s", name, name)
		}
		return err
	}

	release, err := store.Lock(name)
	if err != nil {
		return err
	}
	defer release()
	return runLifecycle(ctx, store, v, dep)
}

func printSummary(dep *deployment.Deployment) {
	cfg := dep.Config
	ui.Header("Deployment " + dep.Name)
	backend := cfg.Provider
	if adapter, err := provider.Get(cfg.Provider); err == nil {
		backend = adapter.DisplayName()
	}
	ui.Info("Provider:  %s", backend)
	ui.Info("Location:  %s", cfg.Region())
	ui.Info("Size:      %s", cfg.Size())
	ui.Info("Firewall:  %s", onOff(cfg.EnableFirewall))
	ui.Info("k9s:       %s", onOff(cfg.EnableK9s))
	ui.Info("autocoder: %s", onOff(cfg.EnableAutoCoder))
	if cfg.EnableLetsEncrypt {
		ui.Info("TLS:       %s (%s)", cfg.DomainName, cfg.TLSMode)
	} else {
		ui.Info("TLS:       off")
	}
	if cfg.CredentialProfile != "" {
		ui.Info("Profile:   %s", cfg.CredentialProfile)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
