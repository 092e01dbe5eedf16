package handlers

import (
	"context"
	"fmt"

	"github.com/mjtechguy/roughneck/internal/provider"
	"github.com/mjtechguy/roughneck/internal/ui"
	"github.com/mjtechguy/roughneck/internal/util/prerequisites"
	"github.com/mjtechguy/roughneck/internal/vault"
)

// credentialFields maps each backend to the secret fields a profile holds.
// The keys match the configuration record, so Resolve can copy them over.
var credentialFields = map[string][]struct {
	Key   string
	Title string
}{
	"hetzner":      {{Key: "hetzner_token", Title: "Hetzner API Token"}},
	"aws":          {{Key: "aws_access_key", Title: "AWS Access Key ID"}, {Key: "aws_secret_key", Title: "AWS Secret Access Key"}},
	"digitalocean": {{Key: "digitalocean_token", Title: "DigitalOcean API Token"}},
}

// Credentials handles the credentials command: an interactive loop over
// the stored profiles. When the encryption tools are missing it prints
// install hints instead of failing.
func Credentials(ctx context.Context) error {
	store := openStore()
	v := newVault(store.Root)

	if !v.Available() {
		ui.Warning("Credential storage needs age and age-keygen on PATH.")
		for _, tool := range prerequisites.VaultTools() {
			ui.Info("  %s: %s", tool.Name, tool.InstallURL)
		}
		ui.Info("Until then, deployments prompt for credentials each time.")
		return nil
	}

	for {
		if err := listProfiles(ctx, v); err != nil {
			return err
		}
		choice, err := ui.Select(ctx, "Credential Profiles", []ui.Choice{
			{Value: "add", Label: "Add a profile"},
			{Value: "remove", Label: "Remove a profile"},
			{Value: "done", Label: "Done"},
		})
		if err != nil {
			return err
		}
		switch choice {
		case "add":
			err = addProfile(ctx, v)
		case "remove":
			err = removeProfile(ctx, v)
		default:
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func listProfiles(ctx context.Context, v *vault.Vault) error {
	profiles, err := v.List(ctx)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		ui.Info("No stored profiles")
		return nil
	}
	for _, p := range profiles {
		ui.Info("%s (%s)", p.Name, p.Provider)
	}
	return nil
}

func addProfile(ctx context.Context, v *vault.Vault) error {
	kinds := provider.Kinds()
	choices := make([]ui.Choice, len(kinds))
	for i, kind := range kinds {
		adapter, err := provider.Get(kind)
		if err != nil {
			return err
		}
		choices[i] = ui.Choice{Value: kind, Label: adapter.DisplayName()}
	}
	kind, err := ui.Select(ctx, "Provider", choices)
	if err != nil {
		return err
	}
	name, err := ui.Input(ctx, "Profile Name", "work", func(s string) error {
		if s == "" {
			return fmt.Errorf("name is required")
		}
		return nil
	})
	if err != nil {
		return err
	}

	data := map[string]string{}
	for _, field := range credentialFields[kind] {
		value, err := ui.Password(ctx, field.Title)
		if err != nil {
			return err
		}
		data[field.Key] = value
	}

	if err := v.Put(ctx, vault.Profile{Name: name, Provider: kind, Data: data}); err != nil {
		return err
	}
	ui.Success("Stored profile %s", name)
	return nil
}

func removeProfile(ctx context.Context, v *vault.Vault) error {
	profiles, err := v.List(ctx)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		ui.Info("Nothing to remove")
		return nil
	}
	choices := make([]ui.Choice, len(profiles))
	for i, p := range profiles {
		choices[i] = ui.Choice{Value: p.Name, Label: fmt.Sprintf("%s (%s)", p.Name, p.Provider)}
	}
	name, err := ui.Select(ctx, "Remove which profile?", choices)
	if err != nil {
		return err
	}
	if err := v.Remove(ctx, name); err != nil {
		return err
	}
	ui.Success("Removed profile %s", name)
	return nil
}
