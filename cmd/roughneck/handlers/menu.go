package handlers

import (
	"context"
	"fmt"

	"github.com/mjtechguy/roughneck/internal/deployment"
	"github.com/mjtechguy/roughneck/internal/ui"
)

// Menu handles bare invocation on a terminal: a menu over the same
// operations the subcommands expose.
func Menu(ctx context.Context) error {
	for {
		store := openStore()
		names, err := store.Names()
		if err != nil {
			return err
		}

		choices := []ui.Choice{{Value: "new", Label: "Create a new deployment"}}
		for _, name := range names {
			s, err := store.Summarize(name)
			if err != nil {
				continue
			}
			choices = append(choices, ui.Choice{Value: "dep:" + name, Label: fmt.Sprintf("%s (%s)", name, s.Phase)})
		}
		choices = append(choices,
			ui.Choice{Value: "credentials", Label: "Manage credential profiles"},
			ui.Choice{Value: "quit", Label: "Quit"},
		)

		choice, err := ui.Select(ctx, "roughneck", choices)
		if err != nil {
			return err
		}
		switch {
		case choice == "quit":
			return nil
		case choice == "new":
			err = newFromMenu(ctx)
		case choice == "credentials":
			err = Credentials(ctx)
		default:
			err = deploymentMenu(ctx, choice[len("dep:"):])
		}
		if err != nil {
			return err
		}
	}
}

func newFromMenu(ctx context.Context) error {
	name, err := ui.Input(ctx, "Deployment Name", "dev", deployment.ValidateName)
	if err != nil {
		return err
	}
	return New(ctx, name)
}

func deploymentMenu(ctx context.Context, name string) error {
	choice, err := ui.Select(ctx, name, []ui.Choice{
		{Value: "deploy", Label: "Deploy (provision + configure)"},
		{Value: "ssh", Label: "Open an SSH session"},
		{Value: "edit", Label: "Edit the configuration"},
		{Value: "update", Label: "Update installed tooling"},
		{Value: "destroy", Label: "Destroy the infrastructure"},
		{Value: "back", Label: "Back"},
	})
	if err != nil {
		return err
	}
	switch choice {
	case "deploy":
		return Deploy(ctx, name)
	case "ssh":
		return SSH(ctx, name)
	case "edit":
		return Edit(ctx, name)
	case "update":
		return Update(ctx, name, nil)
	case "destroy":
		return Destroy(ctx, name, false)
	}
	return nil
}

// Interactive reports whether stdin and stdout are a terminal. Exposed for
// the root command's bare-invocation check.
func Interactive() bool {
	return interactive()
}
