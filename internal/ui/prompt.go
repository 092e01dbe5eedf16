package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/mjtechguy/roughneck/internal/deployment"
)

// Choice is one selectable option.
type Choice struct {
	// Value is what gets returned when the choice is picked.
	Value string

	// Label is the rendered menu line. Empty means Value.
	Label string
}

func toOptions(choices []Choice) []huh.Option[string] {
	opts := make([]huh.Option[string], len(choices))
	for i, c := range choices {
		label := c.Label
		if label == "" {
			label = c.Value
		}
		opts[i] = huh.NewOption(label, c.Value)
	}
	return opts
}

// Select prompts for one of the given choices.
func Select(ctx context.Context, title string, choices []Choice) (string, error) {
	var value string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Options(toOptions(choices)...).
				Value(&value),
		),
	).RunWithContext(ctx)
	return value, err
}

// MultiSelect prompts for any number of the given choices.
func MultiSelect(ctx context.Context, title string, choices []Choice) ([]string, error) {
	var values []string
	opts := make([]huh.Option[string], len(choices))
	for i, c := range choices {
		label := c.Label
		if label == "" {
			label = c.Value
		}
		opts[i] = huh.NewOption(label, c.Value)
	}
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title(title).
				Options(opts...).
				Value(&values),
		),
	).RunWithContext(ctx)
	return values, err
}

// Input prompts for a free-form value.
func Input(ctx context.Context, title, placeholder string, validate func(string) error) (string, error) {
	var value string
	input := huh.NewInput().
		Title(title).
		Placeholder(placeholder).
		Value(&value)
	if validate != nil {
		input = input.Validate(validate)
	}
	err := huh.NewForm(huh.NewGroup(input)).RunWithContext(ctx)
	return value, err
}

// Password prompts for a secret without echoing it.
func Password(ctx context.Context, title string) (string, error) {
	var value string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				EchoMode(huh.EchoModePassword).
				Value(&value),
		),
	).RunWithContext(ctx)
	return value, err
}

// Confirm prompts for a yes/no answer.
func Confirm(ctx context.Context, title string) (bool, error) {
	var value bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Value(&value),
		),
	).RunWithContext(ctx)
	return value, err
}

// ConfirmDestroy demands the deployment's exact name before a destroy may
// proceed. Any other input, including case or whitespace differences,
// returns ErrDestroyNotConfirmed.
func ConfirmDestroy(ctx context.Context, name string) error {
	var typed string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Type %q to destroy this deployment", name)).
				Value(&typed),
		),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}
	if typed != name {
		return deployment.ErrDestroyNotConfirmed
	}
	return nil
}
