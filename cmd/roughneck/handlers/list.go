package handlers

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mjtechguy/roughneck/internal/deployment"
	"github.com/mjtechguy/roughneck/internal/ui"
)

// List handles the list command. With jsonOut it emits a machine-readable
// array; otherwise a table. Unreadable records are reported, not fatal.
func List(w io.Writer, jsonOut bool) error {
	store := openStore()
	names, err := store.Names()
	if err != nil {
		return err
	}

	summaries := make([]deployment.Summary, 0, len(names))
	for _, name := range names {
		s, err := store.Summarize(name)
		if err != nil {
			ui.Warning("skipping %s: %v", name, err)
			continue
		}
		summaries = append(summaries, s)
	}

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(w, "No deployments yet. Create one with: roughneck new <name>")
		return nil
	}

	fmt.Fprintln(w, ui.Dim(fmt.Sprintf("%-20s %-24s %-14s %s", "NAME", "PHASE", "PROVIDER", "ADDRESS")))
	for _, s := range summaries {
		phase := string(s.Phase)
		if s.Phase == deployment.PhaseFailed && s.FailedAt != "" {
			phase = fmt.Sprintf("failed (%s)", s.FailedAt)
		}
		address := s.Address
		if address == "" {
			address = "-"
		}
		fmt.Fprintf(w, "%-20s %-24s %-14s %s\n", s.Name, phase, s.Provider, address)
	}
	return nil
}
