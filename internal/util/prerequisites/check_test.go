package prerequisites

import (
	"testing"
)

func TestCheck(t *testing.T) {
	// Use a tool that exists in virtually every environment.
	possibleTools := []string{"sh", "ls", "cat", "go"}

	var foundTool string
	for _, tool := range possibleTools {
		results := Check([]Tool{{Name: tool, Required: false}})
		if len(results.Results) > 0 && results.Results[0].Found {
			foundTool = tool
			break
		}
	}

	if foundTool == "" {
		t.Skip("no common tools found in PATH, skipping test")
	}

	results := Check([]Tool{{Name: foundTool, Required: true}})

	if len(results.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results.Results))
	}
	if !results.Results[0].Found {
		t.Errorf("expected %s to be found", foundTool)
	}
	if results.Results[0].Path == "" {
		t.Errorf("expected path to be set")
	}
	if results.Results[0].Resolved != foundTool {
		t.Errorf("expected resolved name %s, got %s", foundTool, results.Results[0].Resolved)
	}
	if results.HasErrors() {
		t.Errorf("expected no errors")
	}
	if results.Resolve(foundTool) == "" {
		t.Errorf("expected Resolve to return a path")
	}
}

func TestCheckAlternatives(t *testing.T) {
	tools := []Tool{
		{
			Name:         "nonexistent-tool-xyz123",
			Alternatives: []string{"sh"},
			Required:     true,
		},
	}

	results := Check(tools)

	if results.HasErrors() {
		t.Fatalf("expected alternative to satisfy the check: %v", results.Error())
	}
	if results.Results[0].Resolved != "sh" {
		t.Errorf("expected resolved name sh, got %s", results.Results[0].Resolved)
	}
}

func TestCheckMissingTool(t *testing.T) {
	tools := []Tool{
		{
			Name:        "nonexistent-tool-xyz123",
			Required:    true,
			Description: "A tool that does not exist",
			InstallURL:  "https://example.com",
		},
	}

	results := Check(tools)

	if len(results.Missing) != 1 {
		t.Errorf("expected 1 missing tool, got %d", len(results.Missing))
	}
	if !results.HasErrors() {
		t.Errorf("expected HasErrors to be true")
	}
	if results.Error() == nil {
		t.Errorf("expected Error to return an error")
	}
}

func TestCheckOptionalMissing(t *testing.T) {
	tools := []Tool{
		{
			Name:     "nonexistent-tool-xyz123",
			Required: false,
		},
	}

	results := Check(tools)

	if len(results.Missing) != 1 {
		t.Errorf("expected 1 missing tool, got %d", len(results.Missing))
	}
	if results.HasErrors() {
		t.Errorf("expected HasErrors to be false for optional tools")
	}
	if err := results.Error(); err != nil {
		t.Errorf("expected Error to return nil for optional tools, got %v", err)
	}
}

func TestDefaultTools(t *testing.T) {
	tools := DefaultTools()

	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.Name] = true
		if !tool.Required {
			t.Errorf("default tool %s should be required", tool.Name)
		}
	}
	for _, want := range []string{"tofu", "ansible-playbook", "ssh"} {
		if !names[want] {
			t.Errorf("expected %s in DefaultTools", want)
		}
	}
}

func TestVaultTools(t *testing.T) {
	for _, tool := range VaultTools() {
		if tool.Required {
			t.Errorf("vault tool %s should be optional", tool.Name)
		}
	}
}
