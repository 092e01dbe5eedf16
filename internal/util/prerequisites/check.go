// Package prerequisites verifies that the external CLI tools the
// orchestrator shells out to are present in PATH before any work starts.
package prerequisites

import (
	"fmt"
	"os/exec"
	"strings"
)

// Tool represents an external tool that may be required.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// Alternatives are binaries that satisfy the same need when Name is
	// absent. The first one found wins.
	Alternatives []string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string

	// InstallURL provides a URL for installation instructions.
	InstallURL string
}

// DefaultTools returns the tools needed for provisioning and configuration.
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:         "tofu",
			Alternatives: []string{"terraform"},
			Required:     true,
			Description:  "Provisions cloud infrastructure",
			InstallURL:   "https://opentofu.org/docs/intro/install/",
		},
		{
			Name:        "ansible-playbook",
			Required:    true,
			Description: "Configures provisioned servers",
			InstallURL:  "https://docs.ansible.com/ansible/latest/installation_guide/",
		},
		{
			Name:        "ssh",
			Required:    true,
			Description: "Opens interactive sessions to servers",
			InstallURL:  "https://www.openssh.com/",
		},
	}
}

// VaultTools returns the tools needed for encrypted credential storage.
// They are optional; without them credentials fall back to inline entry.
func VaultTools() []Tool {
	return []Tool{
		{
			Name:        "age",
			Required:    false,
			Description: "Encrypts stored provider credentials",
			InstallURL:  "https://github.com/FiloSottile/age",
		},
		{
			Name:        "age-keygen",
			Required:    false,
			Description: "Generates the credential encryption identity",
			InstallURL:  "https://github.com/FiloSottile/age",
		},
	}
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool Tool

	// Found reports whether the tool or one of its alternatives resolved.
	Found bool

	// Resolved is the binary name that actually matched.
	Resolved string

	// Path is the absolute path of the resolved binary.
	Path string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.InstallURL))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// Resolve returns the path of the named tool's resolved binary, or an
// empty string if it was not found.
func (r *CheckResults) Resolve(name string) string {
	for _, result := range r.Results {
		if result.Tool.Name == name && result.Found {
			return result.Path
		}
	}
	return ""
}

// Check verifies that the specified tools are available.
func Check(tools []Tool) *CheckResults {
	results := &CheckResults{}

	for _, tool := range tools {
		result := CheckResult{Tool: tool}

		candidates := append([]string{tool.Name}, tool.Alternatives...)
		for _, candidate := range candidates {
			path, err := exec.LookPath(candidate)
			if err != nil {
				continue
			}
			result.Found = true
			result.Resolved = candidate
			result.Path = path
			break
		}
		if !result.Found {
			results.Missing = append(results.Missing, tool)
		}

		results.Results = append(results.Results, result)
	}

	return results
}

// CheckDefault checks the tools required for a deployment run.
func CheckDefault() *CheckResults {
	return Check(DefaultTools())
}

// CheckAll checks the run tools plus the optional vault tools.
func CheckAll() *CheckResults {
	defaults := DefaultTools()
	vault := VaultTools()
	all := make([]Tool, 0, len(defaults)+len(vault))
	all = append(all, defaults...)
	all = append(all, vault...)
	return Check(all)
}
