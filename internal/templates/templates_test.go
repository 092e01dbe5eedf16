package templates

import (
	"io/fs"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssets_TerraformTreeComplete(t *testing.T) {
	assets := Assets()

	for _, provider := range Providers() {
		for _, file := range []string{"main.tf", "variables.tf", "outputs.tf"} {
			p := path.Join("terraform", "providers", provider, file)
			data, err := fs.ReadFile(assets, p)
			require.NoError(t, err, "missing %s", p)
			require.NotEmpty(t, data)
		}
	}
}

func TestAssets_OutputsDeclareContract(t *testing.T) {
	assets := Assets()

	for _, provider := range Providers() {
		data, err := fs.ReadFile(assets, path.Join("terraform", "providers", provider, "outputs.tf"))
		require.NoError(t, err)
		require.Contains(t, string(data), `output "server_ip"`)
		require.Contains(t, string(data), `output "instance_id"`)
	}
}

func TestAssets_PublicKeyConsumedAsResolvedPath(t *testing.T) {
	assets := Assets()

	// The driver passes ssh_public_key_path already resolved (generated
	// in-dir key or operator-supplied path); the templates must read it
	// verbatim, not recompose it from the deployment dir.
	for _, provider := range Providers() {
		data, err := fs.ReadFile(assets, path.Join("terraform", "providers", provider, "main.tf"))
		require.NoError(t, err)
		require.Contains(t, string(data), "file(var.ssh_public_key_path)")
		require.NotContains(t, string(data), "basename(var.ssh_public_key_path)")
	}
}

func TestAssets_AnsiblePlaybooksPresent(t *testing.T) {
	assets := Assets()

	for _, file := range []string{"playbook.yml", "update.yml", "validate.yml"} {
		data, err := fs.ReadFile(assets, path.Join("ansible", file))
		require.NoError(t, err, "missing ansible/%s", file)
		require.NotEmpty(t, data)
	}
}
