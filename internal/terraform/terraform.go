// Package terraform wraps the tofu/terraform binary for provisioning runs.
// Every invocation is scoped to one deployment: its pinned template tree,
// its tfvars record, and its own state file. Output streams live to the
// operator while being captured for failure classification.
package terraform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/mjtechguy/roughneck/internal/deployment"
	"github.com/mjtechguy/roughneck/internal/provider"
)

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// Binary resolves the provisioning binary, preferring tofu over terraform.
func Binary() (string, error) {
	for _, candidate := range []string{"tofu", "terraform"} {
		if path, err := lookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("neither tofu nor terraform found in PATH")
}

// Driver runs provisioning commands for deployments.
type Driver struct {
	// Stream receives the live combined output of apply and destroy
	// runs. Defaults to os.Stdout.
	Stream io.Writer

	// Env holds the credential variables added to the child process
	// environment. Never logged.
	Env map[string]string
}

func (d *Driver) stream() io.Writer {
	if d.Stream != nil {
		return d.Stream
	}
	return os.Stdout
}

func (d *Driver) command(ctx context.Context, dep *deployment.Deployment, args ...string) (*exec.Cmd, error) {
	bin, err := Binary()
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dep.TerraformDir(dep.Config.Provider)
	cmd.Env = os.Environ()
	for k, v := range d.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	return cmd, nil
}

func stateArgs(dep *deployment.Deployment) []string {
	return []string{
		"-auto-approve",
		"-var-file=" + dep.ConfigPath(),
		"-var=deployment_dir=" + dep.Dir,
		"-var=deployment_name=" + dep.Name,
		// The record stores an empty path for a generated key; the
		// resolver picks the in-dir key in that case.
		"-var=ssh_public_key_path=" + dep.SSHPublicKey(),
		"-state=" + dep.StateBlobPath(),
	}
}

// Init prepares the deployment's pinned template tree (providers, modules).
func (d *Driver) Init(ctx context.Context, dep *deployment.Deployment) error {
	cmd, err := d.command(ctx, dep, "init")
	if err != nil {
		return err
	}
	cmd.Stdout = d.stream()
	cmd.Stderr = d.stream()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("init failed: %w", err)
	}
	return nil
}

// Apply provisions the deployment's infrastructure. The adapter-built
// variable set is passed explicitly, overriding the record file for the
// keys it names. On failure the captured combined output rides along in a
// ProvisioningError so recovery logic can inspect it.
func (d *Driver) Apply(ctx context.Context, dep *deployment.Deployment, spec []provider.Var) error {
	args := append([]string{"apply"}, stateArgs(dep)...)
	for _, v := range spec {
		args = append(args, "-var="+v.Key+"="+v.Value)
	}
	cmd, err := d.command(ctx, dep, args...)
	if err != nil {
		return err
	}

	var captured bytes.Buffer
	sink := io.MultiWriter(d.stream(), &captured)
	cmd.Stdout = sink
	cmd.Stderr = sink

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &deployment.ProvisioningError{Output: captured.String(), Err: err}
	}
	return nil
}

// Destroy tears down the deployment's infrastructure. With no state blob
// there is nothing to destroy and the call succeeds immediately. Init runs
// first because the pinned tree's plugins may not be present yet on this
// machine.
func (d *Driver) Destroy(ctx context.Context, dep *deployment.Deployment) error {
	if !dep.HasStateBlob() {
		return nil
	}
	if err := d.Init(ctx, dep); err != nil {
		return err
	}

	cmd, err := d.command(ctx, dep, append([]string{"destroy"}, stateArgs(dep)...)...)
	if err != nil {
		return err
	}

	var captured bytes.Buffer
	sink := io.MultiWriter(d.stream(), &captured)
	cmd.Stdout = sink
	cmd.Stderr = sink

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &deployment.ProvisioningError{Output: captured.String(), Err: err}
	}
	return nil
}

// Output reads a single raw output value from the deployment's state blob.
// Returns an empty string when the state blob does not exist yet.
func (d *Driver) Output(ctx context.Context, dep *deployment.Deployment, key string) (string, error) {
	if !dep.HasStateBlob() {
		return "", nil
	}
	cmd, err := d.command(ctx, dep, "output", "-raw", "-state="+dep.StateBlobPath(), key)
	if err != nil {
		return "", err
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to read output %q: %w", key, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Outputs reads the named raw output values in one pass.
func (d *Driver) Outputs(ctx context.Context, dep *deployment.Deployment, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		value, err := d.Output(ctx, dep, key)
		if err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, nil
}
