// Package ansible wraps the ansible-playbook binary for configuration runs.
// Playbooks execute from the deployment's pinned ansible tree against the
// deployment's own inventory, with host key checking disabled because the
// target addresses are ephemeral and frequently reused.
package ansible

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/mjtechguy/roughneck/internal/deployment"
)

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// Binary resolves the ansible-playbook binary.
func Binary() (string, error) {
	path, err := lookPath("ansible-playbook")
	if err != nil {
		return "", fmt.Errorf("ansible-playbook not found in PATH")
	}
	return path, nil
}

// Driver runs configuration playbooks for deployments.
type Driver struct {
	// Stream receives the live combined output of playbook runs.
	// Defaults to os.Stdout.
	Stream io.Writer
}

func (d *Driver) stream() io.Writer {
	if d.Stream != nil {
		return d.Stream
	}
	return os.Stdout
}

func (d *Driver) run(ctx context.Context, dep *deployment.Deployment, args ...string) error {
	bin, err := Binary()
	if err != nil {
		return err
	}
	if _, err := os.Stat(dep.InventoryPath()); err != nil {
		return fmt.Errorf("no inventory for %s: provision first", dep.Name)
	}

	base := []string{
		"-i", dep.InventoryPath(),
		"-v",
		"-e", "local_deployment_dir=" + dep.Dir,
	}
	cmd := exec.CommandContext(ctx, bin, append(base, args...)...)
	cmd.Dir = dep.AnsibleDir()
	cmd.Env = append(os.Environ(), "ANSIBLE_HOST_KEY_CHECKING=False")

	var captured bytes.Buffer
	sink := io.MultiWriter(d.stream(), &captured)
	cmd.Stdout = sink
	cmd.Stderr = sink

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &deployment.ConfigurationError{Err: fmt.Errorf("playbook failed: %w", err)}
	}
	return nil
}

// Converge runs the full configuration playbook.
func (d *Driver) Converge(ctx context.Context, dep *deployment.Deployment) error {
	return d.run(ctx, dep, "playbook.yml")
}

// Update runs the update playbook limited to the given tags.
func (d *Driver) Update(ctx context.Context, dep *deployment.Deployment, tags []string) error {
	if len(tags) == 0 {
		return fmt.Errorf("no update tags given")
	}
	args := []string{"--tags"}
	tagList := tags[0]
	for _, tag := range tags[1:] {
		tagList += "," + tag
	}
	args = append(args, tagList, "update.yml")
	return d.run(ctx, dep, args...)
}

// Validate runs the read-only validation playbook against a configured
// server.
func (d *Driver) Validate(ctx context.Context, dep *deployment.Deployment) error {
	return d.run(ctx, dep, "validate.yml")
}
