// Package sshutil handles SSH reachability waits and interactive sessions
// for provisioned servers.
package sshutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/mjtechguy/roughneck/internal/deployment"
	"github.com/mjtechguy/roughneck/internal/util/netutil"
)

// removeHostKeyCmd is swapped in tests.
var removeHostKeyCmd = func(ctx context.Context, host string) *exec.Cmd {
	return exec.CommandContext(ctx, "ssh-keygen", "-R", host)
}

// RemoveHostKey drops the known-hosts entry for host. The providers reuse
// addresses aggressively, so a stale entry would make every later ssh step
// fail on a key mismatch. Best effort; a missing entry is not an error.
func RemoveHostKey(ctx context.Context, host string) {
	cmd := removeHostKeyCmd(ctx, host)
	cmd.Stdout = nil
	cmd.Stderr = nil
	_ = cmd.Run()
}

// sshPort is swapped in tests.
var sshPort = netutil.SSHPort

// Reachable is a one-shot probe of the SSH port, used when reconciling a
// resumed deployment against the live server.
func Reachable(host string) bool {
	return netutil.ProbePort(host, sshPort, netutil.DefaultDialTimeout)
}

// WaitReachable blocks until the SSH port on host accepts connections,
// probing every few seconds within timeout. The stale host key is dropped
// first. On timeout the error is a typed ConnectivityTimeoutError so the
// engine can park the deployment in its awaiting-connectivity phase.
func WaitReachable(ctx context.Context, host string, timeout time.Duration) error {
	RemoveHostKey(ctx, host)
	err := netutil.WaitForPort(ctx, host, sshPort, timeout, netutil.DefaultProbeInterval)
	if err == nil {
		return nil
	}
	if ctx.Err() == context.Canceled {
		return ctx.Err()
	}
	return &deployment.ConnectivityTimeoutError{
		Address: host,
		Timeout: timeout,
	}
}

// CommandArgs builds the argument vector for an interactive session to the
// deployment, without the leading binary name.
func CommandArgs(dep *deployment.Deployment, user string) ([]string, error) {
	address := dep.State.Address
	if address == "" {
		return nil, fmt.Errorf("%s has no server address yet", dep.Name)
	}
	var args []string
	if key := dep.SSHPrivateKey(); key != "" {
		args = append(args, "-i", key)
	}
	args = append(args, "-o", "StrictHostKeyChecking=accept-new")
	args = append(args, fmt.Sprintf("%s@%s", user, address))
	return args, nil
}

// Connect hands the terminal over to an interactive ssh session.
func Connect(ctx context.Context, dep *deployment.Deployment, user string) error {
	args, err := CommandArgs(dep, user)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, "ssh", args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
