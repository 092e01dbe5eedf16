// Package netutil provides TCP reachability probes used while waiting for
// freshly provisioned hosts to come up.
package netutil

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	// SSHPort is the management port probed after provisioning.
	SSHPort = 22

	// DefaultWaitTimeout is the overall budget for a host to become
	// reachable after provisioning reports success.
	DefaultWaitTimeout = 150 * time.Second

	// DefaultProbeInterval is the pause between probe attempts.
	DefaultProbeInterval = 5 * time.Second

	// DefaultDialTimeout bounds a single probe attempt.
	DefaultDialTimeout = 5 * time.Second
)

// ProbePort reports whether a TCP connection to host:port succeeds within
// dialTimeout. It is a one-shot check with no retries.
func ProbePort(host string, port int, dialTimeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), dialTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// WaitForPort polls until a TCP connection to host:port succeeds, pausing
// interval between attempts and giving up after timeout. The first probe
// happens immediately. Cancelling ctx stops the wait with ctx.Err().
func WaitForPort(ctx context.Context, host string, port int, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	address := net.JoinHostPort(host, strconv.Itoa(port))
	dial := DefaultDialTimeout
	if dial > interval {
		dial = interval
	}
	for {
		if ProbePort(host, port, dial) {
			return nil
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("timeout waiting for %s", address)
			}
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
