package deployment

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for store and lifecycle operations.
var (
	// ErrNameConflict is returned by Create when a deployment directory
	// with the requested name already exists.
	ErrNameConflict = errors.New("deployment already exists")

	// ErrNotFound is returned by Open when no deployment directory exists
	// for the requested name.
	ErrNotFound = errors.New("deployment not found")

	// ErrDestroyNotConfirmed is returned when the destroy confirmation does
	// not exactly match the deployment name. No resources are touched.
	ErrDestroyNotConfirmed = errors.New("destroy not confirmed")

	// ErrVaultUnavailable indicates the external encryption tool is missing.
	// Callers degrade to one-shot manual credential entry; this is a
	// capability signal, not a hard failure.
	ErrVaultUnavailable = errors.New("credential vault unavailable")

	// ErrSkipIllegal is returned when the operator asks to skip a phase
	// whose output downstream steps hard-depend on.
	ErrSkipIllegal = errors.New("phase cannot be skipped")
)

// ConfigIncompleteError reports a configuration record missing a field
// required before provisioning may start.
type ConfigIncompleteError struct {
	Field string
}

func (e *ConfigIncompleteError) Error() string {
	return fmt.Sprintf("configuration incomplete: missing %s", e.Field)
}

// ConfigConflictError reports an edit that invalidates an already completed
// step, e.g. switching provider after infrastructure exists.
type ConfigConflictError struct {
	Reason string
}

func (e *ConfigConflictError) Error() string {
	return fmt.Sprintf("configuration conflict: %s", e.Reason)
}

// LockHeldError reports a concurrent mutating command on the same deployment.
type LockHeldError struct {
	Name string
	PID  int
}

func (e *LockHeldError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("deployment %q is locked by another roughneck process (pid %d)", e.Name, e.PID)
	}
	return fmt.Sprintf("deployment %q is locked by another roughneck process", e.Name)
}

// ProvisioningError reports a failed run of the infrastructure tool, or a
// zero-exit run that omitted the required address output.
type ProvisioningError struct {
	Output string
	Err    error
}

func (e *ProvisioningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provisioning failed: %v", e.Err)
	}
	return "provisioning failed"
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// ConfigurationError reports a failed run of the configuration tool.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration failed: %v", e.Err)
	}
	return "configuration failed"
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ConnectivityTimeoutError reports that the host never accepted connections
// within the overall wait budget.
type ConnectivityTimeoutError struct {
	Address string
	Timeout time.Duration
}

func (e *ConnectivityTimeoutError) Error() string {
	return fmt.Sprintf("host %s not reachable within %s", e.Address, e.Timeout)
}
