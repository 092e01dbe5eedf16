package deployment

// Phase is a deployment's position in the provisioning lifecycle.
type Phase string

const (
	// PhaseUnprovisioned is the initial phase of a freshly created deployment.
	PhaseUnprovisioned Phase = "unprovisioned"

	// PhaseProvisioning means the infrastructure tool is (or was) creating
	// cloud resources for this deployment.
	PhaseProvisioning Phase = "provisioning"

	// PhaseAwaitingConnectivity means infrastructure exists and the
	// orchestrator is waiting for the host to accept SSH connections.
	PhaseAwaitingConnectivity Phase = "awaiting-connectivity"

	// PhaseConfiguring means the configuration tool is converging software
	// on the reachable host.
	PhaseConfiguring Phase = "configuring"

	// PhaseReady means the environment is provisioned, reachable, and
	// configured.
	PhaseReady Phase = "ready"

	// PhaseFailed is the per-attempt resting phase after an unrecovered
	// step failure. State.FailedAt records which step failed.
	PhaseFailed Phase = "failed"

	// PhaseDestroying means an explicit destroy is removing cloud resources.
	PhaseDestroying Phase = "destroying"

	// PhaseDestroyed means cloud resources are gone; only the on-disk
	// record remains until the operator confirms deletion.
	PhaseDestroyed Phase = "destroyed"
)

// Terminal reports whether the phase is a resting point that deploy does not
// automatically move past.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseReady, PhaseDestroyed:
		return true
	}
	return false
}

// MidFlight reports whether the phase indicates an interrupted or failed
// run whose true resume point must be re-derived from live provider state.
func (p Phase) MidFlight() bool {
	switch p {
	case PhaseProvisioning, PhaseAwaitingConnectivity, PhaseConfiguring, PhaseFailed:
		return true
	}
	return false
}

// Next returns the phase that follows p on the happy path. It returns p
// unchanged for terminal and failure phases.
func (p Phase) Next() Phase {
	switch p {
	case PhaseUnprovisioned:
		return PhaseProvisioning
	case PhaseProvisioning:
		return PhaseAwaitingConnectivity
	case PhaseAwaitingConnectivity:
		return PhaseConfiguring
	case PhaseConfiguring:
		return PhaseReady
	}
	return p
}

// String implements fmt.Stringer.
func (p Phase) String() string { return string(p) }
