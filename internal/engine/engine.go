// Package engine drives a deployment through its lifecycle: provisioning,
// connectivity wait, configuration. It never blocks on operator input;
// when a step fails it persists the failed phase and returns a Decision
// describing the legal recovery actions, and the caller feeds the chosen
// action back in.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mjtechguy/roughneck/internal/deployment"
	"github.com/mjtechguy/roughneck/internal/provider"
	"github.com/mjtechguy/roughneck/internal/sshutil"
	"github.com/mjtechguy/roughneck/internal/util/netutil"
)

// Action is an operator recovery choice.
type Action string

const (
	// ActionRetry re-runs the failed step with the same configuration.
	ActionRetry Action = "retry"

	// ActionEdit suspends the run so the operator can change the
	// configuration record, then retries.
	ActionEdit Action = "edit"

	// ActionSkip force-advances past the failed step. Never legal for
	// provisioning, where downstream steps need the server address.
	ActionSkip Action = "skip"

	// ActionAbort stops the run, leaving the failed phase persisted and
	// all produced resources in place.
	ActionAbort Action = "abort"

	// ActionReselect picks a different server size from the live catalog
	// after a capacity failure, then retries provisioning.
	ActionReselect Action = "reselect"

	// ActionContinue proceeds after an operator pause.
	ActionContinue Action = "continue"
)

// DecisionKind distinguishes why the engine handed control back.
type DecisionKind string

const (
	// DecisionRecovery asks how to proceed after a failed step.
	DecisionRecovery DecisionKind = "recovery"

	// DecisionDNSPause waits for the operator to point DNS at the fresh
	// address before configuration starts.
	DecisionDNSPause DecisionKind = "dns-pause"
)

// Decision is a request for an operator choice.
type Decision struct {
	Kind     DecisionKind
	FailedAt deployment.Phase
	Cause    error
	Actions  []Action

	// Size and Location are set when the failure matched the provider's
	// capacity pattern, enabling ActionReselect.
	Size     string
	Location string
}

// Offers reports whether the decision includes the given action.
func (d *Decision) Offers(action Action) bool {
	for _, a := range d.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Outcome is the result of driving a deployment as far as it can go
// without operator input.
type Outcome struct {
	// Phase is the persisted phase after the run.
	Phase deployment.Phase

	// Decision is non-nil when the run stopped for an operator choice.
	Decision *Decision
}

// Engine executes lifecycle steps for deployments. The function fields
// exist so tests can run the state machine without network or subprocesses.
type Engine struct {
	Store *deployment.Store

	Provisioner Provisioner
	Configurer  Configurer

	// WaitTimeout bounds the connectivity wait. Zero means the default.
	WaitTimeout time.Duration

	waitReachable func(ctx context.Context, host string, timeout time.Duration) error
	reachable     func(host string) bool
}

// Provisioner is the infrastructure driver surface the engine needs.
type Provisioner interface {
	Init(ctx context.Context, dep *deployment.Deployment) error
	Apply(ctx context.Context, dep *deployment.Deployment, spec []provider.Var) error
	Destroy(ctx context.Context, dep *deployment.Deployment) error
	Outputs(ctx context.Context, dep *deployment.Deployment, keys ...string) (map[string]string, error)
}

// Configurer is the configuration driver surface the engine needs.
type Configurer interface {
	Converge(ctx context.Context, dep *deployment.Deployment) error
}

// New returns an Engine wired to the real connectivity prober.
func New(store *deployment.Store, provisioner Provisioner, configurer Configurer) *Engine {
	return &Engine{
		Store:         store,
		Provisioner:   provisioner,
		Configurer:    configurer,
		waitReachable: sshutil.WaitReachable,
		reachable:     sshutil.Reachable,
	}
}

func (e *Engine) waitTimeout() time.Duration {
	if e.WaitTimeout > 0 {
		return e.WaitTimeout
	}
	return netutil.DefaultWaitTimeout
}

// resumePhase derives the true resume point from live state rather than
// the persisted phase: a recorded, reachable address means only
// configuration remains; a recorded but unreachable address means the
// connectivity wait must run again; a state blob without an address means
// provisioning was interrupted; nothing means a fresh start.
func (e *Engine) resumePhase(dep *deployment.Deployment) deployment.Phase {
	switch {
	case dep.State.Address != "" && e.reachable(dep.State.Address):
		return deployment.PhaseConfiguring
	case dep.State.Address != "":
		return deployment.PhaseAwaitingConnectivity
	default:
		return deployment.PhaseProvisioning
	}
}

// Run drives the deployment toward Ready. It returns when the deployment
// is Ready, when an operator decision is needed, or on a hard error
// (store failures, cancellation). Forward side effects are append-only;
// nothing is deleted.
func (e *Engine) Run(ctx context.Context, dep *deployment.Deployment) (*Outcome, error) {
	switch dep.State.Phase {
	case deployment.PhaseReady:
		// Idempotent: nothing to re-run, nothing destroyed.
		return &Outcome{Phase: deployment.PhaseReady}, nil
	case deployment.PhaseDestroying, deployment.PhaseDestroyed:
		return nil, fmt.Errorf("%s is destroyed; create it again with new", dep.Name)
	}

	adapter, err := provider.Get(dep.Config.Provider)
	if err != nil {
		return nil, err
	}

	phase := e.resumePhase(dep)
	freshlyProvisioned := false

	if phase == deployment.PhaseProvisioning {
		outcome, err := e.provision(ctx, dep, adapter)
		if outcome != nil || err != nil {
			return outcome, err
		}
		freshlyProvisioned = true
		phase = deployment.PhaseAwaitingConnectivity
	}

	if freshlyProvisioned && dep.Config.EnableLetsEncrypt && dep.Config.DomainName != "" {
		// The operator needs to point DNS at the new address before
		// certificates can issue.
		return &Outcome{
			Phase: dep.State.Phase,
			Decision: &Decision{
				Kind:    DecisionDNSPause,
				Actions: []Action{ActionContinue, ActionAbort},
			},
		}, nil
	}

	if phase == deployment.PhaseAwaitingConnectivity {
		outcome, err := e.awaitConnectivity(ctx, dep)
		if outcome != nil || err != nil {
			return outcome, err
		}
	}

	return e.configure(ctx, dep, adapter)
}

func (e *Engine) provision(ctx context.Context, dep *deployment.Deployment, adapter provider.Adapter) (*Outcome, error) {
	if missing := adapter.MissingFields(dep.Config); len(missing) > 0 {
		// Phase stays put: an incomplete config is an input problem,
		// not a failed attempt.
		return nil, &deployment.ConfigIncompleteError{Field: missing[0]}
	}

	if err := dep.EnsureKeys(); err != nil {
		return nil, err
	}

	dep.State.Advance(deployment.PhaseProvisioning)
	dep.State.Provider = dep.Config.Provider
	if err := e.Store.Persist(dep); err != nil {
		return nil, err
	}

	log.Printf("Provisioning %s on %s...", dep.Name, adapter.DisplayName())

	needInit := !dep.HasStateBlob()
	if needInit {
		if err := e.Provisioner.Init(ctx, dep); err != nil {
			return e.failProvisioning(ctx, dep, adapter, err)
		}
	}
	if err := e.Provisioner.Apply(ctx, dep, adapter.BuildServerSpec(dep.Config)); err != nil {
		return e.failProvisioning(ctx, dep, adapter, err)
	}

	raw, err := e.Provisioner.Outputs(ctx, dep, "server_ip", "instance_id")
	if err != nil {
		return e.failProvisioning(ctx, dep, adapter, err)
	}
	outputs, err := adapter.NormalizeOutputs(raw)
	if err != nil {
		return e.failProvisioning(ctx, dep, adapter, err)
	}

	dep.State.Address = outputs.Address
	dep.State.InstanceID = outputs.InstanceID
	if err := dep.WriteInventory(outputs.Address, adapter.DefaultUser()); err != nil {
		return nil, err
	}
	dep.State.Advance(deployment.PhaseAwaitingConnectivity)
	if err := e.Store.Persist(dep); err != nil {
		return nil, err
	}

	log.Printf("Server up at %s", outputs.Address)
	return nil, nil
}

func (e *Engine) failProvisioning(ctx context.Context, dep *deployment.Deployment, adapter provider.Adapter, cause error) (*Outcome, error) {
	dep.State.Fail(deployment.PhaseProvisioning)
	if persistErr := e.Store.Persist(dep); persistErr != nil {
		return nil, persistErr
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	decision := &Decision{
		Kind:     DecisionRecovery,
		FailedAt: deployment.PhaseProvisioning,
		Cause:    cause,
		Actions:  []Action{ActionRetry, ActionEdit, ActionAbort},
	}
	var provErr *deployment.ProvisioningError
	if errors.As(cause, &provErr) {
		if size, location, ok := adapter.MatchCapacityError(provErr.Output); ok {
			decision.Size = size
			decision.Location = location
			decision.Actions = append([]Action{ActionReselect}, decision.Actions...)
		}
	}
	return &Outcome{Phase: dep.State.Phase, Decision: decision}, nil
}

func (e *Engine) awaitConnectivity(ctx context.Context, dep *deployment.Deployment) (*Outcome, error) {
	dep.State.Advance(deployment.PhaseAwaitingConnectivity)
	if err := e.Store.Persist(dep); err != nil {
		return nil, err
	}

	log.Printf("Waiting for %s to accept connections...", dep.State.Address)

	if err := e.waitReachable(ctx, dep.State.Address, e.waitTimeout()); err != nil {
		dep.State.Fail(deployment.PhaseAwaitingConnectivity)
		if persistErr := e.Store.Persist(dep); persistErr != nil {
			return nil, persistErr
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &Outcome{
			Phase: dep.State.Phase,
			Decision: &Decision{
				Kind:     DecisionRecovery,
				FailedAt: deployment.PhaseAwaitingConnectivity,
				Cause:    err,
				Actions:  []Action{ActionRetry, ActionEdit, ActionSkip, ActionAbort},
			},
		}, nil
	}
	return nil, nil
}

func (e *Engine) configure(ctx context.Context, dep *deployment.Deployment, adapter provider.Adapter) (*Outcome, error) {
	dep.State.Advance(deployment.PhaseConfiguring)
	if err := e.Store.Persist(dep); err != nil {
		return nil, err
	}

	log.Printf("Configuring %s...", dep.Name)

	if err := e.Configurer.Converge(ctx, dep); err != nil {
		dep.State.Fail(deployment.PhaseConfiguring)
		if persistErr := e.Store.Persist(dep); persistErr != nil {
			return nil, persistErr
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &Outcome{
			Phase: dep.State.Phase,
			Decision: &Decision{
				Kind:     DecisionRecovery,
				FailedAt: deployment.PhaseConfiguring,
				Cause:    err,
				Actions:  []Action{ActionRetry, ActionEdit, ActionSkip, ActionAbort},
			},
		}, nil
	}

	dep.State.Advance(deployment.PhaseReady)
	if err := e.Store.Persist(dep); err != nil {
		return nil, err
	}
	log.Printf("%s is ready", dep.Name)
	return &Outcome{Phase: deployment.PhaseReady}, nil
}

// Skip force-advances past the failed step and continues the run. Skipping
// provisioning is always illegal: no later step can work without a server
// address.
func (e *Engine) Skip(ctx context.Context, dep *deployment.Deployment) (*Outcome, error) {
	if dep.State.Phase != deployment.PhaseFailed {
		return nil, fmt.Errorf("%s is not in a failed phase", dep.Name)
	}
	failedAt := dep.State.FailedAt
	if failedAt == deployment.PhaseProvisioning {
		return nil, fmt.Errorf("%w: cannot skip provisioning, no server address would exist", deployment.ErrSkipIllegal)
	}

	adapter, err := provider.Get(dep.Config.Provider)
	if err != nil {
		return nil, err
	}

	next := failedAt.Next()
	log.Printf("Skipping %s for %s", failedAt, dep.Name)

	switch next {
	case deployment.PhaseConfiguring:
		return e.configure(ctx, dep, adapter)
	case deployment.PhaseReady:
		dep.State.Advance(deployment.PhaseReady)
		if err := e.Store.Persist(dep); err != nil {
			return nil, err
		}
		return &Outcome{Phase: deployment.PhaseReady}, nil
	}
	return nil, fmt.Errorf("%w: cannot skip %s", deployment.ErrSkipIllegal, failedAt)
}

// ValidateEdit checks an edited configuration before it replaces the
// stored record. Changing the provider while infrastructure exists is a
// conflict: the recorded infra belongs to the old backend and retrying
// against the new one would orphan it.
func (e *Engine) ValidateEdit(dep *deployment.Deployment, edited *deployment.Config) error {
	if edited.Provider == dep.Config.Provider {
		return nil
	}
	if dep.HasStateBlob() || dep.State.Address != "" {
		return &deployment.ConfigConflictError{
			Reason: fmt.Sprintf("provider changed from %s to %s but infrastructure already exists; destroy first",
				dep.Config.Provider, edited.Provider),
		}
	}
	if _, err := provider.Get(edited.Provider); err != nil {
		return err
	}
	return nil
}

// Destroy removes the deployment's cloud resources. The on-disk record
// survives until the operator separately confirms its deletion.
func (e *Engine) Destroy(ctx context.Context, dep *deployment.Deployment) error {
	dep.State.Advance(deployment.PhaseDestroying)
	if err := e.Store.Persist(dep); err != nil {
		return err
	}

	if err := e.Provisioner.Destroy(ctx, dep); err != nil {
		dep.State.Fail(deployment.PhaseDestroying)
		if persistErr := e.Store.Persist(dep); persistErr != nil {
			return persistErr
		}
		return err
	}

	dep.State.Address = ""
	dep.State.InstanceID = ""
	dep.State.Advance(deployment.PhaseDestroyed)
	return e.Store.Persist(dep)
}
