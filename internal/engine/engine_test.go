package engine

import (
	"context"
	"errors"
	"os"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjtechguy/roughneck/internal/deployment"
	"github.com/mjtechguy/roughneck/internal/provider"
)

type fakeProvisioner struct {
	initErr    error
	applyErr   error
	destroyErr error
	outputs    map[string]string
	outputsErr error

	initCalls, applyCalls, destroyCalls int
}

func (f *fakeProvisioner) Init(context.Context, *deployment.Deployment) error {
	f.initCalls++
	return f.initErr
}

func (f *fakeProvisioner) Apply(_ context.Context, dep *deployment.Deployment, _ []provider.Var) error {
	f.applyCalls++
	if f.applyErr != nil {
		return f.applyErr
	}
	// A successful apply leaves a state blob behind.
	return os.WriteFile(dep.StateBlobPath(), []byte(`{"resources":[]}`), 0o600)
}

func (f *fakeProvisioner) Destroy(context.Context, *deployment.Deployment) error {
	f.destroyCalls++
	return f.destroyErr
}

func (f *fakeProvisioner) Outputs(context.Context, *deployment.Deployment, ...string) (map[string]string, error) {
	if f.outputsErr != nil {
		return nil, f.outputsErr
	}
	if f.outputs != nil {
		return f.outputs, nil
	}
	return map[string]string{"server_ip": "203.0.113.7", "instance_id": "4242"}, nil
}

type fakeConfigurer struct {
	err   error
	calls int
}

func (f *fakeConfigurer) Converge(context.Context, *deployment.Deployment) error {
	f.calls++
	return f.err
}

type fixture struct {
	engine      *Engine
	store       *deployment.Store
	dep         *deployment.Deployment
	provisioner *fakeProvisioner
	configurer  *fakeConfigurer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := deployment.NewStore(t.TempDir())
	store.Templates = fstest.MapFS{
		"terraform/providers/hetzner/main.tf": {Data: []byte("# test")},
		"ansible/playbook.yml":                {Data: []byte("---")},
	}
	dep, err := store.Create("web")
	require.NoError(t, err)
	dep.Config = &deployment.Config{
		Provider:          "hetzner",
		ProjectName:       "web",
		HetznerToken:      "tok",
		HetznerLocation:   "fsn1",
		HetznerServerType: "cpx21",
	}
	require.NoError(t, store.SaveConfig(dep))

	provisioner := &fakeProvisioner{}
	configurer := &fakeConfigurer{}
	e := New(store, provisioner, configurer)
	e.reachable = func(string) bool { return false }
	e.waitReachable = func(context.Context, string, time.Duration) error { return nil }

	return &fixture{engine: e, store: store, dep: dep, provisioner: provisioner, configurer: configurer}
}

func (f *fixture) reload(t *testing.T) *deployment.Deployment {
	t.Helper()
	dep, err := f.store.Open(f.dep.Name)
	require.NoError(t, err)
	return dep
}

func TestRun_FullLifecycle(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.engine.Run(context.Background(), f.dep)
	require.NoError(t, err)
	require.Nil(t, outcome.Decision)
	assert.Equal(t, deployment.PhaseReady, outcome.Phase)

	assert.Equal(t, 1, f.provisioner.initCalls)
	assert.Equal(t, 1, f.provisioner.applyCalls)
	assert.Equal(t, 1, f.configurer.calls)

	reloaded := f.reload(t)
	assert.Equal(t, deployment.PhaseReady, reloaded.State.Phase)
	assert.Equal(t, "203.0.113.7", reloaded.State.Address)
	assert.Equal(t, "4242", reloaded.State.InstanceID)
	assert.Equal(t, "hetzner", reloaded.State.Provider)

	// Inventory and key material were produced along the way.
	assert.FileExists(t, f.dep.InventoryPath())
	assert.FileExists(t, f.dep.PrivateKeyPath())
}

func TestRun_ReadyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.dep.State.Advance(deployment.PhaseReady)
	require.NoError(t, f.store.Persist(f.dep))

	outcome, err := f.engine.Run(context.Background(), f.dep)
	require.NoError(t, err)
	assert.Equal(t, deployment.PhaseReady, outcome.Phase)
	assert.Zero(t, f.provisioner.applyCalls)
	assert.Zero(t, f.configurer.calls)
}

func TestRun_ConfigIncomplete(t *testing.T) {
	f := newFixture(t)
	f.dep.Config.HetznerServerType = ""

	_, err := f.engine.Run(context.Background(), f.dep)
	require.Error(t, err)

	var incomplete *deployment.ConfigIncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, "hetzner_server_type", incomplete.Field)

	// Phase unchanged: an incomplete config is not a failed attempt.
	assert.Equal(t, deployment.PhaseUnprovisioned, f.reload(t).State.Phase)
}

func TestRun_ProvisioningFailure(t *testing.T) {
	f := newFixture(t)
	f.provisioner.applyErr = &deployment.ProvisioningError{
		Output: "Error: could not create server",
		Err:    errors.New("exit status 1"),
	}

	outcome, err := f.engine.Run(context.Background(), f.dep)
	require.NoError(t, err)
	require.NotNil(t, outcome.Decision)

	decision := outcome.Decision
	assert.Equal(t, DecisionRecovery, decision.Kind)
	assert.Equal(t, deployment.PhaseProvisioning, decision.FailedAt)
	assert.Equal(t, []Action{ActionRetry, ActionEdit, ActionAbort}, decision.Actions)
	assert.False(t, decision.Offers(ActionSkip))

	reloaded := f.reload(t)
	assert.Equal(t, deployment.PhaseFailed, reloaded.State.Phase)
	assert.Equal(t, deployment.PhaseProvisioning, reloaded.State.FailedAt)
}

func TestRun_CapacityFailureOffersReselect(t *testing.T) {
	f := newFixture(t)
	f.provisioner.applyErr = &deployment.ProvisioningError{
		Output: `Error: Server Type "cpx21" is unavailable in "fsn1"`,
		Err:    errors.New("exit status 1"),
	}

	outcome, err := f.engine.Run(context.Background(), f.dep)
	require.NoError(t, err)
	require.NotNil(t, outcome.Decision)

	decision := outcome.Decision
	require.True(t, decision.Offers(ActionReselect))
	assert.Equal(t, ActionReselect, decision.Actions[0])
	assert.Equal(t, "cpx21", decision.Size)
	assert.Equal(t, "fsn1", decision.Location)
}

func TestRun_SuccessWithoutAddressIsFailure(t *testing.T) {
	f := newFixture(t)
	f.provisioner.outputs = map[string]string{"instance_id": "4242"}

	outcome, err := f.engine.Run(context.Background(), f.dep)
	require.NoError(t, err)
	require.NotNil(t, outcome.Decision)
	assert.Equal(t, deployment.PhaseProvisioning, outcome.Decision.FailedAt)
}

func TestRun_RetryReattemptsWithSameConfig(t *testing.T) {
	f := newFixture(t)
	f.provisioner.applyErr = errors.New("transient")

	outcome, err := f.engine.Run(context.Background(), f.dep)
	require.NoError(t, err)
	require.NotNil(t, outcome.Decision)
	assert.Equal(t, 1, f.provisioner.applyCalls)

	// Retry is just running again; the config record is untouched.
	f.provisioner.applyErr = nil
	outcome, err = f.engine.Run(context.Background(), f.dep)
	require.NoError(t, err)
	assert.Equal(t, deployment.PhaseReady, outcome.Phase)
	assert.Equal(t, 2, f.provisioner.applyCalls)
	assert.Equal(t, "cpx21", f.dep.Config.HetznerServerType)
}

func TestRun_ConnectivityTimeout(t *testing.T) {
	f := newFixture(t)
	f.engine.waitReachable = func(_ context.Context, host string, timeout time.Duration) error {
		return &deployment.ConnectivityTimeoutError{Address: host, Timeout: timeout}
	}

	outcome, err := f.engine.Run(context.Background(), f.dep)
	require.NoError(t, err)
	require.NotNil(t, outcome.Decision)

	decision := outcome.Decision
	assert.Equal(t, deployment.PhaseAwaitingConnectivity, decision.FailedAt)
	assert.True(t, decision.Offers(ActionSkip))

	var timeoutErr *deployment.ConnectivityTimeoutError
	assert.ErrorAs(t, decision.Cause, &timeoutErr)

	reloaded := f.reload(t)
	assert.Equal(t, deployment.PhaseFailed, reloaded.State.Phase)
	assert.Equal(t, deployment.PhaseAwaitingConnectivity, reloaded.State.FailedAt)
	// The address from the successful provisioning run is preserved.
	assert.Equal(t, "203.0.113.7", reloaded.State.Address)
}

func TestRun_ResumeUnreachableGoesToConnectivityWait(t *testing.T) {
	// Persisted at Configuring, but the server no longer answers: the
	// live probe wins over the stale phase.
	f := newFixture(t)
	f.dep.State.Address = "203.0.113.7"
	f.dep.State.Advance(deployment.PhaseConfiguring)
	require.NoError(t, f.store.Persist(f.dep))

	f.engine.reachable = func(string) bool { return false }
	f.engine.waitReachable = func(_ context.Context, host string, timeout time.Duration) error {
		return &deployment.ConnectivityTimeoutError{Address: host, Timeout: timeout}
	}

	outcome, err := f.engine.Run(context.Background(), f.dep)
	require.NoError(t, err)
	require.NotNil(t, outcome.Decision)
	assert.Equal(t, deployment.PhaseAwaitingConnectivity, outcome.Decision.FailedAt)

	// Provisioning never re-ran.
	assert.Zero(t, f.provisioner.applyCalls)
	assert.Zero(t, f.configurer.calls)
}

func TestRun_ResumeReachableSkipsToConfiguring(t *testing.T) {
	f := newFixture(t)
	f.dep.State.Address = "203.0.113.7"
	f.dep.State.Fail(deployment.PhaseConfiguring)
	require.NoError(t, f.store.Persist(f.dep))

	f.engine.reachable = func(string) bool { return true }

	outcome, err := f.engine.Run(context.Background(), f.dep)
	require.NoError(t, err)
	assert.Equal(t, deployment.PhaseReady, outcome.Phase)
	assert.Zero(t, f.provisioner.applyCalls)
	assert.Equal(t, 1, f.configurer.calls)
}

func TestRun_ResumeWithStateBlobReappliesWithoutInit(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.dep.StateBlobPath(), []byte(`{}`), 0o600))
	f.dep.State.Fail(deployment.PhaseProvisioning)
	require.NoError(t, f.store.Persist(f.dep))

	outcome, err := f.engine.Run(context.Background(), f.dep)
	require.NoError(t, err)
	assert.Equal(t, deployment.PhaseReady, outcome.Phase)
	assert.Zero(t, f.provisioner.initCalls)
	assert.Equal(t, 1, f.provisioner.applyCalls)
}

func TestRun_ConfigurationFailure(t *testing.T) {
	f := newFixture(t)
	f.configurer.err = &deployment.ConfigurationError{Err: errors.New("playbook failed")}

	outcome, err := f.engine.Run(context.Background(), f.dep)
	require.NoError(t, err)
	require.NotNil(t, outcome.Decision)
	assert.Equal(t, deployment.PhaseConfiguring, outcome.Decision.FailedAt)
	assert.True(t, outcome.Decision.Offers(ActionSkip))

	reloaded := f.reload(t)
	assert.Equal(t, deployment.PhaseFailed, reloaded.State.Phase)
	assert.Equal(t, deployment.PhaseConfiguring, reloaded.State.FailedAt)
}

func TestRun_DNSPause(t *testing.T) {
	f := newFixture(t)
	f.dep.Config.EnableLetsEncrypt = true
	f.dep.Config.DomainName = "dev.example.com"

	waited := false
	f.engine.waitReachable = func(context.Context, string, time.Duration) error {
		waited = true
		return nil
	}

	outcome, err := f.engine.Run(context.Background(), f.dep)
	require.NoError(t, err)
	require.NotNil(t, outcome.Decision)
	assert.Equal(t, DecisionDNSPause, outcome.Decision.Kind)
	assert.Equal(t, []Action{ActionContinue, ActionAbort}, outcome.Decision.Actions)
	assert.False(t, waited, "configuration must not start before the operator confirms DNS")

	// Continuing is just running again; the pause fires only after a
	// fresh provisioning run.
	f.engine.reachable = func(string) bool { return true }
	outcome, err = f.engine.Run(context.Background(), f.dep)
	require.NoError(t, err)
	assert.Equal(t, deployment.PhaseReady, outcome.Phase)
}

func TestRun_Cancellation(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.provisioner.applyErr = context.Canceled
	cancel()

	_, err := f.engine.Run(ctx, f.dep)
	require.ErrorIs(t, err, context.Canceled)

	// The interrupted step is persisted as failed for the next resume.
	reloaded := f.reload(t)
	assert.Equal(t, deployment.PhaseFailed, reloaded.State.Phase)
	assert.Equal(t, deployment.PhaseProvisioning, reloaded.State.FailedAt)
}

func TestSkip_ProvisioningIsIllegal(t *testing.T) {
	f := newFixture(t)
	f.dep.State.Fail(deployment.PhaseProvisioning)
	require.NoError(t, f.store.Persist(f.dep))

	_, err := f.engine.Skip(context.Background(), f.dep)
	require.ErrorIs(t, err, deployment.ErrSkipIllegal)
}

func TestSkip_ConnectivityProceedsToConfiguring(t *testing.T) {
	f := newFixture(t)
	f.dep.State.Address = "203.0.113.7"
	f.dep.State.Fail(deployment.PhaseAwaitingConnectivity)
	require.NoError(t, f.store.Persist(f.dep))

	outcome, err := f.engine.Skip(context.Background(), f.dep)
	require.NoError(t, err)
	assert.Equal(t, deployment.PhaseReady, outcome.Phase)
	assert.Equal(t, 1, f.configurer.calls)
}

func TestSkip_ConfiguringProceedsToReady(t *testing.T) {
	f := newFixture(t)
	f.dep.State.Address = "203.0.113.7"
	f.dep.State.Fail(deployment.PhaseConfiguring)
	require.NoError(t, f.store.Persist(f.dep))

	outcome, err := f.engine.Skip(context.Background(), f.dep)
	require.NoError(t, err)
	assert.Equal(t, deployment.PhaseReady, outcome.Phase)
	assert.Zero(t, f.configurer.calls)
}

func TestSkip_RequiresFailedPhase(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Skip(context.Background(), f.dep)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in a failed phase")
}

func TestValidateEdit(t *testing.T) {
	f := newFixture(t)

	// Same provider: always fine.
	edited := *f.dep.Config
	edited.HetznerServerType = "cpx31"
	require.NoError(t, f.engine.ValidateEdit(f.dep, &edited))

	// Provider change with no infrastructure: fine.
	fresh := *f.dep.Config
	fresh.Provider = "digitalocean"
	require.NoError(t, f.engine.ValidateEdit(f.dep, &fresh))

	// Provider change with live infrastructure: conflict.
	require.NoError(t, os.WriteFile(f.dep.StateBlobPath(), []byte(`{}`), 0o600))
	err := f.engine.ValidateEdit(f.dep, &fresh)
	require.Error(t, err)

	var conflict *deployment.ConfigConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Contains(t, conflict.Reason, "destroy first")
}

func TestDestroy(t *testing.T) {
	f := newFixture(t)
	f.dep.State.Address = "203.0.113.7"
	f.dep.State.Advance(deployment.PhaseReady)
	require.NoError(t, f.store.Persist(f.dep))

	require.NoError(t, f.engine.Destroy(context.Background(), f.dep))
	assert.Equal(t, 1, f.provisioner.destroyCalls)

	reloaded := f.reload(t)
	assert.Equal(t, deployment.PhaseDestroyed, reloaded.State.Phase)
	assert.Empty(t, reloaded.State.Address)
}

func TestDestroy_FailureKeepsRecord(t *testing.T) {
	f := newFixture(t)
	f.provisioner.destroyErr = errors.New("api error")

	err := f.engine.Destroy(context.Background(), f.dep)
	require.Error(t, err)

	reloaded := f.reload(t)
	assert.Equal(t, deployment.PhaseFailed, reloaded.State.Phase)
	assert.Equal(t, deployment.PhaseDestroying, reloaded.State.FailedAt)
}

func TestRun_DestroyedRejectsDeploy(t *testing.T) {
	f := newFixture(t)
	f.dep.State.Advance(deployment.PhaseDestroyed)
	require.NoError(t, f.store.Persist(f.dep))

	_, err := f.engine.Run(context.Background(), f.dep)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destroyed")
}
