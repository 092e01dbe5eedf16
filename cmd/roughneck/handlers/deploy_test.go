package handlers

import (
	"context"
	"errors"
	"os"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjtechguy/roughneck/internal/deployment"
	"github.com/mjtechguy/roughneck/internal/engine"
	"github.com/mjtechguy/roughneck/internal/provider"
)

// fakeEngine scripts a sequence of outcomes for consecutive Run calls.
type fakeEngine struct {
	outcomes []*engine.Outcome
	runs     int
	skips    int
	destroys int
	editErr  error
}

func (f *fakeEngine) Run(_ context.Context, _ *deployment.Deployment) (*engine.Outcome, error) {
	out := f.outcomes[f.runs]
	f.runs++
	return out, nil
}

func (f *fakeEngine) Skip(_ context.Context, _ *deployment.Deployment) (*engine.Outcome, error) {
	f.skips++
	return &engine.Outcome{Phase: deployment.PhaseReady}, nil
}

func (f *fakeEngine) ValidateEdit(_ *deployment.Deployment, _ *deployment.Config) error {
	return f.editErr
}

func (f *fakeEngine) Destroy(_ context.Context, dep *deployment.Deployment) error {
	f.destroys++
	dep.State.Advance(deployment.PhaseDestroyed)
	return nil
}

func testStore(t *testing.T) *deployment.Store {
	t.Helper()
	s := deployment.NewStore(t.TempDir())
	s.Templates = fstest.MapFS{
		"terraform/providers/hetzner/main.tf": &fstest.MapFile{Data: []byte("# fixture")},
		"ansible/playbook.yml":                &fstest.MapFile{Data: []byte("- hosts: all")},
	}
	return s
}

func createDeployment(t *testing.T, store *deployment.Store, name string) *deployment.Deployment {
	t.Helper()
	dep, err := store.Create(name)
	require.NoError(t, err)
	dep.Config = &deployment.Config{
		Provider:          "hetzner",
		ProjectName:       name,
		HetznerToken:      "tok",
		HetznerLocation:   "fsn1",
		HetznerServerType: "cx22",
	}
	require.NoError(t, store.SaveConfig(dep))
	return dep
}

// swapDeployDeps points the deploy handler at fakes and restores the
// originals when the test ends.
func swapDeployDeps(t *testing.T, eng *fakeEngine) {
	t.Helper()
	origStoreRoot := storeRoot
	origNewEngine := newEngine
	origInteractive := interactive
	origChoose := chooseAction
	origPrereqs := checkPrerequisites
	origValidate := validateReady
	t.Cleanup(func() {
		storeRoot = origStoreRoot
		newEngine = origNewEngine
		interactive = origInteractive
		chooseAction = origChoose
		checkPrerequisites = origPrereqs
		validateReady = origValidate
	})
	newEngine = func(_ *deployment.Store, _ map[string]string) lifecycleEngine { return eng }
	interactive = func() bool { return true }
	checkPrerequisites = func() error { return nil }
	validateReady = func(context.Context, *deployment.Deployment) error { return nil }
}

func TestRunLifecycle_ReadyFirstRun(t *testing.T) {
	store := testStore(t)
	dep := createDeployment(t, store, "web")
	eng := &fakeEngine{outcomes: []*engine.Outcome{{Phase: deployment.PhaseReady}}}
	swapDeployDeps(t, eng)

	err := runLifecycle(context.Background(), store, newVault(store.Root), dep)
	require.NoError(t, err)
	assert.Equal(t, 1, eng.runs)
}

func TestRunLifecycle_HealthChecksRunOnReady(t *testing.T) {
	store := testStore(t)
	dep := createDeployment(t, store, "web")
	eng := &fakeEngine{outcomes: []*engine.Outcome{{Phase: deployment.PhaseReady}}}
	swapDeployDeps(t, eng)
	validated := 0
	validateReady = func(_ context.Context, d *deployment.Deployment) error {
		validated++
		assert.Equal(t, "web", d.Name)
		return nil
	}

	err := runLifecycle(context.Background(), store, newVault(store.Root), dep)
	require.NoError(t, err)
	assert.Equal(t, 1, validated)
}

func TestRunLifecycle_HealthCheckFailureWarnsOnly(t *testing.T) {
	store := testStore(t)
	dep := createDeployment(t, store, "web")
	eng := &fakeEngine{outcomes: []*engine.Outcome{{Phase: deployment.PhaseReady}}}
	swapDeployDeps(t, eng)
	validateReady = func(context.Context, *deployment.Deployment) error {
		return errors.New("code-server is not active")
	}

	err := runLifecycle(context.Background(), store, newVault(store.Root), dep)
	require.NoError(t, err)
	assert.Equal(t, 1, eng.runs)
}

func TestRunLifecycle_RetryThenReady(t *testing.T) {
	store := testStore(t)
	dep := createDeployment(t, store, "web")
	eng := &fakeEngine{outcomes: []*engine.Outcome{
		{Phase: deployment.PhaseFailed, Decision: &engine.Decision{
			Kind:     engine.DecisionRecovery,
			FailedAt: deployment.PhaseProvisioning,
			Cause:    errors.New("boom"),
			Actions:  []engine.Action{engine.ActionRetry, engine.ActionEdit, engine.ActionAbort},
		}},
		{Phase: deployment.PhaseReady},
	}}
	swapDeployDeps(t, eng)
	chooseAction = func(_ context.Context, _ *deployment.Deployment, _ *engine.Decision) (engine.Action, error) {
		return engine.ActionRetry, nil
	}

	err := runLifecycle(context.Background(), store, newVault(store.Root), dep)
	require.NoError(t, err)
	assert.Equal(t, 2, eng.runs)
}

func TestRunLifecycle_AbortExitsClean(t *testing.T) {
	store := testStore(t)
	dep := createDeployment(t, store, "web")
	eng := &fakeEngine{outcomes: []*engine.Outcome{
		{Phase: deployment.PhaseFailed, Decision: &engine.Decision{
			Kind:     engine.DecisionRecovery,
			FailedAt: deployment.PhaseConfiguring,
			Cause:    errors.New("boom"),
			Actions:  []engine.Action{engine.ActionRetry, engine.ActionAbort},
		}},
	}}
	swapDeployDeps(t, eng)
	chooseAction = func(_ context.Context, _ *deployment.Deployment, _ *engine.Decision) (engine.Action, error) {
		return engine.ActionAbort, nil
	}

	err := runLifecycle(context.Background(), store, newVault(store.Root), dep)
	require.NoError(t, err)
	assert.Equal(t, 1, eng.runs)
}

func TestRunLifecycle_SkipUsesEngineSkip(t *testing.T) {
	store := testStore(t)
	dep := createDeployment(t, store, "web")
	eng := &fakeEngine{outcomes: []*engine.Outcome{
		{Phase: deployment.PhaseFailed, Decision: &engine.Decision{
			Kind:     engine.DecisionRecovery,
			FailedAt: deployment.PhaseAwaitingConnectivity,
			Cause:    errors.New("timeout"),
			Actions:  []engine.Action{engine.ActionRetry, engine.ActionSkip, engine.ActionAbort},
		}},
	}}
	swapDeployDeps(t, eng)
	chooseAction = func(_ context.Context, _ *deployment.Deployment, _ *engine.Decision) (engine.Action, error) {
		return engine.ActionSkip, nil
	}

	err := runLifecycle(context.Background(), store, newVault(store.Root), dep)
	require.NoError(t, err)
	assert.Equal(t, 1, eng.runs)
	assert.Equal(t, 1, eng.skips)
}

func TestRunLifecycle_ReselectUpdatesSize(t *testing.T) {
	store := testStore(t)
	dep := createDeployment(t, store, "web")
	eng := &fakeEngine{outcomes: []*engine.Outcome{
		{Phase: deployment.PhaseFailed, Decision: &engine.Decision{
			Kind:     engine.DecisionRecovery,
			FailedAt: deployment.PhaseProvisioning,
			Cause:    errors.New("unavailable"),
			Actions:  []engine.Action{engine.ActionReselect, engine.ActionRetry, engine.ActionAbort},
			Size:     "cx22",
			Location: "fsn1",
		}},
		{Phase: deployment.PhaseReady},
	}}
	swapDeployDeps(t, eng)
	chooseAction = func(_ context.Context, _ *deployment.Deployment, _ *engine.Decision) (engine.Action, error) {
		return engine.ActionReselect, nil
	}
	origChooseSize := chooseSize
	defer func() { chooseSize = origChooseSize }()
	chooseSize = func(_ context.Context, _ *deployment.Config, _ provider.Adapter) (string, error) {
		return "cx42", nil
	}

	err := runLifecycle(context.Background(), store, newVault(store.Root), dep)
	require.NoError(t, err)
	assert.Equal(t, "cx42", dep.Config.HetznerServerType)

	// The new size must be durable for later runs.
	reopened, err := store.Open("web")
	require.NoError(t, err)
	assert.Equal(t, "cx42", reopened.Config.HetznerServerType)
}

func TestRunLifecycle_NonInteractiveSurfacesCause(t *testing.T) {
	store := testStore(t)
	dep := createDeployment(t, store, "web")
	cause := errors.New("boom")
	eng := &fakeEngine{outcomes: []*engine.Outcome{
		{Phase: deployment.PhaseFailed, Decision: &engine.Decision{
			Kind:     engine.DecisionRecovery,
			FailedAt: deployment.PhaseProvisioning,
			Cause:    cause,
			Actions:  []engine.Action{engine.ActionRetry, engine.ActionAbort},
		}},
	}}
	swapDeployDeps(t, eng)
	interactive = func() bool { return false }

	err := runLifecycle(context.Background(), store, newVault(store.Root), dep)
	require.ErrorIs(t, err, cause)
}

func TestDeploy_UnknownDeployment(t *testing.T) {
	store := testStore(t)
	eng := &fakeEngine{}
	swapDeployDeps(t, eng)
	storeRoot = func() string { return store.Root }
	origNewStore := newStore
	defer func() { newStore = origNewStore }()
	newStore = func(_ string) *deployment.Store { return store }

	err := Deploy(context.Background(), "ghost")
	require.ErrorIs(t, err, deployment.ErrNotFound)
}

func TestEditConfig_RevertsOnConflict(t *testing.T) {
	store := testStore(t)
	dep := createDeployment(t, store, "web")
	eng := &fakeEngine{editErr: &deployment.ConfigConflictError{Reason: "provider changed"}}
	swapDeployDeps(t, eng)

	origEditor := openEditor
	defer func() { openEditor = origEditor }()
	openEditor = func(_ context.Context, path string) error {
		edited := *dep.Config
		edited.Provider = "aws"
		return os.WriteFile(path, edited.Marshal(), 0o600)
	}

	err := editConfig(context.Background(), store, dep)
	var conflict *deployment.ConfigConflictError
	require.ErrorAs(t, err, &conflict)

	// The record on disk is rolled back to the hetzner config.
	reopened, err := store.Open("web")
	require.NoError(t, err)
	assert.Equal(t, "hetzner", reopened.Config.Provider)
}
