package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autodock-deploy/config"
	"github.com/autodock-deploy/lib/compute"
	"github.com/autodock-deploy/lib/sshx"
	"github.com/autodock-deploy/models"
)

type fakeStore struct {
	mu sync.Mutex

	tenant models.Tenant

	apps       map[string]models.Application
	appCreates int

	deployments  []models.Deployment
	steps        map[string][]models.DeploymentStep
	logs         map[string][]models.DeploymentLog
	succeeded    map[string]string
	failed       map[string]string
	markFailErr  error
	runtimeCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tenant:    models.Tenant{ID: "tenant-1", Slug: "default"},
		apps:      make(map[string]models.Application),
		steps:     make(map[string][]models.DeploymentStep),
		logs:      make(map[string][]models.DeploymentLog),
		succeeded: make(map[string]string),
		failed:    make(map[string]string),
	}
}

func (f *fakeStore) GetDefault() (models.Tenant, error) { return f.tenant, nil }

func (f *fakeStore) GetOrCreate(tenantID, name, repoURL string, containerPort int, repoOwner, repoName, branch string) (models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if app, ok := f.apps[repoURL]; ok {
		return app, nil
	}
	f.appCreates++
	app := models.Application{
		ID:            fmt.Sprintf("app-%d", f.appCreates),
		TenantID:      tenantID,
		Name:          name,
		Slug:          name,
		RepoURL:       repoURL,
		Branch:        branch,
		ContainerPort: containerPort,
	}
	f.apps[repoURL] = app
	return app, nil
}

func (f *fakeStore) UpdateRuntime(id, containerName, imageName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runtimeCalls++
	return nil
}

func (f *fakeStore) UpdateLastDeployed(id string) error { return nil }

func (f *fakeStore) Record(providerID, publicIP, privateIP, instanceType, region, securityGroupID string) (models.ComputeInstance, error) {
	return models.ComputeInstance{ID: "inst-row-1", ProviderID: providerID, PublicIP: publicIP}, nil
}

func (f *fakeStore) LinkApplication(applicationID, instanceID string, hostPort int) (models.ApplicationInstance, error) {
	return models.ApplicationInstance{ApplicationID: applicationID, InstanceID: instanceID, HostPort: hostPort}, nil
}

func (f *fakeStore) Create(tenantID, applicationID string) (models.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.deployments) + 1
	dep := models.Deployment{
		ID:            fmt.Sprintf("deployment-%d", n),
		ShortID:       fmt.Sprintf("short%03d", n),
		TenantID:      tenantID,
		ApplicationID: applicationID,
		Status:        models.DeploymentStatusInProgress,
		StartedAt:     time.Now(),
	}
	f.deployments = append(f.deployments, dep)
	return dep, nil
}

func (f *fakeStore) FindByRef(ref string) (models.Deployment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.deployments {
		if d.ID == ref || d.ShortID == ref {
			return d, nil
		}
	}
	return models.Deployment{}, errors.New("not found")
}

func (f *fakeStore) ListRecent(limit int) ([]models.Deployment, error) {
	return f.deployments, nil
}

func (f *fakeStore) MarkSucceeded(id string, deploymentURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.succeeded[id] = deploymentURL
	return nil
}

func (f *fakeStore) SetCommit(id string, sha string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.deployments {
		if f.deployments[i].ID == id {
			f.deployments[i].CommitSHA = sha
		}
	}
	return nil
}

func (f *fakeStore) MarkFailed(id string, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markFailErr != nil {
		return f.markFailErr
	}
	f.failed[id] = errorMessage
	return nil
}

func (f *fakeStore) AddStep(deploymentID string, number int, name string, status models.StepStatus, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps[deploymentID] = append(f.steps[deploymentID], models.DeploymentStep{
		DeploymentID: deploymentID,
		StepNumber:   number,
		StepName:     name,
		Status:       status,
		Message:      message,
	})
	return nil
}

func (f *fakeStore) AddLog(deploymentID string, level models.LogLevel, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[deploymentID] = append(f.logs[deploymentID], models.DeploymentLog{
		DeploymentID: deploymentID,
		Level:        level,
		Message:      message,
	})
	return nil
}

type fakeProvisioner struct {
	err   error
	calls int
}

func (f *fakeProvisioner) CreateInstance(ctx context.Context, name string) (compute.InstanceInfo, error) {
	f.calls++
	if f.err != nil {
		return compute.InstanceInfo{}, f.err
	}
	return compute.InstanceInfo{
		InstanceID:   "i-0abc123",
		PublicIP:     "203.0.113.10",
		PrivateIP:    "10.0.0.5",
		InstanceType: "t2.micro",
		State:        "running",
	}, nil
}

type fakeRunner struct{}

func (fakeRunner) Run(ctx context.Context, command string, timeout time.Duration) (sshx.CommandResult, error) {
	return sshx.CommandResult{Command: command}, nil
}

func (fakeRunner) RunSequence(ctx context.Context, commands []string, stopOnError bool) ([]sshx.CommandResult, error) {
	results := make([]sshx.CommandResult, len(commands))
	for i, c := range commands {
		results[i] = sshx.CommandResult{Command: c}
	}
	return results, nil
}

func (fakeRunner) Host() string { return "203.0.113.10" }

type fakeRuntime struct {
	buildErr error
	runErr   error
}

func (f *fakeRuntime) InstallDocker(ctx context.Context) (string, error) {
	return "Docker version 27.0.1", nil
}

func (f *fakeRuntime) BuildImage(ctx context.Context, projectPath, imageName, tag string) error {
	return f.buildErr
}

func (f *fakeRuntime) RunContainer(ctx context.Context, image, containerName string, hostPort, containerPort int, envVars map[string]string) (string, error) {
	if f.runErr != nil {
		return "", f.runErr
	}
	return "abcdef012345", nil
}

type fakeProxy struct {
	installErr error
	sites      []string
}

func (f *fakeProxy) InstallNginx(ctx context.Context) (string, error) {
	if f.installErr != nil {
		return "", f.installErr
	}
	return "nginx/1.24.0", nil
}

func (f *fakeProxy) CreateSiteConfig(ctx context.Context, appName string, proxyPort int, serverName string) error {
	f.sites = append(f.sites, appName)
	return nil
}

func (f *fakeProxy) EnableSite(ctx context.Context, appName string) error { return nil }
func (f *fakeProxy) ReloadNginx(ctx context.Context) error                { return nil }

type fakeSource struct{}

func (fakeSource) CloneRepository(ctx context.Context, repoURL, branch, token string) (string, error) {
	return "/home/ubuntu/demo-app", nil
}

func (fakeSource) VerifyProjectFiles(ctx context.Context, repoPath string, requiredFiles []string) ([]string, error) {
	return nil, nil
}

func (fakeSource) CommitHash(ctx context.Context, repoPath string) string { return "deadbeef" }

type fakeHealth struct {
	healthy bool
	port    int
}

func (f *fakeHealth) WaitUntilHealthy(ctx context.Context, maxAttempts, retryInterval int) (bool, string) {
	if f.healthy {
		return true, "Application is healthy after 1 attempts"
	}
	return false, fmt.Sprintf("Application failed to become healthy after %d attempts", maxAttempts)
}

type sinkEvent struct {
	deploymentID string
	event        models.ProgressEvent
}

type fakeSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (f *fakeSink) Emit(deploymentID string, event models.ProgressEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sinkEvent{deploymentID: deploymentID, event: event})
}

type testHarness struct {
	svc    *OrchestratorService
	store  *fakeStore
	sink   *fakeSink
	health *fakeHealth
	proxy  *fakeProxy
}

func newTestHarness(t *testing.T, settings config.Settings) *testHarness {
	t.Helper()

	store := newFakeStore()
	sink := &fakeSink{}
	health := &fakeHealth{healthy: true}
	proxy := &fakeProxy{}

	svc := &OrchestratorService{
		settings:    settings,
		provisioner: &fakeProvisioner{},
		sink:        sink,
		tenants:     store,
		apps:        store,
		instances:   store,
		deployments: store,
		connectRemote: func(ctx context.Context, host string, onProgress sshx.ProgressFunc) (RemoteRunner, func() error, error) {
			return fakeRunner{}, func() error { return nil }, nil
		},
		newRuntime: func(RemoteRunner) runtimeProvisioner { return &fakeRuntime{} },
		newProxy:   func(RemoteRunner) proxyProvisioner { return proxy },
		newSource:  func(RemoteRunner) sourceProvisioner { return fakeSource{} },
		newHealth: func(host string, port int) healthProbe {
			health.port = port
			return health
		},
	}
	return &testHarness{svc: svc, store: store, sink: sink, health: health, proxy: proxy}
}

func testSettings() config.Settings {
	return config.Settings{
		AWSRegion:           "us-east-1",
		SSHUser:             "ubuntu",
		SSHMaxWait:          180,
		SSHRetryDelay:       5,
		ContainerPort:       8000,
		HostPort:            8000,
		HealthCheckRetries:  5,
		HealthCheckInterval: 10,
		EnableNginx:         true,
	}
}

func TestDeploySuccessRecordsOrderedSteps(t *testing.T) {
	h := newTestHarness(t, testSettings())

	result := h.svc.Deploy(context.Background(), models.DeployRequest{
		RepoURL: "https://github.com/acme/demo-app",
	})

	require.True(t, result.Success, "deploy should succeed: %s", result.Error)
	require.NotEmpty(t, result.DeploymentID)
	assert.Len(t, result.DeploymentID, 8)
	assert.Equal(t, "http://203.0.113.10/", result.URL)
	assert.Equal(t, "i-0abc123", result.InstanceID)

	steps := h.store.steps["deployment-1"]
	require.Len(t, steps, 9)
	wantNames := []string{
		"Instance Created",
		"Docker Installed",
		"Nginx Installed",
		"Repository Cloned",
		"Project Structure Verified",
		"Image Built",
		"Container Started",
		"Nginx Configured",
		"Health Check Passed",
	}
	for i, step := range steps {
		assert.Equal(t, i+1, step.StepNumber)
		assert.Equal(t, wantNames[i], step.StepName)
		assert.Equal(t, models.StepStatusSuccess, step.Status)
	}

	assert.Equal(t, "http://203.0.113.10/", h.store.succeeded["deployment-1"])
	assert.Empty(t, h.store.failed)
	assert.Equal(t, 1, h.store.runtimeCalls)
	assert.Equal(t, []string{"demo-app"}, h.proxy.sites)

	last := result.Steps[len(result.Steps)-1]
	assert.Equal(t, "Deployment Complete", last.Step)
	assert.Equal(t, "success", last.Status)
}

func TestDeployFailureStopsSequenceAndKeepsEarlierSteps(t *testing.T) {
	h := newTestHarness(t, testSettings())
	buildErr := errors.New("docker build exited 1")
	h.svc.newRuntime = func(RemoteRunner) runtimeProvisioner {
		return &fakeRuntime{buildErr: buildErr}
	}

	result := h.svc.Deploy(context.Background(), models.DeployRequest{
		RepoURL: "https://github.com/acme/demo-app",
	})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "docker build exited 1")

	// Phases before the build are persisted; nothing after it is.
	steps := h.store.steps["deployment-1"]
	require.Len(t, steps, 5)
	for i, step := range steps {
		assert.Equal(t, i+1, step.StepNumber)
		assert.Equal(t, models.StepStatusSuccess, step.Status)
	}
	assert.Equal(t, "Project Structure Verified", steps[4].StepName)

	assert.Contains(t, h.store.failed["deployment-1"], "docker build exited 1")
	assert.Empty(t, h.store.succeeded)

	// The instance is deliberately left running for inspection.
	assert.Equal(t, "i-0abc123", result.InstanceID)
	last := result.Steps[len(result.Steps)-1]
	assert.Equal(t, "Cleanup", last.Step)
	assert.Contains(t, last.Message, "kept running")
}

func TestHealthExhaustionDowngradesToWarning(t *testing.T) {
	h := newTestHarness(t, testSettings())
	h.health.healthy = false

	result := h.svc.Deploy(context.Background(), models.DeployRequest{
		RepoURL: "https://github.com/acme/demo-app",
	})

	require.True(t, result.Success, "unhealthy app must not fail the deployment")

	steps := h.store.steps["deployment-1"]
	require.Len(t, steps, 9)
	final := steps[8]
	assert.Equal(t, 9, final.StepNumber)
	assert.Equal(t, "Health Check Warning", final.StepName)
	assert.Equal(t, models.StepStatusWarning, final.Status)
	assert.Contains(t, final.Message, "failed to become healthy")

	assert.Contains(t, h.store.succeeded, "deployment-1")
}

func TestNginxDisabledSkipsProxyPhases(t *testing.T) {
	settings := testSettings()
	settings.EnableNginx = false
	h := newTestHarness(t, settings)

	result := h.svc.Deploy(context.Background(), models.DeployRequest{
		RepoURL: "https://github.com/acme/demo-app",
	})

	require.True(t, result.Success, result.Error)
	assert.Equal(t, "http://203.0.113.10:8000", result.URL)
	assert.Equal(t, 8000, h.health.port, "health must probe the container port directly")

	steps := h.store.steps["deployment-1"]
	require.Len(t, steps, 9)
	assert.Equal(t, models.StepStatusSkipped, steps[2].Status)
	assert.Equal(t, "Nginx Installed", steps[2].StepName)
	assert.Equal(t, models.StepStatusSkipped, steps[7].Status)
	assert.Equal(t, "Nginx Configured", steps[7].StepName)
}

func TestDeployTwiceReusesApplication(t *testing.T) {
	h := newTestHarness(t, testSettings())

	first := h.svc.Deploy(context.Background(), models.DeployRequest{
		RepoURL: "https://github.com/acme/demo-app",
	})
	second := h.svc.Deploy(context.Background(), models.DeployRequest{
		RepoURL: "https://github.com/acme/demo-app",
	})

	require.True(t, first.Success)
	require.True(t, second.Success)
	assert.NotEqual(t, first.DeploymentID, second.DeploymentID)
	assert.Equal(t, 1, h.store.appCreates, "same repo must reuse the application record")
	assert.Len(t, h.store.deployments, 2)
}

func TestValidationFailureCreatesNoRecords(t *testing.T) {
	h := newTestHarness(t, testSettings())

	result := h.svc.Deploy(context.Background(), models.DeployRequest{
		RepoURL: "ftp://not-a-repo",
	})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid repository URL")
	assert.Empty(t, result.DeploymentID)
	assert.Empty(t, h.store.deployments)
	assert.Empty(t, h.store.steps)
	assert.Empty(t, h.store.logs)
}

func TestProgressEventsMatchPersistedLogs(t *testing.T) {
	h := newTestHarness(t, testSettings())

	h.svc.Deploy(context.Background(), models.DeployRequest{
		RepoURL: "https://github.com/acme/demo-app",
	})

	logs := h.store.logs["deployment-1"]
	require.NotEmpty(t, logs)

	// Every event emitted after the deployment record exists has a
	// matching log line, in the same relative order.
	var persisted []sinkEvent
	for _, e := range h.sink.events {
		if e.deploymentID != "" {
			persisted = append(persisted, e)
		}
	}
	require.Len(t, logs, len(persisted))
	for i, e := range persisted {
		want := fmt.Sprintf("[%s] %s", e.event.Step, e.event.Message)
		assert.Equal(t, want, logs[i].Message)
		if e.event.Status == "error" {
			assert.Equal(t, models.LogLevelError, logs[i].Level)
		} else {
			assert.Equal(t, models.LogLevelInfo, logs[i].Level)
		}
	}
}

func TestFailureBookkeepingErrorDoesNotMaskOriginal(t *testing.T) {
	h := newTestHarness(t, testSettings())
	h.store.markFailErr = errors.New("database unavailable")
	runErr := errors.New("container exited immediately")
	h.svc.newRuntime = func(RemoteRunner) runtimeProvisioner {
		return &fakeRuntime{runErr: runErr}
	}

	result := h.svc.Deploy(context.Background(), models.DeployRequest{
		RepoURL: "https://github.com/acme/demo-app",
	})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "container exited immediately")
	assert.NotContains(t, result.Error, "database unavailable")
}

func TestInstanceCreationFailureMarksDeploymentFailed(t *testing.T) {
	h := newTestHarness(t, testSettings())
	h.svc.provisioner = &fakeProvisioner{err: errors.New("capacity not available")}

	result := h.svc.Deploy(context.Background(), models.DeployRequest{
		RepoURL: "https://github.com/acme/demo-app",
	})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "capacity not available")
	assert.Contains(t, h.store.failed["deployment-1"], "capacity not available")
	assert.Empty(t, h.store.steps["deployment-1"], "no step rows before the first phase completes")
}
