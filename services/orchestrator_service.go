package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/autodock-deploy/config"
	"github.com/autodock-deploy/lib/compute"
	"github.com/autodock-deploy/lib/sshx"
	"github.com/autodock-deploy/models"
	"github.com/autodock-deploy/progress"
	"github.com/autodock-deploy/repositories"
	"github.com/autodock-deploy/utils"
)

// Store interfaces are the slices of the repository layer the
// orchestrator writes through. The gorm repositories satisfy them.

type TenantStore interface {
	GetDefault() (models.Tenant, error)
}

type ApplicationStore interface {
	GetOrCreate(tenantID, name, repoURL string, containerPort int, repoOwner, repoName, branch string) (models.Application, error)
	UpdateRuntime(id, containerName, imageName string) error
	UpdateLastDeployed(id string) error
}

type InstanceStore interface {
	Record(providerID, publicIP, privateIP, instanceType, region, securityGroupID string) (models.ComputeInstance, error)
	LinkApplication(applicationID, instanceID string, hostPort int) (models.ApplicationInstance, error)
}

type DeploymentStore interface {
	Create(tenantID, applicationID string) (models.Deployment, error)
	FindByRef(ref string) (models.Deployment, error)
	ListRecent(limit int) ([]models.Deployment, error)
	MarkSucceeded(id string, deploymentURL string) error
	MarkFailed(id string, errorMessage string) error
	SetCommit(id string, sha string) error
	AddStep(deploymentID string, number int, name string, status models.StepStatus, message string) error
	AddLog(deploymentID string, level models.LogLevel, message string) error
}

// InstanceProvisioner is the compute side of a deployment
type InstanceProvisioner interface {
	CreateInstance(ctx context.Context, name string) (compute.InstanceInfo, error)
}

// Capability interfaces let tests substitute the remote provisioning
// services without a live host.

type runtimeProvisioner interface {
	InstallDocker(ctx context.Context) (string, error)
	BuildImage(ctx context.Context, projectPath, imageName, tag string) error
	RunContainer(ctx context.Context, image, containerName string, hostPort, containerPort int, envVars map[string]string) (string, error)
}

type proxyProvisioner interface {
	InstallNginx(ctx context.Context) (string, error)
	CreateSiteConfig(ctx context.Context, appName string, proxyPort int, serverName string) error
	EnableSite(ctx context.Context, appName string) error
	ReloadNginx(ctx context.Context) error
}

type sourceProvisioner interface {
	CloneRepository(ctx context.Context, repoURL, branch, token string) (string, error)
	VerifyProjectFiles(ctx context.Context, repoPath string, requiredFiles []string) ([]string, error)
	CommitHash(ctx context.Context, repoPath string) string
}

type healthProbe interface {
	WaitUntilHealthy(ctx context.Context, maxAttempts, retryInterval int) (bool, string)
}

// OrchestratorService drives the full deployment workflow: provision,
// install, clone, build, run, route, verify. One call to Deploy is one
// deployment; concurrent calls are independent.
type OrchestratorService struct {
	settings    config.Settings
	provisioner InstanceProvisioner
	sink        progress.Sink

	tenants     TenantStore
	apps        ApplicationStore
	instances   InstanceStore
	deployments DeploymentStore

	connectRemote func(ctx context.Context, host string, onProgress sshx.ProgressFunc) (RemoteRunner, func() error, error)
	newRuntime    func(RemoteRunner) runtimeProvisioner
	newProxy      func(RemoteRunner) proxyProvisioner
	newSource     func(RemoteRunner) sourceProvisioner
	newHealth     func(host string, port int) healthProbe
}

func NewOrchestratorService(settings config.Settings, provisioner InstanceProvisioner, sink progress.Sink) *OrchestratorService {
	if sink == nil {
		sink = progress.NopSink{}
	}
	return &OrchestratorService{
		settings:    settings,
		provisioner: provisioner,
		sink:        sink,
		tenants:     repositories.NewTenantRepository(),
		apps:        repositories.NewApplicationRepository(),
		instances:   repositories.NewInstanceRepository(),
		deployments: repositories.NewDeploymentRepository(),
		connectRemote: func(ctx context.Context, host string, onProgress sshx.ProgressFunc) (RemoteRunner, func() error, error) {
			client := sshx.NewClient(host, settings.SSHUser, settings.SSHKeyFile)
			err := client.Connect(ctx, sshx.ConnectOptions{
				MaxWait:       time.Duration(settings.SSHMaxWait) * time.Second,
				RetryInterval: time.Duration(settings.SSHRetryDelay) * time.Second,
				OnProgress:    onProgress,
			})
			if err != nil {
				return nil, nil, err
			}
			return client, client.Close, nil
		},
		newRuntime: func(r RemoteRunner) runtimeProvisioner { return NewDockerService(r) },
		newProxy:   func(r RemoteRunner) proxyProvisioner { return NewNginxService(r) },
		newSource:  func(r RemoteRunner) sourceProvisioner { return NewGitService(r) },
		newHealth:  func(host string, port int) healthProbe { return NewHealthService(host, port) },
	}
}

// Deploy runs one complete deployment and always returns a result,
// success or not. Deployment-domain failures never surface as errors.
func (s *OrchestratorService) Deploy(ctx context.Context, req models.DeployRequest) models.DeployResult {
	run := &deployRun{
		svc: s,
		req: req,
		result: models.DeployResult{
			RepoURL:      req.RepoURL,
			NginxEnabled: s.settings.EnableNginx,
			StartTime:    time.Now(),
		},
	}
	return run.execute(ctx)
}

// GetStatus resolves a deployment by durable id or 8-character short id
func (s *OrchestratorService) GetStatus(ref string) (models.Deployment, error) {
	return s.deployments.FindByRef(ref)
}

// ListDeployments returns recent deployments, newest first
func (s *OrchestratorService) ListDeployments(limit int) ([]models.Deployment, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.deployments.ListRecent(limit)
}

// deployRun holds the mutable state of one deployment in flight
type deployRun struct {
	svc     *OrchestratorService
	req     models.DeployRequest
	result  models.DeployResult
	dep     models.Deployment
	hasDep  bool
	stepNum int
}

// report performs the triple write for a phase transition: a log row
// first (durable before observers can see the event), then the sink,
// then the in-memory result.
func (r *deployRun) report(step, message, status string, data map[string]any) {
	if status == "error" {
		log.Printf("[ERROR] %s: %s", step, message)
	} else {
		log.Printf("[%s] %s: %s", strings.ToUpper(status), step, message)
	}

	event := models.ProgressEvent{
		Step:      step,
		Message:   message,
		Status:    status,
		Data:      data,
		Timestamp: time.Now(),
	}

	if r.hasDep {
		level := models.LogLevelInfo
		if status == "error" {
			level = models.LogLevelError
		}
		if err := r.svc.deployments.AddLog(r.dep.ID, level, fmt.Sprintf("[%s] %s", step, message)); err != nil {
			log.Println("Failed to record deployment log:", err)
		}
	}

	r.svc.sink.Emit(r.dep.ShortID, event)
	r.result.Steps = append(r.result.Steps, event)
}

// addStep persists the next numbered step row. Numbering is dense:
// every phase gets a row, with skipped phases recorded as skipped.
func (r *deployRun) addStep(name string, status models.StepStatus, message string) error {
	r.stepNum++
	return r.svc.deployments.AddStep(r.dep.ID, r.stepNum, name, status, message)
}

// fail records the terminal failure and builds the caller's result.
// Bookkeeping errors here are logged but never replace err itself.
func (r *deployRun) fail(err error) models.DeployResult {
	log.Println("Deployment failed:", err)

	r.result.Success = false
	r.result.Error = err.Error()
	r.result.EndTime = time.Now()

	if r.hasDep {
		if dbErr := r.svc.deployments.MarkFailed(r.dep.ID, err.Error()); dbErr != nil {
			log.Println("Failed to record deployment failure:", dbErr)
		}
	}

	r.report("Deployment Failed", err.Error(), "error", nil)
	if r.result.InstanceID != "" {
		r.report("Cleanup", fmt.Sprintf("Instance %s kept running for inspection", r.result.InstanceID), "success", nil)
	}
	return r.result
}

func (r *deployRun) execute(ctx context.Context) models.DeployResult {
	s := r.svc
	settings := s.settings

	containerPort := r.req.ContainerPort
	if containerPort == 0 {
		containerPort = settings.ContainerPort
	}
	hostPort := r.req.HostPort
	if hostPort == 0 {
		hostPort = settings.HostPort
	}

	// Validation happens before anything exists, so failures here leave
	// no trace beyond the in-memory result.
	r.report("Validation", "Validating repository URL", "in_progress", nil)
	if err := utils.ValidateRepoURL(r.req.RepoURL); err != nil {
		return r.fail(fmt.Errorf("invalid repository URL: %w", err))
	}
	r.report("Validation", "Repository URL validated", "success", nil)

	r.report("Validation", "Validating configuration", "in_progress", nil)
	if problems := utils.ValidateDeployConfig(r.req.RepoURL, hostPort); len(problems) > 0 {
		return r.fail(fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", ")))
	}
	r.report("Validation", "Configuration validated", "success", nil)

	tenant, err := s.tenants.GetDefault()
	if err != nil {
		return r.fail(fmt.Errorf("no default tenant found: %w", err))
	}

	owner, repoName, err := utils.ParseRepoURL(r.req.RepoURL)
	if err != nil {
		return r.fail(err)
	}
	appName := utils.SanitizeName(repoName)

	application, err := s.apps.GetOrCreate(tenant.ID, appName, r.req.RepoURL, containerPort, owner, repoName, "main")
	if err != nil {
		return r.fail(fmt.Errorf("failed to resolve application: %w", err))
	}

	dep, err := s.deployments.Create(tenant.ID, application.ID)
	if err != nil {
		return r.fail(fmt.Errorf("failed to create deployment record: %w", err))
	}
	r.dep = dep
	r.hasDep = true
	r.result.DeploymentID = dep.ShortID
	log.Printf("Deployment record created: short_id=%s", dep.ShortID)

	instanceName := r.req.InstanceName
	if instanceName == "" {
		instanceName = fmt.Sprintf("autodock-%s-%s", appName, dep.ShortID)
	}

	// Phase: compute instance
	r.report("Instance Creation", "Creating compute instance", "in_progress", nil)
	info, err := s.provisioner.CreateInstance(ctx, instanceName)
	if err != nil {
		return r.fail(fmt.Errorf("failed to create instance: %w", err))
	}
	r.result.InstanceID = info.InstanceID
	r.result.PublicIP = info.PublicIP

	instanceRow, err := s.instances.Record(info.InstanceID, info.PublicIP, info.PrivateIP, info.InstanceType, settings.AWSRegion, info.SecurityGroupID)
	if err != nil {
		return r.fail(fmt.Errorf("failed to record instance: %w", err))
	}
	if _, err := s.instances.LinkApplication(application.ID, instanceRow.ID, hostPort); err != nil {
		return r.fail(fmt.Errorf("failed to link instance to application: %w", err))
	}
	if err := r.addStep("Instance Created", models.StepStatusSuccess, fmt.Sprintf("id=%s ip=%s", info.InstanceID, info.PublicIP)); err != nil {
		return r.fail(err)
	}
	r.report("Instance Creation", fmt.Sprintf("Instance %s created", info.InstanceID), "success", map[string]any{"publicIp": info.PublicIP})

	// Phase: remote channel + container runtime. One connection is
	// shared by every service that follows.
	r.report("Docker Installation", "Waiting for SSH and installing Docker", "in_progress", nil)
	runner, closeRemote, err := s.connectRemote(ctx, info.PublicIP, func(step, message, status string) {
		r.report(step, message, status, nil)
	})
	if err != nil {
		var timeout *sshx.TimeoutError
		if errors.As(err, &timeout) {
			return r.fail(fmt.Errorf("SSH connection timeout: %w", err))
		}
		return r.fail(fmt.Errorf("failed to establish SSH connection: %w", err))
	}
	defer func() {
		if closeRemote != nil {
			if err := closeRemote(); err != nil {
				log.Println("Failed to close SSH connection:", err)
			}
		}
	}()

	runtime := s.newRuntime(runner)
	dockerVersion, err := runtime.InstallDocker(ctx)
	if err != nil {
		return r.fail(fmt.Errorf("failed to install Docker: %w", err))
	}
	if err := r.addStep("Docker Installed", models.StepStatusSuccess, dockerVersion); err != nil {
		return r.fail(err)
	}
	r.report("Docker Installation", "Docker installed", "success", nil)

	// Phase: reverse proxy install (optional)
	var proxy proxyProvisioner
	if settings.EnableNginx {
		r.report("Nginx Installation", "Installing nginx reverse proxy", "in_progress", nil)
		proxy = s.newProxy(runner)
		nginxVersion, err := proxy.InstallNginx(ctx)
		if err != nil {
			return r.fail(fmt.Errorf("failed to install nginx: %w", err))
		}
		if err := r.addStep("Nginx Installed", models.StepStatusSuccess, nginxVersion); err != nil {
			return r.fail(err)
		}
		r.report("Nginx Installation", "Nginx installed", "success", nil)
	} else {
		if err := r.addStep("Nginx Installed", models.StepStatusSkipped, "reverse proxy disabled"); err != nil {
			return r.fail(err)
		}
	}

	// Phase: source checkout
	source := s.newSource(runner)
	r.report("Repository Clone", "Cloning source repository", "in_progress", nil)
	repoPath, err := source.CloneRepository(ctx, r.req.RepoURL, application.Branch, settings.GitHubToken)
	if err != nil {
		return r.fail(fmt.Errorf("failed to clone repository: %w", err))
	}
	r.result.RepoPath = repoPath
	if sha := source.CommitHash(ctx, repoPath); sha != "" && sha != "unknown" {
		if err := s.deployments.SetCommit(dep.ID, sha); err != nil {
			log.Println("Failed to record commit hash:", err)
		}
	}
	if err := r.addStep("Repository Cloned", models.StepStatusSuccess, repoPath); err != nil {
		return r.fail(err)
	}
	r.report("Repository Clone", "Cloned to "+repoPath, "success", nil)

	// Phase: structural validation before any build is attempted
	r.report("Project Validation", "Verifying project structure", "in_progress", nil)
	missing, err := source.VerifyProjectFiles(ctx, repoPath, nil)
	if err != nil {
		return r.fail(fmt.Errorf("failed to verify project files: %w", err))
	}
	if len(missing) > 0 {
		return r.fail(fmt.Errorf("missing required files: %s", strings.Join(missing, ", ")))
	}
	if err := r.addStep("Project Structure Verified", models.StepStatusSuccess, ""); err != nil {
		return r.fail(err)
	}
	r.report("Project Validation", "Project structure validated", "success", nil)

	// Phase: image build
	imageName := utils.SanitizeName(instanceName)
	r.report("Image Build", "Building container image", "in_progress", nil)
	if err := runtime.BuildImage(ctx, repoPath, imageName, "latest"); err != nil {
		return r.fail(fmt.Errorf("failed to build image: %w", err))
	}
	r.result.ImageName = imageName
	if err := r.addStep("Image Built", models.StepStatusSuccess, imageName); err != nil {
		return r.fail(err)
	}
	r.report("Image Build", "Image built: "+imageName, "success", nil)

	// Phase: container start
	containerName := imageName + "-container"
	r.report("Container Start", "Starting container", "in_progress", nil)
	if _, err := runtime.RunContainer(ctx, imageName+":latest", containerName, hostPort, containerPort, nil); err != nil {
		return r.fail(fmt.Errorf("failed to start container: %w", err))
	}
	r.result.ContainerName = containerName
	r.result.Port = hostPort
	if err := s.apps.UpdateRuntime(application.ID, containerName, imageName); err != nil {
		return r.fail(fmt.Errorf("failed to update application record: %w", err))
	}
	if err := r.addStep("Container Started", models.StepStatusSuccess, containerName); err != nil {
		return r.fail(err)
	}
	r.report("Container Start", "Container running: "+containerName, "success", nil)

	// Phase: proxy routing (optional). Health goes through the proxy
	// when it fronts the app.
	healthPort := hostPort
	if settings.EnableNginx && proxy != nil {
		// Site files carry the application slug so later lifecycle
		// operations can find them.
		siteName := application.Slug
		if siteName == "" {
			siteName = appName
		}
		r.report("Nginx Configuration", "Configuring nginx reverse proxy", "in_progress", nil)
		if err := proxy.CreateSiteConfig(ctx, siteName, hostPort, "_"); err != nil {
			return r.fail(fmt.Errorf("nginx config failed: %w", err))
		}
		if err := proxy.EnableSite(ctx, siteName); err != nil {
			return r.fail(fmt.Errorf("nginx enable failed: %w", err))
		}
		if err := proxy.ReloadNginx(ctx); err != nil {
			return r.fail(fmt.Errorf("nginx reload failed: %w", err))
		}
		if err := r.addStep("Nginx Configured", models.StepStatusSuccess, ""); err != nil {
			return r.fail(err)
		}
		r.report("Nginx Configuration", "Nginx configured", "success", nil)
		healthPort = 80
	} else {
		if err := r.addStep("Nginx Configured", models.StepStatusSkipped, "reverse proxy disabled"); err != nil {
			return r.fail(err)
		}
	}

	// Phase: health verification. Exhausted retries downgrade to a
	// warning; the deployment still succeeds.
	r.report("Health Check", "Performing health checks", "in_progress", nil)
	healthy, healthMsg := s.newHealth(info.PublicIP, healthPort).WaitUntilHealthy(ctx, settings.HealthCheckRetries, settings.HealthCheckInterval)
	if healthy {
		if err := r.addStep("Health Check Passed", models.StepStatusSuccess, ""); err != nil {
			return r.fail(err)
		}
		r.report("Health Check", "Application is healthy", "success", nil)
	} else {
		if err := r.addStep("Health Check Warning", models.StepStatusWarning, healthMsg); err != nil {
			return r.fail(err)
		}
		r.report("Health Check", "Health check warning: "+healthMsg, "warning", nil)
	}

	// Finalize
	deploymentURL := utils.FormatDeploymentURL(info.PublicIP, hostPort)
	if settings.EnableNginx {
		deploymentURL = fmt.Sprintf("http://%s/", info.PublicIP)
	}

	r.result.URL = deploymentURL
	r.result.Success = true
	r.result.EndTime = time.Now()

	if err := s.deployments.MarkSucceeded(dep.ID, deploymentURL); err != nil {
		return r.fail(fmt.Errorf("failed to record deployment success: %w", err))
	}
	if err := s.apps.UpdateLastDeployed(application.ID); err != nil {
		log.Println("Failed to update application last-deployed time:", err)
	}

	r.report("Deployment Complete", "Application deployed successfully", "success", map[string]any{"url": deploymentURL})
	log.Printf("Deployment %s completed: %s", dep.ShortID, deploymentURL)
	return r.result
}
