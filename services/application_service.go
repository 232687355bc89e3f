package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/autodock-deploy/config"
	"github.com/autodock-deploy/lib/sshx"
	"github.com/autodock-deploy/models"
	"github.com/autodock-deploy/repositories"
)

// Store slices the application service writes through. The gorm
// repositories satisfy them.

type applicationDirectory interface {
	FindAll(tenantID string) ([]models.Application, error)
	FindByID(id string) (models.Application, error)
	UpdateStatus(id string, status models.ApplicationStatus) error
}

type applicationTenants interface {
	GetDefault() (models.Tenant, error)
}

type applicationDeployments interface {
	ListByApplication(applicationID string, limit int) ([]models.Deployment, error)
}

type applicationPlacements interface {
	FindForApplication(applicationID string) (models.ComputeInstance, error)
}

// ApplicationService answers queries about deployed applications and
// drives their container lifecycle on the host they run on.
type ApplicationService struct {
	settings    config.Settings
	tenants     applicationTenants
	apps        applicationDirectory
	deployments applicationDeployments
	instances   applicationPlacements

	connectRemote func(ctx context.Context, host string) (RemoteRunner, func() error, error)
}

func NewApplicationService(settings config.Settings) *ApplicationService {
	return &ApplicationService{
		settings:    settings,
		tenants:     repositories.NewTenantRepository(),
		apps:        repositories.NewApplicationRepository(),
		deployments: repositories.NewDeploymentRepository(),
		instances:   repositories.NewInstanceRepository(),
		connectRemote: func(ctx context.Context, host string) (RemoteRunner, func() error, error) {
			client := sshx.NewClient(host, settings.SSHUser, settings.SSHKeyFile)
			if err := client.Connect(ctx, sshx.ConnectOptions{
				MaxWait:       time.Minute,
				RetryInterval: time.Duration(settings.SSHRetryDelay) * time.Second,
			}); err != nil {
				return nil, nil, err
			}
			return client, client.Close, nil
		},
	}
}

// List returns every application of the default tenant
func (s *ApplicationService) List() ([]models.Application, error) {
	tenant, err := s.tenants.GetDefault()
	if err != nil {
		return nil, err
	}
	return s.apps.FindAll(tenant.ID)
}

// Get returns one application with its recent deployments
func (s *ApplicationService) Get(id string) (models.Application, []models.Deployment, error) {
	application, err := s.apps.FindByID(id)
	if err != nil {
		return models.Application{}, nil, err
	}
	deployments, err := s.deployments.ListByApplication(id, 20)
	if err != nil {
		return models.Application{}, nil, err
	}
	return application, deployments, nil
}

// Stop stops the application's container and takes its proxy site
// offline. Image and clone stay on the host for a redeploy.
func (s *ApplicationService) Stop(ctx context.Context, id string) error {
	app, runner, cleanup, err := s.connectToHost(ctx, id)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := NewDockerService(runner).StopContainer(ctx, app.ContainerName); err != nil {
		return err
	}
	s.disableProxySite(ctx, runner, app)

	return s.apps.UpdateStatus(id, models.ApplicationStatusStopped)
}

// Remove force-removes the application's container and marks the
// application deleted. The instance itself is untouched.
func (s *ApplicationService) Remove(ctx context.Context, id string) error {
	app, runner, cleanup, err := s.connectToHost(ctx, id)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := NewDockerService(runner).RemoveContainer(ctx, app.ContainerName, true); err != nil {
		return err
	}
	s.disableProxySite(ctx, runner, app)

	return s.apps.UpdateStatus(id, models.ApplicationStatusDeleted)
}

func (s *ApplicationService) disableProxySite(ctx context.Context, runner RemoteRunner, app models.Application) {
	if !app.NginxEnabled || app.Slug == "" {
		return
	}
	// The container is already down; a dangling site only serves 502s
	if err := NewNginxService(runner).DisableSite(ctx, app.Slug); err != nil {
		log.Printf("Failed to disable nginx site %s: %v", app.Slug, err)
	}
}

func (s *ApplicationService) connectToHost(ctx context.Context, id string) (models.Application, RemoteRunner, func(), error) {
	app, err := s.apps.FindByID(id)
	if err != nil {
		return models.Application{}, nil, nil, err
	}
	if app.ContainerName == "" {
		return app, nil, nil, fmt.Errorf("application %s has no deployed container", app.Name)
	}

	instance, err := s.instances.FindForApplication(app.ID)
	if err != nil {
		return app, nil, nil, fmt.Errorf("no instance found for application %s: %w", app.Name, err)
	}
	if instance.PublicIP == "" {
		return app, nil, nil, fmt.Errorf("instance %s has no public address", instance.ProviderID)
	}

	runner, closeRemote, err := s.connectRemote(ctx, instance.PublicIP)
	if err != nil {
		return app, nil, nil, err
	}
	cleanup := func() {
		if err := closeRemote(); err != nil {
			log.Println("Failed to close SSH connection:", err)
		}
	}
	return app, runner, cleanup, nil
}
