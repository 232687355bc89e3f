package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/autodock-deploy/config"
	"github.com/autodock-deploy/lib/compute"
	"github.com/autodock-deploy/lib/sshx"
	"github.com/autodock-deploy/models"
	"github.com/autodock-deploy/repositories"
)

// instanceManager is the provider surface InstanceService drives
type instanceManager interface {
	ListInstances(ctx context.Context) ([]compute.InstanceInfo, error)
	GetInstanceStatus(ctx context.Context, instanceID string) (compute.InstanceInfo, error)
	StopInstance(ctx context.Context, instanceID string) error
	StartInstance(ctx context.Context, instanceID string) error
	TerminateInstance(ctx context.Context, instanceID string) error
}

// instanceStore is the slice of the instance repository the service
// writes through
type instanceStore interface {
	FindAll() ([]models.ComputeInstance, error)
	FindByProviderID(providerID string) (models.ComputeInstance, error)
	UpdateStatus(id string, status models.InstanceStatus) error
}

// InstanceService manages compute instances outside the deployment
// workflow: listing, lifecycle operations, and status reconciliation.
type InstanceService struct {
	settings config.Settings
	manager  instanceManager
	store    instanceStore
}

func NewInstanceService(settings config.Settings, manager instanceManager) *InstanceService {
	return &InstanceService{
		settings: settings,
		manager:  manager,
		store:    repositories.NewInstanceRepository(),
	}
}

// List returns provider-side state for all managed instances
func (s *InstanceService) List(ctx context.Context) ([]compute.InstanceInfo, error) {
	return s.manager.ListInstances(ctx)
}

// Get returns one instance's provider-side state
func (s *InstanceService) Get(ctx context.Context, providerID string) (compute.InstanceInfo, error) {
	return s.manager.GetInstanceStatus(ctx, providerID)
}

// Stop stops an instance and records the transition
func (s *InstanceService) Stop(ctx context.Context, providerID string) error {
	if err := s.manager.StopInstance(ctx, providerID); err != nil {
		return err
	}
	s.syncStatus(providerID, models.InstanceStatusStopped)
	return nil
}

// Start starts a stopped instance and records the transition
func (s *InstanceService) Start(ctx context.Context, providerID string) error {
	if err := s.manager.StartInstance(ctx, providerID); err != nil {
		return err
	}
	s.syncStatus(providerID, models.InstanceStatusRunning)
	return nil
}

// Terminate terminates an instance and records the transition
func (s *InstanceService) Terminate(ctx context.Context, providerID string) error {
	if err := s.manager.TerminateInstance(ctx, providerID); err != nil {
		return err
	}
	s.syncStatus(providerID, models.InstanceStatusTerminated)
	return nil
}

// StatusChange records one reconciliation performed by Sync
type StatusChange struct {
	ProviderID string                `json:"instanceId"`
	OldStatus  models.InstanceStatus `json:"oldStatus"`
	NewStatus  models.InstanceStatus `json:"newStatus"`
}

// Sync reconciles tracked instance statuses with live provider state.
// Instances the provider no longer reports are marked terminated.
func (s *InstanceService) Sync(ctx context.Context) ([]StatusChange, error) {
	tracked, err := s.store.FindAll()
	if err != nil {
		return nil, err
	}
	if len(tracked) == 0 {
		return nil, nil
	}

	live, err := s.manager.ListInstances(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot reach provider: %w", err)
	}
	liveStates := make(map[string]string, len(live))
	for _, info := range live {
		liveStates[info.InstanceID] = info.State
	}

	var changes []StatusChange
	for _, inst := range tracked {
		newStatus := models.InstanceStatusTerminated
		if state, ok := liveStates[inst.ProviderID]; ok {
			newStatus = mapProviderState(state)
		}
		if inst.Status == newStatus {
			continue
		}
		if err := s.store.UpdateStatus(inst.ID, newStatus); err != nil {
			return changes, err
		}
		log.Printf("sync: %s %s -> %s", inst.ProviderID, inst.Status, newStatus)
		changes = append(changes, StatusChange{ProviderID: inst.ProviderID, OldStatus: inst.Status, NewStatus: newStatus})
	}
	return changes, nil
}

func mapProviderState(state string) models.InstanceStatus {
	switch state {
	case "running":
		return models.InstanceStatusRunning
	case "stopped", "stopping":
		return models.InstanceStatusStopped
	case "pending":
		return models.InstanceStatusPending
	case "shutting-down", "terminated":
		return models.InstanceStatusTerminated
	default:
		return models.InstanceStatus(state)
	}
}

func (s *InstanceService) syncStatus(providerID string, status models.InstanceStatus) {
	row, err := s.store.FindByProviderID(providerID)
	if err != nil {
		log.Printf("Instance %s not tracked locally: %v", providerID, err)
		return
	}
	if err := s.store.UpdateStatus(row.ID, status); err != nil {
		log.Printf("Failed to update instance %s status: %v", providerID, err)
	}
}

// ContainerLogs connects to the instance and fetches the last tail
// lines from the named container
func (s *InstanceService) ContainerLogs(ctx context.Context, providerID, containerName string, tail int) (string, error) {
	info, err := s.manager.GetInstanceStatus(ctx, providerID)
	if err != nil {
		return "", err
	}
	if info.PublicIP == "" {
		return "", fmt.Errorf("instance %s has no public address", providerID)
	}

	client := sshx.NewClient(info.PublicIP, s.settings.SSHUser, s.settings.SSHKeyFile)
	if err := client.Connect(ctx, sshx.ConnectOptions{
		MaxWait:       time.Minute,
		RetryInterval: time.Duration(s.settings.SSHRetryDelay) * time.Second,
	}); err != nil {
		return "", err
	}
	defer client.Close()

	return NewDockerService(client).GetContainerLogs(ctx, containerName, tail)
}

// ContainerStatus connects to the instance and inspects the container
func (s *InstanceService) ContainerStatus(ctx context.Context, providerID, containerName string) (ContainerStatus, error) {
	info, err := s.manager.GetInstanceStatus(ctx, providerID)
	if err != nil {
		return ContainerStatus{}, err
	}
	if info.PublicIP == "" {
		return ContainerStatus{}, fmt.Errorf("instance %s has no public address", providerID)
	}

	client := sshx.NewClient(info.PublicIP, s.settings.SSHUser, s.settings.SSHKeyFile)
	if err := client.Connect(ctx, sshx.ConnectOptions{
		MaxWait:       time.Minute,
		RetryInterval: time.Duration(s.settings.SSHRetryDelay) * time.Second,
	}); err != nil {
		return ContainerStatus{}, err
	}
	defer client.Close()

	return NewDockerService(client).GetContainerStatus(ctx, containerName), nil
}
