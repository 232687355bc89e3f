package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/autodock-deploy/lib/compute"
	"github.com/autodock-deploy/models"
)

type providerFake struct {
	instances []compute.InstanceInfo
	listErr   error
}

func (f *providerFake) ListInstances(ctx context.Context) ([]compute.InstanceInfo, error) {
	return f.instances, f.listErr
}

func (f *providerFake) GetInstanceStatus(ctx context.Context, instanceID string) (compute.InstanceInfo, error) {
	for _, info := range f.instances {
		if info.InstanceID == instanceID {
			return info, nil
		}
	}
	return compute.InstanceInfo{}, errors.New("instance not found: " + instanceID)
}

func (f *providerFake) StopInstance(ctx context.Context, instanceID string) error      { return nil }
func (f *providerFake) StartInstance(ctx context.Context, instanceID string) error     { return nil }
func (f *providerFake) TerminateInstance(ctx context.Context, instanceID string) error { return nil }

type instanceStoreFake struct {
	rows     []models.ComputeInstance
	statuses map[string]models.InstanceStatus
}

func (f *instanceStoreFake) FindAll() ([]models.ComputeInstance, error) { return f.rows, nil }

func (f *instanceStoreFake) FindByProviderID(providerID string) (models.ComputeInstance, error) {
	for _, row := range f.rows {
		if row.ProviderID == providerID {
			return row, nil
		}
	}
	return models.ComputeInstance{}, gorm.ErrRecordNotFound
}

func (f *instanceStoreFake) UpdateStatus(id string, status models.InstanceStatus) error {
	if f.statuses == nil {
		f.statuses = make(map[string]models.InstanceStatus)
	}
	f.statuses[id] = status
	return nil
}

func TestSyncReconcilesTrackedStatuses(t *testing.T) {
	store := &instanceStoreFake{rows: []models.ComputeInstance{
		{ID: "db-1", ProviderID: "i-running", Status: models.InstanceStatusPending},
		{ID: "db-2", ProviderID: "i-stopped", Status: models.InstanceStatusRunning},
		{ID: "db-3", ProviderID: "i-unchanged", Status: models.InstanceStatusRunning},
		{ID: "db-4", ProviderID: "i-gone", Status: models.InstanceStatusRunning},
	}}
	manager := &providerFake{instances: []compute.InstanceInfo{
		{InstanceID: "i-running", State: "running"},
		{InstanceID: "i-stopped", State: "stopping"},
		{InstanceID: "i-unchanged", State: "running"},
	}}
	svc := &InstanceService{manager: manager, store: store}

	changes, err := svc.Sync(context.Background())

	require.NoError(t, err)
	require.Len(t, changes, 3)
	assert.Equal(t, models.InstanceStatusRunning, store.statuses["db-1"])
	assert.Equal(t, models.InstanceStatusStopped, store.statuses["db-2"])
	assert.Equal(t, models.InstanceStatusTerminated, store.statuses["db-4"])
	assert.NotContains(t, store.statuses, "db-3")

	byProvider := make(map[string]StatusChange)
	for _, change := range changes {
		byProvider[change.ProviderID] = change
	}
	gone := byProvider["i-gone"]
	assert.Equal(t, models.InstanceStatusRunning, gone.OldStatus)
	assert.Equal(t, models.InstanceStatusTerminated, gone.NewStatus)
}

func TestSyncWithNothingTrackedSkipsProvider(t *testing.T) {
	manager := &providerFake{listErr: errors.New("should not be called")}
	svc := &InstanceService{manager: manager, store: &instanceStoreFake{}}

	changes, err := svc.Sync(context.Background())

	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestSyncProviderOutageKeepsLocalState(t *testing.T) {
	store := &instanceStoreFake{rows: []models.ComputeInstance{
		{ID: "db-1", ProviderID: "i-running", Status: models.InstanceStatusRunning},
	}}
	manager := &providerFake{listErr: errors.New("RequestLimitExceeded")}
	svc := &InstanceService{manager: manager, store: store}

	_, err := svc.Sync(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot reach provider")
	assert.Empty(t, store.statuses)
}
