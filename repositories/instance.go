package repositories

import (
	"time"

	"github.com/autodock-deploy/database"
	"github.com/autodock-deploy/models"
)

// InstanceRepository handles database operations for compute instances
type InstanceRepository struct{}

// NewInstanceRepository creates a new instance repository instance
func NewInstanceRepository() *InstanceRepository {
	return &InstanceRepository{}
}

// Record persists a newly-created compute instance
func (r *InstanceRepository) Record(providerID, publicIP, privateIP, instanceType, region, securityGroupID string) (models.ComputeInstance, error) {
	instance := models.ComputeInstance{
		ProviderID:      providerID,
		PublicIP:        publicIP,
		PrivateIP:       privateIP,
		InstanceType:    instanceType,
		Region:          region,
		SecurityGroupID: securityGroupID,
		Status:          models.InstanceStatusRunning,
	}
	result := database.DB.Create(&instance)
	return instance, result.Error
}

// FindAll retrieves all tracked instances, newest first
func (r *InstanceRepository) FindAll() ([]models.ComputeInstance, error) {
	var instances []models.ComputeInstance
	result := database.DB.Order("created_at DESC").Find(&instances)
	return instances, result.Error
}

// FindByProviderID retrieves an instance by its provider-assigned ID
func (r *InstanceRepository) FindByProviderID(providerID string) (models.ComputeInstance, error) {
	var instance models.ComputeInstance
	result := database.DB.First(&instance, "provider_id = ?", providerID)
	return instance, result.Error
}

// FindForApplication retrieves the instance an application was most
// recently placed on
func (r *InstanceRepository) FindForApplication(applicationID string) (models.ComputeInstance, error) {
	var instance models.ComputeInstance
	result := database.DB.
		Joins("JOIN application_instances ON application_instances.instance_id = compute_instances.id").
		Where("application_instances.application_id = ?", applicationID).
		Order("application_instances.created_at DESC").
		First(&instance)
	return instance, result.Error
}

// Count returns the number of tracked instances
func (r *InstanceRepository) Count() (int64, error) {
	var count int64
	result := database.DB.Model(&models.ComputeInstance{}).Count(&count)
	return count, result.Error
}

// CountByStatus returns the number of instances in one status
func (r *InstanceRepository) CountByStatus(status models.InstanceStatus) (int64, error) {
	var count int64
	result := database.DB.Model(&models.ComputeInstance{}).Where("status = ?", status).Count(&count)
	return count, result.Error
}

// UpdateStatus updates the tracked status of an instance
func (r *InstanceRepository) UpdateStatus(id string, status models.InstanceStatus) error {
	now := time.Now().UTC()
	result := database.DB.Model(&models.ComputeInstance{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            status,
			"last_health_check": &now,
		})
	return result.Error
}

// LinkApplication maps an application onto an instance and host port.
// The unique index on (instance_id, host_port) rejects double-booking.
func (r *InstanceRepository) LinkApplication(applicationID, instanceID string, hostPort int) (models.ApplicationInstance, error) {
	mapping := models.ApplicationInstance{
		ApplicationID: applicationID,
		InstanceID:    instanceID,
		HostPort:      hostPort,
		Status:        "active",
	}
	result := database.DB.Create(&mapping)
	return mapping, result.Error
}
