package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InstanceStatus represents the lifecycle state of a compute instance
type InstanceStatus string

const (
	InstanceStatusPending    InstanceStatus = "pending"
	InstanceStatusRunning    InstanceStatus = "running"
	InstanceStatusStopped    InstanceStatus = "stopped"
	InstanceStatusTerminated InstanceStatus = "terminated"
)

// ComputeInstance tracks an EC2 instance owned by the platform.
// Intentionally not scoped to a tenant: one instance can host
// applications from several tenants on distinct ports.
type ComputeInstance struct {
	ID              string         `json:"id" gorm:"primaryKey;type:uuid"`
	ProviderID      string         `json:"providerId" gorm:"column:provider_id;uniqueIndex;not null"` // AWS i-xxxx
	PublicIP        string         `json:"publicIp"`
	PrivateIP       string         `json:"privateIp"`
	InstanceType    string         `json:"instanceType" gorm:"not null"`
	Region          string         `json:"region" gorm:"not null"`
	Status          InstanceStatus `json:"status" gorm:"default:pending"`
	SecurityGroupID string         `json:"securityGroupId"`
	CreatedAt       time.Time      `json:"createdAt"`
	LastHealthCheck *time.Time     `json:"lastHealthCheck"`

	// Relations
	ApplicationMappings []ApplicationInstance `json:"applicationMappings,omitempty" gorm:"foreignKey:InstanceID;constraint:OnDelete:CASCADE"`
}

func (i *ComputeInstance) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// ApplicationInstance maps an application to the instance and host port
// it runs on. A separate table so one instance can host many apps and a
// host port can never be double-booked on the same instance.
type ApplicationInstance struct {
	ID            string     `json:"id" gorm:"primaryKey;type:uuid"`
	ApplicationID string     `json:"applicationId" gorm:"type:uuid;not null;index"`
	InstanceID    string     `json:"instanceId" gorm:"type:uuid;not null;uniqueIndex:uq_instance_port"`
	HostPort      int        `json:"hostPort" gorm:"not null;uniqueIndex:uq_instance_port"`
	Status        string     `json:"status" gorm:"default:active"` // active | migrating | removed
	CreatedAt     time.Time  `json:"createdAt"`
	RemovedAt     *time.Time `json:"removedAt"`

	// Relations
	Application Application     `json:"application,omitempty" gorm:"foreignKey:ApplicationID"`
	Instance    ComputeInstance `json:"instance,omitempty" gorm:"foreignKey:InstanceID"`
}

func (m *ApplicationInstance) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
