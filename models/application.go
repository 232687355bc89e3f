package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApplicationStatus represents the lifecycle state of an application
type ApplicationStatus string

const (
	ApplicationStatusPending ApplicationStatus = "pending"
	ApplicationStatusActive  ApplicationStatus = "active"
	ApplicationStatusStopped ApplicationStatus = "stopped"
	ApplicationStatusFailed  ApplicationStatus = "failed"
	ApplicationStatusDeleted ApplicationStatus = "deleted"
)

// Application is a GitHub repository deployed by the platform. One
// application accumulates many deployments; the first deploy of a
// (tenant, repo URL) pair creates it, later deploys reuse it.
type Application struct {
	ID             string            `json:"id" gorm:"primaryKey;type:uuid"`
	TenantID       string            `json:"tenantId" gorm:"type:uuid;not null;uniqueIndex:uq_app_tenant_slug"`
	Name           string            `json:"name" gorm:"not null"`
	Slug           string            `json:"slug" gorm:"not null;uniqueIndex:uq_app_tenant_slug"`
	RepoURL        string            `json:"repoUrl" gorm:"column:repo_url;not null"`
	RepoOwner      string            `json:"repoOwner"`
	RepoName       string            `json:"repoName"`
	Branch         string            `json:"branch" gorm:"default:main"`
	ContainerPort  int               `json:"containerPort" gorm:"not null"`
	ContainerName  string            `json:"containerName"`
	ImageName      string            `json:"imageName"`
	Status         ApplicationStatus `json:"status" gorm:"default:pending"`
	NginxEnabled   bool              `json:"nginxEnabled" gorm:"default:true"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
	LastDeployedAt *time.Time        `json:"lastDeployedAt"`

	// Relations
	Tenant           Tenant                `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	Deployments      []Deployment          `json:"deployments,omitempty" gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE"`
	InstanceMappings []ApplicationInstance `json:"instanceMappings,omitempty" gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE"`
}

func (a *Application) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
