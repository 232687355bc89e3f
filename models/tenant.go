package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tenant represents an organization / workspace. All applications and
// deployments are scoped to a tenant. Single-tenant installs use one
// default tenant created at startup.
type Tenant struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name" gorm:"not null"`
	Slug      string    `json:"slug" gorm:"uniqueIndex;not null"`
	PlanTier  string    `json:"planTier" gorm:"default:free"`
	IsActive  bool      `json:"isActive" gorm:"default:true"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Relations
	Applications []Application `json:"applications,omitempty" gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
	Deployments  []Deployment  `json:"deployments,omitempty" gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
