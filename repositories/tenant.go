package repositories

import (
	"github.com/autodock-deploy/database"
	"github.com/autodock-deploy/models"
)

// TenantRepository handles database operations for tenants
type TenantRepository struct{}

// NewTenantRepository creates a new tenant repository instance
func NewTenantRepository() *TenantRepository {
	return &TenantRepository{}
}

// GetDefault returns the default (single-tenant) workspace
func (r *TenantRepository) GetDefault() (models.Tenant, error) {
	var tenant models.Tenant
	result := database.DB.First(&tenant, "slug = ?", "default")
	return tenant, result.Error
}

// FindByID retrieves a tenant by its ID
func (r *TenantRepository) FindByID(id string) (models.Tenant, error) {
	var tenant models.Tenant
	result := database.DB.First(&tenant, "id = ?", id)
	return tenant, result.Error
}
