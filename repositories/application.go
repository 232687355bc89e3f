package repositories

import (
	"regexp"
	"strings"
	"time"

	"github.com/autodock-deploy/database"
	"github.com/autodock-deploy/models"
	"github.com/google/uuid"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// ApplicationRepository handles database operations for applications
type ApplicationRepository struct{}

// NewApplicationRepository creates a new application repository instance
func NewApplicationRepository() *ApplicationRepository {
	return &ApplicationRepository{}
}

// makeSlug converts a name to a URL-safe slug: "My App!" -> "my-app"
func makeSlug(name string) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		return "app"
	}
	return slug
}

// FindAll retrieves all applications for a tenant, newest first
func (r *ApplicationRepository) FindAll(tenantID string) ([]models.Application, error) {
	var apps []models.Application
	result := database.DB.Where("tenant_id = ?", tenantID).
		Order("created_at DESC").Find(&apps)
	return apps, result.Error
}

// FindByID retrieves an application by its ID
func (r *ApplicationRepository) FindByID(id string) (models.Application, error) {
	var app models.Application
	result := database.DB.First(&app, "id = ?", id)
	return app, result.Error
}

// FindByRepoURL retrieves an application by tenant and repository URL
func (r *ApplicationRepository) FindByRepoURL(tenantID, repoURL string) (models.Application, error) {
	var app models.Application
	result := database.DB.First(&app, "tenant_id = ? AND repo_url = ?", tenantID, repoURL)
	return app, result.Error
}

// GetOrCreate returns the existing application for this tenant and repo
// URL, or creates a new one. Repeated deploys of the same repository
// reuse the same application record.
func (r *ApplicationRepository) GetOrCreate(tenantID, name, repoURL string, containerPort int, repoOwner, repoName, branch string) (models.Application, error) {
	existing, err := r.FindByRepoURL(tenantID, repoURL)
	if err == nil {
		return existing, nil
	}

	slug := makeSlug(name)

	// Append a short suffix on slug collision
	var count int64
	database.DB.Model(&models.Application{}).
		Where("tenant_id = ? AND slug = ?", tenantID, slug).Count(&count)
	if count > 0 {
		slug = slug + "-" + uuid.NewString()[:4]
	}

	app := models.Application{
		TenantID:      tenantID,
		Name:          name,
		Slug:          slug,
		RepoURL:       repoURL,
		RepoOwner:     repoOwner,
		RepoName:      repoName,
		Branch:        branch,
		ContainerPort: containerPort,
		Status:        models.ApplicationStatusPending,
	}
	result := database.DB.Create(&app)
	return app, result.Error
}

// Count returns the total number of applications
func (r *ApplicationRepository) Count() (int64, error) {
	var count int64
	result := database.DB.Model(&models.Application{}).Count(&count)
	return count, result.Error
}

// CountByStatus returns the number of applications in one status
func (r *ApplicationRepository) CountByStatus(status models.ApplicationStatus) (int64, error) {
	var count int64
	result := database.DB.Model(&models.Application{}).Where("status = ?", status).Count(&count)
	return count, result.Error
}

// UpdateStatus updates the status of an application
func (r *ApplicationRepository) UpdateStatus(id string, status models.ApplicationStatus) error {
	result := database.DB.Model(&models.Application{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	return result.Error
}

// UpdateRuntime records the container and image an application runs as
// and marks it active
func (r *ApplicationRepository) UpdateRuntime(id, containerName, imageName string) error {
	result := database.DB.Model(&models.Application{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"container_name": containerName,
			"image_name":     imageName,
			"status":         models.ApplicationStatusActive,
			"updated_at":     time.Now().UTC(),
		})
	return result.Error
}

// UpdateLastDeployed stamps the last successful deployment time
func (r *ApplicationRepository) UpdateLastDeployed(id string) error {
	now := time.Now().UTC()
	result := database.DB.Model(&models.Application{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_deployed_at": &now,
			"updated_at":       now,
		})
	return result.Error
}
