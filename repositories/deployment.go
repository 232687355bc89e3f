package repositories

import (
	"time"

	"github.com/autodock-deploy/database"
	"github.com/autodock-deploy/models"
	"gorm.io/gorm"
)

// DeploymentRepository handles database operations for deployments
type DeploymentRepository struct{}

// NewDeploymentRepository creates a new deployment repository instance
func NewDeploymentRepository() *DeploymentRepository {
	return &DeploymentRepository{}
}

// Create starts a new deployment record in in_progress state
func (r *DeploymentRepository) Create(tenantID, applicationID string) (models.Deployment, error) {
	deployment := models.Deployment{
		TenantID:      tenantID,
		ApplicationID: applicationID,
		Status:        models.DeploymentStatusInProgress,
	}
	result := database.DB.Create(&deployment)
	return deployment, result.Error
}

// FindByID retrieves a deployment by its full ID
func (r *DeploymentRepository) FindByID(id string) (models.Deployment, error) {
	var deployment models.Deployment
	result := database.DB.First(&deployment, "id = ?", id)
	return deployment, result.Error
}

// FindByRef retrieves a deployment by either its 8-char short id or its
// full ID, preloading application and ordered steps
func (r *DeploymentRepository) FindByRef(ref string) (models.Deployment, error) {
	var deployment models.Deployment
	query := database.DB.
		Preload("Application").
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_number ASC") })
	if len(ref) == 8 {
		result := query.First(&deployment, "short_id = ?", ref)
		return deployment, result.Error
	}
	result := query.First(&deployment, "id = ?", ref)
	return deployment, result.Error
}

// ListRecent retrieves deployments newest first
func (r *DeploymentRepository) ListRecent(limit int) ([]models.Deployment, error) {
	var deployments []models.Deployment
	result := database.DB.
		Preload("Application").
		Order("started_at DESC").
		Limit(limit).
		Find(&deployments)
	return deployments, result.Error
}

// ListByApplication retrieves deployments for one application, newest first
func (r *DeploymentRepository) ListByApplication(applicationID string, limit int) ([]models.Deployment, error) {
	var deployments []models.Deployment
	result := database.DB.
		Where("application_id = ?", applicationID).
		Order("started_at DESC").
		Limit(limit).
		Find(&deployments)
	return deployments, result.Error
}

// Count returns the total number of deployments
func (r *DeploymentRepository) Count() (int64, error) {
	var count int64
	result := database.DB.Model(&models.Deployment{}).Count(&count)
	return count, result.Error
}

// CountByStatus returns the number of deployments in one status
func (r *DeploymentRepository) CountByStatus(status models.DeploymentStatus) (int64, error) {
	var count int64
	result := database.DB.Model(&models.Deployment{}).Where("status = ?", status).Count(&count)
	return count, result.Error
}

// MarkSucceeded marks a deployment complete and records its URL
func (r *DeploymentRepository) MarkSucceeded(id string, deploymentURL string) error {
	return r.finish(id, models.DeploymentStatusSuccess, map[string]interface{}{
		"deployment_url": deploymentURL,
	})
}

// MarkFailed marks a deployment failed with its error message
func (r *DeploymentRepository) MarkFailed(id string, errorMessage string) error {
	return r.finish(id, models.DeploymentStatusFailed, map[string]interface{}{
		"error_message": errorMessage,
	})
}

// SetCommit records the source commit the deployment is built from
func (r *DeploymentRepository) SetCommit(id string, sha string) error {
	result := database.DB.Model(&models.Deployment{}).
		Where("id = ?", id).
		Update("commit_sha", sha)
	return result.Error
}

func (r *DeploymentRepository) finish(id string, status models.DeploymentStatus, extra map[string]interface{}) error {
	deployment, err := r.FindByID(id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	duration := int(now.Sub(deployment.StartedAt).Seconds())

	updates := map[string]interface{}{
		"status":           status,
		"completed_at":     &now,
		"duration_seconds": &duration,
	}
	for k, v := range extra {
		updates[k] = v
	}

	result := database.DB.Model(&models.Deployment{}).
		Where("id = ?", id).
		Updates(updates)
	return result.Error
}

// AddStep records a completed deployment step
func (r *DeploymentRepository) AddStep(deploymentID string, number int, name string, status models.StepStatus, message string) error {
	now := time.Now().UTC()
	step := models.DeploymentStep{
		DeploymentID: deploymentID,
		StepNumber:   number,
		StepName:     name,
		Status:       status,
		Message:      message,
		StartedAt:    &now,
		CompletedAt:  &now,
	}
	return database.DB.Create(&step).Error
}

// AddLog appends a log line to a deployment
func (r *DeploymentRepository) AddLog(deploymentID string, level models.LogLevel, message string) error {
	line := models.DeploymentLog{
		DeploymentID: deploymentID,
		Level:        level,
		Message:      message,
	}
	return database.DB.Create(&line).Error
}

// Logs retrieves log lines in insertion order, optionally filtered by level
func (r *DeploymentRepository) Logs(deploymentID string, level models.LogLevel, limit int) ([]models.DeploymentLog, error) {
	var logs []models.DeploymentLog
	query := database.DB.Where("deployment_id = ?", deploymentID).Order("id ASC")
	if level != "" {
		query = query.Where("log_level = ?", level)
	}
	result := query.Limit(limit).Find(&logs)
	return logs, result.Error
}
