package dto

import (
	"time"

	"github.com/autodock-deploy/models"
)

// DeployRequest is the body of POST /api/deployments
type DeployRequest struct {
	RepoURL       string `json:"repoUrl" binding:"required"`
	InstanceName  string `json:"instanceName"`
	ContainerPort int    `json:"containerPort"`
	HostPort      int    `json:"hostPort"`
}

// DeployAccepted is returned immediately; the deployment itself runs in
// the background
type DeployAccepted struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RepoURL string `json:"repoUrl"`
}

// StepView is one step row in a status response
type StepView struct {
	StepNumber int    `json:"stepNumber"`
	StepName   string `json:"stepName"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

// DeploymentStatusResponse is the full view of one deployment
type DeploymentStatusResponse struct {
	DeploymentID    string     `json:"deploymentId"`
	Status          string     `json:"status"`
	RepoURL         string     `json:"repoUrl,omitempty"`
	URL             string     `json:"url,omitempty"`
	Error           string     `json:"error,omitempty"`
	CommitSHA       string     `json:"commitSha,omitempty"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	DurationSeconds *int       `json:"durationSeconds,omitempty"`
	Steps           []StepView `json:"steps"`
}

// DeploymentSummary is one row in a deployment listing
type DeploymentSummary struct {
	DeploymentID    string    `json:"deploymentId"`
	Status          string    `json:"status"`
	RepoURL         string    `json:"repoUrl,omitempty"`
	URL             string    `json:"url,omitempty"`
	StartTime       time.Time `json:"startTime"`
	DurationSeconds *int      `json:"durationSeconds,omitempty"`
}

// LogView is one deployment log line
type LogView struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDeploymentStatusResponse maps a deployment row with preloaded
// associations into the API shape
func NewDeploymentStatusResponse(dep models.Deployment) DeploymentStatusResponse {
	resp := DeploymentStatusResponse{
		DeploymentID:    dep.ShortID,
		Status:          string(dep.Status),
		URL:             dep.DeploymentURL,
		Error:           dep.ErrorMessage,
		CommitSHA:       dep.CommitSHA,
		StartTime:       dep.StartedAt,
		EndTime:         dep.CompletedAt,
		DurationSeconds: dep.DurationSecs,
		Steps:           make([]StepView, 0, len(dep.Steps)),
	}
	if dep.Application.ID != "" {
		resp.RepoURL = dep.Application.RepoURL
	}
	for _, s := range dep.Steps {
		resp.Steps = append(resp.Steps, StepView{
			StepNumber: s.StepNumber,
			StepName:   s.StepName,
			Status:     string(s.Status),
			Message:    s.Message,
		})
	}
	return resp
}

// NewDeploymentSummary maps a deployment row into a listing row
func NewDeploymentSummary(dep models.Deployment) DeploymentSummary {
	summary := DeploymentSummary{
		DeploymentID:    dep.ShortID,
		Status:          string(dep.Status),
		URL:             dep.DeploymentURL,
		StartTime:       dep.StartedAt,
		DurationSeconds: dep.DurationSecs,
	}
	if dep.Application.ID != "" {
		summary.RepoURL = dep.Application.RepoURL
	}
	return summary
}
