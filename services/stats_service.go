package services

import (
	"github.com/autodock-deploy/dto"
	"github.com/autodock-deploy/models"
	"github.com/autodock-deploy/repositories"
)

type deploymentCounter interface {
	Count() (int64, error)
	CountByStatus(status models.DeploymentStatus) (int64, error)
}

type applicationCounter interface {
	Count() (int64, error)
	CountByStatus(status models.ApplicationStatus) (int64, error)
}

type instanceCounter interface {
	Count() (int64, error)
	CountByStatus(status models.InstanceStatus) (int64, error)
}

// StatsService aggregates dashboard summary counts
type StatsService struct {
	deployments deploymentCounter
	apps        applicationCounter
	instances   instanceCounter
}

func NewStatsService() *StatsService {
	return &StatsService{
		deployments: repositories.NewDeploymentRepository(),
		apps:        repositories.NewApplicationRepository(),
		instances:   repositories.NewInstanceRepository(),
	}
}

// Summary returns system-wide counts for the dashboard
func (s *StatsService) Summary() (dto.StatsResponse, error) {
	var resp dto.StatsResponse
	var err error

	if resp.Deployments.Total, err = s.deployments.Count(); err != nil {
		return resp, err
	}
	if resp.Deployments.Success, err = s.deployments.CountByStatus(models.DeploymentStatusSuccess); err != nil {
		return resp, err
	}
	if resp.Deployments.Failed, err = s.deployments.CountByStatus(models.DeploymentStatusFailed); err != nil {
		return resp, err
	}
	if resp.Deployments.InProgress, err = s.deployments.CountByStatus(models.DeploymentStatusInProgress); err != nil {
		return resp, err
	}

	if resp.Instances.Total, err = s.instances.Count(); err != nil {
		return resp, err
	}
	if resp.Instances.Running, err = s.instances.CountByStatus(models.InstanceStatusRunning); err != nil {
		return resp, err
	}

	if resp.Applications.Total, err = s.apps.Count(); err != nil {
		return resp, err
	}
	if resp.Applications.Active, err = s.apps.CountByStatus(models.ApplicationStatusActive); err != nil {
		return resp, err
	}

	resp.Stats = dto.DashboardStats{
		TotalApplications: resp.Applications.Total,
		ActiveDeployments: resp.Deployments.InProgress,
		FailedDeployments: resp.Deployments.Failed,
		RunningInstances:  resp.Instances.Running,
	}
	return resp, nil
}
