package dto

// DashboardStats is the flat summary consumed by the dashboard status bar
type DashboardStats struct {
	TotalApplications int64 `json:"totalApplications"`
	ActiveDeployments int64 `json:"activeDeployments"`
	FailedDeployments int64 `json:"failedDeployments"`
	RunningInstances  int64 `json:"runningInstances"`
}

// DeploymentCounts breaks deployments down by terminal status
type DeploymentCounts struct {
	Total      int64 `json:"total"`
	Success    int64 `json:"success"`
	Failed     int64 `json:"failed"`
	InProgress int64 `json:"inProgress"`
}

// InstanceCounts summarizes tracked compute instances
type InstanceCounts struct {
	Total   int64 `json:"total"`
	Running int64 `json:"running"`
}

// ApplicationCounts summarizes applications
type ApplicationCounts struct {
	Total  int64 `json:"total"`
	Active int64 `json:"active"`
}

// StatsResponse is the /api/stats payload
type StatsResponse struct {
	Stats        DashboardStats    `json:"stats"`
	Deployments  DeploymentCounts  `json:"deployments"`
	Instances    InstanceCounts    `json:"instances"`
	Applications ApplicationCounts `json:"applications"`
}
