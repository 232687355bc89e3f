package models

import "time"

// DeployRequest carries the parameters of one deployment run
type DeployRequest struct {
	RepoURL       string `json:"repoUrl"`
	InstanceName  string `json:"instanceName,omitempty"`
	ContainerPort int    `json:"containerPort,omitempty"`
	HostPort      int    `json:"hostPort,omitempty"`
}

// ProgressEvent is one structured progress record produced on every
// phase transition. The same record is appended as a DeploymentLog,
// forwarded to the progress sink, and kept on the in-memory result.
type ProgressEvent struct {
	Step      string         `json:"step"`
	Message   string         `json:"message"`
	Status    string         `json:"status"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// DeployResult is returned to the caller for every run, success or not
type DeployResult struct {
	DeploymentID  string          `json:"deploymentId,omitempty"` // short id
	Success       bool            `json:"success"`
	RepoURL       string          `json:"repoUrl"`
	InstanceID    string          `json:"instanceId,omitempty"`
	PublicIP      string          `json:"publicIp,omitempty"`
	RepoPath      string          `json:"repoPath,omitempty"`
	ImageName     string          `json:"imageName,omitempty"`
	ContainerName string          `json:"containerName,omitempty"`
	Port          int             `json:"port,omitempty"`
	URL           string          `json:"url,omitempty"`
	NginxEnabled  bool            `json:"nginxEnabled"`
	Error         string          `json:"error,omitempty"`
	StartTime     time.Time       `json:"startTime"`
	EndTime       time.Time       `json:"endTime"`
	Steps         []ProgressEvent `json:"steps"`
}
