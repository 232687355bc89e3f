package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeploymentStatus represents the overall state of a deployment run
type DeploymentStatus string

const (
	DeploymentStatusPending    DeploymentStatus = "pending"
	DeploymentStatusInProgress DeploymentStatus = "in_progress"
	DeploymentStatusSuccess    DeploymentStatus = "success"
	DeploymentStatusFailed     DeploymentStatus = "failed"
	// Reserved for external cancellation; the engine never produces it today.
	DeploymentStatusCancelled DeploymentStatus = "cancelled"
)

// StepStatus represents the state of one deployment step
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusInProgress StepStatus = "in_progress"
	StepStatusSuccess    StepStatus = "success"
	StepStatusFailed     StepStatus = "failed"
	StepStatusWarning    StepStatus = "warning"
	StepStatusSkipped    StepStatus = "skipped"
)

// LogLevel classifies deployment log lines
type LogLevel string

const (
	LogLevelDebug   LogLevel = "DEBUG"
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARNING"
	LogLevelError   LogLevel = "ERROR"
)

// Deployment records one end-to-end attempt to take a repository to a
// running, reachable state. CompletedAt and DurationSeconds are set if
// and only if the status is success or failed.
type Deployment struct {
	ID            string           `json:"id" gorm:"primaryKey;type:uuid"`
	TenantID      string           `json:"tenantId" gorm:"type:uuid;not null;index"`
	ApplicationID string           `json:"applicationId" gorm:"type:uuid;not null;index"`
	ShortID       string           `json:"shortId" gorm:"column:short_id;size:8;uniqueIndex;not null"`
	CommitSHA     string           `json:"commitSha" gorm:"column:commit_sha;size:40"`
	Status        DeploymentStatus `json:"status" gorm:"default:pending"`
	ErrorMessage  string           `json:"errorMessage"`
	DeploymentURL string           `json:"deploymentUrl"`
	StartedAt     time.Time        `json:"startedAt"`
	CompletedAt   *time.Time       `json:"completedAt"`
	DurationSecs  *int             `json:"durationSeconds" gorm:"column:duration_seconds"`

	// Relations
	Tenant      Tenant           `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
	Application Application      `json:"application,omitempty" gorm:"foreignKey:ApplicationID"`
	Steps       []DeploymentStep `json:"steps,omitempty" gorm:"foreignKey:DeploymentID;constraint:OnDelete:CASCADE"`
	Logs        []DeploymentLog  `json:"logs,omitempty" gorm:"foreignKey:DeploymentID;constraint:OnDelete:CASCADE"`
}

func (d *Deployment) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.ShortID == "" {
		d.ShortID = uuid.NewString()[:8]
	}
	if d.StartedAt.IsZero() {
		d.StartedAt = time.Now().UTC()
	}
	return nil
}

// DeploymentStep is one numbered phase of a deployment. Step numbers are
// unique per deployment and assigned monotonically in execution order.
type DeploymentStep struct {
	ID           string     `json:"id" gorm:"primaryKey;type:uuid"`
	DeploymentID string     `json:"deploymentId" gorm:"type:uuid;not null;uniqueIndex:uq_step_number"`
	StepNumber   int        `json:"stepNumber" gorm:"not null;uniqueIndex:uq_step_number"`
	StepName     string     `json:"stepName" gorm:"not null"`
	Status       StepStatus `json:"status" gorm:"default:pending"`
	Message      string     `json:"message"`
	StartedAt    *time.Time `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt"`

	// Relations
	Deployment Deployment `json:"deployment,omitempty" gorm:"foreignKey:DeploymentID"`
}

func (s *DeploymentStep) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// DeploymentLog is one append-only log line tied to a deployment.
// The autoincrement id doubles as the insertion order.
type DeploymentLog struct {
	ID           uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	DeploymentID string    `json:"deploymentId" gorm:"type:uuid;not null;index"`
	Level        LogLevel  `json:"level" gorm:"column:log_level;default:INFO"`
	Message      string    `json:"message" gorm:"not null"`
	Timestamp    time.Time `json:"timestamp" gorm:"autoCreateTime"`

	// Relations
	Deployment Deployment `json:"deployment,omitempty" gorm:"foreignKey:DeploymentID"`
}
