package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusStopping  = "stopping"
	StatusStopped   = "stopped"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
)

// IsFinished reports whether no worker will pick the job up again on its own.
func IsFinished(status string) bool {
	switch status {
	case StatusStopped, StatusSucceeded, StatusFailed, StatusAbandoned:
		return true
	}
	return false
}

// HasResult reports whether a result may be requested for status.
func HasResult(status string) bool {
	switch status {
	case StatusSucceeded, StatusFailed, StatusAbandoned:
		return true
	}
	return false
}

// JobRun is one validate or import run of a CSV. Result holds the stage
// state and execution context between attempts.
type JobRun struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ContributorID uuid.UUID      `gorm:"type:uuid;not null;index" json:"contributor_id"`
	JobType       string         `gorm:"not null" json:"job_type"`
	InstanceKey   string         `gorm:"not null" json:"instance_key"`
	CSVID         *uuid.UUID     `gorm:"type:uuid;column:csv_id;index" json:"csv_id,omitempty"`
	Status        string         `gorm:"not null;index" json:"status"`
	Stage         string         `gorm:"not null" json:"stage"`
	Progress      int            `gorm:"not null;default:0" json:"progress"`
	Message       string         `gorm:"type:text" json:"message,omitempty"`
	Attempts      int            `gorm:"not null;default:0" json:"attempts"`
	Error         string         `gorm:"type:text" json:"error,omitempty"`
	LockedAt      *time.Time     `json:"locked_at,omitempty"`
	HeartbeatAt   *time.Time     `gorm:"index" json:"heartbeat_at,omitempty"`
	LastErrorAt   *time.Time     `json:"last_error_at,omitempty"`
	Payload       datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	Result        datatypes.JSON `gorm:"type:jsonb" json:"result"`
	CreatedAt     time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
}

func (JobRun) TableName() string { return "job_run" }
