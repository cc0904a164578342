package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type JobEventKind string

const (
	JobEventCreated   JobEventKind = "created"
	JobEventRestarted JobEventKind = "restarted"
	JobEventProgress  JobEventKind = "progress"
	JobEventStopping  JobEventKind = "stopping"
	JobEventStopped   JobEventKind = "stopped"
	JobEventFailed    JobEventKind = "failed"
	JobEventSucceeded JobEventKind = "succeeded"
)

// JobRunEvent is an append-only ledger of job status changes.
type JobRunEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	JobID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"job_id"`
	JobType   string         `gorm:"column:job_type;not null;index" json:"job_type"`
	Kind      JobEventKind   `gorm:"column:kind;not null;index" json:"kind"`
	Status    string         `gorm:"column:status;not null" json:"status"`
	Stage     string         `gorm:"column:stage;not null" json:"stage"`
	Progress  int            `gorm:"column:progress;not null" json:"progress"`
	Message   string         `gorm:"column:message;type:text" json:"message,omitempty"`
	Data      datatypes.JSON `gorm:"type:jsonb;column:data" json:"data,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (JobRunEvent) TableName() string { return "job_run_event" }
