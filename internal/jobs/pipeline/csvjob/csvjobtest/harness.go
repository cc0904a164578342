// Package csvjobtest builds CSV job contexts over in-memory repositories.
package csvjobtest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/data/repos/repostest"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	types "github.com/yungbote/dataimport-backend/internal/domain/jobs"
	"github.com/yungbote/dataimport-backend/internal/jobs/pipeline/csvjob"
	jobrt "github.com/yungbote/dataimport-backend/internal/jobs/runtime"
)

// SignalFunc adapts a function to runtime.StopSignals.
type SignalFunc func(jobID uuid.UUID) bool

func (f SignalFunc) StopRequested(jobID uuid.UUID) bool { return f(jobID) }

// NewCSV stores a CSV queued for the given phase and returns it with the id
// of the job bound to it.
func NewCSV(mem *repostest.Memory, data string, state csvimport.State) (*csvimport.CSV, uuid.UUID) {
	jobID := uuid.New()
	csv := &csvimport.CSV{
		ID:        uuid.New(),
		Name:      "papers.csv",
		Type:      csvimport.TypePaper,
		Format:    csvimport.FormatDefault,
		State:     state,
		Data:      data,
		CreatedBy: uuid.New(),
		CreatedAt: time.Now(),
	}
	switch state {
	case csvimport.StateValidationQueued, csvimport.StateValidationRunning:
		csv.ValidationJobID = &jobID
	default:
		csv.ImportJobID = &jobID
	}
	return mem.CSVs.Put(csv), jobID
}

// Claim stores a running job for csv and returns its context.
func Claim(t *testing.T, mem *repostest.Memory, jobType string, jobID uuid.UUID, csv *csvimport.CSV, signals jobrt.StopSignals) *jobrt.Context {
	t.Helper()
	payload, err := json.Marshal(csvjob.ParamsFor(csv, csv.CreatedBy).Map())
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	job := mem.JobRuns.Snapshot(jobID)
	if job == nil {
		job = mem.JobRuns.Put(&types.JobRun{
			ID:            jobID,
			ContributorID: csv.CreatedBy,
			JobType:       jobType,
			Status:        types.StatusRunning,
			Payload:       payload,
		})
	} else {
		job.Status = types.StatusRunning
		mem.JobRuns.Put(job)
	}
	return jobrt.NewContext(context.Background(), nil, job, mem.JobRuns, jobrt.Options{
		Events:  mem.JobEvents,
		Signals: signals,
	})
}
