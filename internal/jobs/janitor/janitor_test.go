package janitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/data/repos/repostest"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	types "github.com/yungbote/dataimport-backend/internal/domain/jobs"
	"github.com/yungbote/dataimport-backend/internal/jobs/pipeline/csvjob"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

type recorder struct {
	runs     map[string]int64
	failures map[string]int
	queueErr error
}

func (r *recorder) JanitorRun(task string, rows int64, err error) {
	if err != nil {
		r.failures[task]++
		return
	}
	r.runs[task] += rows
}

func (r *recorder) RefreshQueueDepth(context.Context) error { return r.queueErr }

func newRecorder() *recorder {
	return &recorder{runs: map[string]int64{}, failures: map[string]int{}}
}

func TestRunOnceAbandonsStaleJobsAndPurgesTheirStaging(t *testing.T) {
	mem := repostest.NewMemory()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	old := now.Add(-100 * time.Hour)
	dbc := dbctx.Context{Ctx: context.Background()}

	stale := &csvimport.CSV{ID: uuid.New(), Data: "a", State: csvimport.StateValidationFailed}
	staleJob := mem.JobRuns.Put(&types.JobRun{JobType: csvjob.JobValidatePaperCSV, Status: types.StatusFailed, CSVID: &stale.ID, UpdatedAt: old})
	stale.ValidationJobID = &staleJob.ID
	mem.CSVs.Put(stale)

	// Re-validated since: the staging belongs to a newer job.
	moved := &csvimport.CSV{ID: uuid.New(), Data: "b", State: csvimport.StateValidationDone}
	mem.JobRuns.Put(&types.JobRun{JobType: csvjob.JobValidatePaperCSV, Status: types.StatusStopped, CSVID: &moved.ID, UpdatedAt: old})
	newer := uuid.New()
	moved.ValidationJobID = &newer
	mem.CSVs.Put(moved)

	fresh := mem.JobRuns.Put(&types.JobRun{JobType: csvjob.JobImportPaperCSV, Status: types.StatusStopped, UpdatedAt: now.Add(-time.Hour)})

	_ = mem.PaperRecords.CreateBatch(dbc, []*csvimport.PaperCSVRecord{
		{ID: uuid.New(), CSVID: stale.ID, ItemNumber: 1},
		{ID: uuid.New(), CSVID: moved.ID, ItemNumber: 1},
	})
	_ = mem.RowErrors.CreateBatch(dbc, []*csvimport.RowError{
		{JobID: staleJob.ID, CSVID: stale.ID, CreatedAt: now.Add(-60 * 24 * time.Hour)},
		{JobID: staleJob.ID, CSVID: stale.ID, CreatedAt: now.Add(-time.Hour)},
	})

	rec := newRecorder()
	j := New(logger.Nop(), mem.Set(), rec, Config{StagingRetention: 72 * time.Hour, RowErrorRetention: 30 * 24 * time.Hour})
	j.now = func() time.Time { return now }

	rep, err := j.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Abandoned != 2 || rep.StagingPurged != 1 || rep.RowErrorsDeleted != 1 {
		t.Fatalf("report: want={2 1 1} got=%+v", rep)
	}
	if got := mem.JobRuns.Snapshot(staleJob.ID).Status; got != types.StatusAbandoned {
		t.Fatalf("stale job: want=abandoned got=%s", got)
	}
	if got := mem.JobRuns.Snapshot(fresh.ID).Status; got != types.StatusStopped {
		t.Fatalf("fresh job: want=stopped got=%s", got)
	}
	if n, _ := mem.PaperRecords.Count(dbc, moved.ID); n != 1 {
		t.Fatalf("staging of a re-validated csv: want=1 got=%d", n)
	}
	if rec.runs[TaskAbandon] != 2 || rec.runs[TaskRowErrors] != 1 {
		t.Fatalf("recorded rows: got=%v", rec.runs)
	}
}

func TestRunOnceKeepsGoingAfterFailedTask(t *testing.T) {
	mem := repostest.NewMemory()
	rec := newRecorder()
	rec.queueErr = errors.New("db down")
	j := New(logger.Nop(), mem.Set(), rec, Config{})

	_, err := j.RunOnce(context.Background())
	if err == nil || err.Error() != "db down" {
		t.Fatalf("error: want=db down got=%v", err)
	}
	if rec.failures[TaskQueue] != 1 {
		t.Fatalf("queue failure not recorded: %v", rec.failures)
	}
	if _, ok := rec.runs[TaskRowErrors]; !ok {
		t.Fatalf("row error purge did not run")
	}
}

func TestRunRejectsBadSchedule(t *testing.T) {
	j := New(logger.Nop(), repostest.NewMemory().Set(), nil, Config{Schedule: "not a schedule"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.Run(ctx); err == nil {
		t.Fatalf("bad schedule should fail")
	}
}
