package csvjob

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	types "github.com/yungbote/dataimport-backend/internal/domain/jobs"
	"github.com/yungbote/dataimport-backend/internal/jobs/jobstest"
	"github.com/yungbote/dataimport-backend/internal/jobs/orchestrator"
	jobrt "github.com/yungbote/dataimport-backend/internal/jobs/runtime"
	"github.com/yungbote/dataimport-backend/internal/jobs/step"
)

func TestExecutionContextSurvivesReload(t *testing.T) {
	repo := jobstest.NewJobRuns()
	job := repo.Put(&types.JobRun{ID: uuid.New(), JobType: JobImportPaperCSV, Status: types.StatusRunning})
	jc := jobrt.NewContext(context.Background(), nil, job, repo, jobrt.Options{})

	st, err := orchestrator.Load(jc.Job)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	ec, err := Load(jc, st)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ec.PredicateIDs["uses"] = "P1001"
	ec.HeaderToPredicate[3] = csvimport.ExistingPredicate("P2")
	if err := ec.Save(context.Background(), "create_papers", step.Stats{Cursor: 7, ReadCount: 7}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A fresh context built from the stored job sees the same data.
	stored := repo.Snapshot(job.ID)
	jc2 := jobrt.NewContext(context.Background(), nil, stored, repo, jobrt.Options{})
	st2, err := orchestrator.Load(jc2.Job)
	if err != nil {
		t.Fatalf("load state again: %v", err)
	}
	ec2, err := Load(jc2, st2)
	if err != nil {
		t.Fatalf("Load again: %v", err)
	}
	if ec2.PredicateIDs["uses"] != "P1001" {
		t.Fatalf("predicate ids: %+v", ec2.PredicateIDs)
	}
	if ec2.HeaderToPredicate[3].ID != "P2" {
		t.Fatalf("header mapping: %+v", ec2.HeaderToPredicate)
	}
	if got := ec2.Load("create_papers").Cursor; got != 7 {
		t.Fatalf("checkpoint cursor: want=7 got=%d", got)
	}

	ec2.ResetStep("create_papers")
	if got := ec2.Load("create_papers").Cursor; got != 0 {
		t.Fatalf("reset cursor: want=0 got=%d", got)
	}
}
