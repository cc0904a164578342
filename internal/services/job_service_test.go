package services

import (
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/data/repos"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	types "github.com/yungbote/dataimport-backend/internal/domain/jobs"
	"github.com/yungbote/dataimport-backend/internal/jobs/pipeline/csvjob"
	"github.com/yungbote/dataimport-backend/internal/platform/apierr"
)

func TestRunJobRejectsUnknownJobAndMissingOwner(t *testing.T) {
	e := newEnv(t)
	csv := e.csv(csvimport.StateUploaded)
	params := csvjob.ParamsFor(csv, csv.CreatedBy).Map()

	if _, err := e.jobs.RunJob(dbc(), "reticulate-splines", params); err == nil {
		t.Fatalf("unknown job should fail")
	}
	delete(params, csvjob.ParamContributorID)
	if _, err := e.jobs.RunJob(dbc(), csvjob.JobValidatePaperCSV, params); err == nil {
		t.Fatalf("missing contributor should fail")
	}
}

func TestRunJobCreatesQueuedInstance(t *testing.T) {
	e := newEnv(t)
	csv := e.csv(csvimport.StateUploaded)
	params := csvjob.ParamsFor(csv, csv.CreatedBy).Map()

	id, err := e.jobs.RunJob(dbc(), csvjob.JobValidatePaperCSV, params)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	job := e.mem.JobRuns.Snapshot(id)
	if job.Status != types.StatusQueued || job.CSVID == nil || *job.CSVID != csv.ID {
		t.Fatalf("job: want=queued/%s got=%s/%v", csv.ID, job.Status, job.CSVID)
	}
	if job.InstanceKey != csvjob.InstanceKey(csvjob.JobValidatePaperCSV, params) {
		t.Fatalf("instance key: got=%s", job.InstanceKey)
	}
	kinds := e.mem.JobEvents.Kinds(id)
	if len(kinds) != 1 || kinds[0] != types.JobEventCreated {
		t.Fatalf("events: want=[%s] got=%v", types.JobEventCreated, kinds)
	}

	// Same identity under the other job name is a different instance.
	other, err := e.jobs.RunJob(dbc(), csvjob.JobImportPaperCSV, params)
	if err != nil {
		t.Fatalf("run import: %v", err)
	}
	if other == id {
		t.Fatalf("import shares the validation instance")
	}
}

func TestRunJobExistingInstance(t *testing.T) {
	cases := []struct {
		status string
		code   string
	}{
		{types.StatusQueued, "job_already_running"},
		{types.StatusRunning, "job_already_running"},
		{types.StatusStopping, "job_already_running"},
		{types.StatusSucceeded, "job_already_complete"},
		{types.StatusAbandoned, "job_restart_failed"},
		{types.StatusStopped, ""},
		{types.StatusFailed, ""},
	}
	for _, tc := range cases {
		e := newEnv(t)
		csv := e.csv(csvimport.StateUploaded)
		job := e.job(csvjob.JobValidatePaperCSV, csv, tc.status)

		id, err := e.jobs.RunJob(dbc(), csvjob.JobValidatePaperCSV, csvjob.ParamsFor(csv, csv.CreatedBy).Map())
		if id != job.ID {
			t.Fatalf("%s: returned id: want=%s got=%s", tc.status, job.ID, id)
		}
		if tc.code != "" {
			wantCode(t, err, tc.code)
			continue
		}
		if err != nil {
			t.Fatalf("%s: restart: %v", tc.status, err)
		}
		if got := e.mem.JobRuns.Snapshot(id).Status; got != types.StatusQueued {
			t.Fatalf("%s: status after restart: want=queued got=%s", tc.status, got)
		}
		kinds := e.mem.JobEvents.Kinds(id)
		if len(kinds) != 1 || kinds[0] != types.JobEventRestarted {
			t.Fatalf("%s: events: want=[%s] got=%v", tc.status, types.JobEventRestarted, kinds)
		}
	}
}

func TestStopJob(t *testing.T) {
	e := newEnv(t)
	csv := e.csv(csvimport.StateUploaded)
	job := e.job(csvjob.JobValidatePaperCSV, csv, types.StatusRunning)

	err := e.jobs.StopJob(dbc(), job.ID, uuid.New())
	wantCode(t, err, "job_not_found")

	if err := e.jobs.StopJob(dbc(), job.ID, e.admin()); err != nil {
		t.Fatalf("admin stop: %v", err)
	}
	if got := e.mem.JobRuns.Snapshot(job.ID).Status; got != types.StatusStopping {
		t.Fatalf("status: want=%s got=%s", types.StatusStopping, got)
	}
	if len(e.stops.ids) != 1 {
		t.Fatalf("stop signals: want=1 got=%d", len(e.stops.ids))
	}

	done := e.job(csvjob.JobImportPaperCSV, csv, types.StatusSucceeded)
	err = e.jobs.StopJob(dbc(), done.ID, csv.CreatedBy)
	wantCode(t, err, "job_not_running")
}

func TestFindJobStatus(t *testing.T) {
	e := newEnv(t)
	csv := e.csv(csvimport.StateUploaded)
	job := e.job(csvjob.JobValidatePaperCSV, csv, types.StatusRunning)
	_ = e.mem.JobRuns.UpdateFields(dbc(), job.ID, map[string]interface{}{"stage": "parse", "progress": 40})

	st, err := e.jobs.FindJobStatusByID(dbc(), job.ID, csv.CreatedBy)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Stage != "parse" || st.Progress != 40 || st.JobName != csvjob.JobValidatePaperCSV {
		t.Fatalf("status: want=parse/40/%s got=%s/%d/%s", csvjob.JobValidatePaperCSV, st.Stage, st.Progress, st.JobName)
	}
	_, err = e.jobs.FindJobStatusByID(dbc(), uuid.New(), csv.CreatedBy)
	wantCode(t, err, "job_not_found")
}

func TestFindJobResult(t *testing.T) {
	e := newEnv(t)
	csv := e.csv(csvimport.StateUploaded)
	page := repos.Page{Size: 10}

	running := e.job(csvjob.JobValidatePaperCSV, csv, types.StatusRunning)
	_, err := e.jobs.FindJobResultByID(dbc(), running.ID, csv.CreatedBy, page)
	wantCode(t, err, "job_not_complete")

	stopped := e.job(csvjob.JobValidatePaperCSV, csv, types.StatusStopped)
	_, err = e.jobs.FindJobResultByID(dbc(), stopped.ID, csv.CreatedBy, page)
	wantCode(t, err, "job_result_not_found")

	done := e.job(csvjob.JobImportPaperCSV, csv, types.StatusSucceeded)
	res, err := e.jobs.FindJobResultByID(dbc(), done.ID, csv.CreatedBy, page)
	if err != nil {
		t.Fatalf("done result: %v", err)
	}
	if res.Status != JobResultDone || res.Error != nil {
		t.Fatalf("done result: want=%s without error got=%s/%v", JobResultDone, res.Status, res.Error)
	}

	failed := e.job(csvjob.JobValidatePaperCSV, csv, types.StatusFailed)
	_ = e.mem.JobRuns.UpdateFields(dbc(), failed.ID, map[string]interface{}{"error": "parse stage failed"})
	col := 3
	_ = e.mem.RowErrors.CreateBatch(dbc(), []*csvimport.RowError{
		{ID: uuid.New(), JobID: failed.ID, CSVID: csv.ID, ItemNumber: 1, LineNumber: 2, Column: &col, Code: "unknown_csv_value_type", Message: "bad type"},
		{ID: uuid.New(), JobID: failed.ID, CSVID: csv.ID, ItemNumber: 2, LineNumber: 3, Code: "inconsistent_csv_column_count", Message: "bad count"},
	})
	res, err = e.jobs.FindJobResultByID(dbc(), failed.ID, csv.CreatedBy, page)
	if err != nil {
		t.Fatalf("failed result: %v", err)
	}
	if res.Status != JobResultFailed || res.Total != 2 || len(res.RowErrors) != 2 {
		t.Fatalf("failed result: want=FAILED with 2 rows got=%s/%d/%d", res.Status, res.Total, len(res.RowErrors))
	}
	if got := apierr.CodeOf(res.Error); got != "job_execution_exception" {
		t.Fatalf("failed result error: want=job_execution_exception got=%s", got)
	}
	problems, _ := res.Error.Props["errors"].([]*apierr.Error)
	if len(problems) != 3 {
		t.Fatalf("problems: want=3 got=%d", len(problems))
	}
}
