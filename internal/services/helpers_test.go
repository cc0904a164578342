package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/data/repos/repostest"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	types "github.com/yungbote/dataimport-backend/internal/domain/jobs"
	"github.com/yungbote/dataimport-backend/internal/jobs/pipeline/csvjob"
	"github.com/yungbote/dataimport-backend/internal/jobs/runtime"
	"github.com/yungbote/dataimport-backend/internal/platform/apierr"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

func dbc() dbctx.Context { return dbctx.Context{Ctx: context.Background()} }

type stubHandler string

func (h stubHandler) Type() string              { return string(h) }
func (stubHandler) Run(*runtime.Context) error { return nil }

type recordedStops struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (r *recordedStops) PublishStop(_ dbctx.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

type env struct {
	mem   *repostest.Memory
	jobs  JobService
	csvs  CSVService
	stops *recordedStops
	now   time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mem := repostest.NewMemory()
	reg := runtime.NewRegistry()
	for _, name := range []string{csvjob.JobValidatePaperCSV, csvjob.JobImportPaperCSV} {
		if err := reg.Register(stubHandler(name)); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	e := &env{mem: mem, stops: &recordedStops{}, now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	e.jobs = NewJobService(logger.Nop(), mem.JobRuns, mem.JobEvents, mem.RowErrors, mem.Results, mem.Contributors, reg, e.stops)
	e.csvs = NewCSVService(nil, logger.Nop(), mem.Set(), e.jobs, func() time.Time { return e.now })
	return e
}

func (e *env) csv(state csvimport.State) *csvimport.CSV {
	return e.mem.CSVs.Put(&csvimport.CSV{
		ID:        uuid.New(),
		Name:      "papers.csv",
		Type:      csvimport.TypePaper,
		Format:    csvimport.FormatDefault,
		State:     state,
		Data:      "paper:title\n" + uuid.NewString() + "\n",
		CreatedBy: uuid.New(),
		CreatedAt: e.now,
	})
}

// job stores a job for csv as if jobName had been submitted by its owner.
func (e *env) job(jobName string, csv *csvimport.CSV, status string) *types.JobRun {
	return e.mem.JobRuns.Put(&types.JobRun{
		ID:            uuid.New(),
		ContributorID: csv.CreatedBy,
		CSVID:         &csv.ID,
		JobType:       jobName,
		InstanceKey:   csvjob.InstanceKey(jobName, csvjob.ParamsFor(csv, csv.CreatedBy).Map()),
		Status:        status,
	})
}

func (e *env) admin() uuid.UUID {
	c := &csvimport.Contributor{ID: uuid.New(), DisplayName: "admin", IsAdmin: true}
	_ = e.mem.Contributors.Upsert(dbc(), c)
	return c.ID
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if got := apierr.CodeOf(err); got != code {
		t.Fatalf("error code: want=%s got=%s (%v)", code, got, err)
	}
}
