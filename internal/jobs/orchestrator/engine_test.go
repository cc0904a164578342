package orchestrator

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/dataimport-backend/internal/domain/jobs"
	"github.com/yungbote/dataimport-backend/internal/jobs/jobstest"
	jobrt "github.com/yungbote/dataimport-backend/internal/jobs/runtime"
	"github.com/yungbote/dataimport-backend/internal/jobs/step"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
)

type seen struct {
	Stages []string `json:"stages"`
}

func runningJob(repo *jobstest.JobRuns, status string) *jobrt.Context {
	job := repo.Put(&types.JobRun{ID: uuid.New(), JobType: "validate-paper-csv", Status: status})
	return jobrt.NewContext(context.Background(), nil, job, repo, jobrt.Options{})
}

// tracking appends its name to both ran and the persisted execution context.
func tracking(name string, start, end int, ran *[]string) Stage {
	return Stage{
		Name:     name,
		StartPct: start,
		EndPct:   end,
		Run: func(_ *jobrt.Context, st *State) (map[string]any, error) {
			*ran = append(*ran, name)
			var s seen
			if err := st.Decode(&s); err != nil {
				return nil, err
			}
			s.Stages = append(s.Stages, name)
			return map[string]any{"rows": len(s.Stages)}, st.Encode(s)
		},
	}
}

func TestEngineRunsStagesInOrder(t *testing.T) {
	repo := jobstest.NewJobRuns()
	jc := runningJob(repo, types.StatusRunning)
	var ran []string
	stages := []Stage{
		tracking("parse_header", 0, 5, &ran),
		tracking("parse_typed_records", 5, 100, &ran),
	}
	_ = NewEngine().Run(jc, stages, map[string]any{"csv_id": "c1"})

	if jc.Job.Status != types.StatusSucceeded {
		t.Fatalf("status: want=%s got=%s", types.StatusSucceeded, jc.Job.Status)
	}
	st, err := Load(repo.Snapshot(jc.Job.ID))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	var s seen
	_ = st.Decode(&s)
	if want := []string{"parse_header", "parse_typed_records"}; !slices.Equal(s.Stages, want) {
		t.Fatalf("context: want=%v got=%v", want, s.Stages)
	}
	if got := st.Stages["parse_typed_records"]; got.Status != StageSucceeded || got.Outputs["rows"] == nil {
		t.Fatalf("stage state: %+v", got)
	}
	if st.LastProgress != 100 {
		t.Fatalf("progress: want=100 got=%d", st.LastProgress)
	}
}

func TestEngineRestartResumesAtFailedStage(t *testing.T) {
	repo := jobstest.NewJobRuns()
	jc := runningJob(repo, types.StatusRunning)
	var ran []string
	graphDown := true
	stages := []Stage{
		tracking("create_predicates", 0, 50, &ran),
		{
			Name:   "create_papers",
			EndPct: 100,
			Run: func(*jobrt.Context, *State) (map[string]any, error) {
				ran = append(ran, "create_papers")
				if graphDown {
					return nil, errors.New("neo4j unavailable")
				}
				return nil, nil
			},
		},
	}
	_ = NewEngine().Run(jc, stages, nil)
	if jc.Job.Status != types.StatusFailed || jc.Job.Error != "neo4j unavailable" {
		t.Fatalf("first run: status=%s error=%q", jc.Job.Status, jc.Job.Error)
	}

	if ok, _ := repo.Restart(dbctx.Context{Ctx: context.Background()}, jc.Job.ID); !ok {
		t.Fatalf("restart refused")
	}
	again := repo.Snapshot(jc.Job.ID)
	again.Status = types.StatusRunning
	repo.Put(again)
	graphDown = false
	jc2 := jobrt.NewContext(context.Background(), nil, again, repo, jobrt.Options{})
	_ = NewEngine().Run(jc2, stages, nil)

	if jc2.Job.Status != types.StatusSucceeded {
		t.Fatalf("second run: status=%s", jc2.Job.Status)
	}
	if want := []string{"create_predicates", "create_papers", "create_papers"}; !slices.Equal(ran, want) {
		t.Fatalf("ran: want=%v got=%v", want, ran)
	}
	st, _ := Load(jc2.Job)
	if got := st.Stages["create_papers"].Attempts; got != 2 {
		t.Fatalf("attempts: want=2 got=%d", got)
	}
}

func TestEngineStepStopMarksStageStopped(t *testing.T) {
	repo := jobstest.NewJobRuns()
	jc := runningJob(repo, types.StatusRunning)
	_ = NewEngine().Run(jc, []Stage{{
		Name: "parse_papers",
		Run:  func(*jobrt.Context, *State) (map[string]any, error) { return nil, step.ErrStopped },
	}}, nil)

	if jc.Job.Status != types.StatusStopped {
		t.Fatalf("status: want=%s got=%s", types.StatusStopped, jc.Job.Status)
	}
	st, _ := Load(jc.Job)
	if got := st.Stages["parse_papers"].Status; got != StageStopped {
		t.Fatalf("stage: want=%s got=%s", StageStopped, got)
	}
}

func TestEngineHonoursStopBeforeFirstStage(t *testing.T) {
	repo := jobstest.NewJobRuns()
	jc := runningJob(repo, types.StatusStopping)
	var ran []string
	_ = NewEngine().Run(jc, []Stage{tracking("parse_header", 0, 100, &ran)}, nil)
	if len(ran) != 0 || jc.Job.Status != types.StatusStopped {
		t.Fatalf("ran=%v status=%s", ran, jc.Job.Status)
	}
}

func TestEngineTurnsPanicIntoFailure(t *testing.T) {
	repo := jobstest.NewJobRuns()
	jc := runningJob(repo, types.StatusRunning)
	_ = NewEngine().Run(jc, []Stage{{
		Name: "parse_header",
		Run:  func(*jobrt.Context, *State) (map[string]any, error) { panic("nil header") },
	}}, nil)
	if jc.Job.Status != types.StatusFailed || jc.Job.Error != "stage parse_header panicked: nil header" {
		t.Fatalf("status=%s error=%q", jc.Job.Status, jc.Job.Error)
	}
}

func TestValidateStages(t *testing.T) {
	noop := func(*jobrt.Context, *State) (map[string]any, error) { return nil, nil }
	for name, stages := range map[string][]Stage{
		"unnamed":        {{Run: noop}},
		"duplicate":      {{Name: "a", Run: noop}, {Name: "a", Run: noop}},
		"no run":         {{Name: "a"}},
		"inverted range": {{Name: "a", StartPct: 60, EndPct: 10, Run: noop}},
		"regressing":     {{Name: "a", EndPct: 80, Run: noop}, {Name: "b", EndPct: 40, Run: noop}},
	} {
		if err := validateStages(stages); err == nil {
			t.Fatalf("%s: want error got=nil", name)
		}
	}
}
