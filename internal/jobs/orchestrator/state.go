package orchestrator

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	types "github.com/yungbote/dataimport-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/dataimport-backend/internal/jobs/runtime"
)

const stateVersion = 1

type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageStopped   StageStatus = "stopped"
)

// StageState is what status and result calls report per stage.
type StageState struct {
	Name       string         `json:"name"`
	Status     StageStatus    `json:"status"`
	Attempts   int            `json:"attempts"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	LastError  string         `json:"last_error,omitempty"`
	Outputs    map[string]any `json:"outputs,omitempty"`
}

// State lives in job_run.result under "orchestrator". Data is the pipeline's
// execution context: headers, predicate ids, object ids and step cursors.
type State struct {
	Version      int                    `json:"version"`
	Stages       map[string]*StageState `json:"stages"`
	LastProgress int                    `json:"last_progress"`
	Data         json.RawMessage        `json:"data,omitempty"`
}

type envelope struct {
	Orchestrator *State `json:"orchestrator"`
}

// Load reads the state kept in job's result. A job that never ran, or whose
// result predates the orchestrator, yields an empty state.
func Load(job *types.JobRun) (*State, error) {
	st := &State{Version: stateVersion, Stages: map[string]*StageState{}}
	if job == nil || len(job.Result) == 0 || string(job.Result) == "null" {
		return st, nil
	}
	env := envelope{Orchestrator: st}
	if err := json.Unmarshal(job.Result, &env); err != nil {
		return st, fmt.Errorf("decode job %s state: %w", job.ID, err)
	}
	if st.Stages == nil {
		st.Stages = map[string]*StageState{}
	}
	return st, nil
}

// Save writes the state back onto the running job.
func (s *State) Save(jc *jobrt.Context) error {
	if s == nil || jc == nil || jc.Job == nil {
		return nil
	}
	b, err := json.Marshal(envelope{Orchestrator: s})
	if err != nil {
		return err
	}
	if err := jc.Update(map[string]any{"result": datatypes.JSON(b)}); err != nil {
		return err
	}
	jc.Job.Result = datatypes.JSON(b)
	return nil
}

func (s *State) stage(name string) *StageState {
	if s.Stages == nil {
		s.Stages = map[string]*StageState{}
	}
	ss, ok := s.Stages[name]
	if !ok {
		ss = &StageState{Name: name, Status: StagePending}
		s.Stages[name] = ss
	}
	return ss
}

// Decode unmarshals Data into out. Empty data leaves out untouched.
func (s *State) Decode(out any) error {
	if s == nil || len(s.Data) == 0 || string(s.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(s.Data, out); err != nil {
		return fmt.Errorf("decode execution context: %w", err)
	}
	return nil
}

// Encode replaces Data with v.
func (s *State) Encode(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode execution context: %w", err)
	}
	s.Data = b
	return nil
}
