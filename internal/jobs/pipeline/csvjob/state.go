package csvjob

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/data/repos"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	types "github.com/yungbote/dataimport-backend/internal/domain/jobs"
	jobrt "github.com/yungbote/dataimport-backend/internal/jobs/runtime"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
)

// StateUpdater moves a CSV through the states of one job phase as the job
// starts and settles.
type StateUpdater struct {
	CSVs    repos.CSVRepo
	Start   csvimport.State
	Success csvimport.State
	Stopped csvimport.State
	Failure csvimport.State
	jobOf   func(*csvimport.CSV) *uuid.UUID
}

func ValidationStates(csvs repos.CSVRepo) StateUpdater {
	return StateUpdater{
		CSVs:    csvs,
		Start:   csvimport.StateValidationRunning,
		Success: csvimport.StateValidationDone,
		Stopped: csvimport.StateValidationStopped,
		Failure: csvimport.StateValidationFailed,
		jobOf:   func(c *csvimport.CSV) *uuid.UUID { return c.ValidationJobID },
	}
}

func ImportStates(csvs repos.CSVRepo) StateUpdater {
	return StateUpdater{
		CSVs:    csvs,
		Start:   csvimport.StateImportRunning,
		Success: csvimport.StateImportDone,
		Stopped: csvimport.StateImportStopped,
		Failure: csvimport.StateImportFailed,
		jobOf:   func(c *csvimport.CSV) *uuid.UUID { return c.ImportJobID },
	}
}

// Run wraps a job body. The CSV is only touched while it is still bound to
// this job; a job whose CSV was reset in the meantime settles on its own.
func (u StateUpdater) Run(jc *jobrt.Context, csvID uuid.UUID, body func(csv *csvimport.CSV) error) error {
	csv, err := u.CSVs.GetByID(u.dbc(jc), csvID)
	if err != nil {
		jc.Fail("start", fmt.Errorf("load csv %s: %w", csvID, err))
		return nil
	}
	if csv == nil {
		jc.Fail("start", fmt.Errorf("csv %s not found", csvID))
		return nil
	}
	if !u.owns(csv, jc.Job.ID) {
		if jc.StopRequested() {
			jc.Stopped("start")
			return nil
		}
		jc.Fail("start", fmt.Errorf("csv %s is no longer bound to job %s", csvID, jc.Job.ID))
		return nil
	}
	if csv.State != u.Start {
		if !csv.State.CanTransitionTo(u.Start) {
			jc.Fail("start", fmt.Errorf("csv %s cannot move from %s to %s", csvID, csv.State, u.Start))
			return nil
		}
		if err := u.set(jc, csv.ID, u.Start); err != nil {
			jc.Fail("start", err)
			return nil
		}
		csv.State = u.Start
	}

	if jc.StopRequested() {
		jc.Stopped("start")
	} else if runErr := body(csv); runErr != nil && !types.IsFinished(jc.Job.Status) {
		jc.Fail("run", runErr)
	}
	u.finish(jc, csv.ID)
	return nil
}

func (u StateUpdater) finish(jc *jobrt.Context, csvID uuid.UUID) {
	var target csvimport.State
	switch jc.Job.Status {
	case types.StatusSucceeded:
		target = u.Success
	case types.StatusStopped:
		target = u.Stopped
	case types.StatusFailed, types.StatusAbandoned:
		target = u.Failure
	default:
		// Still running; the worker settles it and the CSV stays put.
		return
	}
	csv, err := u.CSVs.GetByID(u.dbc(jc), csvID)
	if err != nil || csv == nil {
		jc.Log.Warn("CSV state update skipped", "csv_id", csvID, "target", target, "error", err)
		return
	}
	if !u.owns(csv, jc.Job.ID) || !csv.State.CanTransitionTo(target) {
		jc.Log.Warn("CSV state update skipped", "csv_id", csvID, "state", csv.State, "target", target)
		return
	}
	if err := u.set(jc, csvID, target); err != nil {
		jc.Log.Error("CSV state update failed", "csv_id", csvID, "target", target, "error", err)
	}
}

func (u StateUpdater) owns(csv *csvimport.CSV, jobID uuid.UUID) bool {
	id := u.jobOf(csv)
	return id != nil && *id == jobID
}

func (u StateUpdater) set(jc *jobrt.Context, csvID uuid.UUID, state csvimport.State) error {
	err := u.CSVs.UpdateFields(u.dbc(jc), csvID, map[string]interface{}{"state": state})
	if err != nil {
		return fmt.Errorf("set csv %s state %s: %w", csvID, state, err)
	}
	return nil
}

func (u StateUpdater) dbc(jc *jobrt.Context) dbctx.Context {
	return dbctx.Context{Ctx: jc.Ctx}
}
