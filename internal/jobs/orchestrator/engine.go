// Package orchestrator runs a job as an ordered list of stages and keeps
// per-stage state in the job result, so a restarted validation or import
// resumes after the last stage that finished.
package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	jobrt "github.com/yungbote/dataimport-backend/internal/jobs/runtime"
	"github.com/yungbote/dataimport-backend/internal/jobs/step"
)

type StageFunc func(jc *jobrt.Context, st *State) (map[string]any, error)

// Stage reports progress from StartPct to EndPct while it runs.
type Stage struct {
	Name     string
	StartPct int
	EndPct   int
	Msg      string
	Run      StageFunc
}

type Engine struct {
	tracer trace.Tracer
}

func NewEngine() *Engine {
	return &Engine{tracer: otel.Tracer("dataimport/orchestrator")}
}

// Run executes stages in order and settles the job: succeeded with extra
// merged into the result, failed at the first stage error, or stopped.
func (e *Engine) Run(jc *jobrt.Context, stages []Stage, extra map[string]any) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	if err := validateStages(stages); err != nil {
		jc.Fail("validate", err)
		return nil
	}
	st, err := Load(jc.Job)
	if err != nil {
		jc.Log.Warn("Discarding unreadable stage state", "error", err)
	}

	for _, def := range stages {
		ss := st.stage(def.Name)
		if ss.Status == StageSucceeded {
			continue
		}
		if jc.StopRequested() {
			e.stopped(jc, st, def.Name, ss)
			return nil
		}

		msg := def.Msg
		if msg == "" {
			msg = def.Name
		}
		e.progress(jc, st, def.Name, def.StartPct, msg)
		now := time.Now().UTC()
		ss.Status, ss.StartedAt, ss.FinishedAt, ss.LastError = StageRunning, &now, nil, ""
		ss.Attempts++
		_ = st.Save(jc)

		outs, runErr := e.run(jc, st, def)
		done := time.Now().UTC()
		ss.FinishedAt = &done
		switch {
		case errors.Is(runErr, step.ErrStopped):
			e.stopped(jc, st, def.Name, ss)
			return nil
		case runErr != nil:
			ss.Status, ss.LastError = StageFailed, runErr.Error()
			_ = st.Save(jc)
			jc.Fail(def.Name, runErr)
			return nil
		}
		ss.Status = StageSucceeded
		if len(outs) > 0 {
			if ss.Outputs == nil {
				ss.Outputs = map[string]any{}
			}
			for k, v := range outs {
				ss.Outputs[k] = v
			}
		}
		e.progress(jc, st, def.Name, def.EndPct, msg)
		_ = st.Save(jc)
	}

	result := map[string]any{"orchestrator": st}
	for k, v := range extra {
		result[k] = v
	}
	jc.Succeed("done", result)
	return nil
}

func (e *Engine) run(jc *jobrt.Context, st *State, def Stage) (outs map[string]any, err error) {
	ctx, span := e.tracer.Start(jc.Ctx, "stage "+def.Name, trace.WithAttributes(
		attribute.String("job.id", jc.Job.ID.String()),
		attribute.String("job.type", jc.Job.JobType),
		attribute.String("stage", def.Name),
	))
	parent := jc.Ctx
	jc.Ctx = ctx
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", def.Name, r)
		}
		if err != nil && !errors.Is(err, step.ErrStopped) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		jc.Ctx = parent
	}()
	return def.Run(jc, st)
}

func (e *Engine) stopped(jc *jobrt.Context, st *State, stage string, ss *StageState) {
	if ss.Status == StageRunning {
		ss.Status = StageStopped
	}
	_ = st.Save(jc)
	jc.Stopped(stage)
}

// progress never moves backwards, even when a restarted job reruns a stage.
func (e *Engine) progress(jc *jobrt.Context, st *State, stage string, pct int, msg string) {
	if pct < st.LastProgress {
		pct = st.LastProgress
	}
	st.LastProgress = pct
	jc.Progress(stage, pct, msg)
}

func validateStages(stages []Stage) error {
	seen := make(map[string]struct{}, len(stages))
	prevEnd := 0
	for i, s := range stages {
		switch {
		case s.Name == "":
			return fmt.Errorf("stage %d has no name", i)
		case s.Run == nil:
			return fmt.Errorf("stage %s has no Run", s.Name)
		case s.StartPct < 0 || s.EndPct > 100 || s.StartPct > s.EndPct:
			return fmt.Errorf("stage %s: bad progress range %d..%d", s.Name, s.StartPct, s.EndPct)
		case s.EndPct < prevEnd:
			return fmt.Errorf("stage %s ends before the stage preceding it", s.Name)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("stage %s listed twice", s.Name)
		}
		seen[s.Name] = struct{}{}
		prevEnd = s.EndPct
	}
	return nil
}
