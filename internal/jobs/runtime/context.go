package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/dataimport-backend/internal/data/repos"
	types "github.com/yungbote/dataimport-backend/internal/domain/jobs"
	"github.com/yungbote/dataimport-backend/internal/platform/ctxutil"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

/*
Context is the execution handle for a single claimed job run.
Handlers never touch job_run directly; lifecycle writes go through
Progress, Fail, Succeed and Stopped so that:
  - a stop request is never overwritten by a late progress write,
  - every transition lands in job_run_event,
  - observers see exactly one terminal notification.
*/
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.JobRun
	Repo    repos.JobRunRepo
	Events  repos.JobRunEventRepo
	Signals StopSignals
	Observe Observer
	Log     *logger.Logger

	payload map[string]any

	stopMu        sync.Mutex
	stopCheckedAt time.Time
	stopSeen      bool
}

// StopSignals is the fast path for stop requests, fed by the signal bus.
type StopSignals interface {
	StopRequested(jobID uuid.UUID) bool
}

// Observer is told about terminal transitions.
type Observer interface {
	JobFinished(job *types.JobRun)
}

// stopCheckInterval throttles DB polling for stop requests.
const stopCheckInterval = time.Second

// finalStatuses may never be overwritten by a running handler.
var finalStatuses = []string{types.StatusStopped, types.StatusSucceeded, types.StatusFailed, types.StatusAbandoned}

type Options struct {
	Events  repos.JobRunEventRepo
	Signals StopSignals
	Observe Observer
	Log     *logger.Logger
}

func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo, opts Options) *Context {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	c := &Context{
		Ctx:     ctx,
		DB:      db,
		Job:     job,
		Repo:    repo,
		Events:  opts.Events,
		Signals: opts.Signals,
		Observe: opts.Observe,
		Log:     log,
	}
	if job != nil {
		c.Log = log.With("job_id", job.ID, "job_type", job.JobType)
		c.stopSeen = job.Status == types.StatusStopping
	}
	_ = c.decodePayload()
	c.applyTraceData()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

func (c *Context) applyTraceData() {
	if c == nil || c.Ctx == nil {
		return
	}
	t := ctxutil.Trace{
		TraceID:   strings.TrimSpace(c.PayloadString("trace_id")),
		RequestID: strings.TrimSpace(c.PayloadString("request_id")),
	}
	if c.Job != nil {
		t.JobID = c.Job.ID.String()
	}
	c.Ctx = ctxutil.WithTrace(c.Ctx, t)
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadString(key string) string {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	s := c.PayloadString(key)
	if s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (c *Context) dbc() dbctx.Context {
	return dbctx.Context{Ctx: ctxutil.Default(c.Ctx)}
}

// Update writes raw fields unless the job already reached a final status.
func (c *Context) Update(updates map[string]any) error {
	if c.Job == nil || c.Job.ID == uuid.Nil || c.Repo == nil {
		return nil
	}
	_, err := c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.Job.ID, finalStatuses, toIfaceMap(updates))
	return err
}

// StopRequested checks the signal bus on every call and the job row at most
// once per stopCheckInterval. Once true it stays true.
func (c *Context) StopRequested() bool {
	if c == nil || c.Job == nil {
		return false
	}
	c.stopMu.Lock()
	defer c.stopMu.Unlock()
	if c.stopSeen {
		return true
	}
	if c.Signals != nil && c.Signals.StopRequested(c.Job.ID) {
		c.stopSeen = true
		return true
	}
	if c.Repo == nil || time.Since(c.stopCheckedAt) < stopCheckInterval {
		return false
	}
	c.stopCheckedAt = time.Now()
	status, err := c.Repo.GetStatus(c.dbc(), c.Job.ID)
	if err != nil {
		c.Log.Warn("Stop check failed", "error", err)
		return false
	}
	if status == types.StatusStopping {
		c.stopSeen = true
	}
	return c.stopSeen
}

// Progress records a non-terminal update and refreshes the heartbeat. A stage
// change is also appended to the event ledger.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil {
		return
	}
	now := time.Now()
	stageChanged := c.Job != nil && c.Job.Stage != stage

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, err := c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.Job.ID, finalStatuses, map[string]interface{}{
			"stage":        stage,
			"progress":     pct,
			"message":      msg,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if err != nil {
			c.Log.Warn("Progress update failed", "error", err)
		}
		if !ok {
			return
		}
	}

	if c.Job != nil {
		c.Job.Stage = stage
		c.Job.Progress = pct
		c.Job.Message = msg
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}
	if stageChanged {
		c.emit(types.JobEventProgress, nil)
	}
}

// Fail marks the job failed and records err.
func (c *Context) Fail(stage string, err error) {
	if c == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	c.finish(types.StatusFailed, stage, map[string]interface{}{
		"error":         msg,
		"last_error_at": time.Now(),
	}, nil)
}

// Succeed marks the job succeeded and stores result.
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil {
		return
	}
	var res datatypes.JSON
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			c.Fail(finalStage, fmt.Errorf("marshal result: %w", err))
			return
		}
		res = datatypes.JSON(b)
	}
	c.finish(types.StatusSucceeded, finalStage, map[string]interface{}{
		"progress": 100,
		"error":    "",
		"result":   res,
	}, func() {
		c.Job.Progress = 100
		c.Job.Error = ""
		c.Job.Result = res
	})
}

// Stopped acknowledges a stop request.
func (c *Context) Stopped(stage string) {
	if c == nil {
		return
	}
	c.finish(types.StatusStopped, stage, map[string]interface{}{"message": "stopped"}, nil)
}

func (c *Context) finish(status, stage string, extra map[string]interface{}, apply func()) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     status,
		"stage":      stage,
		"locked_at":  nil,
		"updated_at": now,
	}
	for k, v := range extra {
		updates[k] = v
	}
	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, err := c.Repo.UpdateFieldsUnlessStatus(c.dbc(), c.Job.ID, finalStatuses, updates)
		if err != nil {
			c.Log.Error("Job status update failed", "status", status, "error", err)
			return
		}
		if !ok {
			return
		}
	}
	if c.Job == nil {
		return
	}
	c.Job.Status = status
	c.Job.Stage = stage
	c.Job.LockedAt = nil
	c.Job.UpdatedAt = now
	if msg, ok := extra["message"].(string); ok {
		c.Job.Message = msg
	}
	if e, ok := extra["error"].(string); ok {
		c.Job.Error = e
	}
	if apply != nil {
		apply()
	}

	kind := types.JobEventSucceeded
	switch status {
	case types.StatusFailed:
		kind = types.JobEventFailed
	case types.StatusStopped:
		kind = types.JobEventStopped
	}
	c.emit(kind, nil)
	if c.Observe != nil {
		c.Observe.JobFinished(c.Job)
	}
}

func (c *Context) emit(kind types.JobEventKind, data map[string]any) {
	if c.Events == nil || c.Job == nil {
		return
	}
	var raw datatypes.JSON
	if data != nil {
		b, _ := json.Marshal(data)
		raw = datatypes.JSON(b)
	}
	msg := c.Job.Message
	if kind == types.JobEventFailed {
		msg = c.Job.Error
	}
	err := c.Events.Append(c.dbc(), &types.JobRunEvent{
		JobID:     c.Job.ID,
		JobType:   c.Job.JobType,
		Kind:      kind,
		Status:    c.Job.Status,
		Stage:     c.Job.Stage,
		Progress:  c.Job.Progress,
		Message:   msg,
		Data:      raw,
		CreatedAt: time.Now(),
	})
	if err != nil {
		c.Log.Warn("Append job event failed", "kind", kind, "error", err)
	}
}

func toIfaceMap(in map[string]any) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
