// Package jobstest provides in-memory job repositories for tests.
package jobstest

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/yungbote/dataimport-backend/internal/domain/jobs"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
)

// JobRuns implements repos.JobRunRepo over a map.
type JobRuns struct {
	mu   sync.Mutex
	Jobs map[uuid.UUID]*types.JobRun
}

func NewJobRuns() *JobRuns {
	return &JobRuns{Jobs: map[uuid.UUID]*types.JobRun{}}
}

func (f *JobRuns) Put(j *types.JobRun) *types.JobRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}
	cp := *j
	f.Jobs[j.ID] = &cp
	return j
}

// Snapshot returns a copy of the stored row.
func (f *JobRuns) Snapshot(id uuid.UUID) *types.JobRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.Jobs[id]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

func (f *JobRuns) Create(_ dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	for _, j := range jobs {
		f.Put(j)
	}
	return jobs, nil
}

func (f *JobRuns) GetByID(_ dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	return f.Snapshot(id), nil
}

func (f *JobRuns) GetLatestByInstanceKey(_ dbctx.Context, jobType string, key string) (*types.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *types.JobRun
	for _, j := range f.Jobs {
		if j.JobType != jobType || j.InstanceKey != key {
			continue
		}
		if latest == nil || j.CreatedAt.After(latest.CreatedAt) {
			latest = j
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *JobRuns) ClaimNextRunnable(_ dbctx.Context, staleRunning time.Duration) (*types.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var candidates []*types.JobRun
	for _, j := range f.Jobs {
		stale := j.HeartbeatAt != nil && j.HeartbeatAt.Before(now.Add(-staleRunning))
		switch {
		case j.Status == types.StatusQueued,
			j.Status == types.StatusStopping && j.LockedAt == nil,
			(j.Status == types.StatusRunning || j.Status == types.StatusStopping) && stale:
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(a, b int) bool { return candidates[a].CreatedAt.Before(candidates[b].CreatedAt) })
	j := candidates[0]
	if j.Status != types.StatusStopping {
		j.Status = types.StatusRunning
	}
	j.Attempts++
	j.LockedAt = &now
	j.HeartbeatAt = &now
	cp := *j
	return &cp, nil
}

func (f *JobRuns) UpdateFields(_ dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.Jobs[id]; ok {
		apply(j, updates)
	}
	return nil
}

func (f *JobRuns) UpdateFieldsUnlessStatus(_ dbctx.Context, id uuid.UUID, disallowed []string, updates map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.Jobs[id]
	if !ok {
		return false, nil
	}
	for _, s := range disallowed {
		if j.Status == s {
			return false, nil
		}
	}
	apply(j, updates)
	return true, nil
}

func (f *JobRuns) Heartbeat(_ dbctx.Context, id uuid.UUID) error {
	now := time.Now()
	return f.UpdateFields(dbctx.Context{}, id, map[string]interface{}{"heartbeat_at": now})
}

func (f *JobRuns) GetStatus(_ dbctx.Context, id uuid.UUID) (string, error) {
	if j := f.Snapshot(id); j != nil {
		return j.Status, nil
	}
	return "", nil
}

func (f *JobRuns) RequestStop(_ dbctx.Context, id uuid.UUID) (bool, error) {
	return f.transition(id, []string{types.StatusQueued, types.StatusRunning}, map[string]interface{}{
		"status":  types.StatusStopping,
		"message": "stop requested",
	})
}

func (f *JobRuns) Restart(_ dbctx.Context, id uuid.UUID) (bool, error) {
	return f.transition(id, []string{types.StatusStopped, types.StatusFailed}, map[string]interface{}{
		"status":       types.StatusQueued,
		"error":        "",
		"message":      "",
		"locked_at":    nil,
		"heartbeat_at": nil,
	})
}

func (f *JobRuns) AbandonFinishedBefore(_ dbctx.Context, cutoff time.Time) ([]*types.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.JobRun
	for _, j := range f.Jobs {
		if (j.Status == types.StatusStopped || j.Status == types.StatusFailed) && j.UpdatedAt.Before(cutoff) {
			j.Status = types.StatusAbandoned
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *JobRuns) transition(id uuid.UUID, from []string, updates map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.Jobs[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if j.Status == s {
			apply(j, updates)
			return true, nil
		}
	}
	return false, nil
}

func apply(j *types.JobRun, updates map[string]interface{}) {
	for k, v := range updates {
		switch k {
		case "status":
			j.Status = v.(string)
		case "stage":
			j.Stage = v.(string)
		case "progress":
			j.Progress = v.(int)
		case "message":
			j.Message = v.(string)
		case "error":
			j.Error = v.(string)
		case "result":
			j.Result, _ = v.(datatypes.JSON)
		case "locked_at":
			j.LockedAt = timePtr(v)
		case "heartbeat_at":
			j.HeartbeatAt = timePtr(v)
		case "last_error_at":
			j.LastErrorAt = timePtr(v)
		case "updated_at":
			if t, ok := v.(time.Time); ok {
				j.UpdatedAt = t
			}
		}
	}
	if _, ok := updates["updated_at"]; !ok {
		j.UpdatedAt = time.Now()
	}
}

func timePtr(v interface{}) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case *time.Time:
		return t
	}
	return nil
}

// JobEvents implements repos.JobRunEventRepo.
type JobEvents struct {
	mu     sync.Mutex
	Events []*types.JobRunEvent
}

func (f *JobEvents) Append(_ dbctx.Context, events ...*types.JobRunEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = append(f.Events, events...)
	return nil
}

func (f *JobEvents) ListByJob(_ dbctx.Context, jobID uuid.UUID, limit int) ([]*types.JobRunEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.JobRunEvent
	for _, e := range f.Events {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Kinds lists the recorded event kinds for a job in order.
func (f *JobEvents) Kinds(jobID uuid.UUID) []types.JobEventKind {
	evs, _ := f.ListByJob(dbctx.Context{}, jobID, 0)
	out := make([]types.JobEventKind, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Kind)
	}
	return out
}
