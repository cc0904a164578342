package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/dataimport-backend/internal/domain/jobs"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

// JobRunRepo is the durable queue behind validate and import jobs.
type JobRunRepo interface {
	Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error)
	GetLatestByInstanceKey(dbc dbctx.Context, jobType string, instanceKey string) (*types.JobRun, error)
	ClaimNextRunnable(dbc dbctx.Context, staleRunning time.Duration) (*types.JobRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	GetStatus(dbc dbctx.Context, id uuid.UUID) (string, error)
	RequestStop(dbc dbctx.Context, id uuid.UUID) (bool, error)
	Restart(dbc dbctx.Context, id uuid.UUID) (bool, error)
	AbandonFinishedBefore(dbc dbctx.Context, cutoff time.Time) ([]*types.JobRun, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{db: db, log: baseLog.With("repo", "JobRunRepo")}
}

var skipLocked = clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}

func (r *jobRunRepo) Create(dbc dbctx.Context, jobs []*types.JobRun) ([]*types.JobRun, error) {
	if len(jobs) == 0 {
		return []*types.JobRun{}, nil
	}
	if err := dbc.DB(r.db).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.JobRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return first(dbc.DB(r.db).Where("id = ?", id))
}

// GetLatestByInstanceKey finds the newest run of jobType for the same csv.
func (r *jobRunRepo) GetLatestByInstanceKey(dbc dbctx.Context, jobType string, instanceKey string) (*types.JobRun, error) {
	if jobType == "" || instanceKey == "" {
		return nil, nil
	}
	return first(dbc.DB(r.db).
		Where("job_type = ? AND instance_key = ?", jobType, instanceKey).
		Order("created_at DESC"))
}

// first returns nil, nil when q matches nothing.
func first(q *gorm.DB) (*types.JobRun, error) {
	var job types.JobRun
	err := q.Take(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimNextRunnable locks the oldest queued job, stop request that never
// started, or running job whose heartbeat went stale. Stop requests stay in
// status stopping so the handler winds them down.
func (r *jobRunRepo) ClaimNextRunnable(dbc dbctx.Context, staleRunning time.Duration) (*types.JobRun, error) {
	now := time.Now()
	live := []string{types.StatusRunning, types.StatusStopping}
	var claimed *types.JobRun
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		job, err := first(tx.Clauses(skipLocked).
			Where("status = ?", types.StatusQueued).
			Or("status = ? AND locked_at IS NULL", types.StatusStopping).
			Or("status IN ? AND heartbeat_at < ?", live, now.Add(-staleRunning)).
			Order("created_at ASC"))
		if err != nil || job == nil {
			return err
		}
		if job.Status != types.StatusStopping {
			job.Status = types.StatusRunning
		}
		if err := tx.Model(&types.JobRun{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":       job.Status,
			"attempts":     gorm.Expr("attempts + 1"),
			"locked_at":    now,
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error; err != nil {
			return err
		}
		job.Attempts++
		job.LockedAt, job.HeartbeatAt = &now, &now
		claimed = job
		return nil
	})
	return claimed, err
}

func (r *jobRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	_, err := r.UpdateFieldsUnlessStatus(dbc, id, nil, updates)
	return err
}

// UpdateFieldsUnlessStatus applies updates only while the job is in none of
// disallowedStatuses. It reports whether a row changed.
func (r *jobRunRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	q := dbc.DB(r.db).Model(&types.JobRun{}).Where("id = ?", id)
	if len(disallowedStatuses) > 0 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}
	return affected(q, stamped(updates))
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	_, err := r.transition(dbc, id, []string{types.StatusRunning, types.StatusStopping}, map[string]interface{}{
		"heartbeat_at": time.Now(),
	})
	return err
}

func (r *jobRunRepo) GetStatus(dbc dbctx.Context, id uuid.UUID) (string, error) {
	var statuses []string
	err := dbc.DB(r.db).Model(&types.JobRun{}).Where("id = ?", id).Limit(1).Pluck("status", &statuses).Error
	if err != nil || len(statuses) == 0 {
		return "", err
	}
	return statuses[0], nil
}

// RequestStop moves a queued or running job to stopping.
func (r *jobRunRepo) RequestStop(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	return r.transition(dbc, id, []string{types.StatusQueued, types.StatusRunning}, map[string]interface{}{
		"status":  types.StatusStopping,
		"message": "stop requested",
	})
}

// Restart requeues a stopped or failed job. Result (stage state and
// checkpoints) is kept so the job resumes.
func (r *jobRunRepo) Restart(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	return r.transition(dbc, id, []string{types.StatusStopped, types.StatusFailed}, map[string]interface{}{
		"status":       types.StatusQueued,
		"error":        "",
		"message":      "",
		"locked_at":    nil,
		"heartbeat_at": nil,
	})
}

// transition applies updates only while the job is in one of from.
func (r *jobRunRepo) transition(dbc dbctx.Context, id uuid.UUID, from []string, updates map[string]interface{}) (bool, error) {
	return affected(dbc.DB(r.db).Model(&types.JobRun{}).Where("id = ? AND status IN ?", id, from), stamped(updates))
}

// AbandonFinishedBefore marks stopped and failed jobs untouched since cutoff as
// abandoned and returns them.
func (r *jobRunRepo) AbandonFinishedBefore(dbc dbctx.Context, cutoff time.Time) ([]*types.JobRun, error) {
	var out []*types.JobRun
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(skipLocked).
			Where("status IN ? AND updated_at < ?", []string{types.StatusStopped, types.StatusFailed}, cutoff).
			Find(&out).Error; err != nil || len(out) == 0 {
			return err
		}
		ids := make([]uuid.UUID, len(out))
		for i, j := range out {
			ids[i] = j.ID
			j.Status = types.StatusAbandoned
		}
		return tx.Model(&types.JobRun{}).Where("id IN ?", ids).Updates(stamped(map[string]interface{}{
			"status": types.StatusAbandoned,
		})).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func stamped(updates map[string]interface{}) map[string]interface{} {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return updates
}

func affected(q *gorm.DB, updates map[string]interface{}) (bool, error) {
	res := q.Updates(updates)
	return res.RowsAffected > 0, res.Error
}
