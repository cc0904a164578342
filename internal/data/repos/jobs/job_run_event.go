package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/dataimport-backend/internal/domain/jobs"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

const defaultEventLimit = 100

type JobRunEventRepo interface {
	Append(dbc dbctx.Context, events ...*types.JobRunEvent) error
	ListByJob(dbc dbctx.Context, jobID uuid.UUID, limit int) ([]*types.JobRunEvent, error)
}

type jobRunEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunEventRepo(db *gorm.DB, baseLog *logger.Logger) JobRunEventRepo {
	return &jobRunEventRepo{db: db, log: baseLog.With("repo", "JobRunEventRepo")}
}

func (r *jobRunEventRepo) Append(dbc dbctx.Context, events ...*types.JobRunEvent) error {
	if len(events) == 0 {
		return nil
	}
	now := time.Now()
	for i, e := range events {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		// keep append order stable when a batch lands within one clock tick
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		}
	}
	return dbc.DB(r.db).Create(&events).Error
}

func (r *jobRunEventRepo) ListByJob(dbc dbctx.Context, jobID uuid.UUID, limit int) ([]*types.JobRunEvent, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	var out []*types.JobRunEvent
	err := dbc.DB(r.db).
		Where("job_id = ?", jobID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
