// Package janitor runs the periodic housekeeping of the import backend.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/yungbote/dataimport-backend/internal/data/repos"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/jobs/pipeline/csvjob"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

const (
	TaskAbandon   = "abandon_jobs"
	TaskRowErrors = "purge_row_errors"
	TaskQueue     = "queue_depth"
)

type Config struct {
	// Schedule is a standard five field cron spec.
	Schedule string
	// StagingRetention is how long a stopped or failed job may wait for a
	// restart before it is abandoned and its staging is dropped.
	StagingRetention  time.Duration
	RowErrorRetention time.Duration
}

// Recorder receives task outcomes and refreshes queue gauges.
type Recorder interface {
	JanitorRun(task string, rows int64, err error)
	RefreshQueueDepth(ctx context.Context) error
}

type Report struct {
	Abandoned        int
	StagingPurged    int64
	RowErrorsDeleted int64
}

type Janitor struct {
	log    *logger.Logger
	jobs   repos.JobRunRepo
	csvs   repos.CSVRepo
	typed  repos.TypedRecordRepo
	papers repos.PaperRecordRepo
	rows   repos.RowErrorRepo
	rec    Recorder
	cfg    Config
	now    func() time.Time
}

func New(baseLog *logger.Logger, rs repos.Set, rec Recorder, cfg Config) *Janitor {
	if cfg.Schedule == "" {
		cfg.Schedule = "*/15 * * * *"
	}
	if cfg.StagingRetention <= 0 {
		cfg.StagingRetention = 72 * time.Hour
	}
	if cfg.RowErrorRetention <= 0 {
		cfg.RowErrorRetention = 30 * 24 * time.Hour
	}
	return &Janitor{
		log:    baseLog.With("component", "Janitor"),
		jobs:   rs.JobRuns,
		csvs:   rs.CSV,
		typed:  rs.TypedRecords,
		papers: rs.PaperRecords,
		rows:   rs.RowErrors,
		rec:    rec,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Run schedules RunOnce and blocks until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(j.cfg.Schedule, func() {
		if _, err := j.RunOnce(ctx); err != nil {
			j.log.Warn("Janitor run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("janitor schedule %q: %w", j.cfg.Schedule, err)
	}
	j.log.Info("Starting janitor", "schedule", j.cfg.Schedule, "staging_retention", j.cfg.StagingRetention)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// RunOnce runs every task. A failing task does not keep the others from
// running; the first error is returned.
func (j *Janitor) RunOnce(ctx context.Context) (Report, error) {
	var rep Report
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	dbc := dbctx.Context{Ctx: ctx}
	now := j.now()

	abandoned, purged, err := j.abandon(dbc, now.Add(-j.cfg.StagingRetention))
	rep.Abandoned, rep.StagingPurged = abandoned, purged
	j.record(TaskAbandon, int64(abandoned), err)
	keep(err)

	rep.RowErrorsDeleted, err = j.rows.DeleteOlderThan(dbc, now.Add(-j.cfg.RowErrorRetention))
	j.record(TaskRowErrors, rep.RowErrorsDeleted, err)
	keep(err)

	if j.rec != nil {
		err = j.rec.RefreshQueueDepth(ctx)
		j.record(TaskQueue, 0, err)
		keep(err)
	}

	if rep.Abandoned > 0 || rep.RowErrorsDeleted > 0 {
		j.log.Info("Janitor run finished",
			"abandoned", rep.Abandoned,
			"staging_purged", rep.StagingPurged,
			"row_errors_deleted", rep.RowErrorsDeleted,
		)
	}
	return rep, firstErr
}

// abandon gives up on stale stopped or failed jobs. Staged records of an
// abandoned validation can never be imported, so they are dropped.
func (j *Janitor) abandon(dbc dbctx.Context, cutoff time.Time) (int, int64, error) {
	jobs, err := j.jobs.AbandonFinishedBefore(dbc, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("abandon jobs: %w", err)
	}
	var purged int64
	for _, job := range jobs {
		j.log.Info("Job abandoned", "job_id", job.ID, "job_type", job.JobType)
		if job.JobType != csvjob.JobValidatePaperCSV || job.CSVID == nil {
			continue
		}
		csv, err := j.csvs.GetByID(dbc, *job.CSVID)
		if err != nil {
			return len(jobs), purged, fmt.Errorf("load csv %s: %w", *job.CSVID, err)
		}
		if !ownsStaging(csv, job.ID) {
			continue
		}
		n, err := j.typed.DeleteByCSV(dbc, csv.ID)
		if err != nil {
			return len(jobs), purged, fmt.Errorf("purge typed records: %w", err)
		}
		purged += n
		if n, err = j.papers.DeleteByCSV(dbc, csv.ID); err != nil {
			return len(jobs), purged, fmt.Errorf("purge paper records: %w", err)
		}
		purged += n
	}
	return len(jobs), purged, nil
}

// ownsStaging reports whether the staging of csv still belongs to the
// validation job jobID.
func ownsStaging(csv *csvimport.CSV, jobID uuid.UUID) bool {
	if csv == nil || csv.ValidationJobID == nil || *csv.ValidationJobID != jobID {
		return false
	}
	return csv.State == csvimport.StateValidationStopped || csv.State == csvimport.StateValidationFailed
}

func (j *Janitor) record(task string, rows int64, err error) {
	if j.rec != nil {
		j.rec.JanitorRun(task, rows, err)
	}
}
