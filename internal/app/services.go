package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/dataimport-backend/internal/data/repos"
	"github.com/yungbote/dataimport-backend/internal/jobs/janitor"
	"github.com/yungbote/dataimport-backend/internal/jobs/pipeline/csv_import"
	"github.com/yungbote/dataimport-backend/internal/jobs/pipeline/csv_validate"
	jobruntime "github.com/yungbote/dataimport-backend/internal/jobs/runtime"
	"github.com/yungbote/dataimport-backend/internal/jobs/worker"
	"github.com/yungbote/dataimport-backend/internal/observability"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
	"github.com/yungbote/dataimport-backend/internal/services"
)

type Services struct {
	Auth services.AuthService
	Jobs services.JobService
	CSVs services.CSVService

	JobRegistry *jobruntime.Registry
	Worker      *worker.Worker
	Janitor     *janitor.Janitor
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, rs repos.Set, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	jobRegistry := jobruntime.NewRegistry()

	validate := csv_validate.New(
		log,
		rs.CSV,
		rs.TypedRecords,
		rs.PaperRecords,
		rs.RowErrors,
		clients.Graph,
		clients.DOI,
		metrics,
	)

	importer := csv_import.New(
		log,
		rs.CSV,
		rs.PaperRecords,
		rs.Results,
		rs.RowErrors,
		clients.Graph,
		metrics,
	)
	if err := jobRegistry.Register(validate, importer); err != nil {
		return Services{}, err
	}

	var stops services.StopPublisher
	opts := jobruntime.Options{Events: rs.JobEvents, Observe: metrics}
	if clients.Signals != nil {
		stops = clients.Signals
		opts.Signals = clients.Signals
	}

	jobService := services.NewJobService(log, rs.JobRuns, rs.JobEvents, rs.RowErrors, rs.Results, rs.Contributors, jobRegistry, stops)
	csvService := services.NewCSVService(db, log, rs, jobService, nil)
	authService := services.NewAuthService(log, rs.Contributors, cfg.JWTSecretKey)

	jobWorker := worker.NewWorker(db, log.Named("worker"), rs.JobRuns, jobRegistry, opts, worker.ConfigFromEnv())

	jan := janitor.New(log.Named("janitor"), rs, janitorRecorder{db: db, metrics: metrics}, janitor.Config{
		Schedule:          cfg.JanitorSchedule,
		StagingRetention:  cfg.StagingRetention,
		RowErrorRetention: cfg.RowErrorRetention,
	})

	log.Info("Job handlers registered", "job_types", fmt.Sprint(jobRegistry.Types()))
	return Services{
		Auth:        authService,
		Jobs:        jobService,
		CSVs:        csvService,
		JobRegistry: jobRegistry,
		Worker:      jobWorker,
		Janitor:     jan,
	}, nil
}

// janitorRecorder binds the queue gauge refresh to the process database.
type janitorRecorder struct {
	db      *gorm.DB
	metrics *observability.Metrics
}

func (r janitorRecorder) JanitorRun(task string, rows int64, err error) {
	r.metrics.JanitorRun(task, rows, err)
}

func (r janitorRecorder) RefreshQueueDepth(ctx context.Context) error {
	return r.metrics.RefreshQueueDepth(ctx, r.db)
}
