package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/yungbote/dataimport-backend/internal/data/repos"
	types "github.com/yungbote/dataimport-backend/internal/domain/jobs"
	"github.com/yungbote/dataimport-backend/internal/jobs/runtime"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/platform/envutil"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	StaleRunning time.Duration
}

// ConfigFromEnv reads WORKER_CONCURRENCY, WORKER_POLL_INTERVAL and
// JOB_STALE_RUNNING.
func ConfigFromEnv() Config {
	return Config{
		Concurrency:  envutil.Int("WORKER_CONCURRENCY", 4),
		PollInterval: envutil.Duration("WORKER_POLL_INTERVAL", time.Second),
		StaleRunning: envutil.Duration("JOB_STALE_RUNNING", 10*time.Minute),
	}
}

type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.JobRunRepo
	registry *runtime.Registry
	opts     runtime.Options
	cfg      Config

	wg sync.WaitGroup
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, repo repos.JobRunRepo, registry *runtime.Registry, opts runtime.Options, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.StaleRunning <= 0 {
		cfg.StaleRunning = 10 * time.Minute
	}
	log := baseLog.With("component", "JobWorker")
	if opts.Log == nil {
		opts.Log = log
	}
	return &Worker{
		db:       db,
		log:      log,
		repo:     repo,
		registry: registry,
		opts:     opts,
		cfg:      cfg,
	}
}

// Run starts the pool and blocks until ctx is done and every loop returned.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency, "job_types", w.registry.Types())
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
	w.wg.Wait()
	return nil
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for ctx.Err() == nil && w.RunOnce(ctx, workerID) {
			}
		}
	}
}

// RunOnce claims and runs at most one job. It reports whether a job was run.
func (w *Worker) RunOnce(ctx context.Context, workerID int) bool {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.cfg.StaleRunning)
	if err != nil {
		w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
		return false
	}
	if job == nil {
		return false
	}

	ctx, span := otel.Tracer("dataimport/worker").Start(ctx, "job "+job.JobType,
		trace.WithAttributes(
			attribute.String("job.id", job.ID.String()),
			attribute.Int("job.attempts", job.Attempts),
			attribute.Int("worker.id", workerID),
		))
	defer func() {
		span.SetAttributes(attribute.String("job.status", job.Status))
		span.End()
	}()

	jc := runtime.NewContext(ctx, w.db, job, w.repo, w.opts)
	h, err := w.registry.Lookup(job.JobType)
	if err != nil {
		w.log.Warn("Claimed job has no handler",
			"worker_id", workerID,
			"job_type", job.JobType,
			"job_id", job.ID,
		)
		jc.Fail("dispatch", err)
		return true
	}

	stopBeat := w.heartbeat(ctx, job)
	defer stopBeat()

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Job handler panic",
					"worker_id", workerID,
					"job_id", job.ID,
					"job_type", job.JobType,
					"panic", r,
				)
				jc.Fail("panic", &panicError{Val: r})
			}
		}()

		if runErr := h.Run(jc); runErr != nil {
			// Handlers normally settle the job themselves.
			jc.Fail("run", runErr)
		}
	}()
	if jc.Job.Status == types.StatusRunning {
		jc.Fail("run", fmt.Errorf("handler for %s returned without settling the job", job.JobType))
	}
	return true
}

// heartbeat keeps a long stage from looking stale to other workers.
func (w *Worker) heartbeat(ctx context.Context, job *types.JobRun) func() {
	interval := w.cfg.StaleRunning / 3
	if interval <= 0 {
		interval = time.Minute
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				if err := w.repo.Heartbeat(dbctx.Context{Ctx: ctx}, job.ID); err != nil {
					w.log.Warn("Heartbeat failed", "job_id", job.ID, "error", err)
				}
			}
		}
	}()
	return func() { close(done) }
}


type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
