package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/yungbote/dataimport-backend/internal/data/repos"
	"github.com/yungbote/dataimport-backend/internal/dataimport/errs"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	types "github.com/yungbote/dataimport-backend/internal/domain/jobs"
	"github.com/yungbote/dataimport-backend/internal/jobs/orchestrator"
	"github.com/yungbote/dataimport-backend/internal/jobs/pipeline/csvjob"
	"github.com/yungbote/dataimport-backend/internal/jobs/runtime"
	"github.com/yungbote/dataimport-backend/internal/platform/apierr"
	"github.com/yungbote/dataimport-backend/internal/platform/ctxutil"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

// Report statuses of a finished job.
const (
	JobResultDone   = "DONE"
	JobResultFailed = "FAILED"
)

const jobEventLimit = 50

type JobStatus struct {
	JobID     uuid.UUID `json:"job_id"`
	JobName   string    `json:"job_name"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type JobResult struct {
	JobID     uuid.UUID                           `json:"job_id"`
	JobName   string                              `json:"job_name"`
	Status    string                              `json:"status"`
	Error     *apierr.Error                       `json:"-"`
	Problem   string                              `json:"error,omitempty"`
	Stages    map[string]*orchestrator.StageState `json:"stages,omitempty"`
	RowErrors []*csvimport.RowError               `json:"row_errors"`
	Total     int64                               `json:"row_error_total"`
	Events    []*types.JobRunEvent                `json:"events,omitempty"`

	// Set for import jobs: the entities created so far, paged like RowErrors.
	ImportResults []*csvimport.PaperCSVRecordImportResult `json:"import_results,omitempty"`
	ImportTotal   int64                                   `json:"import_result_total,omitempty"`
}

// StopPublisher forwards stop requests to running workers.
type StopPublisher interface {
	PublishStop(dbc dbctx.Context, jobID uuid.UUID) error
}

type JobService interface {
	RunJob(dbc dbctx.Context, jobName string, params map[string]string) (uuid.UUID, error)
	StopJob(dbc dbctx.Context, jobID uuid.UUID, user uuid.UUID) error
	FindJobStatusByID(dbc dbctx.Context, jobID uuid.UUID, user uuid.UUID) (*JobStatus, error)
	FindJobResultByID(dbc dbctx.Context, jobID uuid.UUID, user uuid.UUID, page repos.Page) (*JobResult, error)
}

type jobService struct {
	log       *logger.Logger
	repo      repos.JobRunRepo
	events    repos.JobRunEventRepo
	rowErrors repos.RowErrorRepo
	results   repos.ImportResultRepo
	access    accessChecker
	registry  *runtime.Registry
	stops     StopPublisher
}

func NewJobService(
	baseLog *logger.Logger,
	repo repos.JobRunRepo,
	events repos.JobRunEventRepo,
	rowErrors repos.RowErrorRepo,
	results repos.ImportResultRepo,
	contributors repos.ContributorRepo,
	registry *runtime.Registry,
	stops StopPublisher,
) JobService {
	return &jobService{
		log:       baseLog.With("service", "JobService"),
		repo:      repo,
		events:    events,
		rowErrors: rowErrors,
		results:   results,
		access:    accessChecker{contributors: contributors},
		registry:  registry,
		stops:     stops,
	}
}

// RunJob starts the job instance identified by jobName and the identifying
// params. A stopped or failed instance is restarted under its old id.
func (s *jobService) RunJob(dbc dbctx.Context, jobName string, params map[string]string) (uuid.UUID, error) {
	ctx, span := otel.Tracer("dataimport/services").Start(dbc.Ctx, "JobService.RunJob")
	defer span.End()
	span.SetAttributes(attribute.String("job.name", jobName))
	dbc.Ctx = ctx

	if s.registry != nil {
		if _, err := s.registry.Lookup(jobName); err != nil {
			return uuid.Nil, err
		}
	}
	owner, err := uuid.Parse(strings.TrimSpace(params[csvjob.ParamContributorID]))
	if err != nil || owner == uuid.Nil {
		return uuid.Nil, fmt.Errorf("job %s: missing %s", jobName, csvjob.ParamContributorID)
	}

	key := csvjob.InstanceKey(jobName, params)
	existing, err := s.repo.GetLatestByInstanceKey(dbc, jobName, key)
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup job instance: %w", err)
	}
	if existing != nil {
		return s.rerun(dbc, existing)
	}

	payload := map[string]any{}
	for k, v := range params {
		payload[k] = v
	}
	if t, ok := ctxutil.TraceFrom(dbc.Ctx); ok {
		t.Stamp(payload)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, err
	}

	now := time.Now()
	job := &types.JobRun{
		ID:            uuid.New(),
		ContributorID: owner,
		JobType:       jobName,
		InstanceKey:   key,
		Status:        types.StatusQueued,
		Stage:         "queued",
		Message:       "Queued",
		Payload:       datatypes.JSON(b),
		Result:        datatypes.JSON([]byte(`{}`)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if csvID, err := uuid.Parse(params[csvjob.ParamCSVID]); err == nil {
		job.CSVID = &csvID
	}
	if _, err := s.repo.Create(dbc, []*types.JobRun{job}); err != nil {
		return uuid.Nil, fmt.Errorf("create job: %w", err)
	}
	s.appendEvent(dbc, job, types.JobEventCreated)
	s.log.Info("Job queued", "job_id", job.ID, "job_type", jobName, "contributor_id", owner)
	span.SetAttributes(attribute.String("job.id", job.ID.String()))
	return job.ID, nil
}

// rerun applies the restart rules to an existing instance. The existing id is
// returned alongside every rejection.
func (s *jobService) rerun(dbc dbctx.Context, job *types.JobRun) (uuid.UUID, error) {
	switch job.Status {
	case types.StatusQueued, types.StatusRunning, types.StatusStopping:
		return job.ID, errs.JobAlreadyRunning(job.ID)
	case types.StatusSucceeded:
		return job.ID, errs.JobAlreadyComplete(job.ID)
	case types.StatusAbandoned:
		return job.ID, errs.JobRestartFailed(job.ID, fmt.Errorf("job was abandoned"))
	}
	ok, err := s.repo.Restart(dbc, job.ID)
	if err != nil {
		return job.ID, errs.JobRestartFailed(job.ID, err)
	}
	if !ok {
		return job.ID, errs.JobRestartFailed(job.ID, fmt.Errorf("job left status %s", job.Status))
	}
	job.Status = types.StatusQueued
	s.appendEvent(dbc, job, types.JobEventRestarted)
	s.log.Info("Job restarted", "job_id", job.ID, "job_type", job.JobType)
	return job.ID, nil
}

func (s *jobService) StopJob(dbc dbctx.Context, jobID uuid.UUID, user uuid.UUID) error {
	job, err := s.load(dbc, jobID, user)
	if err != nil {
		return err
	}
	if job.Status != types.StatusQueued && job.Status != types.StatusRunning {
		return errs.JobNotRunning(jobID)
	}
	ok, err := s.repo.RequestStop(dbc, jobID)
	if err != nil {
		return fmt.Errorf("request stop: %w", err)
	}
	if !ok {
		return errs.JobNotRunning(jobID)
	}
	job.Status = types.StatusStopping
	s.appendEvent(dbc, job, types.JobEventStopping)
	if s.stops != nil {
		if err := s.stops.PublishStop(dbc, jobID); err != nil {
			s.log.Warn("Publish stop signal failed", "job_id", jobID, "error", err)
		}
	}
	return nil
}

func (s *jobService) FindJobStatusByID(dbc dbctx.Context, jobID uuid.UUID, user uuid.UUID) (*JobStatus, error) {
	job, err := s.load(dbc, jobID, user)
	if err != nil {
		return nil, err
	}
	return &JobStatus{
		JobID:     job.ID,
		JobName:   job.JobType,
		Status:    job.Status,
		Stage:     job.Stage,
		Progress:  job.Progress,
		Message:   job.Message,
		Attempts:  job.Attempts,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}, nil
}

func (s *jobService) FindJobResultByID(dbc dbctx.Context, jobID uuid.UUID, user uuid.UUID, page repos.Page) (*JobResult, error) {
	job, err := s.load(dbc, jobID, user)
	if err != nil {
		return nil, err
	}
	switch {
	case job.Status == types.StatusStopped:
		return nil, errs.JobResultNotFound(jobID)
	case !types.HasResult(job.Status):
		return nil, errs.JobNotComplete(jobID)
	}

	out := &JobResult{JobID: job.ID, JobName: job.JobType, Status: JobResultFailed}
	if job.Status == types.StatusSucceeded {
		out.Status = JobResultDone
	}
	if st, err := orchestrator.Load(job); err == nil {
		out.Stages = st.Stages
	}
	if out.RowErrors, out.Total, err = s.rowErrors.ListByJob(dbc, job.ID, page); err != nil {
		return nil, fmt.Errorf("list row errors: %w", err)
	}
	if job.JobType == csvjob.JobImportPaperCSV && job.CSVID != nil && s.results != nil {
		if out.ImportResults, out.ImportTotal, err = s.results.ListByCSV(dbc, *job.CSVID, page); err != nil {
			return nil, fmt.Errorf("list import results: %w", err)
		}
	}
	if s.events != nil {
		if out.Events, err = s.events.ListByJob(dbc, job.ID, jobEventLimit); err != nil {
			s.log.Warn("List job events failed", "job_id", job.ID, "error", err)
		}
	}
	if out.Status == JobResultFailed {
		out.Error = jobException(job, out.RowErrors)
		out.Problem = out.Error.Error()
	}
	return out, nil
}

func (s *jobService) load(dbc dbctx.Context, jobID uuid.UUID, user uuid.UUID) (*types.JobRun, error) {
	job, err := s.repo.GetByID(dbc, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return nil, errs.JobNotFound(jobID)
	}
	ok, err := s.access.allowed(dbc, job.ContributorID, user)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.JobNotFound(jobID)
	}
	return job, nil
}

func (s *jobService) appendEvent(dbc dbctx.Context, job *types.JobRun, kind types.JobEventKind) {
	if s.events == nil {
		return
	}
	err := s.events.Append(dbc, &types.JobRunEvent{
		JobID:     job.ID,
		JobType:   job.JobType,
		Kind:      kind,
		Status:    job.Status,
		Stage:     job.Stage,
		Progress:  job.Progress,
		Message:   job.Message,
		CreatedAt: time.Now(),
	})
	if err != nil {
		s.log.Warn("Append job event failed", "job_id", job.ID, "kind", kind, "error", err)
	}
}

// jobException collects the failure of job and the row problems on the
// current page.
func jobException(job *types.JobRun, rows []*csvimport.RowError) *apierr.Error {
	var problems []*apierr.Error
	if job.Error != "" {
		problems = append(problems, apierr.New(http.StatusInternalServerError, "job_failed", fmt.Errorf("%s", job.Error)))
	}
	for _, r := range rows {
		problems = append(problems, apierr.New(http.StatusBadRequest, r.Code, fmt.Errorf("%s", r.Message)))
	}
	return errs.JobException(problems)
}
