package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dataimport-backend/internal/data/repos"
	repocsv "github.com/yungbote/dataimport-backend/internal/data/repos/csvimport"
	"github.com/yungbote/dataimport-backend/internal/dataimport/errs"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/jobs/pipeline/csvjob"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

type CSVService interface {
	FindByIDAndCreatedBy(dbc dbctx.Context, id uuid.UUID, user uuid.UUID) (*csvimport.CSV, error)
	FindAllByCreatedBy(dbc dbctx.Context, createdBy uuid.UUID, page repos.Page) ([]*csvimport.CSV, int64, error)
	Create(dbc dbctx.Context, cmd CreateCSVCommand) (uuid.UUID, error)
	Update(dbc dbctx.Context, cmd UpdateCSVCommand) error
	DeleteByID(dbc dbctx.Context, id uuid.UUID, user uuid.UUID) error

	Validate(dbc dbctx.Context, id uuid.UUID, user uuid.UUID) (uuid.UUID, error)
	FindValidationStatus(dbc dbctx.Context, id uuid.UUID, user uuid.UUID) (*JobStatus, error)
	FindValidationResults(dbc dbctx.Context, id uuid.UUID, user uuid.UUID, page repos.Page) (*JobResult, error)
	StopValidation(dbc dbctx.Context, id uuid.UUID, user uuid.UUID) error

	Import(dbc dbctx.Context, id uuid.UUID, user uuid.UUID) (uuid.UUID, error)
	FindImportStatus(dbc dbctx.Context, id uuid.UUID, user uuid.UUID) (*JobStatus, error)
	FindImportResults(dbc dbctx.Context, id uuid.UUID, user uuid.UUID, page repos.Page) (*JobResult, error)
	StopImport(dbc dbctx.Context, id uuid.UUID, user uuid.UUID) error
}

type csvService struct {
	db      *gorm.DB
	log     *logger.Logger
	csvs    repos.CSVRepo
	typed   repos.TypedRecordRepo
	papers  repos.PaperRecordRepo
	results repos.ImportResultRepo
	rows    repos.RowErrorRepo
	jobs    JobService
	access  accessChecker
	now     func() time.Time
}

// NewCSVService uses time.Now when clock is nil.
func NewCSVService(db *gorm.DB, baseLog *logger.Logger, rs repos.Set, jobs JobService, clock func() time.Time) CSVService {
	if clock == nil {
		clock = time.Now
	}
	return &csvService{
		db:      db,
		log:     baseLog.With("service", "CSVService"),
		csvs:    rs.CSV,
		typed:   rs.TypedRecords,
		papers:  rs.PaperRecords,
		results: rs.Results,
		rows:    rs.RowErrors,
		jobs:    jobs,
		access:  accessChecker{contributors: rs.Contributors},
		now:     clock,
	}
}

// load returns the CSV when user may act on it, CSVNotFound otherwise.
func (s *csvService) load(dbc dbctx.Context, id uuid.UUID, user uuid.UUID) (*csvimport.CSV, error) {
	csv, err := s.csvs.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("load csv: %w", err)
	}
	if csv == nil {
		return nil, errs.CSVNotFound(id)
	}
	ok, err := s.access.allowed(dbc, csv.CreatedBy, user)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.CSVNotFound(id)
	}
	return csv, nil
}

func (s *csvService) FindByIDAndCreatedBy(dbc dbctx.Context, id uuid.UUID, user uuid.UUID) (*csvimport.CSV, error) {
	return s.load(dbc, id, user)
}

func (s *csvService) FindAllByCreatedBy(dbc dbctx.Context, createdBy uuid.UUID, page repos.Page) ([]*csvimport.CSV, int64, error) {
	return s.csvs.List(dbc, &createdBy, page)
}

func (s *csvService) Create(dbc dbctx.Context, cmd CreateCSVCommand) (uuid.UUID, error) {
	if strings.TrimSpace(cmd.Data) == "" {
		return uuid.Nil, errs.CSVCannotBeBlank()
	}
	if err := validateCommand(cmd); err != nil {
		return uuid.Nil, err
	}
	format := cmd.Format
	if format == "" {
		format = csvimport.FormatDefault
	}
	hash := csvimport.HashData(cmd.Data)
	exists, err := s.csvs.ExistsByDataHash(dbc, hash)
	if err != nil {
		return uuid.Nil, fmt.Errorf("check data hash: %w", err)
	}
	if exists {
		return uuid.Nil, errs.CSVAlreadyExists()
	}
	csv := &csvimport.CSV{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(cmd.Name),
		Type:      cmd.Type,
		Format:    format,
		State:     csvimport.StateUploaded,
		Data:      cmd.Data,
		DataHash:  hash,
		CreatedBy: cmd.CreatedBy,
		CreatedAt: s.now().UTC(),
	}
	if err := s.csvs.Create(dbc, csv); err != nil {
		if errors.Is(err, repocsv.ErrDuplicateData) {
			return uuid.Nil, errs.CSVAlreadyExists()
		}
		return uuid.Nil, fmt.Errorf("create csv: %w", err)
	}
	s.log.Info("CSV uploaded", "csv_id", csv.ID, "contributor_id", csv.CreatedBy, "bytes", len(csv.Data))
	return csv.ID, nil
}

// importStarted are the states in which a CSV may no longer change.
var importStarted = map[csvimport.State]bool{
	csvimport.StateImportQueued:  true,
	csvimport.StateImportRunning: true,
	csvimport.StateImportStopped: true,
	csvimport.StateImportFailed:  true,
	csvimport.StateImportDone:    true,
}

func (s *csvService) Update(dbc dbctx.Context, cmd UpdateCSVCommand) error {
	if cmd.empty() {
		return nil
	}
	if cmd.Data != nil && strings.TrimSpace(*cmd.Data) == "" {
		return errs.CSVCannotBeBlank()
	}
	if err := validateCommand(cmd); err != nil {
		return err
	}
	csv, err := s.load(dbc, cmd.CSVID, cmd.ContributorID)
	if err != nil {
		return err
	}
	if importStarted[csv.State] {
		return errs.CSVAlreadyImported(csv.ID)
	}

	updates := map[string]interface{}{}
	dataChanged := false
	if cmd.Data != nil && *cmd.Data != csv.Data {
		hash := csvimport.HashData(*cmd.Data)
		exists, err := s.csvs.ExistsByDataHash(dbc, hash)
		if err != nil {
			return fmt.Errorf("check data hash: %w", err)
		}
		if exists {
			return errs.CSVAlreadyExists()
		}
		updates["data"] = *cmd.Data
		updates["data_hash"] = hash
		dataChanged = true
	}
	if cmd.Name != nil {
		if name := strings.TrimSpace(*cmd.Name); name != csv.Name {
			updates["name"] = name
		}
	}
	if cmd.Type != nil && *cmd.Type != csv.Type {
		updates["type"] = *cmd.Type
	}
	if cmd.Format != nil && *cmd.Format != csv.Format {
		updates["format"] = *cmd.Format
	}
	// Resubmitting the stored values leaves the CSV and its jobs alone.
	if len(updates) == 0 {
		return nil
	}

	if validationActive(csv) {
		if err := s.jobs.StopJob(dbc, *csv.ValidationJobID, cmd.ContributorID); err != nil {
			return err
		}
	}

	// A new revision gives the next validation a new job instance.
	updates["revision"] = csv.Revision + 1
	updates["state"] = csvimport.StateUploaded
	updates["validation_job_id"] = nil
	updates["import_job_id"] = nil
	return inTx(s.db, dbc, func(dbc dbctx.Context) error {
		if dataChanged {
			if err := s.clearStaging(dbc, csv.ID); err != nil {
				return err
			}
		}
		if err := s.csvs.UpdateFields(dbc, csv.ID, updates); err != nil {
			if errors.Is(err, repocsv.ErrDuplicateData) {
				return errs.CSVAlreadyExists()
			}
			return fmt.Errorf("update csv: %w", err)
		}
		return nil
	})
}

func validationActive(csv *csvimport.CSV) bool {
	return csv.ValidationJobID != nil &&
		(csv.State == csvimport.StateValidationQueued || csv.State == csvimport.StateValidationRunning)
}

func importActive(csv *csvimport.CSV) bool {
	return csv.ImportJobID != nil &&
		(csv.State == csvimport.StateImportQueued || csv.State == csvimport.StateImportRunning)
}

func (s *csvService) clearStaging(dbc dbctx.Context, csvID uuid.UUID) error {
	if _, err := s.typed.DeleteByCSV(dbc, csvID); err != nil {
		return fmt.Errorf("delete typed records: %w", err)
	}
	if _, err := s.papers.DeleteByCSV(dbc, csvID); err != nil {
		return fmt.Errorf("delete paper records: %w", err)
	}
	return nil
}

func (s *csvService) DeleteByID(dbc dbctx.Context, id uuid.UUID, user uuid.UUID) error {
	csv, err := s.load(dbc, id, user)
	if err != nil {
		return err
	}
	if validationActive(csv) {
		if err := s.jobs.StopJob(dbc, *csv.ValidationJobID, user); err != nil {
			s.log.Warn("Stop validation before delete failed", "csv_id", id, "error", err)
		}
	}
	if importActive(csv) {
		if err := s.jobs.StopJob(dbc, *csv.ImportJobID, user); err != nil {
			s.log.Warn("Stop import before delete failed", "csv_id", id, "error", err)
		}
	}
	err = inTx(s.db, dbc, func(dbc dbctx.Context) error {
		if err := s.clearStaging(dbc, id); err != nil {
			return err
		}
		if _, err := s.rows.DeleteByCSV(dbc, id); err != nil {
			return fmt.Errorf("delete row errors: %w", err)
		}
		if _, err := s.results.DeleteByCSV(dbc, id); err != nil {
			return fmt.Errorf("delete import results: %w", err)
		}
		return s.csvs.Delete(dbc, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("CSV deleted", "csv_id", id, "contributor_id", user)
	return nil
}

func (s *csvService) Validate(dbc dbctx.Context, id uuid.UUID, user uuid.UUID) (uuid.UUID, error) {
	csv, err := s.load(dbc, id, user)
	if err != nil {
		return uuid.Nil, err
	}
	switch {
	case csv.State == csvimport.StateValidationQueued || csv.State == csvimport.StateValidationRunning:
		return uuid.Nil, errs.CSVValidationAlreadyRunning(id)
	case csv.State.IsSameOrAfter(csvimport.StateValidationDone):
		return uuid.Nil, errs.CSVAlreadyValidated(id)
	case csv.State == csvimport.StateValidationFailed:
		return uuid.Nil, errs.CSVValidationRestartFailed(id, fmt.Errorf("validation failed"))
	}

	var jobID uuid.UUID
	err = inTx(s.db, dbc, func(dbc dbctx.Context) error {
		var runErr error
		jobID, runErr = s.jobs.RunJob(dbc, csvjob.JobValidatePaperCSV, csvjob.ParamsFor(csv, user).Map())
		switch {
		case runErr == nil:
		case errors.Is(runErr, errs.JobAlreadyComplete(jobID)):
			return errs.CSVAlreadyValidated(id)
		case errors.Is(runErr, errs.JobAlreadyRunning(jobID)):
			return errs.CSVValidationAlreadyRunning(id)
		case errors.Is(runErr, errs.JobRestartFailed(jobID, nil)):
			return errs.CSVValidationRestartFailed(id, runErr)
		default:
			return runErr
		}
		return s.csvs.UpdateFields(dbc, id, map[string]interface{}{
			"state":             csvimport.StateValidationQueued,
			"validation_job_id": jobID,
			"import_job_id":     nil,
		})
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.log.Info("CSV validation submitted", "csv_id", id, "job_id", jobID)
	return jobID, nil
}

func (s *csvService) Import(dbc dbctx.Context, id uuid.UUID, user uuid.UUID) (uuid.UUID, error) {
	csv, err := s.load(dbc, id, user)
	if err != nil {
		return uuid.Nil, err
	}
	switch {
	case !csv.State.IsSameOrAfter(csvimport.StateValidationDone):
		return uuid.Nil, errs.CSVNotValidated(id)
	case csv.State == csvimport.StateImportQueued || csv.State == csvimport.StateImportRunning:
		return uuid.Nil, errs.CSVImportAlreadyRunning(id)
	case csv.State == csvimport.StateImportDone:
		return uuid.Nil, errs.CSVAlreadyImported(id)
	case csv.State == csvimport.StateImportFailed:
		return uuid.Nil, errs.CSVImportRestartFailed(id, fmt.Errorf("import failed"))
	}

	var jobID uuid.UUID
	err = inTx(s.db, dbc, func(dbc dbctx.Context) error {
		var runErr error
		jobID, runErr = s.jobs.RunJob(dbc, csvjob.JobImportPaperCSV, csvjob.ParamsFor(csv, user).Map())
		switch {
		case runErr == nil:
		case errors.Is(runErr, errs.JobAlreadyComplete(jobID)):
			return errs.CSVAlreadyImported(id)
		case errors.Is(runErr, errs.JobAlreadyRunning(jobID)):
			return errs.CSVImportAlreadyRunning(id)
		case errors.Is(runErr, errs.JobRestartFailed(jobID, nil)):
			return errs.CSVImportRestartFailed(id, runErr)
		default:
			return runErr
		}
		return s.csvs.UpdateFields(dbc, id, map[string]interface{}{
			"state":         csvimport.StateImportQueued,
			"import_job_id": jobID,
		})
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.log.Info("CSV import submitted", "csv_id", id, "job_id", jobID)
	return jobID, nil
}

func (s *csvService) validationJob(dbc dbctx.Context, id, user uuid.UUID) (uuid.UUID, error) {
	csv, err := s.load(dbc, id, user)
	if err != nil {
		return uuid.Nil, err
	}
	if csv.ValidationJobID == nil {
		return uuid.Nil, errs.CSVValidationJobNotFound(id, nil)
	}
	return *csv.ValidationJobID, nil
}

func (s *csvService) importJob(dbc dbctx.Context, id, user uuid.UUID) (uuid.UUID, error) {
	csv, err := s.load(dbc, id, user)
	if err != nil {
		return uuid.Nil, err
	}
	if csv.ImportJobID == nil {
		return uuid.Nil, errs.CSVImportJobNotFound(id, nil)
	}
	return *csv.ImportJobID, nil
}

func (s *csvService) FindValidationStatus(dbc dbctx.Context, id uuid.UUID, user uuid.UUID) (*JobStatus, error) {
	jobID, err := s.validationJob(dbc, id, user)
	if err != nil {
		return nil, err
	}
	return s.jobs.FindJobStatusByID(dbc, jobID, user)
}

func (s *csvService) FindValidationResults(dbc dbctx.Context, id uuid.UUID, user uuid.UUID, page repos.Page) (*JobResult, error) {
	jobID, err := s.validationJob(dbc, id, user)
	if err != nil {
		return nil, err
	}
	return s.jobs.FindJobResultByID(dbc, jobID, user, page)
}

func (s *csvService) StopValidation(dbc dbctx.Context, id uuid.UUID, user uuid.UUID) error {
	jobID, err := s.validationJob(dbc, id, user)
	if err != nil {
		return err
	}
	return s.jobs.StopJob(dbc, jobID, user)
}

func (s *csvService) FindImportStatus(dbc dbctx.Context, id uuid.UUID, user uuid.UUID) (*JobStatus, error) {
	jobID, err := s.importJob(dbc, id, user)
	if err != nil {
		return nil, err
	}
	return s.jobs.FindJobStatusByID(dbc, jobID, user)
}

func (s *csvService) FindImportResults(dbc dbctx.Context, id uuid.UUID, user uuid.UUID, page repos.Page) (*JobResult, error) {
	jobID, err := s.importJob(dbc, id, user)
	if err != nil {
		return nil, err
	}
	return s.jobs.FindJobResultByID(dbc, jobID, user, page)
}

func (s *csvService) StopImport(dbc dbctx.Context, id uuid.UUID, user uuid.UUID) error {
	jobID, err := s.importJob(dbc, id, user)
	if err != nil {
		return err
	}
	return s.jobs.StopJob(dbc, jobID, user)
}
