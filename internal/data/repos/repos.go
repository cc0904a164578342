package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/dataimport-backend/internal/data/repos/csvimport"
	"github.com/yungbote/dataimport-backend/internal/data/repos/jobs"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

type CSVRepo = csvimport.CSVRepo
type TypedRecordRepo = csvimport.TypedRecordRepo
type PaperRecordRepo = csvimport.PaperRecordRepo
type ImportResultRepo = csvimport.ImportResultRepo
type RowErrorRepo = csvimport.RowErrorRepo
type ContributorRepo = csvimport.ContributorRepo
type Page = csvimport.Page

type JobRunRepo = jobs.JobRunRepo
type JobRunEventRepo = jobs.JobRunEventRepo

// Set groups every repository the process needs.
type Set struct {
	CSV          CSVRepo
	TypedRecords TypedRecordRepo
	PaperRecords PaperRecordRepo
	Results      ImportResultRepo
	RowErrors    RowErrorRepo
	Contributors ContributorRepo
	JobRuns      JobRunRepo
	JobEvents    JobRunEventRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		CSV:          csvimport.NewCSVRepo(db, baseLog),
		TypedRecords: csvimport.NewTypedRecordRepo(db, baseLog),
		PaperRecords: csvimport.NewPaperRecordRepo(db, baseLog),
		Results:      csvimport.NewImportResultRepo(db, baseLog),
		RowErrors:    csvimport.NewRowErrorRepo(db, baseLog),
		Contributors: csvimport.NewContributorRepo(db, baseLog),
		JobRuns:      jobs.NewJobRunRepo(db, baseLog),
		JobEvents:    jobs.NewJobRunEventRepo(db, baseLog),
	}
}
