package db

import (
	"fmt"

	"gorm.io/gorm"

	csvtypes "github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	jobtypes "github.com/yungbote/dataimport-backend/internal/domain/jobs"
)

// Models lists every table owned by the service, in creation order.
func Models() []interface{} {
	return []interface{}{
		// csv + staging
		&csvtypes.Contributor{},
		&csvtypes.CSV{},
		&csvtypes.TypedCSVRecord{},
		&csvtypes.PaperCSVRecord{},
		&csvtypes.PaperCSVRecordImportResult{},
		&csvtypes.RowError{},

		// job runtime
		&jobtypes.JobRun{},
		&jobtypes.JobRunEvent{},
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	return ensureIndexes(db)
}

func ensureIndexes(db *gorm.DB) error {
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_csv_typed_record_item ON csv_typed_record (csv_id, item_number)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_csv_paper_record_item ON csv_paper_record (csv_id, item_number)`,
		`CREATE INDEX IF NOT EXISTS idx_job_run_claim ON job_run (status, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_job_run_instance ON job_run (job_type, instance_key, created_at DESC)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("ensure index: %w", err)
		}
	}
	return nil
}
