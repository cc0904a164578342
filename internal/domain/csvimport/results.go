package csvimport

import (
	"time"

	"github.com/google/uuid"
)

type ImportedEntityType string

const (
	ImportedPaper     ImportedEntityType = "PAPER"
	ImportedPredicate ImportedEntityType = "PREDICATE"
	ImportedResource  ImportedEntityType = "RESOURCE"
)

type PaperCSVRecordImportResult struct {
	ID                 uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	CSVID              uuid.UUID          `gorm:"type:uuid;column:csv_id;not null;index" json:"csv_id"`
	ImportedEntityID   ThingID            `gorm:"column:imported_entity_id;not null" json:"imported_entity_id"`
	ImportedEntityType ImportedEntityType `gorm:"column:imported_entity_type;not null" json:"imported_entity_type"`
	ItemNumber         *int64             `gorm:"column:item_number" json:"item_number,omitempty"`
	LineNumber         *int64             `gorm:"column:line_number" json:"line_number,omitempty"`
	CreatedAt          time.Time          `gorm:"not null;default:now();index" json:"created_at"`
}

func (PaperCSVRecordImportResult) TableName() string { return "csv_import_result" }

// RowError records a row that a chunked step skipped.
type RowError struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID      uuid.UUID `gorm:"type:uuid;column:job_id;not null;index" json:"job_id"`
	CSVID      uuid.UUID `gorm:"type:uuid;column:csv_id;not null;index" json:"csv_id"`
	Step       string    `gorm:"column:step;not null" json:"step"`
	ItemNumber int64     `gorm:"column:item_number;not null" json:"item_number"`
	LineNumber int64     `gorm:"column:line_number;not null" json:"line_number"`
	Column     *int      `gorm:"column:csv_column" json:"column,omitempty"`
	Code       string    `gorm:"column:code" json:"code"`
	Message    string    `gorm:"column:message;type:text" json:"message"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (RowError) TableName() string { return "csv_row_error" }

type Contributor struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DisplayName string    `gorm:"column:display_name;not null" json:"display_name"`
	IsAdmin     bool      `gorm:"column:is_admin;not null;default:false" json:"is_admin"`
	CreatedAt   time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Contributor) TableName() string { return "contributor" }
