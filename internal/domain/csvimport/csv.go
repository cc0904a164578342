package csvimport

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const TypePaper Type = "PAPER"

func ParseType(raw string) (Type, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(TypePaper):
		return TypePaper, nil
	}
	return "", fmt.Errorf("unknown csv type %q", raw)
}

// Format selects the dialect used to split raw CSV data into records.
type Format string

const (
	FormatDefault             Format = "DEFAULT"
	FormatExcelCommaDelimited Format = "EXCEL_COMMA_DELIMITED"
)

func ParseFormat(raw string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", string(FormatDefault):
		return FormatDefault, nil
	case string(FormatExcelCommaDelimited):
		return FormatExcelCommaDelimited, nil
	}
	return "", fmt.Errorf("unknown csv format %q", raw)
}

type CSV struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name            string     `gorm:"column:name;not null" json:"name"`
	Type            Type       `gorm:"column:type;not null" json:"type"`
	Format          Format     `gorm:"column:format;not null" json:"format"`
	State           State      `gorm:"column:state;not null;index" json:"state"`
	ValidationJobID *uuid.UUID `gorm:"type:uuid;column:validation_job_id" json:"validation_job_id,omitempty"`
	ImportJobID     *uuid.UUID `gorm:"type:uuid;column:import_job_id" json:"import_job_id,omitempty"`
	Data            string     `gorm:"column:data;type:text;not null" json:"-"`
	DataHash        string     `gorm:"column:data_hash;not null;uniqueIndex" json:"data_hash"`
	Revision        int        `gorm:"column:revision;not null;default:0" json:"revision"`
	CreatedBy       uuid.UUID  `gorm:"type:uuid;column:created_by;not null;index" json:"created_by"`
	CreatedAt       time.Time  `gorm:"column:created_at;not null" json:"created_at"`
}

func (CSV) TableName() string { return "csv" }

// HashData returns the md5 hex digest used for duplicate detection.
func HashData(data string) string {
	sum := md5.Sum([]byte(data))
	return hex.EncodeToString(sum[:])
}
