package csvimport

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CSVHeader is one parsed header cell. Column is 1-based.
type CSVHeader struct {
	Column     int      `json:"column"`
	Name       string   `json:"name"`
	Namespace  *string  `json:"namespace,omitempty"`
	ColumnType *ClassID `json:"column_type,omitempty"`
}

func (h CSVHeader) InNamespace(ns string) bool {
	return h.Namespace != nil && *h.Namespace == ns
}

// TypedValue is one parsed cell. A nil Value means the cell was empty.
type TypedValue struct {
	Namespace *string `json:"namespace,omitempty"`
	Value     *string `json:"value,omitempty"`
	Type      ClassID `json:"type"`
}

func (v TypedValue) InNamespace(ns string) bool {
	return v.Namespace != nil && *v.Namespace == ns
}

// IsBlank reports whether the value is missing or whitespace only.
func (v TypedValue) IsBlank() bool {
	if v.Value == nil {
		return true
	}
	for _, r := range *v.Value {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// StringValue returns the value or "" when nil.
func (v TypedValue) StringValue() string {
	if v.Value == nil {
		return ""
	}
	return *v.Value
}

// PositionAwareCSVRecord is a raw row with its 1-based data-row ordinal and the
// physical line it starts on.
type PositionAwareCSVRecord struct {
	ItemNumber int64
	LineNumber int64
	Values     []string
}

type TypedCSVRecord struct {
	ID         uuid.UUID                       `gorm:"type:uuid;primaryKey" json:"id"`
	CSVID      uuid.UUID                       `gorm:"type:uuid;column:csv_id;not null;index" json:"csv_id"`
	ItemNumber int64                           `gorm:"column:item_number;not null;index" json:"item_number"`
	LineNumber int64                           `gorm:"column:line_number;not null" json:"line_number"`
	Values     datatypes.JSONSlice[TypedValue] `gorm:"column:values;type:jsonb" json:"values"`
	CreatedAt  time.Time                       `gorm:"not null;default:now()" json:"created_at"`
}

func (TypedCSVRecord) TableName() string { return "csv_typed_record" }

// Value returns the value at a 0-based index, or false when out of range.
func (r *TypedCSVRecord) Value(index int) (TypedValue, bool) {
	if r == nil || index < 0 || index >= len(r.Values) {
		return TypedValue{}, false
	}
	return r.Values[index], true
}
