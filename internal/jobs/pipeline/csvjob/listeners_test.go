package csvjob

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/dataimport/errs"
)

func TestRowErrorsFlattensCauses(t *testing.T) {
	jobID, csvID := uuid.New(), uuid.New()
	err := &errs.RecordParsingError{Causes: []error{
		errs.UnknownCSVValueType("foo", 3, 2),
		errs.InconsistentCSVColumnCount(4, 5, 3),
	}}

	rows := RowErrors(jobID, csvID, "parse_typed_records", 3, 4, err)
	if len(rows) != 2 {
		t.Fatalf("rows: want=2 got=%d", len(rows))
	}
	if rows[0].Code != "unknown_csv_value_type" || rows[0].Column == nil || *rows[0].Column != 2 {
		t.Fatalf("first row: %+v", rows[0])
	}
	if rows[1].Code != "inconsistent_csv_column_count" || rows[1].Column != nil {
		t.Fatalf("second row: %+v", rows[1])
	}
	for _, r := range rows {
		if r.JobID != jobID || r.CSVID != csvID || r.ItemNumber != 3 || r.LineNumber != 4 {
			t.Fatalf("position: %+v", r)
		}
	}

	plain := RowErrors(jobID, csvID, "s", 1, 2, errors.New("boom"))
	if len(plain) != 1 || plain[0].Code != "" || plain[0].Message != "boom" {
		t.Fatalf("plain error: %+v", plain)
	}
}
