package csvjob

import (
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
)

func TestInstanceKey(t *testing.T) {
	csv := &csvimport.CSV{ID: uuid.New(), Type: csvimport.TypePaper, Revision: 3}
	contributor := uuid.New()
	params := ParamsFor(csv, contributor).Map()

	a := InstanceKey(JobValidatePaperCSV, params)
	b := InstanceKey(JobValidatePaperCSV, ParamsFor(csv, contributor).Map())
	if a != b {
		t.Fatalf("key must be stable: want=%s got=%s", a, b)
	}

	params["ignored"] = "x"
	if got := InstanceKey(JobValidatePaperCSV, params); got != a {
		t.Fatalf("non-identifying params changed the key")
	}

	if InstanceKey(JobImportPaperCSV, params) == a {
		t.Fatalf("job name must be part of the key")
	}

	changed := *csv
	changed.Revision++
	if InstanceKey(JobValidatePaperCSV, ParamsFor(&changed, contributor).Map()) == a {
		t.Fatalf("an updated csv must give a new instance")
	}
	if InstanceKey(JobValidatePaperCSV, ParamsFor(csv, uuid.New()).Map()) == a {
		t.Fatalf("another contributor must give a new instance")
	}
}
