// Package csvjob holds what the CSV validation and import pipelines share:
// job parameters and identity, the typed execution context, the CSV state
// updater and the step readers and listeners.
package csvjob

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	jobrt "github.com/yungbote/dataimport-backend/internal/jobs/runtime"
)

const (
	JobValidatePaperCSV = "validate-paper-csv"
	JobImportPaperCSV   = "import-paper-csv"
)

const (
	ParamCSVID         = "csv_id"
	ParamCSVType       = "csv_type"
	ParamContributorID = "contributor_id"
	ParamRevision      = "csv_revision"
)

// identifying parameters make up the instance key.
var identifying = []string{ParamCSVID, ParamCSVType, ParamContributorID, ParamRevision}

type Params struct {
	CSVID         uuid.UUID
	CSVType       csvimport.Type
	ContributorID uuid.UUID
	Revision      int
}

func ParamsFor(csv *csvimport.CSV, contributor uuid.UUID) Params {
	return Params{
		CSVID:         csv.ID,
		CSVType:       csv.Type,
		ContributorID: contributor,
		Revision:      csv.Revision,
	}
}

func (p Params) Map() map[string]string {
	return map[string]string{
		ParamCSVID:         p.CSVID.String(),
		ParamCSVType:       string(p.CSVType),
		ParamContributorID: p.ContributorID.String(),
		ParamRevision:      strconv.Itoa(p.Revision),
	}
}

// ParamsFromJob reads the parameters from the job payload.
func ParamsFromJob(jc *jobrt.Context) (Params, error) {
	var p Params
	csvID, ok := jc.PayloadUUID(ParamCSVID)
	if !ok || csvID == uuid.Nil {
		return p, fmt.Errorf("missing %s", ParamCSVID)
	}
	typ, err := csvimport.ParseType(jc.PayloadString(ParamCSVType))
	if err != nil {
		return p, err
	}
	contributor, ok := jc.PayloadUUID(ParamContributorID)
	if !ok || contributor == uuid.Nil {
		return p, fmt.Errorf("missing %s", ParamContributorID)
	}
	p.CSVID = csvID
	p.CSVType = typ
	p.ContributorID = contributor
	if raw := jc.PayloadString(ParamRevision); raw != "" {
		if p.Revision, err = strconv.Atoi(raw); err != nil {
			return p, fmt.Errorf("bad %s: %w", ParamRevision, err)
		}
	}
	return p, nil
}

// InstanceKey hashes the job name with its identifying parameters. Two
// submissions with the same key are the same job instance.
func InstanceKey(jobName string, params map[string]string) string {
	keys := make([]string, 0, len(identifying))
	for _, k := range identifying {
		if _, ok := params[k]; ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(jobName)
	for _, k := range keys {
		b.WriteString("\x00")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params[k])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
