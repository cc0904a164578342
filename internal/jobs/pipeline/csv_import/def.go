package csv_import

import (
	"github.com/yungbote/dataimport-backend/internal/data/repos"
	"github.com/yungbote/dataimport-backend/internal/dataimport/graph"
	"github.com/yungbote/dataimport-backend/internal/jobs/orchestrator"
	"github.com/yungbote/dataimport-backend/internal/jobs/pipeline/csvjob"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

const (
	StageCreatePredicates       = "create_predicates"
	StageCreateStatementObjects = "create_statement_objects"
	StageCreatePapers           = "create_papers"
	StageDeletePaperRecords     = "delete_paper_records"
)

// Every pass commits one record per chunk. A graph write cannot roll back, so
// the checkpoint and import results must follow each record.
const chunkSize = 1

type Pipeline struct {
	log       *logger.Logger
	csvs      repos.CSVRepo
	papers    repos.PaperRecordRepo
	results   repos.ImportResultRepo
	rowErrors repos.RowErrorRepo
	graph     graph.Writer
	obs       csvjob.StepObserver
	engine    *orchestrator.Engine
}

func New(
	baseLog *logger.Logger,
	csvs repos.CSVRepo,
	papers repos.PaperRecordRepo,
	results repos.ImportResultRepo,
	rowErrors repos.RowErrorRepo,
	g graph.Writer,
	obs csvjob.StepObserver,
) *Pipeline {
	return &Pipeline{
		log:       baseLog.With("job", csvjob.JobImportPaperCSV),
		csvs:      csvs,
		papers:    papers,
		results:   results,
		rowErrors: rowErrors,
		graph:     g,
		obs:       obs,
		engine:    orchestrator.NewEngine(),
	}
}

func (p *Pipeline) Type() string { return csvjob.JobImportPaperCSV }
