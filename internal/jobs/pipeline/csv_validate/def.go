package csv_validate

import (
	"github.com/yungbote/dataimport-backend/internal/data/repos"
	"github.com/yungbote/dataimport-backend/internal/dataimport/graph"
	"github.com/yungbote/dataimport-backend/internal/dataimport/paper"
	"github.com/yungbote/dataimport-backend/internal/jobs/orchestrator"
	"github.com/yungbote/dataimport-backend/internal/jobs/pipeline/csvjob"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

const (
	StageParseHeader        = "parse_header"
	StageParseTypedRecords  = "parse_typed_records"
	StageValidateHeader     = "validate_header"
	StageParsePapers        = "parse_papers"
	StageDeleteIntermediate = "delete_intermediate_results"
)

// Graph is the part of the knowledge graph validation reads.
type Graph interface {
	graph.ThingRepository
	graph.ResourceRepository
	graph.PredicateRepository
}

type Pipeline struct {
	log       *logger.Logger
	csvs      repos.CSVRepo
	typed     repos.TypedRecordRepo
	papers    repos.PaperRecordRepo
	rowErrors repos.RowErrorRepo
	graph     Graph
	parser    *paper.Parser
	obs       csvjob.StepObserver
	engine    *orchestrator.Engine
}

func New(
	baseLog *logger.Logger,
	csvs repos.CSVRepo,
	typed repos.TypedRecordRepo,
	papers repos.PaperRecordRepo,
	rowErrors repos.RowErrorRepo,
	g Graph,
	doi paper.DOIService,
	obs csvjob.StepObserver,
) *Pipeline {
	log := baseLog.With("job", csvjob.JobValidatePaperCSV)
	return &Pipeline{
		log:       log,
		csvs:      csvs,
		typed:     typed,
		papers:    papers,
		rowErrors: rowErrors,
		graph:     g,
		parser:    paper.NewParser(log, g, g, doi),
		obs:       obs,
		engine:    orchestrator.NewEngine(),
	}
}

func (p *Pipeline) Type() string { return csvjob.JobValidatePaperCSV }
