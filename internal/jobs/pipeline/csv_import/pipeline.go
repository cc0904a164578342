package csv_import

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/dataimport/graph"
	"github.com/yungbote/dataimport-backend/internal/dataimport/paper"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/jobs/orchestrator"
	"github.com/yungbote/dataimport-backend/internal/jobs/pipeline/csvjob"
	jobrt "github.com/yungbote/dataimport-backend/internal/jobs/runtime"
	"github.com/yungbote/dataimport-backend/internal/jobs/step"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	params, err := csvjob.ParamsFromJob(jc)
	if err != nil {
		jc.Fail("start", err)
		return nil
	}
	return csvjob.ImportStates(p.csvs).Run(jc, params.CSVID, func(csv *csvimport.CSV) error {
		return p.engine.Run(jc, p.stages(csv, params.ContributorID), map[string]any{
			"csv_id": csv.ID.String(),
		})
	})
}

func (p *Pipeline) stages(csv *csvimport.CSV, contributor uuid.UUID) []orchestrator.Stage {
	return []orchestrator.Stage{
		{
			Name:     StageCreatePredicates,
			StartPct: 0,
			EndPct:   20,
			Msg:      "Creating predicates",
			Run: func(jc *jobrt.Context, st *orchestrator.State) (map[string]any, error) {
				return p.createPredicates(jc, st, csv, contributor)
			},
		},
		{
			Name:     StageCreateStatementObjects,
			StartPct: 20,
			EndPct:   40,
			Msg:      "Creating resources",
			Run: func(jc *jobrt.Context, st *orchestrator.State) (map[string]any, error) {
				return p.createStatementObjects(jc, st, csv, contributor)
			},
		},
		{
			Name:     StageCreatePapers,
			StartPct: 40,
			EndPct:   95,
			Msg:      "Creating papers",
			Run: func(jc *jobrt.Context, st *orchestrator.State) (map[string]any, error) {
				return p.createPapers(jc, st, csv, contributor)
			},
		},
		{
			Name:     StageDeletePaperRecords,
			StartPct: 95,
			EndPct:   100,
			Msg:      "Cleaning up",
			Run: func(jc *jobrt.Context, st *orchestrator.State) (map[string]any, error) {
				return p.deletePaperRecords(jc, csv)
			},
		},
	}
}

func (p *Pipeline) paperReader(csvID uuid.UUID) *csvjob.StagedReader[*csvimport.PaperCSVRecord] {
	return csvjob.NewStagedReader(func(ctx context.Context, after int64, limit int) ([]*csvimport.PaperCSVRecord, error) {
		return p.papers.ListAfter(dbctx.Context{Ctx: ctx}, csvID, after, limit)
	}, func(r *csvimport.PaperCSVRecord) int64 { return r.ItemNumber }, 100)
}

func (p *Pipeline) listeners(jc *jobrt.Context, csvID uuid.UUID) []step.Listener[*csvimport.PaperCSVRecord] {
	return []step.Listener[*csvimport.PaperCSVRecord]{
		csvjob.RowErrorListener(p.rowErrors, p.log, p.Type(), jc.Job.ID, csvID, csvjob.PaperPosition, p.obs),
	}
}

// createPredicates creates one predicate per distinct new label.
func (p *Pipeline) createPredicates(jc *jobrt.Context, st *orchestrator.State, csv *csvimport.CSV, contributor uuid.UUID) (map[string]any, error) {
	ec, err := csvjob.Load(jc, st)
	if err != nil {
		return nil, err
	}
	s := &step.Step[*csvimport.PaperCSVRecord, []string]{
		Name:      StageCreatePredicates,
		ChunkSize: chunkSize,
		Reader:    p.paperReader(csv.ID),
		Process: func(_ context.Context, rec *csvimport.PaperCSVRecord) (step.Result[[]string], error) {
			var labels []string
			for _, stmt := range rec.Statements {
				if stmt.Predicate.IsExisting() {
					continue
				}
				if _, done := ec.PredicateIDs[stmt.Predicate.Label]; !done {
					labels = append(labels, stmt.Predicate.Label)
				}
			}
			if len(labels) == 0 {
				return step.Filter[[]string](), nil
			}
			return step.Ok(labels), nil
		},
		Write: func(ctx context.Context, items [][]string) error {
			var results []*csvimport.PaperCSVRecordImportResult
			for _, labels := range items {
				for _, label := range labels {
					if _, done := ec.PredicateIDs[label]; done {
						continue
					}
					id, err := p.graph.CreatePredicate(ctx, contributor, label)
					if err != nil {
						return fmt.Errorf("create predicate %q: %w", label, err)
					}
					ec.PredicateIDs[label] = id
					results = append(results, &csvimport.PaperCSVRecordImportResult{
						CSVID:              csv.ID,
						ImportedEntityID:   id,
						ImportedEntityType: csvimport.ImportedPredicate,
					})
				}
			}
			return p.results.CreateBatch(dbctx.Context{Ctx: ctx}, results)
		},
		Skip:       step.AlwaysSkip,
		Listeners:  p.listeners(jc, csv.ID),
		Stop:       jc.StopRequested,
		Checkpoint: ec,
		Log:        p.log,
	}
	stats, err := s.Run(jc.Ctx)
	return map[string]any{"records": stats.ReadCount, "predicates": len(ec.PredicateIDs)}, err
}

type objectRef struct {
	label      string
	classes    []csvimport.ClassID
	itemNumber int64
	lineNumber int64
}

// key identifies a created resource. A label used both as a research problem
// and as a plain resource yields two resources.
func (o objectRef) key() string { return objectKey(o.label, o.classes) }

func objectKey(label string, classes []csvimport.ClassID) string {
	if len(classes) == 0 {
		return label
	}
	parts := make([]string, len(classes))
	for i, c := range classes {
		parts[i] = string(c)
	}
	return label + "\x1f" + strings.Join(parts, ",")
}

func objectClasses(stmt csvimport.ContributionStatement) []csvimport.ClassID {
	if stmt.Predicate.ID == csvimport.PredicateHasResearchProblem {
		return []csvimport.ClassID{csvimport.ClassProblem}
	}
	return nil
}

// statementObjects lists the resources a record refers to by label.
func statementObjects(rec *csvimport.PaperCSVRecord) []objectRef {
	var out []objectRef
	for _, stmt := range rec.Statements {
		v := stmt.Object
		if v.Type != csvimport.ClassResource || v.InNamespace(paper.NamespaceORKG) || v.IsBlank() {
			continue
		}
		out = append(out, objectRef{
			label:      *v.Value,
			classes:    objectClasses(stmt),
			itemNumber: rec.ItemNumber,
			lineNumber: rec.LineNumber,
		})
	}
	return out
}

// createStatementObjects creates one resource per distinct label and class
// set, so later rows reuse what earlier rows introduced.
func (p *Pipeline) createStatementObjects(jc *jobrt.Context, st *orchestrator.State, csv *csvimport.CSV, contributor uuid.UUID) (map[string]any, error) {
	ec, err := csvjob.Load(jc, st)
	if err != nil {
		return nil, err
	}
	s := &step.Step[*csvimport.PaperCSVRecord, []objectRef]{
		Name:      StageCreateStatementObjects,
		ChunkSize: chunkSize,
		Reader:    p.paperReader(csv.ID),
		Process: func(_ context.Context, rec *csvimport.PaperCSVRecord) (step.Result[[]objectRef], error) {
			refs := statementObjects(rec)
			if len(refs) == 0 {
				return step.Filter[[]objectRef](), nil
			}
			return step.Ok(refs), nil
		},
		Write: func(ctx context.Context, items [][]objectRef) error {
			var results []*csvimport.PaperCSVRecordImportResult
			for _, refs := range items {
				for _, ref := range refs {
					if _, done := ec.ObjectIDs[ref.key()]; done {
						continue
					}
					id, err := p.graph.CreateResource(ctx, contributor, ref.label, ref.classes)
					if err != nil {
						return fmt.Errorf("create resource %q: %w", ref.label, err)
					}
					ec.ObjectIDs[ref.key()] = id
					item, line := ref.itemNumber, ref.lineNumber
					results = append(results, &csvimport.PaperCSVRecordImportResult{
						CSVID:              csv.ID,
						ImportedEntityID:   id,
						ImportedEntityType: csvimport.ImportedResource,
						ItemNumber:         &item,
						LineNumber:         &line,
					})
				}
			}
			return p.results.CreateBatch(dbctx.Context{Ctx: ctx}, results)
		},
		Skip:       step.AlwaysSkip,
		Listeners:  p.listeners(jc, csv.ID),
		Stop:       jc.StopRequested,
		Checkpoint: ec,
		Log:        p.log,
	}
	stats, err := s.Run(jc.Ctx)
	return map[string]any{"records": stats.ReadCount, "resources": len(ec.ObjectIDs)}, err
}

type paperCommand struct {
	rec *csvimport.PaperCSVRecord
	cmd graph.CreatePaperCommand
}

func (p *Pipeline) createPapers(jc *jobrt.Context, st *orchestrator.State, csv *csvimport.CSV, contributor uuid.UUID) (map[string]any, error) {
	ec, err := csvjob.Load(jc, st)
	if err != nil {
		return nil, err
	}
	s := &step.Step[*csvimport.PaperCSVRecord, paperCommand]{
		Name:      StageCreatePapers,
		ChunkSize: chunkSize,
		Reader:    p.paperReader(csv.ID),
		Process: func(_ context.Context, rec *csvimport.PaperCSVRecord) (step.Result[paperCommand], error) {
			cmd, err := BuildPaperCommand(rec, ec, contributor)
			if err != nil {
				return step.Result[paperCommand]{}, err
			}
			return step.Ok(paperCommand{rec: rec, cmd: cmd}), nil
		},
		Write: func(ctx context.Context, items []paperCommand) error {
			results := make([]*csvimport.PaperCSVRecordImportResult, 0, len(items))
			for _, it := range items {
				id, err := p.graph.CreatePaper(ctx, it.cmd)
				if err != nil {
					return fmt.Errorf("create paper for row %d: %w", it.rec.ItemNumber, err)
				}
				item, line := it.rec.ItemNumber, it.rec.LineNumber
				results = append(results, &csvimport.PaperCSVRecordImportResult{
					CSVID:              csv.ID,
					ImportedEntityID:   id,
					ImportedEntityType: csvimport.ImportedPaper,
					ItemNumber:         &item,
					LineNumber:         &line,
				})
			}
			return p.results.CreateBatch(dbctx.Context{Ctx: ctx}, results)
		},
		Skip:       step.AlwaysSkip,
		Listeners:  p.listeners(jc, csv.ID),
		Stop:       jc.StopRequested,
		Checkpoint: ec,
		Log:        p.log,
	}
	stats, err := s.Run(jc.Ctx)
	return map[string]any{"papers": stats.WriteCount}, err
}

// BuildPaperCommand resolves the predicate and object labels of rec through
// the ids created by the earlier stages.
func BuildPaperCommand(rec *csvimport.PaperCSVRecord, ec *csvjob.ExecutionContext, contributor uuid.UUID) (graph.CreatePaperCommand, error) {
	cmd := graph.CreatePaperCommand{
		ContributorID:    contributor,
		Title:            rec.Title,
		ResearchFieldID:  rec.ResearchFieldID,
		Authors:          rec.Authors,
		PublicationMonth: rec.PublicationMonth,
		PublicationYear:  rec.PublicationYear,
		PublishedIn:      rec.PublishedIn,
		URL:              rec.URL,
		DOI:              rec.DOI,
		ExtractionMethod: rec.ExtractionMethod,
	}
	for _, stmt := range rec.Statements {
		pred := stmt.Predicate.ID
		if !stmt.Predicate.IsExisting() {
			id, ok := ec.PredicateIDs[stmt.Predicate.Label]
			if !ok {
				return cmd, fmt.Errorf("row %d: predicate %q was not created", rec.ItemNumber, stmt.Predicate.Label)
			}
			pred = id
		}
		v := stmt.Object
		var obj graph.Object
		switch {
		case v.InNamespace(paper.NamespaceORKG):
			obj = graph.ThingObject(csvimport.ThingID(v.StringValue()))
		case v.Type == csvimport.ClassResource:
			id, ok := ec.ObjectIDs[objectKey(v.StringValue(), objectClasses(stmt))]
			if !ok {
				return cmd, fmt.Errorf("row %d: resource %q was not created", rec.ItemNumber, v.StringValue())
			}
			obj = graph.ThingObject(id)
		default:
			datatype, ok := csvimport.XSDType(v.Type)
			if !ok {
				return cmd, fmt.Errorf("row %d: no literal datatype for %s", rec.ItemNumber, v.Type)
			}
			obj = graph.LiteralObject(v.StringValue(), datatype)
		}
		cmd.Statements = append(cmd.Statements, graph.Statement{Predicate: pred, Object: obj})
	}
	return cmd, nil
}

func (p *Pipeline) deletePaperRecords(jc *jobrt.Context, csv *csvimport.CSV) (map[string]any, error) {
	dbc := dbctx.Context{Ctx: jc.Ctx}
	deleted, err := p.papers.DeleteByCSV(dbc, csv.ID)
	if err != nil {
		return nil, fmt.Errorf("delete paper records: %w", err)
	}
	counts, err := p.results.CountByType(dbc, csv.ID)
	if err != nil {
		return nil, fmt.Errorf("count import results: %w", err)
	}
	out := map[string]any{"deleted_paper_records": deleted}
	for typ, n := range counts {
		out[string(typ)] = n
	}
	return out, nil
}
