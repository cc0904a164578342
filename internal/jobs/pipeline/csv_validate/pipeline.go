package csv_validate

import (
	"context"
	"fmt"

	"github.com/yungbote/dataimport-backend/internal/dataimport/errs"
	"github.com/yungbote/dataimport-backend/internal/dataimport/paper"
	"github.com/yungbote/dataimport-backend/internal/dataimport/parse"
	"github.com/yungbote/dataimport-backend/internal/dataimport/schema"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/jobs/orchestrator"
	"github.com/yungbote/dataimport-backend/internal/jobs/pipeline/csvjob"
	jobrt "github.com/yungbote/dataimport-backend/internal/jobs/runtime"
	"github.com/yungbote/dataimport-backend/internal/jobs/step"
	"github.com/yungbote/dataimport-backend/internal/platform/apierr"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	params, err := csvjob.ParamsFromJob(jc)
	if err != nil {
		jc.Fail("validate", err)
		return nil
	}
	return csvjob.ValidationStates(p.csvs).Run(jc, params.CSVID, func(csv *csvimport.CSV) error {
		sch, err := schema.ForType(csv.Type)
		if err != nil {
			return err
		}
		return p.engine.Run(jc, p.stages(csv, sch), map[string]any{
			"csv_id": csv.ID.String(),
		})
	})
}

func (p *Pipeline) stages(csv *csvimport.CSV, sch *schema.Schema) []orchestrator.Stage {
	return []orchestrator.Stage{
		{
			Name:     StageParseHeader,
			StartPct: 0,
			EndPct:   5,
			Msg:      "Parsing header",
			Run: func(jc *jobrt.Context, st *orchestrator.State) (map[string]any, error) {
				return p.parseHeader(jc, st, csv, sch)
			},
		},
		{
			Name:     StageParseTypedRecords,
			StartPct: 5,
			EndPct:   45,
			Msg:      "Typing rows",
			Run: func(jc *jobrt.Context, st *orchestrator.State) (map[string]any, error) {
				return p.parseTypedRecords(jc, st, csv, sch)
			},
		},
		{
			Name:     StageValidateHeader,
			StartPct: 45,
			EndPct:   50,
			Msg:      "Resolving predicates",
			Run: func(jc *jobrt.Context, st *orchestrator.State) (map[string]any, error) {
				return p.validateHeader(jc, st, csv, sch)
			},
		},
		{
			Name:     StageParsePapers,
			StartPct: 50,
			EndPct:   95,
			Msg:      "Parsing papers",
			Run: func(jc *jobrt.Context, st *orchestrator.State) (map[string]any, error) {
				return p.parsePapers(jc, st, csv, sch)
			},
		},
		{
			Name:     StageDeleteIntermediate,
			StartPct: 95,
			EndPct:   100,
			Msg:      "Cleaning up",
			Run: func(jc *jobrt.Context, st *orchestrator.State) (map[string]any, error) {
				return p.deleteIntermediate(jc, csv)
			},
		},
	}
}

// parseHeader starts every validation from empty staging, so rows staged for
// an earlier revision of the data never leak into this one.
func (p *Pipeline) parseHeader(jc *jobrt.Context, st *orchestrator.State, csv *csvimport.CSV, sch *schema.Schema) (map[string]any, error) {
	ec, err := csvjob.Load(jc, st)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: jc.Ctx}
	if _, err := p.typed.DeleteByCSV(dbc, csv.ID); err != nil {
		return nil, fmt.Errorf("clear typed records: %w", err)
	}
	if _, err := p.papers.DeleteByCSV(dbc, csv.ID); err != nil {
		return nil, fmt.Errorf("clear paper records: %w", err)
	}

	values, err := parse.NewStringReader(csv.Data, csv.Format).Header()
	if err != nil {
		return nil, err
	}
	headers, err := parse.NewRecordParser(sch).ParseHeader(values)
	if err != nil {
		return nil, p.headerError(jc, csv, StageParseHeader, err)
	}
	ec.Headers = headers
	ec.ResetStep(StageParseTypedRecords)
	ec.ResetStep(StageParsePapers)
	if err := ec.Commit(); err != nil {
		return nil, err
	}
	return map[string]any{"columns": len(headers)}, nil
}

func (p *Pipeline) parseTypedRecords(jc *jobrt.Context, st *orchestrator.State, csv *csvimport.CSV, sch *schema.Schema) (map[string]any, error) {
	ec, err := csvjob.Load(jc, st)
	if err != nil {
		return nil, err
	}
	rp := parse.NewRecordParser(sch)
	s := &step.Step[*csvimport.PositionAwareCSVRecord, *csvimport.TypedCSVRecord]{
		Name:      StageParseTypedRecords,
		ChunkSize: 1,
		Reader:    csvjob.NewRowReader(csv),
		Process: func(_ context.Context, rec *csvimport.PositionAwareCSVRecord) (step.Result[*csvimport.TypedCSVRecord], error) {
			values, err := rp.ParseRecord(rec.Values, rec.ItemNumber, ec.Headers)
			if err != nil {
				return step.Fail[*csvimport.TypedCSVRecord](err), nil
			}
			return step.Ok(&csvimport.TypedCSVRecord{
				CSVID:      csv.ID,
				ItemNumber: rec.ItemNumber,
				LineNumber: rec.LineNumber,
				Values:     values,
			}), nil
		},
		Write: func(ctx context.Context, items []*csvimport.TypedCSVRecord) error {
			return p.typed.CreateBatch(dbctx.Context{Ctx: ctx}, items)
		},
		Skip: step.AlwaysSkip,
		Listeners: []step.Listener[*csvimport.PositionAwareCSVRecord]{
			csvjob.RowErrorListener(p.rowErrors, p.log, p.Type(), jc.Job.ID, csv.ID, csvjob.RowPosition, p.obs),
		},
		Stop:       jc.StopRequested,
		Checkpoint: ec,
		Log:        p.log,
	}
	stats, err := s.Run(jc.Ctx)
	return statsOutputs(stats), err
}

func (p *Pipeline) validateHeader(jc *jobrt.Context, st *orchestrator.State, csv *csvimport.CSV, sch *schema.Schema) (map[string]any, error) {
	ec, err := csvjob.Load(jc, st)
	if err != nil {
		return nil, err
	}
	mapping := make(map[int]csvimport.PredicateRef, len(ec.Headers))
	var causes []error
	for _, h := range ec.Headers {
		if h.Namespace != nil {
			if ns, ok := sch.HeaderNamespace(*h.Namespace); ok && ns.Closed {
				continue
			}
		}
		if !h.InNamespace(paper.NamespaceORKG) {
			mapping[h.Column] = csvimport.NewPredicate(h.Name)
			continue
		}
		id := csvimport.ThingID(h.Name)
		exists, err := p.graph.PredicateExists(jc.Ctx, id)
		if err != nil {
			return nil, fmt.Errorf("find predicate %s: %w", id, err)
		}
		if !exists {
			causes = append(causes, errs.UnknownCSVPredicate(h.Name, h.Column))
			continue
		}
		mapping[h.Column] = csvimport.ExistingPredicate(id)
	}
	if len(causes) > 0 {
		return nil, p.headerError(jc, csv, StageValidateHeader, &errs.RecordParsingError{Causes: causes})
	}
	ec.HeaderToPredicate = mapping
	if err := ec.Commit(); err != nil {
		return nil, err
	}
	return map[string]any{"predicates": len(mapping)}, nil
}

func (p *Pipeline) parsePapers(jc *jobrt.Context, st *orchestrator.State, csv *csvimport.CSV, sch *schema.Schema) (map[string]any, error) {
	ec, err := csvjob.Load(jc, st)
	if err != nil {
		return nil, err
	}
	rows := p.parser.ForHeaders(sch, ec.Headers, ec.HeaderToPredicate)
	reader := csvjob.NewStagedReader(func(ctx context.Context, after int64, limit int) ([]*csvimport.TypedCSVRecord, error) {
		return p.typed.ListAfter(dbctx.Context{Ctx: ctx}, csv.ID, after, limit)
	}, func(r *csvimport.TypedCSVRecord) int64 { return r.ItemNumber }, 100)

	s := &step.Step[*csvimport.TypedCSVRecord, *csvimport.PaperCSVRecord]{
		Name:      StageParsePapers,
		ChunkSize: 1,
		Reader:    reader,
		Process: func(ctx context.Context, rec *csvimport.TypedCSVRecord) (step.Result[*csvimport.PaperCSVRecord], error) {
			out, err := rows.Parse(ctx, rec)
			if err != nil {
				if _, ok := apierr.As(err); ok {
					return step.Fail[*csvimport.PaperCSVRecord](err), nil
				}
				return step.Result[*csvimport.PaperCSVRecord]{}, err
			}
			return step.Ok(out), nil
		},
		Write: func(ctx context.Context, items []*csvimport.PaperCSVRecord) error {
			return p.papers.CreateBatch(dbctx.Context{Ctx: ctx}, items)
		},
		Skip: step.AlwaysSkip,
		Listeners: []step.Listener[*csvimport.TypedCSVRecord]{
			csvjob.RowErrorListener(p.rowErrors, p.log, p.Type(), jc.Job.ID, csv.ID, csvjob.TypedPosition, p.obs),
		},
		Stop:       jc.StopRequested,
		Checkpoint: ec,
		Log:        p.log,
	}
	stats, err := s.Run(jc.Ctx)
	return statsOutputs(stats), err
}

func (p *Pipeline) deleteIntermediate(jc *jobrt.Context, csv *csvimport.CSV) (map[string]any, error) {
	dbc := dbctx.Context{Ctx: jc.Ctx}
	deleted, err := p.typed.DeleteByCSV(dbc, csv.ID)
	if err != nil {
		return nil, fmt.Errorf("delete typed records: %w", err)
	}
	papers, err := p.papers.Count(dbc, csv.ID)
	if err != nil {
		return nil, fmt.Errorf("count paper records: %w", err)
	}
	rowErrors, err := p.rowErrors.CountByJob(dbc, jc.Job.ID)
	if err != nil {
		return nil, fmt.Errorf("count row errors: %w", err)
	}
	return map[string]any{
		"deleted_typed_records": deleted,
		"papers":                papers,
		"row_errors":            rowErrors,
	}, nil
}

// headerError records header problems as row errors on the header line and
// returns err so the stage fails.
func (p *Pipeline) headerError(jc *jobrt.Context, csv *csvimport.CSV, stage string, err error) error {
	if _, ok := apierr.As(err); !ok {
		return err
	}
	rows := csvjob.RowErrors(jc.Job.ID, csv.ID, stage, 0, 1, err)
	if rerr := p.rowErrors.CreateBatch(dbctx.Context{Ctx: jc.Ctx}, rows); rerr != nil {
		p.log.Warn("Recording header errors failed", "csv_id", csv.ID, "error", rerr)
	}
	return err
}

func statsOutputs(stats step.Stats) map[string]any {
	return map[string]any{
		"read":    stats.ReadCount,
		"written": stats.WriteCount,
		"skipped": stats.SkipCount,
	}
}
