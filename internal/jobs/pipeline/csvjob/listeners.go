package csvjob

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/data/repos"
	"github.com/yungbote/dataimport-backend/internal/dataimport/errs"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/jobs/step"
	"github.com/yungbote/dataimport-backend/internal/platform/apierr"
	"github.com/yungbote/dataimport-backend/internal/platform/dbctx"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

// Position returns the item and line number of a step item.
type Position[I any] func(item I) (itemNumber, lineNumber int64)

// StepObserver is told about every finished chunked step.
type StepObserver interface {
	StepFinished(jobType, stepName string, stats step.Stats)
}

// RowErrors builds one RowError per cause of err.
func RowErrors(jobID, csvID uuid.UUID, stepName string, itemNumber, lineNumber int64, err error) []*csvimport.RowError {
	causes := errs.Flatten(err)
	out := make([]*csvimport.RowError, 0, len(causes))
	for _, cause := range causes {
		re := &csvimport.RowError{
			JobID:      jobID,
			CSVID:      csvID,
			Step:       stepName,
			ItemNumber: itemNumber,
			LineNumber: lineNumber,
			Message:    cause.Error(),
		}
		if ae, ok := apierr.As(cause); ok {
			re.Code = ae.Code
		}
		if col, ok := errs.Column(cause); ok {
			c := col
			re.Column = &c
		}
		out = append(out, re)
	}
	return out
}

// RowErrorListener stores the row errors of skipped items and reports step
// totals to obs, which may be nil.
func RowErrorListener[I any](rows repos.RowErrorRepo, log *logger.Logger, jobType string, jobID, csvID uuid.UUID, pos Position[I], obs StepObserver) step.Listener[I] {
	return step.ListenerFuncs[I]{
		Skip: func(ctx context.Context, name string, item I, err error) error {
			var itemNumber, lineNumber int64
			if pos != nil {
				itemNumber, lineNumber = pos(item)
			}
			if itemNumber == 0 {
				itemNumber, lineNumber, _ = errs.Position(err)
			}
			log.Debug("Row skipped", "step", name, "item_number", itemNumber, "error", err)
			return rows.CreateBatch(dbctx.Context{Ctx: ctx}, RowErrors(jobID, csvID, name, itemNumber, lineNumber, err))
		},
		After: func(_ context.Context, name string, stats step.Stats) error {
			if obs != nil {
				obs.StepFinished(jobType, name, stats)
			}
			return nil
		},
	}
}
