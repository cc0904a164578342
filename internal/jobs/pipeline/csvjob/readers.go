package csvjob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/yungbote/dataimport-backend/internal/dataimport/parse"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
)

// RowReader reads the data rows of a stored CSV. Its cursor is the number of
// rows read.
type RowReader struct {
	csv    *csvimport.CSV
	r      *parse.Reader
	cursor int64
}

func NewRowReader(csv *csvimport.CSV) *RowReader {
	return &RowReader{csv: csv}
}

func (r *RowReader) Open(_ context.Context, cursor int64) error {
	r.r = parse.NewStringReader(r.csv.Data, r.csv.Format)
	if _, err := r.r.Header(); err != nil {
		return err
	}
	if err := r.r.Skip(cursor); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("skip to row %d: %w", cursor, err)
	}
	r.cursor = cursor
	return nil
}

func (r *RowReader) Read(context.Context) (*csvimport.PositionAwareCSVRecord, error) {
	rec, err := r.r.Next()
	if err != nil {
		// a malformed row was consumed; the checkpoint must move past it
		r.cursor = r.r.Item()
		return nil, err
	}
	r.cursor = rec.ItemNumber
	return rec, nil
}

func (r *RowReader) Cursor() int64 { return r.cursor }
func (r *RowReader) Close() error { return nil }

// PageFunc lists staged items of one CSV after an item number.
type PageFunc[T any] func(ctx context.Context, afterItem int64, limit int) ([]T, error)

// StagedReader pages through staged records by item number. Its cursor is
// the item number of the last record read.
type StagedReader[T any] struct {
	list     PageFunc[T]
	item     func(T) int64
	pageSize int

	buf    []T
	cursor int64
	done   bool
}

func NewStagedReader[T any](list PageFunc[T], item func(T) int64, pageSize int) *StagedReader[T] {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &StagedReader[T]{list: list, item: item, pageSize: pageSize}
}

func (r *StagedReader[T]) Open(_ context.Context, cursor int64) error {
	r.cursor = cursor
	r.buf = nil
	r.done = false
	return nil
}

func (r *StagedReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if len(r.buf) == 0 {
		if r.done {
			return zero, io.EOF
		}
		page, err := r.list(ctx, r.cursor, r.pageSize)
		if err != nil {
			return zero, fmt.Errorf("list staged records after %d: %w", r.cursor, err)
		}
		if len(page) < r.pageSize {
			r.done = true
		}
		if len(page) == 0 {
			return zero, io.EOF
		}
		r.buf = page
	}
	next := r.buf[0]
	r.buf = r.buf[1:]
	r.cursor = r.item(next)
	return next, nil
}

func (r *StagedReader[T]) Cursor() int64 { return r.cursor }
func (r *StagedReader[T]) Close() error { return nil }

func TypedPosition(rec *csvimport.TypedCSVRecord) (int64, int64) {
	return rec.ItemNumber, rec.LineNumber
}

func PaperPosition(rec *csvimport.PaperCSVRecord) (int64, int64) {
	return rec.ItemNumber, rec.LineNumber
}

func RowPosition(rec *csvimport.PositionAwareCSVRecord) (int64, int64) {
	if rec == nil {
		return 0, 0
	}
	return rec.ItemNumber, rec.LineNumber
}
