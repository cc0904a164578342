package parse

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/dataimport-backend/internal/dataimport/errs"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/platform/apierr"
)

// Reader splits raw CSV data into position-aware records. The first record is
// the header; data rows are numbered from 1.
type Reader struct {
	r          *csv.Reader
	headerRead bool
	item       int64
}

func NewReader(data io.Reader, format csvimport.Format) *Reader {
	br := stripUTF8BOM(bufio.NewReader(data))
	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = false
	r.ReuseRecord = false
	if format == csvimport.FormatExcelCommaDelimited {
		r.LazyQuotes = true
	}
	return &Reader{r: r}
}

// NewStringReader reads CSV data held in memory.
func NewStringReader(data string, format csvimport.Format) *Reader {
	return NewReader(strings.NewReader(data), format)
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}

// Header returns the header row. An input without rows yields an empty header.
func (r *Reader) Header() ([]string, error) {
	if r.headerRead {
		return nil, fmt.Errorf("header already read")
	}
	r.headerRead = true
	h, err := r.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range h {
		if !utf8.ValidString(h[i]) {
			return nil, fmt.Errorf("invalid header encoding in column %d", i+1)
		}
	}
	return h, nil
}

// Next returns the next data row or io.EOF. A row that cannot be tokenized or
// is not valid UTF-8 still takes an item number; it comes back as a row error
// carrying that position and the following rows stay readable.
func (r *Reader) Next() (*csvimport.PositionAwareCSVRecord, error) {
	if !r.headerRead {
		if _, err := r.Header(); err != nil {
			return nil, err
		}
	}
	values, err := r.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		var pe *csv.ParseError
		if !errors.As(err, &pe) {
			return nil, fmt.Errorf("read row %d: %w", r.item+1, err)
		}
		r.item++
		return nil, errs.MalformedCSVRow(r.item, int64(pe.StartLine), pe.Err)
	}
	r.item++
	line, _ := r.r.FieldPos(0)
	for i := range values {
		if !utf8.ValidString(values[i]) {
			return nil, errs.InvalidCSVEncoding(r.item, int64(line), i+1)
		}
	}
	return &csvimport.PositionAwareCSVRecord{
		ItemNumber: r.item,
		LineNumber: int64(line),
		Values:     values,
	}, nil
}

// Item is the number of data rows consumed so far, malformed ones included.
func (r *Reader) Item() int64 { return r.item }

// Skip reads forward until n data rows have been consumed. Row errors count
// as rows.
func (r *Reader) Skip(n int64) error {
	for r.item < n {
		start := r.item
		_, err := r.Next()
		if err == nil {
			continue
		}
		if _, ok := apierr.As(err); ok && r.item > start {
			continue
		}
		return err
	}
	return nil
}
