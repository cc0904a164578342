package parse

import (
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/yungbote/dataimport-backend/internal/dataimport/errs"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/platform/apierr"
)

func TestReaderTracksItemAndLineNumbers(t *testing.T) {
	data := "\ufeffa,b\n1,2\n\"multi\nline\",3\n4,5\n"
	r := NewStringReader(data, csvimport.FormatDefault)
	header, err := r.Header()
	if err != nil {
		t.Fatalf("Header: %v", err)
	}
	if !reflect.DeepEqual(header, []string{"a", "b"}) {
		t.Fatalf("header = %q", header)
	}
	want := []struct {
		item, line int64
		first      string
	}{
		{1, 2, "1"},
		{2, 3, "multi\nline"},
		{3, 5, "4"},
	}
	for _, w := range want {
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if rec.ItemNumber != w.item || rec.LineNumber != w.line || rec.Values[0] != w.first {
			t.Fatalf("record = %+v, want %+v", rec, w)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestReaderSkip(t *testing.T) {
	r := NewStringReader("h\n1\n2\n3\n", csvimport.FormatDefault)
	if err := r.Skip(2); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	rec, err := r.Next()
	if err != nil || rec.ItemNumber != 3 || rec.Values[0] != "3" {
		t.Fatalf("rec = %+v err = %v", rec, err)
	}
}

func TestReaderEmptyInput(t *testing.T) {
	r := NewStringReader("", csvimport.FormatDefault)
	h, err := r.Header()
	if err != nil || len(h) != 0 {
		t.Fatalf("header = %v err = %v", h, err)
	}
}

func TestReaderExcelFormatToleratesBareQuotes(t *testing.T) {
	data := "a,b\nsay \"hi\",2\n"
	if _, err := NewStringReader(data, csvimport.FormatDefault).Next(); err == nil {
		t.Fatalf("default format should reject bare quotes")
	}
	rec, err := NewStringReader(data, csvimport.FormatExcelCommaDelimited).Next()
	if err != nil {
		t.Fatalf("excel format: %v", err)
	}
	if rec.Values[0] != `say "hi"` {
		t.Fatalf("value = %q", rec.Values[0])
	}
}

func TestReaderKeepsRaggedRows(t *testing.T) {
	r := NewStringReader("a,b\n1\n", csvimport.FormatDefault)
	rec, err := r.Next()
	if err != nil || len(rec.Values) != 1 {
		t.Fatalf("rec = %+v err = %v", rec, err)
	}
}

func TestReaderReportsMalformedRowAndContinues(t *testing.T) {
	r := NewStringReader("a,b\nok,1\nPaper \"B,2\nlast,3\n", csvimport.FormatDefault)

	if rec, err := r.Next(); err != nil || rec.ItemNumber != 1 {
		t.Fatalf("row 1: rec=%+v err=%v", rec, err)
	}
	_, err := r.Next()
	if got := apierr.CodeOf(err); got != "malformed_csv_row" {
		t.Fatalf("row 2 code: want=malformed_csv_row got=%q (%v)", got, err)
	}
	item, line, ok := errs.Position(err)
	if !ok || item != 2 || line != 3 {
		t.Fatalf("row 2 position: want=2/3 got=%d/%d ok=%v", item, line, ok)
	}
	rec, err := r.Next()
	if err != nil || rec.ItemNumber != 3 || rec.LineNumber != 4 || rec.Values[0] != "last" {
		t.Fatalf("row 3: rec=%+v err=%v", rec, err)
	}
}

func TestReaderSkipCountsMalformedRows(t *testing.T) {
	r := NewStringReader("h\n\"bad\"x\n2\n3\n", csvimport.FormatDefault)
	if err := r.Skip(2); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	rec, err := r.Next()
	if err != nil || rec.ItemNumber != 3 || rec.Values[0] != "3" {
		t.Fatalf("rec = %+v err = %v", rec, err)
	}
}

func TestReaderRejectsInvalidUTF8Row(t *testing.T) {
	r := NewStringReader("a,b\nfine,\xff\xfe\nnext,1\n", csvimport.FormatDefault)
	_, err := r.Next()
	if got := apierr.CodeOf(err); got != "invalid_csv_encoding" {
		t.Fatalf("code: want=invalid_csv_encoding got=%q", got)
	}
	if col, ok := errs.Column(err); !ok || col != 2 {
		t.Fatalf("column: want=2 got=%d", col)
	}
	if rec, err := r.Next(); err != nil || rec.ItemNumber != 2 {
		t.Fatalf("next: rec=%+v err=%v", rec, err)
	}
}
