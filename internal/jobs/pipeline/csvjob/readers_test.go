package csvjob

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
)

func TestStagedReaderPagesFromCursor(t *testing.T) {
	items := []int64{1, 2, 4, 5, 7}
	var calls int
	list := func(_ context.Context, after int64, limit int) ([]int64, error) {
		calls++
		var out []int64
		for _, it := range items {
			if it > after && len(out) < limit {
				out = append(out, it)
			}
		}
		return out, nil
	}
	r := NewStagedReader(list, func(v int64) int64 { return v }, 2)
	if err := r.Open(context.Background(), 2); err != nil {
		t.Fatalf("Open: %v", err)
	}

	var got []int64
	for {
		v, err := r.Read(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, v)
	}
	want := []int64{4, 5, 7}
	if len(got) != len(want) {
		t.Fatalf("items: want=%v got=%v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("items: want=%v got=%v", want, got)
		}
	}
	if r.Cursor() != 7 {
		t.Fatalf("cursor: want=7 got=%d", r.Cursor())
	}
	// Two full pages then a short one ends the read without another call.
	if calls != 2 {
		t.Fatalf("list calls: want=2 got=%d", calls)
	}
}

func TestRowReaderResumes(t *testing.T) {
	csv := &csvimport.CSV{
		Data:   "a,b\n1,2\n3,4\n5,6\n",
		Format: csvimport.FormatDefault,
	}
	r := NewRowReader(csv)
	if err := r.Open(context.Background(), 1); err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec, err := r.Read(context.Background())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rec.ItemNumber != 2 || rec.LineNumber != 3 || rec.Values[0] != "3" {
		t.Fatalf("record: %+v", rec)
	}
	if r.Cursor() != 2 {
		t.Fatalf("cursor: want=2 got=%d", r.Cursor())
	}
}
