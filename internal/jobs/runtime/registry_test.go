package runtime

import (
	"errors"
	"slices"
	"testing"
)

type namedHandler string

func (h namedHandler) Type() string       { return string(h) }
func (h namedHandler) Run(*Context) error { return nil }

func TestRegistryRejectsDuplicatesAndSortsNames(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(namedHandler("validate-paper-csv"), namedHandler("import-paper-csv")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(namedHandler("import-paper-csv")); err == nil {
		t.Fatalf("duplicate: want error got=nil")
	}
	if err := r.Register(namedHandler("")); err == nil {
		t.Fatalf("unnamed: want error got=nil")
	}
	want := []string{"import-paper-csv", "validate-paper-csv"}
	if got := r.Types(); !slices.Equal(got, want) {
		t.Fatalf("types: want=%v got=%v", want, got)
	}
}

func TestLookupReportsUnknownJob(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Lookup("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("lookup: want=%v got=%v", ErrUnknownJob, err)
	}
}
