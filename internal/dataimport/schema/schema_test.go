package schema

import (
	"strings"
	"testing"

	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
)

func TestRegexValidatorMatchesWholeValue(t *testing.T) {
	v := MustRegex(`[A-Za-z ]+`)
	if err := v.Validate("some words"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	err := v.Validate("abc1")
	if err == nil {
		t.Fatalf("expected partial match to fail")
	}
	want := `Value "abc1" does not match pattern "[A-Za-z ]+".`
	if err.Error() != want {
		t.Fatalf("message = %q, want %q", err.Error(), want)
	}
}

func TestEnumAndRangeValidators(t *testing.T) {
	e := &EnumValidator{Options: []string{"MANUAL", "AUTOMATIC"}, IgnoreCase: true}
	if err := e.Validate("manual"); err != nil {
		t.Fatalf("ignore case enum: %v", err)
	}
	if err := e.Validate("other"); err == nil {
		t.Fatalf("expected enum failure")
	}

	r := IntRange(1, 12)
	for _, ok := range []string{"1", "12", "x"} {
		if err := r.Validate(ok); err != nil {
			t.Fatalf("Validate(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"0", "13"} {
		if err := r.Validate(bad); err == nil {
			t.Fatalf("Validate(%q) should fail", bad)
		}
	}
}

func TestBuilderRejectsInvalidNamespaces(t *testing.T) {
	cases := map[string]*Builder{
		"duplicate": NewBuilder(csvimport.TypePaper).Headers(Open("a"), Open("a")),
		"colon":     NewBuilder(csvimport.TypePaper).Values(Open("a:b")),
		"empty":     NewBuilder(csvimport.TypePaper).Headers(Closed("c")),
		"unnamed":   NewBuilder(csvimport.TypePaper).Headers(Open(" ")),
	}
	for name, b := range cases {
		if _, err := b.Build(); err == nil {
			t.Fatalf("%s: expected build error", name)
		}
	}
}

func TestBuilderAssemblesPhasesIndependently(t *testing.T) {
	s := NewBuilder(csvimport.TypePaper).
		Type("int", csvimport.ClassInteger).
		Values(Open("v").OfType(csvimport.ClassBoolean)).
		Headers(Closed("h", Prop("p", csvimport.ClassString, nil))).
		MustBuild()

	if _, ok := s.HeaderNamespace("h"); !ok {
		t.Fatalf("header namespace missing")
	}
	if ns, ok := s.ValueNamespace("v"); !ok || ns.Type == nil || *ns.Type != csvimport.ClassBoolean {
		t.Fatalf("value namespace type not kept")
	}
	if c, ok := s.ResolveType("int"); !ok || c != csvimport.ClassInteger {
		t.Fatalf("type mapping missing")
	}
	if _, ok := s.ResolveType("string"); ok {
		t.Fatalf("unmapped token resolved")
	}
}

func TestPaperSchemaLoads(t *testing.T) {
	s, err := ForType(csvimport.TypePaper)
	if err != nil {
		t.Fatalf("ForType: %v", err)
	}
	paper, ok := s.HeaderNamespace("paper")
	if !ok || !paper.Closed {
		t.Fatalf("paper namespace should be closed")
	}
	for _, name := range []string{"title", "doi", "authors", "publication_month", "publication_year", "research_field", "url", "published_in"} {
		if _, ok := paper.Property(name); !ok {
			t.Fatalf("paper.%s missing", name)
		}
	}
	month, _ := paper.Property("publication_month")
	if month.Type != csvimport.ClassInteger || month.Validator == nil {
		t.Fatalf("publication_month = %+v", month)
	}
	if err := month.Validator.Validate("13"); err == nil {
		t.Fatalf("month 13 should be rejected")
	}

	contribution, ok := s.HeaderNamespace("contribution")
	if !ok || !contribution.Closed {
		t.Fatalf("contribution namespace should be closed")
	}
	method, _ := contribution.Property("extraction_method")
	if err := method.Validator.Validate("manual"); err != nil {
		t.Fatalf("extraction method: %v", err)
	}

	orkg, ok := s.HeaderNamespace("orkg")
	if !ok || orkg.Closed || orkg.HeaderValidator == nil {
		t.Fatalf("orkg header namespace should be open with a header validator")
	}
	if err := orkg.HeaderValidator.Validate("P 1"); err == nil {
		t.Fatalf("predicate ids must not contain spaces")
	}

	for _, name := range []string{"orkg", "resource"} {
		ns, ok := s.ValueNamespace(name)
		if !ok || ns.Type == nil || *ns.Type != csvimport.ClassResource {
			t.Fatalf("value namespace %s should be typed Resource", name)
		}
	}
	if c, _ := s.ResolveType("decimal"); c != csvimport.ClassDecimal {
		t.Fatalf("decimal mapping = %q", c)
	}

	again, _ := ForType(csvimport.TypePaper)
	if again != s {
		t.Fatalf("schema should be cached")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	doc := "type: PAPER\nheaders:\n  - name: x\n    closed: false\n    bogus: 1\n"
	if _, err := Load(strings.NewReader(doc)); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestLoadRejectsBadPattern(t *testing.T) {
	doc := "type: PAPER\nvalues:\n  - name: x\n    validator:\n      regex: '['\n"
	if _, err := Load(strings.NewReader(doc)); err == nil {
		t.Fatalf("expected pattern error")
	}
}
