package paper

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/dataimport/graph"
	"github.com/yungbote/dataimport-backend/internal/dataimport/schema"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/platform/apierr"
)

type fakeGraph struct {
	resources map[csvimport.ThingID]*graph.Resource
	things    map[csvimport.ThingID]bool
	lookups   int
	err       error
}

func (f *fakeGraph) FindResourceByID(_ context.Context, id csvimport.ThingID) (*graph.Resource, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	return f.resources[id], nil
}

func (f *fakeGraph) ThingExists(_ context.Context, id csvimport.ThingID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.things[id] || f.resources[id] != nil, nil
}

type fakeDOI struct {
	md    *Metadata
	err   error
	calls []string
}

func (f *fakeDOI) FindMetadataByDOI(_ context.Context, doi string) (*Metadata, error) {
	f.calls = append(f.calls, doi)
	return f.md, f.err
}

func ptr[T any](v T) *T { return &v }

func header(col int, ns, name string, typ csvimport.ClassID) csvimport.CSVHeader {
	h := csvimport.CSVHeader{Column: col, Name: name}
	if ns != "" {
		h.Namespace = ptr(ns)
	}
	if typ != "" {
		h.ColumnType = ptr(typ)
	}
	return h
}

func value(ns, v string, typ csvimport.ClassID) csvimport.TypedValue {
	tv := csvimport.TypedValue{Value: ptr(v), Type: typ}
	if ns != "" {
		tv.Namespace = ptr(ns)
	}
	return tv
}

func paperHeaders() []csvimport.CSVHeader {
	return []csvimport.CSVHeader{
		header(1, "paper", "title", csvimport.ClassString),
		header(2, "paper", "authors", csvimport.ClassString),
		header(3, "paper", "publication_month", csvimport.ClassInteger),
		header(4, "paper", "publication_year", csvimport.ClassInteger),
		header(5, "paper", "research_field", csvimport.ClassResource),
		header(6, "paper", "doi", csvimport.ClassString),
		header(7, "paper", "url", csvimport.ClassURI),
		header(8, "paper", "published_in", csvimport.ClassString),
		header(9, "contribution", "research_problem", csvimport.ClassResource),
		header(10, "contribution", "extraction_method", csvimport.ClassString),
		header(11, "", "category", ""),
		header(12, "orkg", "P2", ""),
		header(13, "", "result", ""),
		header(14, "orkg", "numericValue", ""),
		header(15, "orkg", "description", ""),
	}
}

func paperRecord() *csvimport.TypedCSVRecord {
	return &csvimport.TypedCSVRecord{
		ID:         uuid.New(),
		CSVID:      uuid.MustParse("bf59dd89-6a4b-424b-b9d5-36042661e837"),
		ItemNumber: 1,
		LineNumber: 2,
		Values: []csvimport.TypedValue{
			value("", "Dummy Paper Title", csvimport.ClassString),
			value("", "Josiah Stinkney Carberry; Author 2", csvimport.ClassString),
			value("", "4", csvimport.ClassInteger),
			value("", "2023", csvimport.ClassInteger),
			value("orkg", "R456", csvimport.ClassResource),
			value("", "10.1000/182", csvimport.ClassString),
			value("", "https://example.org", csvimport.ClassURI),
			value("", "Fancy Conference", csvimport.ClassString),
			value("resource", "Complicated Problem", csvimport.ClassResource),
			value("", "manual", csvimport.ClassString),
			value("resource", "Some category", csvimport.ClassResource),
			value("", "some value", csvimport.ClassString),
			value("", "0.1", csvimport.ClassDecimal),
			value("", "5", csvimport.ClassInteger),
			value("", "a description", csvimport.ClassString),
		},
	}
}

func headerToPredicate() map[int]csvimport.PredicateRef {
	return map[int]csvimport.PredicateRef{
		11: csvimport.NewPredicate("category"),
		12: csvimport.ExistingPredicate("P2"),
		13: csvimport.NewPredicate("result"),
		14: csvimport.ExistingPredicate("numericValue"),
		15: csvimport.ExistingPredicate("description"),
	}
}

func newFixture(t *testing.T, doi DOIService) (*RowParser, *fakeGraph) {
	t.Helper()
	s, err := schema.ForType(csvimport.TypePaper)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	g := &fakeGraph{
		resources: map[csvimport.ThingID]*graph.Resource{
			"R456": {ID: "R456", Label: "Field", Classes: []csvimport.ClassID{csvimport.ClassResearchField}},
			"R789": {ID: "R789", Label: "Not a field", Classes: []csvimport.ClassID{"Other"}},
			"R111": {ID: "R111", Label: "Problem", Classes: []csvimport.ClassID{csvimport.ClassProblem}},
		},
		things: map[csvimport.ThingID]bool{"R999": true},
	}
	return NewParser(nil, g, g, doi).ForHeaders(s, paperHeaders(), headerToPredicate()), g
}

func TestParseAllProperties(t *testing.T) {
	doi := &fakeDOI{}
	p, g := newFixture(t, doi)
	rec := paperRecord()

	got, err := p.Parse(context.Background(), rec)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.CSVID != rec.CSVID || got.ItemNumber != 1 || got.LineNumber != 2 || got.ID == uuid.Nil {
		t.Fatalf("identity = %+v", got)
	}
	if got.Title != "Dummy Paper Title" {
		t.Fatalf("title = %q", got.Title)
	}
	wantAuthors := []csvimport.Author{{Name: "Josiah Stinkney Carberry"}, {Name: "Author 2"}}
	if !reflect.DeepEqual([]csvimport.Author(got.Authors), wantAuthors) {
		t.Fatalf("authors = %+v", got.Authors)
	}
	if *got.PublicationMonth != 4 || *got.PublicationYear != 2023 {
		t.Fatalf("date = %v/%v", *got.PublicationMonth, *got.PublicationYear)
	}
	if *got.PublishedIn != "Fancy Conference" || *got.URL != "https://example.org" || *got.DOI != "10.1000/182" {
		t.Fatalf("metadata = %+v", got)
	}
	if got.ResearchFieldID != "R456" || got.ExtractionMethod != csvimport.ExtractionManual {
		t.Fatalf("field/method = %s/%s", got.ResearchFieldID, got.ExtractionMethod)
	}
	want := []csvimport.ContributionStatement{
		{Predicate: csvimport.NewPredicate("category"), Object: rec.Values[10]},
		{Predicate: csvimport.ExistingPredicate("P2"), Object: rec.Values[11]},
		{Predicate: csvimport.NewPredicate("result"), Object: rec.Values[12]},
		{Predicate: csvimport.ExistingPredicate("numericValue"), Object: rec.Values[13]},
		{Predicate: csvimport.ExistingPredicate("description"), Object: rec.Values[14]},
		{Predicate: csvimport.ExistingPredicate(csvimport.PredicateHasResearchProblem), Object: rec.Values[8]},
	}
	if !reflect.DeepEqual([]csvimport.ContributionStatement(got.Statements), want) {
		t.Fatalf("statements = %+v", got.Statements)
	}
	if len(doi.calls) != 1 || doi.calls[0] != "10.1000/182" {
		t.Fatalf("doi calls = %v", doi.calls)
	}
	if g.lookups != 1 {
		t.Fatalf("resource lookups = %d", g.lookups)
	}
}

func TestParseDOIMetadataOverridesRow(t *testing.T) {
	doi := &fakeDOI{md: &Metadata{
		Title:            ptr("ORKG: Facilitating the Transfer"),
		Authors:          []csvimport.Author{{Name: "Markus Stocker", Identifiers: map[string][]string{"orcid": {"0000-0001-5492-3212"}}}},
		PublicationMonth: ptr(5),
		PublicationYear:  ptr(int64(2021)),
		PublishedIn:      ptr("Research Ideas and Outcomes"),
		URL:              ptr("http://dx.doi.org/10.3897/rio.7.e68513"),
	}}
	p, _ := newFixture(t, doi)

	got, err := p.Parse(context.Background(), paperRecord())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Title != "ORKG: Facilitating the Transfer" || len(got.Authors) != 1 || got.Authors[0].Name != "Markus Stocker" {
		t.Fatalf("title/authors = %q %+v", got.Title, got.Authors)
	}
	if *got.PublicationMonth != 5 || *got.PublicationYear != 2021 || *got.PublishedIn != "Research Ideas and Outcomes" {
		t.Fatalf("metadata not applied: %+v", got)
	}
	if *got.URL != "http://dx.doi.org/10.3897/rio.7.e68513" {
		t.Fatalf("url = %s", *got.URL)
	}
}

func TestParseDOIFailureFallsBackToRow(t *testing.T) {
	p, _ := newFixture(t, &fakeDOI{err: errors.New("boom")})
	got, err := p.Parse(context.Background(), paperRecord())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Title != "Dummy Paper Title" {
		t.Fatalf("title = %q", got.Title)
	}
}

func TestParseMissingTitle(t *testing.T) {
	for _, v := range []*string{nil, ptr(""), ptr("  ")} {
		p, _ := newFixture(t, &fakeDOI{})
		rec := paperRecord()
		rec.Values[0] = csvimport.TypedValue{Value: v, Type: csvimport.ClassString}
		_, err := p.Parse(context.Background(), rec)
		if apierr.CodeOf(err) != "paper_csv_missing_paper_title" {
			t.Fatalf("err = %v", err)
		}
		if err.Error() != "Missing title for paper in row 1 (line 2)." {
			t.Fatalf("message = %q", err.Error())
		}
	}
}

func TestParseMissingResearchField(t *testing.T) {
	p, _ := newFixture(t, &fakeDOI{})
	rec := paperRecord()
	rec.Values[4] = csvimport.TypedValue{Type: csvimport.ClassResource}
	_, err := p.Parse(context.Background(), rec)
	if apierr.CodeOf(err) != "paper_csv_missing_research_field" {
		t.Fatalf("err = %v", err)
	}
}

func TestParseResearchFieldMustExistAsResearchField(t *testing.T) {
	for _, id := range []string{"R404", "R789"} {
		p, _ := newFixture(t, &fakeDOI{})
		rec := paperRecord()
		rec.Values[4] = value("orkg", id, csvimport.ClassResource)
		_, err := p.Parse(context.Background(), rec)
		if apierr.CodeOf(err) != "paper_csv_resource_not_found" {
			t.Fatalf("%s: err = %v", id, err)
		}
		want := `Resource "` + id + `" in row 1, column 5 not found (line 2).`
		if err.Error() != want {
			t.Fatalf("message = %q", err.Error())
		}
	}
}

func TestParseResearchProblemMustBeProblem(t *testing.T) {
	for _, id := range []string{"R404", "R456"} {
		p, _ := newFixture(t, &fakeDOI{})
		rec := paperRecord()
		rec.Values[8] = value("orkg", id, csvimport.ClassResource)
		_, err := p.Parse(context.Background(), rec)
		if apierr.CodeOf(err) != "paper_csv_resource_not_found" {
			t.Fatalf("%s: err = %v", id, err)
		}
	}

	p, _ := newFixture(t, &fakeDOI{})
	rec := paperRecord()
	rec.Values[8] = value("orkg", "R111", csvimport.ClassResource)
	if _, err := p.Parse(context.Background(), rec); err != nil {
		t.Fatalf("existing problem: %v", err)
	}
}

func TestParseStatementObjectWithInvalidType(t *testing.T) {
	p, _ := newFixture(t, &fakeDOI{})
	rec := paperRecord()
	rec.Values[10] = value("", "x", csvimport.ClassPaper)
	_, err := p.Parse(context.Background(), rec)
	if apierr.CodeOf(err) != "unknown_csv_value_type" {
		t.Fatalf("err = %v", err)
	}
}

func TestParseStatementObjectMustExist(t *testing.T) {
	p, _ := newFixture(t, &fakeDOI{})
	rec := paperRecord()
	rec.Values[11] = value("orkg", "R0", csvimport.ClassResource)
	_, err := p.Parse(context.Background(), rec)
	if apierr.CodeOf(err) != "paper_csv_thing_not_found" {
		t.Fatalf("err = %v", err)
	}
	if err.Error() != `Thing "R0" in row 1, column 12 not found (line 2).` {
		t.Fatalf("message = %q", err.Error())
	}

	rec.Values[11] = value("orkg", "R999", csvimport.ClassResource)
	if _, err := p.Parse(context.Background(), rec); err != nil {
		t.Fatalf("existing thing: %v", err)
	}
}

func TestParseSkipsBlankStatementsAndDefaultsExtractionMethod(t *testing.T) {
	p, _ := newFixture(t, nil)
	rec := paperRecord()
	rec.Values[9] = csvimport.TypedValue{Type: csvimport.ClassString}
	rec.Values[12] = csvimport.TypedValue{Type: csvimport.ClassDecimal}
	rec.Values[8] = csvimport.TypedValue{Type: csvimport.ClassResource}
	got, err := p.Parse(context.Background(), rec)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.ExtractionMethod != csvimport.ExtractionUnknown {
		t.Fatalf("method = %s", got.ExtractionMethod)
	}
	if len(got.Statements) != 4 {
		t.Fatalf("statements = %+v", got.Statements)
	}
}

func TestParseInfrastructureErrorIsNotARowError(t *testing.T) {
	p, g := newFixture(t, &fakeDOI{})
	g.err = errors.New("neo4j down")
	_, err := p.Parse(context.Background(), paperRecord())
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := apierr.As(err); ok {
		t.Fatalf("infrastructure error must not be an apierr: %v", err)
	}
}
