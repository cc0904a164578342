// Package paper converts typed CSV rows into paper records ready for import.
package paper

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/dataimport/errs"
	"github.com/yungbote/dataimport-backend/internal/dataimport/graph"
	"github.com/yungbote/dataimport-backend/internal/dataimport/schema"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
)

const (
	NamespacePaper        = "paper"
	NamespaceContribution = "contribution"
	NamespaceORKG         = "orkg"
	NamespaceResource     = "resource"
)

type Parser struct {
	log       *logger.Logger
	things    graph.ThingRepository
	resources graph.ResourceRepository
	doi       DOIService
}

func NewParser(log *logger.Logger, things graph.ThingRepository, resources graph.ResourceRepository, doi DOIService) *Parser {
	if log == nil {
		log = logger.Nop()
	}
	return &Parser{log: log.With("component", "PaperCSVRecordParser"), things: things, resources: resources, doi: doi}
}

// RowParser is a Parser bound to the headers of one CSV.
type RowParser struct {
	*Parser
	headers           []csvimport.CSVHeader
	closed            []bool
	headerToPredicate map[int]csvimport.PredicateRef

	title            int
	doiIdx           int
	authors          int
	month            int
	year             int
	researchField    int
	url              int
	publishedIn      int
	researchProblem  int
	extractionMethod int
}

// ForHeaders binds the parser. headerToPredicate is keyed by header column.
func (p *Parser) ForHeaders(s *schema.Schema, headers []csvimport.CSVHeader, headerToPredicate map[int]csvimport.PredicateRef) *RowParser {
	rp := &RowParser{
		Parser:            p,
		headers:           headers,
		closed:            make([]bool, len(headers)),
		headerToPredicate: headerToPredicate,
	}
	for i, h := range headers {
		if h.Namespace == nil {
			continue
		}
		if ns, ok := s.HeaderNamespace(*h.Namespace); ok && ns.Closed {
			rp.closed[i] = true
		}
	}
	rp.title = findIndex(headers, NamespacePaper, "title")
	rp.doiIdx = findIndex(headers, NamespacePaper, "doi")
	rp.authors = findIndex(headers, NamespacePaper, "authors")
	rp.month = findIndex(headers, NamespacePaper, "publication_month")
	rp.year = findIndex(headers, NamespacePaper, "publication_year")
	rp.researchField = findIndex(headers, NamespacePaper, "research_field")
	rp.url = findIndex(headers, NamespacePaper, "url")
	rp.publishedIn = findIndex(headers, NamespacePaper, "published_in")
	rp.researchProblem = findIndex(headers, NamespaceContribution, "research_problem")
	rp.extractionMethod = findIndex(headers, NamespaceContribution, "extraction_method")
	return rp
}

func findIndex(headers []csvimport.CSVHeader, ns, name string) int {
	for i, h := range headers {
		if h.InNamespace(ns) && h.Name == name {
			return i
		}
	}
	return -1
}

func valueAt(rec *csvimport.TypedCSVRecord, index int) (csvimport.TypedValue, bool) {
	if index < 0 {
		return csvimport.TypedValue{}, false
	}
	return rec.Value(index)
}

func stringAt(rec *csvimport.TypedCSVRecord, index int) *string {
	v, ok := valueAt(rec, index)
	if !ok || v.Value == nil {
		return nil
	}
	s := *v.Value
	return &s
}

func (r *RowParser) column(index int) int {
	if index >= 0 && index < len(r.headers) {
		return r.headers[index].Column
	}
	return index + 1
}

// Parse builds a paper record. Row-level problems are returned as *apierr.Error
// values from package errs; anything else is an infrastructure failure.
func (r *RowParser) Parse(ctx context.Context, rec *csvimport.TypedCSVRecord) (*csvimport.PaperCSVRecord, error) {
	out := &csvimport.PaperCSVRecord{
		ID:         uuid.New(),
		CSVID:      rec.CSVID,
		ItemNumber: rec.ItemNumber,
		LineNumber: rec.LineNumber,
	}

	var md *Metadata
	doi := stringAt(rec, r.doiIdx)
	if doi != nil && strings.TrimSpace(*doi) != "" {
		out.DOI = doi
		md = r.lookupDOI(ctx, *doi)
	}
	if md == nil {
		md = &Metadata{}
	}

	authors := md.Authors
	if authors == nil {
		authors = splitAuthors(stringAt(rec, r.authors))
	}
	out.Authors = authors

	out.PublicationMonth = md.PublicationMonth
	if out.PublicationMonth == nil {
		if s := stringAt(rec, r.month); s != nil {
			if m, err := strconv.Atoi(strings.TrimSpace(*s)); err == nil {
				out.PublicationMonth = &m
			}
		}
	}
	out.PublicationYear = md.PublicationYear
	if out.PublicationYear == nil {
		if s := stringAt(rec, r.year); s != nil {
			if y, err := strconv.ParseInt(strings.TrimSpace(*s), 10, 64); err == nil {
				out.PublicationYear = &y
			}
		}
	}
	out.PublishedIn = md.PublishedIn
	if out.PublishedIn == nil {
		out.PublishedIn = stringAt(rec, r.publishedIn)
	}
	out.URL = md.URL
	if out.URL == nil {
		out.URL = stringAt(rec, r.url)
	}

	title := ""
	if md.Title != nil {
		title = *md.Title
	}
	if strings.TrimSpace(title) == "" {
		if s := stringAt(rec, r.title); s != nil {
			title = *s
		}
	}
	if strings.TrimSpace(title) == "" {
		return nil, errs.PaperCSVMissingTitle(rec.ItemNumber, rec.LineNumber)
	}
	out.Title = title

	rf := stringAt(rec, r.researchField)
	if rf == nil || strings.TrimSpace(*rf) == "" {
		return nil, errs.PaperCSVMissingResearchField(rec.ItemNumber, rec.LineNumber)
	}
	researchFieldID := csvimport.ThingID(strings.TrimSpace(*rf))
	field, err := r.resources.FindResourceByID(ctx, researchFieldID)
	if err != nil {
		return nil, fmt.Errorf("find research field %s: %w", researchFieldID, err)
	}
	if !field.HasClass(csvimport.ClassResearchField) {
		return nil, errs.PaperCSVResourceNotFound(string(researchFieldID), rec.ItemNumber, rec.LineNumber, r.column(r.researchField))
	}
	out.ResearchFieldID = researchFieldID

	out.ExtractionMethod = csvimport.ExtractionUnknown
	if s := stringAt(rec, r.extractionMethod); s != nil {
		out.ExtractionMethod = csvimport.ParseExtractionMethod(*s)
	}

	var statements csvimport.StatementSet
	for i, h := range r.headers {
		v, ok := rec.Value(i)
		if !ok || r.closed[i] || v.IsBlank() {
			continue
		}
		if v.Type != csvimport.ClassResource && !csvimport.LiteralClasses[v.Type] {
			return nil, errs.UnknownCSVValueType(string(v.Type), rec.ItemNumber, h.Column)
		}
		if v.InNamespace(NamespaceORKG) {
			id := csvimport.ThingID(*v.Value)
			exists, err := r.things.ThingExists(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("find thing %s: %w", id, err)
			}
			if !exists {
				return nil, errs.PaperCSVThingNotFound(string(id), rec.ItemNumber, rec.LineNumber, h.Column)
			}
		}
		pred, ok := r.headerToPredicate[h.Column]
		if !ok {
			return nil, fmt.Errorf("no predicate mapped for column %d", h.Column)
		}
		statements.Add(csvimport.ContributionStatement{Predicate: pred, Object: v})
	}

	if problem, ok := valueAt(rec, r.researchProblem); ok && !problem.IsBlank() {
		if problem.InNamespace(NamespaceORKG) {
			id := csvimport.ThingID(*problem.Value)
			res, err := r.resources.FindResourceByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("find research problem %s: %w", id, err)
			}
			if !res.HasClass(csvimport.ClassProblem) {
				return nil, errs.PaperCSVResourceNotFound(string(id), rec.ItemNumber, rec.LineNumber, r.column(r.researchProblem))
			}
		}
		statements.Add(csvimport.ContributionStatement{
			Predicate: csvimport.ExistingPredicate(csvimport.PredicateHasResearchProblem),
			Object:    problem,
		})
	}
	out.Statements = statements.Items()
	return out, nil
}

// lookupDOI treats lookup failures as missing metadata so the row values apply.
func (r *RowParser) lookupDOI(ctx context.Context, doi string) *Metadata {
	if r.doi == nil {
		return nil
	}
	md, err := r.doi.FindMetadataByDOI(ctx, doi)
	if err != nil {
		r.log.Warn("DOI metadata lookup failed", "doi", doi, "error", err)
		return nil
	}
	return md
}

func splitAuthors(raw *string) []csvimport.Author {
	if raw == nil {
		return []csvimport.Author{}
	}
	parts := strings.Split(*raw, ";")
	out := make([]csvimport.Author, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			out = append(out, csvimport.Author{Name: name})
		}
	}
	return out
}
