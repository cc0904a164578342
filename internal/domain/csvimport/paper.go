package csvimport

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ExtractionMethod string

const (
	ExtractionConstructed ExtractionMethod = "CONSTRUCTED"
	ExtractionAutomatic   ExtractionMethod = "AUTOMATIC"
	ExtractionManual      ExtractionMethod = "MANUAL"
	ExtractionUnknown     ExtractionMethod = "UNKNOWN"
)

// ParseExtractionMethod is case-insensitive and falls back to UNKNOWN.
func ParseExtractionMethod(raw string) ExtractionMethod {
	switch ExtractionMethod(strings.ToUpper(strings.TrimSpace(raw))) {
	case ExtractionConstructed:
		return ExtractionConstructed
	case ExtractionAutomatic:
		return ExtractionAutomatic
	case ExtractionManual:
		return ExtractionManual
	}
	return ExtractionUnknown
}

type Author struct {
	Name        string              `json:"name"`
	Identifiers map[string][]string `json:"identifiers,omitempty"`
}

// PredicateRef points either at an existing predicate (ID) or at a predicate
// that the import creates from Label.
type PredicateRef struct {
	ID    ThingID `json:"id,omitempty"`
	Label string  `json:"label,omitempty"`
}

func ExistingPredicate(id ThingID) PredicateRef { return PredicateRef{ID: id} }
func NewPredicate(label string) PredicateRef    { return PredicateRef{Label: label} }

func (p PredicateRef) IsExisting() bool { return p.ID != "" }

func (p PredicateRef) key() string {
	if p.IsExisting() {
		return "id:" + string(p.ID)
	}
	return "label:" + p.Label
}

type ContributionStatement struct {
	Predicate PredicateRef `json:"predicate"`
	Object    TypedValue   `json:"object"`
}

func (s ContributionStatement) key() string {
	ns := ""
	if s.Object.Namespace != nil {
		ns = *s.Object.Namespace
	}
	return s.Predicate.key() + "|" + ns + "|" + s.Object.StringValue() + "|" + string(s.Object.Type)
}

// StatementSet keeps insertion order and drops duplicates.
type StatementSet struct {
	items []ContributionStatement
	seen  map[string]bool
}

func (s *StatementSet) Add(stmt ContributionStatement) {
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	k := stmt.key()
	if s.seen[k] {
		return
	}
	s.seen[k] = true
	s.items = append(s.items, stmt)
}

func (s *StatementSet) Items() []ContributionStatement {
	out := make([]ContributionStatement, len(s.items))
	copy(out, s.items)
	return out
}

type PaperCSVRecord struct {
	ID               uuid.UUID                                  `gorm:"type:uuid;primaryKey" json:"id"`
	CSVID            uuid.UUID                                  `gorm:"type:uuid;column:csv_id;not null;index" json:"csv_id"`
	ItemNumber       int64                                      `gorm:"column:item_number;not null;index" json:"item_number"`
	LineNumber       int64                                      `gorm:"column:line_number;not null" json:"line_number"`
	Title            string                                     `gorm:"column:title;not null" json:"title"`
	Authors          datatypes.JSONSlice[Author]                `gorm:"column:authors;type:jsonb" json:"authors"`
	PublicationMonth *int                                       `gorm:"column:publication_month" json:"publication_month,omitempty"`
	PublicationYear  *int64                                     `gorm:"column:publication_year" json:"publication_year,omitempty"`
	PublishedIn      *string                                    `gorm:"column:published_in" json:"published_in,omitempty"`
	URL              *string                                    `gorm:"column:url" json:"url,omitempty"`
	DOI              *string                                    `gorm:"column:doi" json:"doi,omitempty"`
	ResearchFieldID  ThingID                                    `gorm:"column:research_field_id;not null" json:"research_field_id"`
	ExtractionMethod ExtractionMethod                           `gorm:"column:extraction_method;not null" json:"extraction_method"`
	Statements       datatypes.JSONSlice[ContributionStatement] `gorm:"column:statements;type:jsonb" json:"statements"`
	CreatedAt        time.Time                                  `gorm:"not null;default:now()" json:"created_at"`
}

func (PaperCSVRecord) TableName() string { return "csv_paper_record" }
