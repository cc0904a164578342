package csvimport

// ThingID identifies a graph entity (resource, predicate, class or literal).
type ThingID string

func (id ThingID) String() string { return string(id) }

// ClassID identifies a semantic value type.
type ClassID = ThingID

const (
	ClassInteger  ClassID = "Integer"
	ClassDecimal  ClassID = "Decimal"
	ClassFloat    ClassID = "Float"
	ClassBoolean  ClassID = "Boolean"
	ClassString   ClassID = "String"
	ClassDate     ClassID = "Date"
	ClassURI      ClassID = "URI"
	ClassResource ClassID = "Resource"

	ClassPaper         ClassID = "Paper"
	ClassContribution  ClassID = "Contribution"
	ClassResearchField ClassID = "ResearchField"
	ClassProblem       ClassID = "Problem"
	ClassPredicate     ClassID = "Predicate"
)

// LiteralClasses are the value types that materialize as literals.
var LiteralClasses = map[ClassID]bool{
	ClassInteger: true,
	ClassDecimal: true,
	ClassFloat:   true,
	ClassBoolean: true,
	ClassString:  true,
	ClassDate:    true,
	ClassURI:     true,
}

// XSDType returns the xsd datatype a literal class is stored with.
func XSDType(c ClassID) (string, bool) {
	switch c {
	case ClassInteger:
		return "xsd:integer", true
	case ClassDecimal:
		return "xsd:decimal", true
	case ClassFloat:
		return "xsd:float", true
	case ClassBoolean:
		return "xsd:boolean", true
	case ClassString:
		return "xsd:string", true
	case ClassDate:
		return "xsd:date", true
	case ClassURI:
		return "xsd:anyURI", true
	}
	return "", false
}

const (
	PredicateHasDOI              ThingID = "P26"
	PredicateHasAuthors          ThingID = "P27"
	PredicateHasPublicationMonth ThingID = "P28"
	PredicateHasPublicationYear  ThingID = "P29"
	PredicateHasResearchField    ThingID = "P30"
	PredicateHasContribution     ThingID = "P31"
	PredicateHasResearchProblem  ThingID = "P32"
	PredicateHasVenue            ThingID = "HAS_VENUE"
	PredicateHasURL              ThingID = "url"
)
