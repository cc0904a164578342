// Package graph declares the knowledge-graph operations the import pipeline
// depends on. internal/data/graph implements them on neo4j.
package graph

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
)

type Resource struct {
	ID      csvimport.ThingID
	Label   string
	Classes []csvimport.ClassID
}

func (r *Resource) HasClass(c csvimport.ClassID) bool {
	if r == nil {
		return false
	}
	for _, have := range r.Classes {
		if have == c {
			return true
		}
	}
	return false
}

type Literal struct {
	Label    string
	Datatype string
}

// Object is the object of a statement: an existing thing or a new literal.
type Object struct {
	ID      csvimport.ThingID
	Literal *Literal
}

func ThingObject(id csvimport.ThingID) Object { return Object{ID: id} }

func LiteralObject(label, datatype string) Object {
	return Object{Literal: &Literal{Label: label, Datatype: datatype}}
}

type Statement struct {
	Predicate csvimport.ThingID
	Object    Object
}

// CreatePaperCommand describes one paper with a single contribution.
type CreatePaperCommand struct {
	ContributorID    uuid.UUID
	Title            string
	ResearchFieldID  csvimport.ThingID
	Authors          []csvimport.Author
	PublicationMonth *int
	PublicationYear  *int64
	PublishedIn      *string
	URL              *string
	DOI              *string
	ExtractionMethod csvimport.ExtractionMethod
	Contribution     string
	Statements       []Statement
}

type ThingRepository interface {
	ThingExists(ctx context.Context, id csvimport.ThingID) (bool, error)
}

// ResourceRepository returns nil without error when the resource is missing.
type ResourceRepository interface {
	FindResourceByID(ctx context.Context, id csvimport.ThingID) (*Resource, error)
}

type PredicateRepository interface {
	PredicateExists(ctx context.Context, id csvimport.ThingID) (bool, error)
}

type Writer interface {
	CreatePredicate(ctx context.Context, contributor uuid.UUID, label string) (csvimport.ThingID, error)
	CreateResource(ctx context.Context, contributor uuid.UUID, label string, classes []csvimport.ClassID) (csvimport.ThingID, error)
	CreatePaper(ctx context.Context, cmd CreatePaperCommand) (csvimport.ThingID, error)
}

type Store interface {
	ThingRepository
	ResourceRepository
	PredicateRepository
	Writer
}
