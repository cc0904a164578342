package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	dgraph "github.com/yungbote/dataimport-backend/internal/dataimport/graph"
	types "github.com/yungbote/dataimport-backend/internal/domain/csvimport"
	"github.com/yungbote/dataimport-backend/internal/platform/logger"
	"github.com/yungbote/dataimport-backend/internal/platform/neo4jdb"
)

// Store keeps resources, predicates and literals as :Thing nodes keyed by id.
// Statements are :RELATED relationships carrying predicate_id.
type Store struct {
	client *neo4jdb.Client
	log    *logger.Logger

	schemaOnce sync.Once
}

var _ dgraph.Store = (*Store)(nil)

func NewStore(client *neo4jdb.Client, baseLog *logger.Logger) *Store {
	return &Store{client: client, log: baseLog.With("repo", "Neo4jGraphStore")}
}

func newThingID(prefix string) types.ThingID {
	return types.ThingID(prefix + strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func (s *Store) ready() error {
	if s == nil || !s.client.Configured() {
		return neo4jdb.ErrNotConfigured
	}
	return nil
}

// EnsureSchema creates the uniqueness constraint on Thing ids. Failures are
// logged and ignored.
func (s *Store) EnsureSchema(ctx context.Context) {
	if s.ready() != nil {
		return
	}
	s.schemaOnce.Do(func() {
		session := s.client.WriteSession(ctx)
		defer session.Close(ctx)
		stmts := []string{
			`CREATE CONSTRAINT thing_id_unique IF NOT EXISTS FOR (t:Thing) REQUIRE t.id IS UNIQUE`,
			`CREATE INDEX predicate_label IF NOT EXISTS FOR (p:Predicate) ON (p.label)`,
		}
		for _, q := range stmts {
			if res, err := session.Run(ctx, q, nil); err != nil {
				s.log.Warn("neo4j schema init failed (continuing)", "error", err)
			} else {
				_, _ = res.Consume(ctx)
			}
		}
	})
}

func (s *Store) ThingExists(ctx context.Context, id types.ThingID) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (t:Thing {id: $id}) RETURN count(t) AS n`, map[string]any{"id": string(id)})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		n, _ := rec.Get("n")
		count, _ := n.(int64)
		return count > 0, nil
	})
	if err != nil {
		return false, fmt.Errorf("thing exists %s: %w", id, err)
	}
	return out.(bool), nil
}

func (s *Store) PredicateExists(ctx context.Context, id types.ThingID) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (p:Predicate {id: $id}) RETURN count(p) AS n`, map[string]any{"id": string(id)})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		n, _ := rec.Get("n")
		count, _ := n.(int64)
		return count > 0, nil
	})
	if err != nil {
		return false, fmt.Errorf("predicate exists %s: %w", id, err)
	}
	return out.(bool), nil
}

func (s *Store) FindResourceByID(ctx context.Context, id types.ThingID) (*dgraph.Resource, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	session := s.client.ReadSession(ctx)
	defer session.Close(ctx)
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (r:Resource {id: $id})
RETURN r.id AS id, r.label AS label, coalesce(r.classes, []) AS classes
`, map[string]any{"id": string(id)})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return (*dgraph.Resource)(nil), res.Err()
		}
		rec := res.Record()
		return recordToResource(rec), nil
	})
	if err != nil {
		return nil, fmt.Errorf("find resource %s: %w", id, err)
	}
	return out.(*dgraph.Resource), nil
}

func recordToResource(rec *neo4j.Record) *dgraph.Resource {
	r := &dgraph.Resource{}
	if v, ok := rec.Get("id"); ok {
		s, _ := v.(string)
		r.ID = types.ThingID(s)
	}
	if v, ok := rec.Get("label"); ok {
		r.Label, _ = v.(string)
	}
	if v, ok := rec.Get("classes"); ok {
		if list, ok := v.([]any); ok {
			for _, c := range list {
				if s, ok := c.(string); ok {
					r.Classes = append(r.Classes, types.ClassID(s))
				}
			}
		}
	}
	return r
}

func (s *Store) CreatePredicate(ctx context.Context, contributor uuid.UUID, label string) (types.ThingID, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	id := newThingID("P")
	err := s.write(ctx, func(tx neo4j.ManagedTransaction) error {
		return run(ctx, tx, `
MERGE (p:Thing:Predicate {id: $id})
ON CREATE SET p.label = $label, p.created_by = $created_by, p.created_at = $created_at
`, map[string]any{
			"id":         string(id),
			"label":      label,
			"created_by": contributor.String(),
			"created_at": nowString(),
		})
	})
	if err != nil {
		return "", fmt.Errorf("create predicate %q: %w", label, err)
	}
	return id, nil
}

func (s *Store) CreateResource(ctx context.Context, contributor uuid.UUID, label string, classes []types.ClassID) (types.ThingID, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	id := newThingID("R")
	err := s.write(ctx, func(tx neo4j.ManagedTransaction) error {
		return createResource(ctx, tx, id, label, classes, contributor)
	})
	if err != nil {
		return "", fmt.Errorf("create resource %q: %w", label, err)
	}
	return id, nil
}

// CreatePaper writes the paper, its contribution and every statement in one
// write transaction.
func (s *Store) CreatePaper(ctx context.Context, cmd dgraph.CreatePaperCommand) (types.ThingID, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	paperID := newThingID("R")
	contributionID := newThingID("R")
	contribution := cmd.Contribution
	if strings.TrimSpace(contribution) == "" {
		contribution = "Contribution 1"
	}

	err := s.write(ctx, func(tx neo4j.ManagedTransaction) error {
		if err := createResource(ctx, tx, paperID, cmd.Title, []types.ClassID{types.ClassPaper}, cmd.ContributorID); err != nil {
			return err
		}
		if err := run(ctx, tx, `
MATCH (p:Resource {id: $id})
SET p.extraction_method = $extraction_method
`, map[string]any{"id": string(paperID), "extraction_method": string(cmd.ExtractionMethod)}); err != nil {
			return err
		}

		link := func(subject types.ThingID, predicate types.ThingID, obj dgraph.Object, index int) error {
			objectID := obj.ID
			if obj.Literal != nil {
				objectID = newThingID("L")
				if err := run(ctx, tx, `
MERGE (l:Thing:Literal {id: $id})
ON CREATE SET l.label = $label, l.datatype = $datatype, l.created_by = $created_by, l.created_at = $created_at
`, map[string]any{
					"id":         string(objectID),
					"label":      obj.Literal.Label,
					"datatype":   obj.Literal.Datatype,
					"created_by": cmd.ContributorID.String(),
					"created_at": nowString(),
				}); err != nil {
					return err
				}
			}
			return relate(ctx, tx, subject, predicate, objectID, index, cmd.ContributorID)
		}

		if err := link(paperID, types.PredicateHasResearchField, dgraph.ThingObject(cmd.ResearchFieldID), 0); err != nil {
			return err
		}
		for i, a := range cmd.Authors {
			if err := link(paperID, types.PredicateHasAuthors, dgraph.LiteralObject(a.Name, "xsd:string"), i); err != nil {
				return err
			}
		}
		if cmd.PublicationMonth != nil {
			if err := link(paperID, types.PredicateHasPublicationMonth, dgraph.LiteralObject(fmt.Sprint(*cmd.PublicationMonth), "xsd:integer"), 0); err != nil {
				return err
			}
		}
		if cmd.PublicationYear != nil {
			if err := link(paperID, types.PredicateHasPublicationYear, dgraph.LiteralObject(fmt.Sprint(*cmd.PublicationYear), "xsd:integer"), 0); err != nil {
				return err
			}
		}
		if cmd.DOI != nil {
			if err := link(paperID, types.PredicateHasDOI, dgraph.LiteralObject(*cmd.DOI, "xsd:string"), 0); err != nil {
				return err
			}
		}
		if cmd.URL != nil {
			if err := link(paperID, types.PredicateHasURL, dgraph.LiteralObject(*cmd.URL, "xsd:anyURI"), 0); err != nil {
				return err
			}
		}
		if cmd.PublishedIn != nil {
			if err := link(paperID, types.PredicateHasVenue, dgraph.LiteralObject(*cmd.PublishedIn, "xsd:string"), 0); err != nil {
				return err
			}
		}

		if err := createResource(ctx, tx, contributionID, contribution, []types.ClassID{types.ClassContribution}, cmd.ContributorID); err != nil {
			return err
		}
		if err := relate(ctx, tx, paperID, types.PredicateHasContribution, contributionID, 0, cmd.ContributorID); err != nil {
			return err
		}
		for i, st := range cmd.Statements {
			if err := link(contributionID, st.Predicate, st.Object, i); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create paper %q: %w", cmd.Title, err)
	}
	return paperID, nil
}

func (s *Store) write(ctx context.Context, fn func(tx neo4j.ManagedTransaction) error) error {
	s.EnsureSchema(ctx)
	session := s.client.WriteSession(ctx)
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(tx)
	})
	return err
}

func createResource(ctx context.Context, tx neo4j.ManagedTransaction, id types.ThingID, label string, classes []types.ClassID, contributor uuid.UUID) error {
	cls := make([]string, 0, len(classes))
	for _, c := range classes {
		cls = append(cls, string(c))
	}
	return run(ctx, tx, `
MERGE (r:Thing:Resource {id: $id})
ON CREATE SET r.label = $label, r.classes = $classes, r.created_by = $created_by, r.created_at = $created_at
`, map[string]any{
		"id":         string(id),
		"label":      label,
		"classes":    cls,
		"created_by": contributor.String(),
		"created_at": nowString(),
	})
}

// ErrUnlinkedStatement means the subject or object of a statement does not
// exist, so nothing was related.
var ErrUnlinkedStatement = errors.New("statement endpoint not found")

func relate(ctx context.Context, tx neo4j.ManagedTransaction, subject, predicate, object types.ThingID, index int, contributor uuid.UUID) error {
	res, err := tx.Run(ctx, `
MATCH (s:Thing {id: $subject})
MATCH (o:Thing {id: $object})
MERGE (s)-[r:RELATED {predicate_id: $predicate, index: $index}]->(o)
ON CREATE SET r.id = $id, r.created_by = $created_by, r.created_at = $created_at
RETURN r.id AS id
`, map[string]any{
		"subject":    string(subject),
		"object":     string(object),
		"predicate":  string(predicate),
		"index":      int64(index),
		"id":         "S" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		"created_by": contributor.String(),
		"created_at": nowString(),
	})
	if err != nil {
		return err
	}
	recs, err := res.Collect(ctx)
	if err != nil {
		return err
	}
	return linked(len(recs), subject, predicate, object)
}

func linked(rows int, subject, predicate, object types.ThingID) error {
	if rows == 0 {
		return fmt.Errorf("%w: (%s)-[%s]->(%s)", ErrUnlinkedStatement, subject, predicate, object)
	}
	return nil
}

func run(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) error {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
