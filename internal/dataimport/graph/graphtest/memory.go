// Package graphtest provides an in-memory graph.Store for tests.
package graphtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/dataimport-backend/internal/dataimport/graph"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
)

type Memory struct {
	mu         sync.Mutex
	Resources  map[csvimport.ThingID]*graph.Resource
	Predicates map[csvimport.ThingID]string
	Papers     []graph.CreatePaperCommand
	// Err, when set, fails every call.
	Err error
	// FailPaperAfter fails CreatePaper once that many papers exist.
	FailPaperAfter int

	next int
}

func New() *Memory {
	return &Memory{
		Resources:  map[csvimport.ThingID]*graph.Resource{},
		Predicates: map[csvimport.ThingID]string{},
	}
}

// AddResource seeds an existing resource.
func (m *Memory) AddResource(id csvimport.ThingID, label string, classes ...csvimport.ClassID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resources[id] = &graph.Resource{ID: id, Label: label, Classes: classes}
}

// AddPredicate seeds an existing predicate.
func (m *Memory) AddPredicate(id csvimport.ThingID, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Predicates[id] = label
}

func (m *Memory) ThingExists(_ context.Context, id csvimport.ThingID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	_, isPredicate := m.Predicates[id]
	return m.Resources[id] != nil || isPredicate, nil
}

func (m *Memory) PredicateExists(_ context.Context, id csvimport.ThingID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	_, ok := m.Predicates[id]
	return ok, nil
}

func (m *Memory) FindResourceByID(_ context.Context, id csvimport.ThingID) (*graph.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Resources[id], nil
}

func (m *Memory) CreatePredicate(_ context.Context, _ uuid.UUID, label string) (csvimport.ThingID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	id := m.id("P")
	m.Predicates[id] = label
	return id, nil
}

func (m *Memory) CreateResource(_ context.Context, _ uuid.UUID, label string, classes []csvimport.ClassID) (csvimport.ThingID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	id := m.id("R")
	m.Resources[id] = &graph.Resource{ID: id, Label: label, Classes: classes}
	return id, nil
}

func (m *Memory) CreatePaper(_ context.Context, cmd graph.CreatePaperCommand) (csvimport.ThingID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if m.FailPaperAfter > 0 && len(m.Papers) >= m.FailPaperAfter {
		return "", fmt.Errorf("graph unavailable")
	}
	id := m.id("R")
	m.Resources[id] = &graph.Resource{ID: id, Label: cmd.Title, Classes: []csvimport.ClassID{csvimport.ClassPaper}}
	m.Papers = append(m.Papers, cmd)
	return id, nil
}

// PredicateByLabel returns the id of the first predicate with label.
func (m *Memory) PredicateByLabel(label string) (csvimport.ThingID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, l := range m.Predicates {
		if l == label {
			return id, true
		}
	}
	return "", false
}

func (m *Memory) id(prefix string) csvimport.ThingID {
	m.next++
	return csvimport.ThingID(fmt.Sprintf("%s%d", prefix, 1000+m.next))
}
