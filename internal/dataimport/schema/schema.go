// Package schema describes how the header and data cells of a CSV of a given type
// are interpreted: which namespaces exist, whether they are closed, what types
// their properties carry and which validators apply.
package schema

import (
	"fmt"
	"strings"

	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
)

type Property struct {
	Name      string
	Type      csvimport.ClassID
	Validator Validator
}

// Namespace groups properties. A closed namespace only admits declared
// properties; an open one admits any name.
type Namespace struct {
	Name       string
	Closed     bool
	Properties map[string]Property
	// Type is the value type of an open namespace. Nil means untyped.
	Type *csvimport.ClassID
	// Validator applies to values of an open namespace.
	Validator Validator
	// HeaderValidator applies to header names of an open header namespace.
	HeaderValidator Validator
}

func Closed(name string, props ...Property) *Namespace {
	ns := &Namespace{Name: name, Closed: true, Properties: make(map[string]Property, len(props))}
	for _, p := range props {
		ns.Properties[p.Name] = p
	}
	return ns
}

func Open(name string) *Namespace {
	return &Namespace{Name: name, Properties: map[string]Property{}}
}

func Prop(name string, typ csvimport.ClassID, v Validator) Property {
	return Property{Name: name, Type: typ, Validator: v}
}

func (n *Namespace) OfType(typ csvimport.ClassID) *Namespace {
	n.Type = &typ
	return n
}

func (n *Namespace) ValidatedBy(v Validator) *Namespace {
	n.Validator = v
	return n
}

func (n *Namespace) HeadersValidatedBy(v Validator) *Namespace {
	n.HeaderValidator = v
	return n
}

func (n *Namespace) Property(name string) (Property, bool) {
	p, ok := n.Properties[name]
	return p, ok
}

// Schema is immutable once built.
type Schema struct {
	Type         csvimport.Type
	Headers      map[string]*Namespace
	Values       map[string]*Namespace
	TypeMappings map[string]csvimport.ClassID
}

func (s *Schema) HeaderNamespace(name string) (*Namespace, bool) {
	ns, ok := s.Headers[name]
	return ns, ok
}

func (s *Schema) ValueNamespace(name string) (*Namespace, bool) {
	ns, ok := s.Values[name]
	return ns, ok
}

// ResolveType maps an external type token such as "int" to a class.
func (s *Schema) ResolveType(token string) (csvimport.ClassID, bool) {
	c, ok := s.TypeMappings[token]
	return c, ok
}

// TypeToken returns the first token mapped to c, used when rendering headers.
func (s *Schema) TypeToken(c csvimport.ClassID) (string, bool) {
	best := ""
	for token, class := range s.TypeMappings {
		if class == c && (best == "" || token < best) {
			best = token
		}
	}
	return best, best != ""
}

type Builder struct {
	typ     csvimport.Type
	headers []*Namespace
	values  []*Namespace
	types   map[string]csvimport.ClassID
}

func NewBuilder(typ csvimport.Type) *Builder {
	return &Builder{typ: typ, types: map[string]csvimport.ClassID{}}
}

func (b *Builder) Headers(ns ...*Namespace) *Builder {
	b.headers = append(b.headers, ns...)
	return b
}

func (b *Builder) Values(ns ...*Namespace) *Builder {
	b.values = append(b.values, ns...)
	return b
}

func (b *Builder) Type(token string, class csvimport.ClassID) *Builder {
	b.types[token] = class
	return b
}

func (b *Builder) Build() (*Schema, error) {
	s := &Schema{
		Type:         b.typ,
		Headers:      make(map[string]*Namespace, len(b.headers)),
		Values:       make(map[string]*Namespace, len(b.values)),
		TypeMappings: make(map[string]csvimport.ClassID, len(b.types)),
	}
	if err := addNamespaces(s.Headers, b.headers, "header"); err != nil {
		return nil, err
	}
	if err := addNamespaces(s.Values, b.values, "value"); err != nil {
		return nil, err
	}
	for token, class := range b.types {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, fmt.Errorf("empty type token for class %s", class)
		}
		s.TypeMappings[token] = class
	}
	return s, nil
}

func (b *Builder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func addNamespaces(dst map[string]*Namespace, src []*Namespace, kind string) error {
	for _, ns := range src {
		if ns == nil {
			continue
		}
		name := strings.TrimSpace(ns.Name)
		if name == "" {
			return fmt.Errorf("%s namespace without a name", kind)
		}
		if strings.Contains(name, ":") {
			return fmt.Errorf("%s namespace %q must not contain ':'", kind, name)
		}
		if _, dup := dst[name]; dup {
			return fmt.Errorf("duplicate %s namespace %q", kind, name)
		}
		if ns.Closed && len(ns.Properties) == 0 {
			return fmt.Errorf("closed %s namespace %q declares no properties", kind, name)
		}
		dst[name] = ns
	}
	return nil
}
