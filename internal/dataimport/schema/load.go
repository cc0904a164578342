package schema

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
)

//go:embed schemas/*.yaml
var embedded embed.FS

var builtinFiles = map[csvimport.Type]string{
	csvimport.TypePaper: "schemas/paper.yaml",
}

var (
	builtinMu sync.Mutex
	builtin   = map[csvimport.Type]*Schema{}
)

// ForType returns the built-in schema of a CSV type.
func ForType(t csvimport.Type) (*Schema, error) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	if s, ok := builtin[t]; ok {
		return s, nil
	}
	file, ok := builtinFiles[t]
	if !ok {
		return nil, fmt.Errorf("no schema for csv type %q", t)
	}
	raw, err := embedded.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	s, err := Load(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", file, err)
	}
	if s.Type != t {
		return nil, fmt.Errorf("%s declares type %q, want %q", file, s.Type, t)
	}
	builtin[t] = s
	return s, nil
}

type fileSchema struct {
	Type    string            `yaml:"type"`
	Types   map[string]string `yaml:"types"`
	Headers []fileNamespace   `yaml:"headers"`
	Values  []fileNamespace   `yaml:"values"`
}

type fileNamespace struct {
	Name            string         `yaml:"name"`
	Closed          bool           `yaml:"closed"`
	Type            string         `yaml:"type"`
	Validator       *fileValidator `yaml:"validator"`
	HeaderValidator *fileValidator `yaml:"header_validator"`
	Properties      []fileProperty `yaml:"properties"`
}

type fileProperty struct {
	Name      string         `yaml:"name"`
	Type      string         `yaml:"type"`
	Validator *fileValidator `yaml:"validator"`
}

type fileValidator struct {
	Regex      string   `yaml:"regex"`
	Enum       []string `yaml:"enum"`
	IgnoreCase bool     `yaml:"ignore_case"`
	Min        *int64   `yaml:"min"`
	Max        *int64   `yaml:"max"`
}

// Load decodes a YAML schema document.
func Load(r io.Reader) (*Schema, error) {
	var doc fileSchema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	typ, err := csvimport.ParseType(doc.Type)
	if err != nil {
		return nil, err
	}
	b := NewBuilder(typ)
	for token, class := range doc.Types {
		b.Type(token, csvimport.ClassID(strings.TrimSpace(class)))
	}
	for _, fn := range doc.Headers {
		ns, err := fn.build()
		if err != nil {
			return nil, fmt.Errorf("header namespace %q: %w", fn.Name, err)
		}
		b.Headers(ns)
	}
	for _, fn := range doc.Values {
		ns, err := fn.build()
		if err != nil {
			return nil, fmt.Errorf("value namespace %q: %w", fn.Name, err)
		}
		b.Values(ns)
	}
	return b.Build()
}

func (fn fileNamespace) build() (*Namespace, error) {
	var ns *Namespace
	if fn.Closed {
		props := make([]Property, 0, len(fn.Properties))
		for _, fp := range fn.Properties {
			if fp.Type == "" {
				return nil, fmt.Errorf("property %q has no type", fp.Name)
			}
			v, err := fp.Validator.build()
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", fp.Name, err)
			}
			props = append(props, Prop(fp.Name, csvimport.ClassID(fp.Type), v))
		}
		ns = Closed(fn.Name, props...)
	} else {
		if len(fn.Properties) > 0 {
			return nil, fmt.Errorf("open namespace declares properties")
		}
		ns = Open(fn.Name)
	}
	if fn.Type != "" {
		ns.OfType(csvimport.ClassID(fn.Type))
	}
	v, err := fn.Validator.build()
	if err != nil {
		return nil, err
	}
	hv, err := fn.HeaderValidator.build()
	if err != nil {
		return nil, err
	}
	if v != nil {
		ns.ValidatedBy(v)
	}
	if hv != nil {
		ns.HeadersValidatedBy(hv)
	}
	return ns, nil
}

func (fv *fileValidator) build() (Validator, error) {
	if fv == nil {
		return nil, nil
	}
	var vs []Validator
	if fv.Regex != "" {
		re, err := Regex(fv.Regex)
		if err != nil {
			return nil, err
		}
		vs = append(vs, re)
	}
	if len(fv.Enum) > 0 {
		vs = append(vs, &EnumValidator{Options: fv.Enum, IgnoreCase: fv.IgnoreCase})
	}
	if fv.Min != nil || fv.Max != nil {
		vs = append(vs, &IntRangeValidator{Min: fv.Min, Max: fv.Max})
	}
	switch len(vs) {
	case 0:
		return nil, nil
	case 1:
		return vs[0], nil
	}
	return All(vs...), nil
}
