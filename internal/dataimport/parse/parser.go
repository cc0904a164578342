// Package parse turns raw CSV rows into typed headers and typed values according
// to a schema.
package parse

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yungbote/dataimport-backend/internal/dataimport/errs"
	"github.com/yungbote/dataimport-backend/internal/dataimport/schema"
	"github.com/yungbote/dataimport-backend/internal/domain/csvimport"
)

const headerRow int64 = 1

type RecordParser struct {
	schema *schema.Schema
}

func NewRecordParser(s *schema.Schema) *RecordParser {
	return &RecordParser{schema: s}
}

func (p *RecordParser) Schema() *schema.Schema { return p.schema }

// ParseHeader resolves every header cell against the header namespaces. Cell
// errors are collected into one *errs.RecordParsingError.
func (p *RecordParser) ParseHeader(values []string) ([]csvimport.CSVHeader, error) {
	if len(values) == 0 {
		return nil, errs.EmptyCSVHeader()
	}
	headers := make([]csvimport.CSVHeader, 0, len(values))
	var causes []error
	for i, raw := range values {
		h, err := p.parseHeaderCell(strings.TrimSpace(raw), i+1)
		if err != nil {
			causes = append(causes, err)
			continue
		}
		headers = append(headers, h)
	}
	if len(causes) > 0 {
		return nil, &errs.RecordParsingError{Causes: causes}
	}
	if dups := p.closedDuplicates(headers); len(dups) > 0 {
		return nil, errs.DuplicateCSVHeaders(dups)
	}
	return headers, nil
}

func (p *RecordParser) parseHeaderCell(raw string, column int) (csvimport.CSVHeader, error) {
	if raw == "" {
		return csvimport.CSVHeader{}, errs.BlankCSVHeaderValue(column)
	}
	c := parseCell(raw)
	declared, err := p.resolveToken(c.typeToken, headerRow, column)
	if err != nil {
		return csvimport.CSVHeader{}, err
	}
	h := csvimport.CSVHeader{Column: column, Name: c.name}
	if c.namespace == nil {
		h.ColumnType = declared
		return h, nil
	}
	ns, ok := p.schema.HeaderNamespace(*c.namespace)
	if !ok {
		return csvimport.CSVHeader{}, errs.UnknownCSVNamespace(*c.namespace, c.name, headerRow, column)
	}
	h.Namespace = c.namespace
	if ns.Closed {
		prop, ok := ns.Property(c.name)
		if !ok {
			return csvimport.CSVHeader{}, errs.UnknownCSVNamespaceValue(ns.Name, c.name, headerRow, column)
		}
		if declared != nil && *declared != prop.Type {
			return csvimport.CSVHeader{}, errs.UnexpectedCSVValueType(string(*declared), string(prop.Type), headerRow, column)
		}
		t := prop.Type
		h.ColumnType = &t
		return h, nil
	}
	if ns.HeaderValidator != nil {
		if err := ns.HeaderValidator.Validate(c.name); err != nil {
			return csvimport.CSVHeader{}, errs.InvalidCSVValue(c.name, headerRow, column, err)
		}
	}
	switch {
	case declared != nil:
		h.ColumnType = declared
	case ns.Type != nil:
		t := *ns.Type
		h.ColumnType = &t
	}
	return h, nil
}

func (p *RecordParser) closedDuplicates(headers []csvimport.CSVHeader) map[string][]int {
	seen := map[string][]int{}
	for _, h := range headers {
		if h.Namespace == nil {
			continue
		}
		ns, ok := p.schema.HeaderNamespace(*h.Namespace)
		if !ok || !ns.Closed {
			continue
		}
		key := *h.Namespace + ":" + h.Name
		seen[key] = append(seen[key], h.Column)
	}
	for key, cols := range seen {
		if len(cols) < 2 {
			delete(seen, key)
		}
	}
	return seen
}

// ParseRecord types one data row against parsed headers. row is used in error
// messages.
func (p *RecordParser) ParseRecord(values []string, row int64, headers []csvimport.CSVHeader) ([]csvimport.TypedValue, error) {
	if len(values) != len(headers) {
		return nil, errs.InconsistentCSVColumnCount(len(values), len(headers), row)
	}
	out := make([]csvimport.TypedValue, len(values))
	var causes []error
	for i, raw := range values {
		v, err := p.parseValue(raw, row, headers[i])
		if err != nil {
			causes = append(causes, err)
			continue
		}
		out[i] = v
	}
	if len(causes) > 0 {
		return nil, &errs.RecordParsingError{Causes: causes}
	}
	return out, nil
}

func (p *RecordParser) parseValue(raw string, row int64, header csvimport.CSVHeader) (csvimport.TypedValue, error) {
	column := header.Column
	if raw == "" {
		t := csvimport.ClassString
		if header.ColumnType != nil {
			t = *header.ColumnType
		}
		return csvimport.TypedValue{Type: t}, nil
	}

	rest, token := splitType(raw)
	declared, err := p.resolveToken(token, row, column)
	if err != nil {
		return csvimport.TypedValue{}, err
	}

	// Unregistered prefixes stay part of the value.
	var valueNs *schema.Namespace
	nsName, value := splitNamespace(rest)
	if nsName != nil {
		if ns, ok := p.schema.ValueNamespace(*nsName); ok {
			valueNs = ns
		} else {
			nsName, value = nil, rest
		}
	}

	var expected *csvimport.ClassID
	var valueValidators []schema.Validator
	if valueNs != nil {
		if valueNs.Closed {
			prop, ok := valueNs.Property(value)
			if !ok {
				return csvimport.TypedValue{}, errs.UnknownCSVNamespaceValue(valueNs.Name, value, row, column)
			}
			t := prop.Type
			expected = &t
			valueValidators = append(valueValidators, prop.Validator)
		} else if valueNs.Type != nil {
			t := *valueNs.Type
			expected = &t
		}
		valueValidators = append(valueValidators, valueNs.Validator)
		if declared != nil && expected != nil && *declared != *expected {
			return csvimport.TypedValue{}, errs.UnexpectedCSVValueType(string(*declared), string(*expected), row, column)
		}
	}

	typ := csvimport.ClassString
	switch {
	case declared != nil:
		typ = *declared
	case expected != nil:
		typ = *expected
	case header.ColumnType != nil:
		typ = *header.ColumnType
	}

	var headerValidators []schema.Validator
	if header.Namespace != nil {
		if hns, ok := p.schema.HeaderNamespace(*header.Namespace); ok {
			if hns.Closed {
				if prop, ok := hns.Property(header.Name); ok {
					if typ != prop.Type {
						return csvimport.TypedValue{}, errs.UnexpectedCSVValueType(string(typ), string(prop.Type), row, column)
					}
					headerValidators = append(headerValidators, prop.Validator)
				}
			} else {
				headerValidators = append(headerValidators, hns.Validator)
			}
		}
	}

	for _, v := range append(valueValidators, headerValidators...) {
		if v == nil {
			continue
		}
		if err := v.Validate(value); err != nil {
			return csvimport.TypedValue{}, errs.InvalidCSVValue(value, row, column, err)
		}
	}
	if !parsesAs(typ, value) {
		return csvimport.TypedValue{}, errs.UnparsableCSVValue(value, row, column, string(typ))
	}
	return csvimport.TypedValue{Namespace: nsName, Value: &value, Type: typ}, nil
}

func (p *RecordParser) resolveToken(token *string, row int64, column int) (*csvimport.ClassID, error) {
	if token == nil {
		return nil, nil
	}
	c, ok := p.schema.ResolveType(*token)
	if !ok {
		return nil, errs.UnknownCSVValueType(*token, row, column)
	}
	return &c, nil
}

func parsesAs(typ csvimport.ClassID, value string) bool {
	switch typ {
	case csvimport.ClassInteger:
		_, err := strconv.ParseInt(value, 10, 64)
		return err == nil
	case csvimport.ClassDecimal:
		_, err := decimal.NewFromString(value)
		return err == nil
	case csvimport.ClassFloat:
		_, err := strconv.ParseFloat(value, 64)
		return err == nil
	case csvimport.ClassBoolean:
		return value == "true" || value == "false"
	case csvimport.ClassDate:
		_, err := time.Parse(time.DateOnly, value)
		return err == nil
	case csvimport.ClassURI:
		u, err := url.Parse(value)
		return err == nil && u.IsAbs()
	}
	return true
}
