// Package markup extracts structured rows from one table of interest in an
// HTML document. The scanner is an explicit finite-state machine over the
// tag stream and never fails on malformed markup: offending rows are
// skipped, not raised.
package markup

import (
	_ "embed"
	"regexp"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed schemas.yaml
var schemasYAML []byte

// LinkRule describes how an identifier is captured from a link inside a
// cell: which attribute to inspect and a pattern whose first capture group
// is the numeric identifier.
type LinkRule struct {
	Attr    string `yaml:"attr"`
	Pattern string `yaml:"pattern"`

	re *regexp.Regexp
}

// Column binds a cell index to a semantic field name. Kind "int" columns
// are parsed permissively (thousands separators and spaces stripped); a
// parse failure leaves the field absent.
type Column struct {
	Index int    `yaml:"index"`
	Field string `yaml:"field"`
	Kind  string `yaml:"kind,omitempty"`
}

// Schema is a versioned column-to-field mapping for one table layout.
// The mapping is position-based and therefore brittle to upstream layout
// drift; Width guards against silent misassignment — a row whose observed
// cell count differs from Width is flagged and dropped, never shifted.
type Schema struct {
	Name     string   `yaml:"name"`
	Selector string   `yaml:"selector"`
	Width    int      `yaml:"width"`
	Link     LinkRule `yaml:"link"`
	Columns  []Column `yaml:"columns"`

	byIndex map[int]Column
}

type schemaFile struct {
	Schemas []*Schema `yaml:"schemas"`
}

var (
	schemasOnce sync.Once
	schemas     map[string]*Schema
	schemasErr  error
)

func loadSchemas() {
	var file schemaFile
	if err := yaml.Unmarshal(schemasYAML, &file); err != nil {
		schemasErr = eris.Wrap(err, "markup: parse embedded schemas")
		return
	}

	loaded := make(map[string]*Schema, len(file.Schemas))
	for _, s := range file.Schemas {
		if err := s.compile(); err != nil {
			schemasErr = err
			return
		}
		loaded[s.Name] = s
	}
	schemas = loaded
}

func (s *Schema) compile() error {
	if s.Name == "" {
		return eris.New("markup: schema missing name")
	}
	if s.Selector == "" {
		return eris.Errorf("markup: schema %s missing selector", s.Name)
	}
	s.byIndex = make(map[int]Column, len(s.Columns))
	hasName := false
	for _, col := range s.Columns {
		if col.Field == FieldName {
			hasName = true
		}
		s.byIndex[col.Index] = col
	}
	if !hasName {
		return eris.Errorf("markup: schema %s has no %q column", s.Name, FieldName)
	}
	if s.Link.Pattern != "" {
		re, err := regexp.Compile(s.Link.Pattern)
		if err != nil {
			return eris.Wrapf(err, "markup: schema %s link pattern", s.Name)
		}
		s.Link.re = re
	}
	return nil
}

// SchemaByName returns a shipped extraction schema.
func SchemaByName(name string) (*Schema, error) {
	schemasOnce.Do(loadSchemas)
	if schemasErr != nil {
		return nil, schemasErr
	}
	s, ok := schemas[name]
	if !ok {
		return nil, eris.Errorf("markup: unknown schema %q", name)
	}
	return s, nil
}
