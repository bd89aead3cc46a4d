// Package catalog implements the identifier catalog: parsing and validation
// of concept mapping documents and the immutable, indexed concept→location
// model built from them.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"icuts/internal/domain"
)

// Document is the parsed form of a concept mapping document, preserving the
// order in which concepts, schemas, and tables appear in the source. The
// interchange format is JSON or YAML; both are parsed through the yaml node
// API so that ordering survives, which the catalog's deterministic-resolution
// guarantees depend on.
type Document struct {
	Concepts []ConceptDef
}

// ConceptDef is one concept entry of a document.
type ConceptDef struct {
	Identifier  string
	Label       string
	Specimen    string
	Units       string
	Description string
	Tags        []string
	Settings    []DatabaseSetting
}

// DatabaseSetting binds a concept inside one database.
type DatabaseSetting struct {
	Database string
	Schemas  []SchemaSetting
}

// SchemaSetting groups a concept's tables within one schema.
type SchemaSetting struct {
	Name   string
	Tables []TableSetting
}

// TableSetting lists the item codes that refer to the concept in one table.
type TableSetting struct {
	Name    string
	ItemIDs []domain.Code
}

// ParseDocument parses a JSON or YAML concept mapping document. Structural
// problems (bad syntax, duplicate identifiers, wrong node kinds) are returned
// as a *domain.MalformedCatalogError.
func ParseDocument(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, domain.ErrMalformedCatalog([]string{fmt.Sprintf("parse document: %v", err)})
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, domain.ErrMalformedCatalog([]string{"document is empty"})
	}

	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, domain.ErrMalformedCatalog([]string{"top level must be a mapping of concept identifiers"})
	}

	doc := &Document{}
	var problems []string
	seen := map[string]bool{}

	for i := 0; i+1 < len(top.Content); i += 2 {
		key, value := top.Content[i], top.Content[i+1]
		identifier := key.Value
		if seen[identifier] {
			problems = append(problems, fmt.Sprintf("concept identifier %q repeats", identifier))
			continue
		}
		seen[identifier] = true

		def, defProblems := parseConcept(identifier, value)
		problems = append(problems, defProblems...)
		doc.Concepts = append(doc.Concepts, def)
	}

	if len(problems) > 0 {
		return nil, domain.ErrMalformedCatalog(problems)
	}
	return doc, nil
}

func parseConcept(identifier string, node *yaml.Node) (ConceptDef, []string) {
	def := ConceptDef{Identifier: identifier}
	if node.Kind != yaml.MappingNode {
		return def, []string{fmt.Sprintf("concept %q: value must be a mapping", identifier)}
	}

	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf("concept %q: ", identifier)+fmt.Sprintf(format, args...))
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "label":
			def.Label = value.Value
		case "specimen":
			def.Specimen = value.Value
		case "units":
			def.Units = value.Value
		case "description":
			def.Description = value.Value
		case "tags":
			if value.Kind != yaml.SequenceNode {
				fail("tags must be a sequence")
				continue
			}
			for _, tag := range value.Content {
				def.Tags = append(def.Tags, tag.Value)
			}
		case "db_settings":
			if value.Kind != yaml.SequenceNode {
				fail("db_settings must be a sequence")
				continue
			}
			for _, entry := range value.Content {
				setting, ok := parseDatabaseSetting(entry, fail)
				if ok {
					def.Settings = append(def.Settings, setting)
				}
			}
		default:
			fail("unknown field %q", key.Value)
		}
	}
	return def, problems
}

func parseDatabaseSetting(node *yaml.Node, fail func(string, ...any)) (DatabaseSetting, bool) {
	setting := DatabaseSetting{}
	if node.Kind != yaml.MappingNode {
		fail("db_settings entries must be mappings")
		return setting, false
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "database":
			setting.Database = value.Value
		case "schemas":
			if value.Kind != yaml.MappingNode {
				fail("schemas must be a mapping of schema name to tables")
				continue
			}
			for j := 0; j+1 < len(value.Content); j += 2 {
				schema := SchemaSetting{Name: value.Content[j].Value}
				schema.Tables = parseTables(value.Content[j+1], fail)
				setting.Schemas = append(setting.Schemas, schema)
			}
		default:
			fail("unknown db_settings field %q", key.Value)
		}
	}
	return setting, true
}

func parseTables(node *yaml.Node, fail func(string, ...any)) []TableSetting {
	if node.Kind != yaml.MappingNode {
		fail("schema value must be a mapping of table name to item_ids")
		return nil
	}

	var tables []TableSetting
	for i := 0; i+1 < len(node.Content); i += 2 {
		table := TableSetting{Name: node.Content[i].Value}
		body := node.Content[i+1]
		if body.Kind != yaml.MappingNode {
			fail("table %q must be a mapping", table.Name)
			continue
		}
		for j := 0; j+1 < len(body.Content); j += 2 {
			key, value := body.Content[j], body.Content[j+1]
			if key.Value != "item_ids" {
				fail("table %q: unknown field %q", table.Name, key.Value)
				continue
			}
			if value.Kind != yaml.SequenceNode {
				fail("table %q: item_ids must be a sequence", table.Name)
				continue
			}
			for _, item := range value.Content {
				code, err := parseCode(item)
				if err != nil {
					fail("table %q: %v", table.Name, err)
					continue
				}
				table.ItemIDs = append(table.ItemIDs, code)
			}
		}
		tables = append(tables, table)
	}
	return tables
}

func parseCode(node *yaml.Node) (domain.Code, error) {
	if node.Kind != yaml.ScalarNode {
		return domain.Code{}, fmt.Errorf("item_ids entries must be scalars")
	}
	if node.Tag == "!!int" {
		n, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil {
			return domain.Code{}, fmt.Errorf("invalid integer code %q", node.Value)
		}
		return domain.NewNumericCode(n), nil
	}
	if node.Value == "" {
		return domain.Code{}, fmt.Errorf("item code must not be empty")
	}
	return domain.NewCode(node.Value), nil
}

// MarshalJSON serializes the document as canonical JSON in document order.
// Loading the output again yields a behaviorally identical catalog.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, def := range d.Concepts {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(&buf, def.Identifier)
		buf.WriteByte(':')
		if err := writeConcept(&buf, def); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeConcept(buf *bytes.Buffer, def ConceptDef) error {
	buf.WriteByte('{')
	first := true
	field := func(name string, value any) {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		writeJSONString(buf, name)
		buf.WriteByte(':')
		b, _ := json.Marshal(value)
		buf.Write(b)
	}

	field("label", def.Label)
	if def.Specimen != "" {
		field("specimen", def.Specimen)
	}
	if def.Units != "" {
		field("units", def.Units)
	}
	if def.Description != "" {
		field("description", def.Description)
	}
	if len(def.Tags) > 0 {
		field("tags", def.Tags)
	}

	if !first {
		buf.WriteByte(',')
	}
	writeJSONString(buf, "db_settings")
	buf.WriteString(":[")
	for i, setting := range def.Settings {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		writeJSONString(buf, "database")
		buf.WriteByte(':')
		writeJSONString(buf, setting.Database)
		buf.WriteByte(',')
		writeJSONString(buf, "schemas")
		buf.WriteString(":{")
		for j, schema := range setting.Schemas {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, schema.Name)
			buf.WriteString(":{")
			for k, table := range schema.Tables {
				if k > 0 {
					buf.WriteByte(',')
				}
				writeJSONString(buf, table.Name)
				buf.WriteString(`:{"item_ids":[`)
				for l, code := range table.ItemIDs {
					if l > 0 {
						buf.WriteByte(',')
					}
					if code.Numeric() {
						buf.WriteString(code.String())
					} else {
						writeJSONString(buf, code.String())
					}
				}
				buf.WriteString("]}")
			}
			buf.WriteByte('}')
		}
		buf.WriteByte('}')
		buf.WriteByte('}')
	}
	buf.WriteString("]}")
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
