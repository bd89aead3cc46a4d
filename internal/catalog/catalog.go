package catalog

import (
	"fmt"
	"os"
	"sort"

	"icuts/internal/ddl"
	"icuts/internal/domain"
)

// Catalog is the immutable concept↔location model. It is built once from a
// validated document and never mutated afterwards, so it is safe for any
// number of concurrent readers without locking. Resolver and loader hold a
// read reference only.
type Catalog struct {
	order     []string
	concepts  map[string]domain.Concept
	locations map[string]map[string][]domain.Location
	reverse   map[reverseKey]string
	databases []string
	doc       *Document
}

// reverseKey identifies one physical code location. Codes are keyed by their
// canonical text form so a row value scanned as int64 or string finds the
// same binding.
type reverseKey struct {
	database string
	schema   string
	table    string
	code     string
}

// Load validates a parsed document and builds the catalog. All problems are
// collected and reported together as a *domain.MalformedCatalogError; no
// partial catalog is ever produced.
func Load(doc *Document) (*Catalog, error) {
	cat := &Catalog{
		concepts:  make(map[string]domain.Concept, len(doc.Concepts)),
		locations: make(map[string]map[string][]domain.Location, len(doc.Concepts)),
		reverse:   map[reverseKey]string{},
		doc:       doc,
	}

	var problems []string
	databases := map[string]bool{}

	for _, def := range doc.Concepts {
		if err := ddl.ValidateIdentifier(def.Identifier); err != nil {
			problems = append(problems, fmt.Sprintf("concept identifier %q: %v", def.Identifier, err))
			continue
		}
		if _, dup := cat.concepts[def.Identifier]; dup {
			problems = append(problems, fmt.Sprintf("concept identifier %q repeats", def.Identifier))
			continue
		}

		cat.order = append(cat.order, def.Identifier)
		cat.concepts[def.Identifier] = domain.Concept{
			Identifier:  def.Identifier,
			Label:       def.Label,
			Specimen:    def.Specimen,
			Units:       def.Units,
			Description: def.Description,
			Tags:        append([]string(nil), def.Tags...),
		}
		cat.locations[def.Identifier] = map[string][]domain.Location{}

		for _, setting := range def.Settings {
			problems = append(problems, cat.addSetting(def.Identifier, setting, databases)...)
		}
	}

	if len(problems) > 0 {
		return nil, domain.ErrMalformedCatalog(problems)
	}

	for db := range databases {
		cat.databases = append(cat.databases, db)
	}
	sort.Strings(cat.databases)
	return cat, nil
}

// addSetting indexes one database setting of a concept, returning any
// validation problems found.
func (c *Catalog) addSetting(identifier string, setting DatabaseSetting, databases map[string]bool) []string {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf("concept %q: ", identifier)+fmt.Sprintf(format, args...))
	}

	if err := ddl.ValidateIdentifier(setting.Database); err != nil {
		fail("database name %q: %v", setting.Database, err)
		return problems
	}
	databases[setting.Database] = true

	for _, schema := range setting.Schemas {
		if err := ddl.ValidateIdentifier(schema.Name); err != nil {
			fail("schema name %q: %v", schema.Name, err)
			continue
		}
		for _, table := range schema.Tables {
			if err := ddl.ValidateIdentifier(table.Name); err != nil {
				fail("table name %q: %v", table.Name, err)
				continue
			}
			if len(table.ItemIDs) == 0 {
				fail("location %s.%s.%s has an empty code set", setting.Database, schema.Name, table.Name)
				continue
			}

			loc := domain.Location{
				Database: setting.Database,
				Schema:   schema.Name,
				Table:    table.Name,
				Codes:    append([]domain.Code(nil), table.ItemIDs...),
			}
			for _, code := range table.ItemIDs {
				key := reverseKey{setting.Database, schema.Name, table.Name, code.String()}
				if bound, dup := c.reverse[key]; dup {
					if bound == identifier {
						fail("code %s repeats in %s.%s.%s", code, setting.Database, schema.Name, table.Name)
					} else {
						fail("code %s in %s.%s.%s is already bound to concept %q",
							code, setting.Database, schema.Name, table.Name, bound)
					}
					continue
				}
				c.reverse[key] = identifier
			}
			c.locations[identifier][setting.Database] = append(c.locations[identifier][setting.Database], loc)
		}
	}
	return problems
}

// LoadBytes parses and loads a JSON or YAML document in one step.
func LoadBytes(data []byte) (*Catalog, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return Load(doc)
}

// LoadFile reads and loads a catalog document from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return LoadBytes(data)
}

// Concept returns the concept for the given identifier.
func (c *Catalog) Concept(identifier string) (domain.Concept, error) {
	concept, ok := c.concepts[identifier]
	if !ok {
		return domain.Concept{}, domain.ErrUnknownConcept(identifier)
	}
	return concept, nil
}

// Concepts returns all concepts in document order.
func (c *Catalog) Concepts() []domain.Concept {
	out := make([]domain.Concept, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.concepts[id])
	}
	return out
}

// LocationsFor returns the concept's locations in the given database, in
// document order. An empty slice means the concept has no binding there,
// which is not an error; an unknown identifier is.
func (c *Catalog) LocationsFor(identifier, database string) ([]domain.Location, error) {
	byDB, ok := c.locations[identifier]
	if !ok {
		return nil, domain.ErrUnknownConcept(identifier)
	}
	return append([]domain.Location(nil), byDB[database]...), nil
}

// ReverseLookup maps a physical (database, schema, table, code) back to its
// concept. O(1) via the index built at load time. A miss indicates drift
// between catalog and database and returns *domain.UnknownCodeError.
func (c *Catalog) ReverseLookup(database, schema, table, code string) (domain.Concept, error) {
	identifier, ok := c.reverse[reverseKey{database, schema, table, code}]
	if !ok {
		return domain.Concept{}, domain.ErrUnknownCode(database, schema, table, code)
	}
	return c.concepts[identifier], nil
}

// Databases returns the sorted names of every database any concept binds to.
func (c *Catalog) Databases() []string {
	return append([]string(nil), c.databases...)
}

// Len returns the number of concepts in the catalog.
func (c *Catalog) Len() int { return len(c.order) }

// Document returns the source document, for serialization. Callers must not
// mutate it.
func (c *Catalog) Document() *Document { return c.doc }

// MarshalJSON serializes the catalog back to its interchange form.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	return c.doc.MarshalJSON()
}
