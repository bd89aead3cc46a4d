package domain

import "strconv"

// Code is a physical item code as it appears in a source table. Codes are
// integers in some schemas (MIMIC itemids) and strings in others (eICU lab
// names); the numeric flag records which kind the catalog document declared
// so query arguments keep their original SQL type.
type Code struct {
	value   string
	numeric bool
}

// NewCode creates a string code.
func NewCode(value string) Code {
	return Code{value: value}
}

// NewNumericCode creates an integer code.
func NewNumericCode(value int64) Code {
	return Code{value: strconv.FormatInt(value, 10), numeric: true}
}

// String returns the canonical text form of the code.
func (c Code) String() string { return c.value }

// Numeric reports whether the code was declared as an integer.
func (c Code) Numeric() bool { return c.numeric }

// Arg returns the code as a SQL driver argument: int64 for numeric codes,
// string otherwise.
func (c Code) Arg() any {
	if c.numeric {
		n, _ := strconv.ParseInt(c.value, 10, 64)
		return n
	}
	return c.value
}

// Concept is a canonical clinical measurement identity, independent of any
// database. Identifiers are unique within a catalog; labels need not be.
type Concept struct {
	Identifier  string
	Label       string
	Specimen    string
	Units       string
	Description string
	Tags        []string
}

// Location is a concept's physical binding within one database: the schema,
// table, and the non-empty set of item codes that all refer to the concept in
// that table.
type Location struct {
	Database string
	Schema   string
	Table    string
	Codes    []Code
}

// QualifiedTable returns the schema-qualified table name.
func (l Location) QualifiedTable() string { return l.Schema + "." + l.Table }

// ResolutionResult is the per-concept output of the resolver: the ordered
// locations matched for the requested database. An empty location list means
// the concept is unsupported in that database, which is not an error.
type ResolutionResult struct {
	Concept   string
	Locations []Location
}

// Unsupported reports whether the concept has no binding in the resolved
// database.
func (r ResolutionResult) Unsupported() bool { return len(r.Locations) == 0 }
