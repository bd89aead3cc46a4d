package domain

import "time"

// EntityScope selects which patients/admissions a load covers: either all
// entities in the database or an explicit ID list. The zero value is the
// empty scope, which produces no queries at all.
type EntityScope struct {
	All bool
	IDs []int64
}

// AllEntities returns a scope covering every entity in the database.
func AllEntities() EntityScope { return EntityScope{All: true} }

// Entities returns a scope restricted to the given entity IDs.
func Entities(ids ...int64) EntityScope { return EntityScope{IDs: ids} }

// Empty reports whether the scope selects nothing.
func (s EntityScope) Empty() bool { return !s.All && len(s.IDs) == 0 }

// TimeWindow restricts a load to measurements with Start <= t < End.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// LoadRequest asks the loader for a set of concepts over an entity scope in
// one target database.
type LoadRequest struct {
	Concepts []string
	Database string
	Scope    EntityScope
	Window   *TimeWindow
}

// ResultRow is one observed measurement event in the normalized output
// schema. Concept is always a catalog identifier, never a raw physical code.
// Value holds the numeric reading when the source value parses as a number;
// otherwise ValueText carries the raw text and Value is zero.
type ResultRow struct {
	EntityID    int64
	Concept     string
	Timestamp   time.Time
	Value       float64
	ValueText   string
	Unit        string
	SourceTable string
}

// LoadResult is the normalized tabular output of a load: one row per
// measurement event, plus the concepts that had no location in the target
// database. Unsupported concepts produce no rows and are not an error.
type LoadResult struct {
	Rows        []ResultRow
	Unsupported []string
}
