package domain

// ColumnSet names the columns a measurement table exposes for the fixed
// output schema. Unit may be empty for tables that store no unit column.
type ColumnSet struct {
	Entity string
	Time   string
	Code   string
	Value  string
	Unit   string
}

// DefaultColumns returns the MIMIC-style column convention used when a
// database profile does not override it.
func DefaultColumns() ColumnSet {
	return ColumnSet{
		Entity: "subject_id",
		Time:   "charttime",
		Code:   "itemid",
		Value:  "valuenum",
		Unit:   "valueuom",
	}
}

// DatabaseProfile describes the column conventions of one physical database.
// Columns applies to every table unless a schema-qualified entry in Tables
// overrides it. The original per-database connectors hard-coded these
// identifiers; here they are data.
type DatabaseProfile struct {
	Name    string
	Columns ColumnSet
	Tables  map[string]ColumnSet
}

// ColumnsFor returns the column set for a schema-qualified table, falling
// back to the profile default.
func (p DatabaseProfile) ColumnsFor(schema, table string) ColumnSet {
	if cs, ok := p.Tables[schema+"."+table]; ok {
		return cs
	}
	if p.Columns == (ColumnSet{}) {
		return DefaultColumns()
	}
	return p.Columns
}
