package domain

// QueryDescriptor is one executable query against a single physical table,
// carrying the union of codes for every concept that resolves into that
// table. The SQL selects the fixed aliases entity_id, obs_time, code, value,
// unit so the merge step is independent of source column names.
type QueryDescriptor struct {
	Database string
	Schema   string
	Table    string
	Codes    []Code
	SQL      string
	Args     []any
}

// QualifiedTable returns the schema-qualified table name.
func (d QueryDescriptor) QualifiedTable() string { return d.Schema + "." + d.Table }
