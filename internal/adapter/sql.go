// Package adapter provides the database adapter consumed by the loader: a
// generic database/sql implementation that works with any registered driver
// (duckdb, sqlite3, postgres), plus the registry that binds adapters and
// column profiles to database names.
package adapter

import (
	"context"
	"database/sql"

	"icuts/internal/domain"
)

// SQLAdapter executes query descriptors against one physical database through
// a database/sql pool. The pool owns connection lifecycle and authentication;
// every failure is surfaced as a *domain.AdapterQueryError naming the table.
type SQLAdapter struct {
	database string
	db       *sql.DB
}

// NewSQL creates an adapter for the named database over an open pool.
func NewSQL(database string, db *sql.DB) *SQLAdapter {
	return &SQLAdapter{database: database, db: db}
}

// Execute runs the descriptor's SQL and returns the raw rows keyed by column
// name. Values of type []byte are normalized to string so drivers that
// return raw bytes behave like the others.
func (a *SQLAdapter) Execute(ctx context.Context, d domain.QueryDescriptor) ([]domain.Row, error) {
	rows, err := a.db.QueryContext(ctx, d.SQL, d.Args...)
	if err != nil {
		return nil, domain.ErrAdapterQuery(a.database, d.Schema, d.Table, err)
	}
	defer rows.Close() //nolint:errcheck

	columns, err := rows.Columns()
	if err != nil {
		return nil, domain.ErrAdapterQuery(a.database, d.Schema, d.Table, err)
	}

	var out []domain.Row
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, domain.ErrAdapterQuery(a.database, d.Schema, d.Table, err)
		}

		row := make(domain.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrAdapterQuery(a.database, d.Schema, d.Table, err)
	}
	return out, nil
}
