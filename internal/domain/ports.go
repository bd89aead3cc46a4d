package domain

import "context"

// Row is one raw result row from an adapter, keyed by column name.
type Row map[string]any

// Adapter executes a query descriptor against one physical database.
// Implementations own connection lifecycle and authentication and surface
// transport failures as *AdapterQueryError.
// Implemented by adapter.SQLAdapter.
type Adapter interface {
	Execute(ctx context.Context, d QueryDescriptor) ([]Row, error)
}
