package adapter

import (
	"sort"

	"icuts/internal/ddl"
	"icuts/internal/domain"
)

// Registry binds database names to their adapter and column profile. It is
// populated during wiring and read-only afterwards, so lookups need no
// locking.
type Registry struct {
	entries map[string]entry
}

type entry struct {
	profile domain.DatabaseProfile
	adapter domain.Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// Register binds an adapter and profile to the profile's database name. The
// name and every configured column must be safe SQL identifiers since they
// end up verbatim in generated queries.
func (r *Registry) Register(profile domain.DatabaseProfile, a domain.Adapter) error {
	if err := ddl.ValidateIdentifier(profile.Name); err != nil {
		return domain.ErrMalformedCatalog([]string{"database name " + profile.Name + ": " + err.Error()})
	}
	for _, cs := range append([]domain.ColumnSet{profile.ColumnsFor("", "")}, values(profile.Tables)...) {
		for _, col := range []string{cs.Entity, cs.Time, cs.Code, cs.Value} {
			if err := ddl.ValidateIdentifier(col); err != nil {
				return domain.ErrMalformedCatalog([]string{"database " + profile.Name + " column " + col + ": " + err.Error()})
			}
		}
		if cs.Unit != "" {
			if err := ddl.ValidateIdentifier(cs.Unit); err != nil {
				return domain.ErrMalformedCatalog([]string{"database " + profile.Name + " column " + cs.Unit + ": " + err.Error()})
			}
		}
	}
	r.entries[profile.Name] = entry{profile: profile, adapter: a}
	return nil
}

// Lookup returns the adapter and profile for a database, or
// *domain.AdapterNotFoundError when none is registered.
func (r *Registry) Lookup(database string) (domain.Adapter, domain.DatabaseProfile, error) {
	e, ok := r.entries[database]
	if !ok {
		return nil, domain.DatabaseProfile{}, domain.ErrAdapterNotFound(database)
	}
	return e.adapter, e.profile, nil
}

// Databases returns the sorted names of all registered databases.
func (r *Registry) Databases() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func values(m map[string]domain.ColumnSet) []domain.ColumnSet {
	out := make([]domain.ColumnSet, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
