// Package resolve translates concept requests into concrete physical
// locations for a target database.
package resolve

import (
	"icuts/internal/catalog"
	"icuts/internal/domain"
)

// Resolver looks up physical locations for concept identifiers. It performs
// no I/O; every call is a pure lookup over the catalog's indexes, so results
// for the same inputs are always identical.
type Resolver struct {
	catalog *catalog.Catalog
}

// New creates a Resolver over the given catalog.
func New(cat *catalog.Catalog) *Resolver {
	return &Resolver{catalog: cat}
}

// Resolve maps each requested identifier to its locations in the target
// database, in request order with duplicates dropped. An identifier absent
// from the catalog fails fast with *domain.UnknownConceptError, since that is a
// configuration bug. A concept with no location in the database yields an
// empty location list, which is a legitimate result, not an error.
func (r *Resolver) Resolve(identifiers []string, database string) ([]domain.ResolutionResult, error) {
	results := make([]domain.ResolutionResult, 0, len(identifiers))
	seen := make(map[string]bool, len(identifiers))

	for _, identifier := range identifiers {
		if seen[identifier] {
			continue
		}
		seen[identifier] = true

		locations, err := r.catalog.LocationsFor(identifier, database)
		if err != nil {
			return nil, err
		}
		results = append(results, domain.ResolutionResult{
			Concept:   identifier,
			Locations: locations,
		})
	}
	return results, nil
}
