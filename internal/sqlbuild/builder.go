// Package sqlbuild turns resolved concept locations into executable query
// descriptors, one per distinct physical table.
package sqlbuild

import (
	"fmt"
	"strings"

	"icuts/internal/ddl"
	"icuts/internal/domain"
)

// timeArgLayout is the literal form used for time window arguments. It
// compares correctly against TEXT timestamps in SQLite and casts cleanly to
// TIMESTAMP in DuckDB and Postgres.
const timeArgLayout = "2006-01-02 15:04:05"

// tableKey identifies one physical table within the target database.
type tableKey struct {
	schema string
	table  string
}

// Build produces one query descriptor per distinct (schema, table) touched by
// the resolution results, in first-appearance order. Concepts sharing a table
// are folded into a single query carrying the union of their codes; the
// generated SQL always selects the physical code so rows can be mapped back
// to concepts during merge. An empty entity scope yields no descriptors at
// all: there is nothing to fetch and no reason for a round-trip.
func Build(results []domain.ResolutionResult, scope domain.EntityScope, window *domain.TimeWindow, profile domain.DatabaseProfile) []domain.QueryDescriptor {
	if scope.Empty() {
		return nil
	}

	var order []tableKey
	grouped := map[tableKey][]domain.Code{}
	seen := map[tableKey]map[string]bool{}

	for _, res := range results {
		for _, loc := range res.Locations {
			key := tableKey{schema: loc.Schema, table: loc.Table}
			if seen[key] == nil {
				order = append(order, key)
				seen[key] = map[string]bool{}
			}
			for _, code := range loc.Codes {
				if seen[key][code.String()] {
					continue
				}
				seen[key][code.String()] = true
				grouped[key] = append(grouped[key], code)
			}
		}
	}

	descriptors := make([]domain.QueryDescriptor, 0, len(order))
	for _, key := range order {
		descriptors = append(descriptors, describe(profile, key, grouped[key], scope, window))
	}
	return descriptors
}

// describe renders the SQL and argument list for one table.
func describe(profile domain.DatabaseProfile, key tableKey, codes []domain.Code, scope domain.EntityScope, window *domain.TimeWindow) domain.QueryDescriptor {
	cols := profile.ColumnsFor(key.schema, key.table)

	unitExpr := "''"
	if cols.Unit != "" {
		unitExpr = ddl.QuoteIdentifier(cols.Unit)
	}

	var sb strings.Builder
	var args []any

	fmt.Fprintf(&sb, "SELECT %s AS entity_id, %s AS obs_time, %s AS code, %s AS value, %s AS unit FROM %s.%s",
		ddl.QuoteIdentifier(cols.Entity),
		ddl.QuoteIdentifier(cols.Time),
		ddl.QuoteIdentifier(cols.Code),
		ddl.QuoteIdentifier(cols.Value),
		unitExpr,
		ddl.QuoteIdentifier(key.schema),
		ddl.QuoteIdentifier(key.table),
	)

	fmt.Fprintf(&sb, " WHERE %s IN (%s)", ddl.QuoteIdentifier(cols.Code), placeholders(len(codes)))
	for _, code := range codes {
		args = append(args, code.Arg())
	}

	if !scope.All {
		fmt.Fprintf(&sb, " AND %s IN (%s)", ddl.QuoteIdentifier(cols.Entity), placeholders(len(scope.IDs)))
		for _, id := range scope.IDs {
			args = append(args, id)
		}
	}

	if window != nil {
		fmt.Fprintf(&sb, " AND %s >= ? AND %s < ?", ddl.QuoteIdentifier(cols.Time), ddl.QuoteIdentifier(cols.Time))
		args = append(args, window.Start.Format(timeArgLayout), window.End.Format(timeArgLayout))
	}

	fmt.Fprintf(&sb, " ORDER BY %s, %s", ddl.QuoteIdentifier(cols.Entity), ddl.QuoteIdentifier(cols.Time))

	return domain.QueryDescriptor{
		Database: profile.Name,
		Schema:   key.schema,
		Table:    key.table,
		Codes:    codes,
		SQL:      sb.String(),
		Args:     args,
	}
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
