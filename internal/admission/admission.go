// Package admission provides the admission/demographics bootstrap: listing
// the entities (patients or stays) known to a database so callers can scope
// loads without hand-writing per-schema queries.
package admission

import (
	"context"
	"fmt"
	"log/slog"

	"icuts/internal/adapter"
	"icuts/internal/ddl"
	"icuts/internal/domain"
)

// Source names the admission table of one database and its entity column.
type Source struct {
	Schema       string
	Table        string
	EntityColumn string
	AdmitColumn  string
}

// DefaultSource returns the MIMIC-style admission source used when a
// database does not configure its own.
func DefaultSource() Source {
	return Source{
		Schema:       "main",
		Table:        "admissions",
		EntityColumn: "subject_id",
		AdmitColumn:  "admittime",
	}
}

// validate checks that every identifier in the source is SQL-safe.
func (s Source) validate() error {
	for _, name := range []string{s.Schema, s.Table, s.EntityColumn, s.AdmitColumn} {
		if err := ddl.ValidateIdentifier(name); err != nil {
			return fmt.Errorf("admission source %q: %w", name, err)
		}
	}
	return nil
}

// Service lists admitted entities per database through the adapter registry.
type Service struct {
	registry *adapter.Registry
	sources  map[string]Source
	logger   *slog.Logger
}

// NewService creates an admission service over the given registry.
func NewService(registry *adapter.Registry, logger *slog.Logger) *Service {
	return &Service{
		registry: registry,
		sources:  map[string]Source{},
		logger:   logger,
	}
}

// SetSource overrides the admission source for one database.
func (s *Service) SetSource(database string, src Source) error {
	if err := src.validate(); err != nil {
		return err
	}
	s.sources[database] = src
	return nil
}

// source returns the configured or default source for a database.
func (s *Service) source(database string) Source {
	if src, ok := s.sources[database]; ok {
		return src
	}
	return DefaultSource()
}

// Entities returns the distinct admitted entity IDs of a database, sorted
// ascending. Adapter failures surface as *domain.AdapterQueryError.
func (s *Service) Entities(ctx context.Context, database string) ([]int64, error) {
	adp, _, err := s.registry.Lookup(database)
	if err != nil {
		return nil, err
	}

	src := s.source(database)
	d := domain.QueryDescriptor{
		Database: database,
		Schema:   src.Schema,
		Table:    src.Table,
		SQL: fmt.Sprintf("SELECT DISTINCT %s AS entity_id FROM %s.%s ORDER BY entity_id",
			ddl.QuoteIdentifier(src.EntityColumn),
			ddl.QuoteIdentifier(src.Schema),
			ddl.QuoteIdentifier(src.Table),
		),
	}

	rows, err := adp.Execute(ctx, d)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("admission bootstrap", "database", database, "entities", len(rows))

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		id, ok := row["entity_id"].(int64)
		if !ok {
			return nil, fmt.Errorf("admission source %s.%s: unexpected entity type %T", src.Schema, src.Table, row["entity_id"])
		}
		ids = append(ids, id)
	}
	return ids, nil
}
