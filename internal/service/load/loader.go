// Package load orchestrates measurement loading: resolve concepts, build
// query descriptors, dispatch them through database adapters, and merge the
// raw rows into the normalized result table.
package load

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"icuts/internal/adapter"
	"icuts/internal/catalog"
	"icuts/internal/domain"
	"icuts/internal/resolve"
	"icuts/internal/sqlbuild"
)

// defaultDispatchLimit bounds concurrent descriptor dispatches so one load
// cannot exhaust a database's connection pool.
const defaultDispatchLimit = 4

// Service is the data loader. It is stateless between calls; the catalog and
// registry it holds are read-only, so a single Service is safe for concurrent
// use.
type Service struct {
	catalog  *catalog.Catalog
	resolver *resolve.Resolver
	registry *adapter.Registry
	limit    int
	logger   *slog.Logger
}

// NewService creates a loader over the given catalog and adapter registry.
func NewService(cat *catalog.Catalog, registry *adapter.Registry, logger *slog.Logger) *Service {
	return &Service{
		catalog:  cat,
		resolver: resolve.New(cat),
		registry: registry,
		limit:    defaultDispatchLimit,
		logger:   logger,
	}
}

// SetDispatchLimit overrides the concurrent dispatch bound. Values below 1
// are ignored.
func (s *Service) SetDispatchLimit(n int) {
	if n >= 1 {
		s.limit = n
	}
}

// Load fetches all requested concepts for the request's entity scope from the
// target database and returns the normalized rows.
//
// Concepts without a location in the target database are reported in
// LoadResult.Unsupported and produce no rows; absence is not a failure.
// Dispatch is all-or-nothing: if any descriptor fails, the whole load fails
// with a *domain.AdapterQueryError naming the offending table, and no rows
// from the remaining descriptors are returned. A caller could otherwise not
// tell "no data" from "a table was silently dropped".
func (s *Service) Load(ctx context.Context, req domain.LoadRequest) (*domain.LoadResult, error) {
	adp, profile, err := s.registry.Lookup(req.Database)
	if err != nil {
		return nil, err
	}

	results, err := s.resolver.Resolve(req.Concepts, req.Database)
	if err != nil {
		return nil, err
	}

	var unsupported []string
	for _, res := range results {
		if res.Unsupported() {
			unsupported = append(unsupported, res.Concept)
		}
	}

	descriptors := sqlbuild.Build(results, req.Scope, req.Window, profile)
	if len(descriptors) == 0 {
		return &domain.LoadResult{Unsupported: unsupported}, nil
	}

	s.logger.Debug("dispatching load",
		"database", req.Database,
		"concepts", len(req.Concepts),
		"descriptors", len(descriptors),
		"unsupported", len(unsupported),
	)

	rowSets, err := s.dispatch(ctx, adp, descriptors)
	if err != nil {
		return nil, err
	}

	rows, err := s.merge(req.Database, descriptors, rowSets)
	if err != nil {
		return nil, err
	}

	return &domain.LoadResult{Rows: rows, Unsupported: unsupported}, nil
}

// dispatch executes all descriptors through the adapter, at most s.limit in
// flight at once. Descriptors are independent, so completion order does not
// matter; results land in descriptor order. The first failure cancels the
// remaining dispatches.
func (s *Service) dispatch(ctx context.Context, adp domain.Adapter, descriptors []domain.QueryDescriptor) ([][]domain.Row, error) {
	rowSets := make([][]domain.Row, len(descriptors))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for i, d := range descriptors {
		g.Go(func() error {
			rows, err := adp.Execute(ctx, d)
			if err != nil {
				var qerr *domain.AdapterQueryError
				if !errors.As(err, &qerr) {
					err = domain.ErrAdapterQuery(d.Database, d.Schema, d.Table, err)
				}
				return err
			}
			rowSets[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rowSets, nil
}
