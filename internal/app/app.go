// Package app provides application-level wiring: it turns configuration and
// open database handles into the catalog, adapter registry, and services the
// HTTP server and CLI consume.
package app

import (
	"database/sql"
	"fmt"
	"log/slog"

	"icuts/internal/adapter"
	"icuts/internal/admission"
	"icuts/internal/catalog"
	"icuts/internal/config"
	"icuts/internal/service/load"
)

// Deps holds the external dependencies that main() must provide: config, a
// logger, and one open handle per configured database. The app package never
// opens or closes connections itself.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
	DBs    map[string]*sql.DB
}

// App is the fully wired application.
type App struct {
	Catalog    *catalog.Catalog
	Registry   *adapter.Registry
	Loader     *load.Service
	Admissions *admission.Service
}

// New loads the catalog and wires the adapter registry, loader, and admission
// service from the provided deps.
func New(deps Deps) (*App, error) {
	cfg := deps.Cfg

	cat, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	deps.Logger.Info("catalog loaded",
		"path", cfg.CatalogPath,
		"concepts", cat.Len(),
		"databases", cat.Databases(),
	)

	registry := adapter.NewRegistry()
	admissions := admission.NewService(registry, deps.Logger.With("component", "admission"))

	for _, dbCfg := range cfg.Databases {
		pool, ok := deps.DBs[dbCfg.Name]
		if !ok {
			return nil, fmt.Errorf("no database handle provided for %q", dbCfg.Name)
		}
		if err := registry.Register(dbCfg.Profile(), adapter.NewSQL(dbCfg.Name, pool)); err != nil {
			return nil, fmt.Errorf("register database %q: %w", dbCfg.Name, err)
		}
		if dbCfg.AdmissionTable != "" {
			src := admission.DefaultSource()
			src.Table = dbCfg.AdmissionTable
			if dbCfg.AdmissionSchema != "" {
				src.Schema = dbCfg.AdmissionSchema
			}
			if dbCfg.EntityColumn != "" {
				src.EntityColumn = dbCfg.EntityColumn
			}
			if err := admissions.SetSource(dbCfg.Name, src); err != nil {
				return nil, fmt.Errorf("admission source for %q: %w", dbCfg.Name, err)
			}
		}
	}

	loader := load.NewService(cat, registry, deps.Logger.With("component", "loader"))
	loader.SetDispatchLimit(cfg.DispatchLimit)

	return &App{
		Catalog:    cat,
		Registry:   registry,
		Loader:     loader,
		Admissions: admissions,
	}, nil
}
