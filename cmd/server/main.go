package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"

	"icuts/internal/api"
	"icuts/internal/app"
	"icuts/internal/config"
	internaldb "icuts/internal/db"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file (if present)
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	handlerOpts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var logger *slog.Logger
	if cfg.IsProduction() {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
	}
	slog.SetDefault(logger)

	for _, warning := range cfg.Warnings {
		logger.Warn(warning)
	}

	// Open one pool per configured database.
	dbs := make(map[string]*sql.DB, len(cfg.Databases))
	defer func() {
		for _, pool := range dbs {
			_ = pool.Close()
		}
	}()
	for _, dbCfg := range cfg.Databases {
		pool, err := openDatabase(dbCfg)
		if err != nil {
			return fmt.Errorf("database %q: %w", dbCfg.Name, err)
		}
		dbs[dbCfg.Name] = pool

		if dbCfg.Migrate {
			logger.Info("running demo migrations", "database", dbCfg.Name)
			if err := internaldb.RunMigrations(pool); err != nil {
				return fmt.Errorf("migrate %q: %w", dbCfg.Name, err)
			}
		}
		if dbCfg.Seed {
			logger.Info("seeding demo data", "database", dbCfg.Name)
			if err := app.SeedDemo(ctx, pool); err != nil {
				return fmt.Errorf("seed %q: %w", dbCfg.Name, err)
			}
		}
	}

	a, err := app.New(app.Deps{Cfg: cfg, Logger: logger, DBs: dbs})
	if err != nil {
		return err
	}

	handler := api.NewHandler(a.Catalog, a.Loader, a.Admissions, a.Registry, logger)
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(handler, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openDatabase(dbCfg config.DatabaseConfig) (*sql.DB, error) {
	switch dbCfg.Driver {
	case "duckdb":
		return internaldb.OpenDuckDB(dbCfg.DSN, dbCfg.MaxOpenConns)
	default:
		return internaldb.OpenSQLite(dbCfg.DSN, dbCfg.MaxOpenConns)
	}
}
