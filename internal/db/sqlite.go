// Package db provides database connectivity helpers, demo-schema migrations,
// and test fixtures for the SQLite and DuckDB backends.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"
)

// SQLite DSN parameters for production hardening.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
)

// OpenSQLite opens a read-mostly *sql.DB pool for the given SQLite file.
// Measurement databases are loaded once and then only queried, so the pool
// uses WAL journal, busy_timeout=5000ms, synchronous=NORMAL, and
// foreign_keys=on with maxOpen connections (0 defaults to 4).
func OpenSQLite(path string, maxOpen int) (*sql.DB, error) {
	if maxOpen <= 0 {
		maxOpen = 4
	}

	params := url.Values{}
	params.Set("_journal_mode", defaultJournalMode)
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_synchronous", defaultSynchronous)
	params.Set("_foreign_keys", "on")

	pool, err := sql.Open("sqlite3", path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	pool.SetMaxOpenConns(maxOpen)
	pool.SetMaxIdleConns(maxOpen)
	pool.SetConnMaxLifetime(time.Hour)

	if err := ping(pool); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return pool, nil
}

// OpenDuckDB opens a *sql.DB pool for a DuckDB file (or an in-memory
// instance when path is empty).
func OpenDuckDB(path string, maxOpen int) (*sql.DB, error) {
	if maxOpen <= 0 {
		maxOpen = 4
	}

	pool, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	pool.SetMaxOpenConns(maxOpen)
	pool.SetMaxIdleConns(maxOpen)

	if err := ping(pool); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return pool, nil
}

// ping verifies the connection is usable.
func ping(pool *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return pool.PingContext(ctx)
}
