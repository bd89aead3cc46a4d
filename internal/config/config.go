// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"icuts/internal/domain"
)

// DatabaseConfig describes one physical database the server can query:
// driver and DSN for the connection, column conventions for measurement
// tables, and the admission bootstrap table.
type DatabaseConfig struct {
	Name         string
	Driver       string // "sqlite3" or "duckdb"
	DSN          string
	MaxOpenConns int

	// Measurement column conventions; empty fields fall back to the
	// MIMIC-style defaults.
	EntityColumn string
	TimeColumn   string
	CodeColumn   string
	ValueColumn  string
	UnitColumn   string

	// Admission bootstrap table.
	AdmissionSchema string
	AdmissionTable  string

	// Migrate runs the bundled demo schema migrations at startup; Seed
	// additionally inserts the demo dataset. Both are development helpers.
	Migrate bool
	Seed    bool
}

// Profile returns the column profile the query builder uses for this
// database.
func (d DatabaseConfig) Profile() domain.DatabaseProfile {
	cols := domain.DefaultColumns()
	if d.EntityColumn != "" {
		cols.Entity = d.EntityColumn
	}
	if d.TimeColumn != "" {
		cols.Time = d.TimeColumn
	}
	if d.CodeColumn != "" {
		cols.Code = d.CodeColumn
	}
	if d.ValueColumn != "" {
		cols.Value = d.ValueColumn
	}
	cols.Unit = d.UnitColumn
	return domain.DatabaseProfile{Name: d.Name, Columns: cols}
}

// Config holds the configuration for the HTTP API and the configured
// measurement databases.
type Config struct {
	CatalogPath string // path to the concept mapping document (JSON or YAML)
	ListenAddr  string // HTTP listen address (default ":8080")
	LogLevel    string // log level: debug, info, warn, error (default "info")
	Env         string // environment: "development" (default) or "production"

	// DispatchLimit bounds concurrent query dispatches per load.
	DispatchLimit int

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Databases lists the physical databases to open at startup.
	Databases []DatabaseConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
//
// Databases are declared with DATABASES="mimic_demo,eicu_demo"; each entry
// reads its own DB_<NAME>_DRIVER, DB_<NAME>_DSN, optional column overrides
// (DB_<NAME>_ENTITY_COLUMN etc.), and optional admission table settings.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		CatalogPath: os.Getenv("CATALOG_PATH"),
		ListenAddr:  os.Getenv("LISTEN_ADDR"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		Env:         os.Getenv("ENV"),
	}

	if v := os.Getenv("DISPATCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DispatchLimit = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	if v := os.Getenv("DATABASES"); v != "" {
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			dbCfg, err := loadDatabaseEnv(name)
			if err != nil {
				return nil, err
			}
			cfg.Databases = append(cfg.Databases, dbCfg)
		}
	}

	// Defaults
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = "concepts.yaml"
		cfg.Warnings = append(cfg.Warnings, "CATALOG_PATH not set, defaulting to concepts.yaml")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DispatchLimit <= 0 {
		cfg.DispatchLimit = 4
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if len(cfg.Databases) == 0 {
		cfg.Warnings = append(cfg.Warnings, "DATABASES not set, no measurement database will be available")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
		if len(cfg.Databases) == 0 {
			return nil, fmt.Errorf("DATABASES must be set in production (ENV=production)")
		}
	}

	return cfg, nil
}

// loadDatabaseEnv reads the DB_<NAME>_* variables for one declared database.
func loadDatabaseEnv(name string) (DatabaseConfig, error) {
	prefix := "DB_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_"

	dbCfg := DatabaseConfig{
		Name:            name,
		Driver:          os.Getenv(prefix + "DRIVER"),
		DSN:             os.Getenv(prefix + "DSN"),
		EntityColumn:    os.Getenv(prefix + "ENTITY_COLUMN"),
		TimeColumn:      os.Getenv(prefix + "TIME_COLUMN"),
		CodeColumn:      os.Getenv(prefix + "CODE_COLUMN"),
		ValueColumn:     os.Getenv(prefix + "VALUE_COLUMN"),
		UnitColumn:      os.Getenv(prefix + "UNIT_COLUMN"),
		AdmissionSchema: os.Getenv(prefix + "ADMISSION_SCHEMA"),
		AdmissionTable:  os.Getenv(prefix + "ADMISSION_TABLE"),
	}
	if v := os.Getenv(prefix + "MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			dbCfg.MaxOpenConns = n
		}
	}
	dbCfg.Migrate = parseBoolEnv(prefix + "MIGRATE")
	dbCfg.Seed = parseBoolEnv(prefix + "SEED")

	if dbCfg.Driver == "" {
		dbCfg.Driver = "sqlite3"
	}
	switch dbCfg.Driver {
	case "sqlite3", "duckdb":
		// ok
	default:
		return DatabaseConfig{}, fmt.Errorf("database %q: unsupported driver %q (must be 'sqlite3' or 'duckdb')", name, dbCfg.Driver)
	}
	if dbCfg.DSN == "" && dbCfg.Driver == "sqlite3" {
		return DatabaseConfig{}, fmt.Errorf("database %q: %sDSN is required for sqlite3", name, prefix)
	}

	return dbCfg, nil
}

// parseBoolEnv reads an environment variable as a boolean, treating unset or
// unparseable values as false.
func parseBoolEnv(key string) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && b
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. Lines must be in KEY=VALUE format. Comments (#) and blank
// lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
