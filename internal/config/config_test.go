package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "concepts.yaml", cfg.CatalogPath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4, cfg.DispatchLimit)
	assert.Equal(t, 100.0, cfg.RateLimitRPS)
	assert.Equal(t, 200, cfg.RateLimitBurst)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.NotEmpty(t, cfg.Warnings)
}

func TestLoadFromEnv_Databases(t *testing.T) {
	t.Setenv("DATABASES", "mimic_demo, eicu-demo")
	t.Setenv("DB_MIMIC_DEMO_DSN", "/data/mimic_demo.sqlite")
	t.Setenv("DB_EICU_DEMO_DRIVER", "duckdb")
	t.Setenv("DB_EICU_DEMO_DSN", "/data/eicu.duckdb")
	t.Setenv("DB_EICU_DEMO_ENTITY_COLUMN", "patientunitstayid")
	t.Setenv("DB_EICU_DEMO_CODE_COLUMN", "labname")
	t.Setenv("DB_MIMIC_DEMO_MIGRATE", "true")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	require.Len(t, cfg.Databases, 2)

	mimic := cfg.Databases[0]
	assert.Equal(t, "mimic_demo", mimic.Name)
	assert.Equal(t, "sqlite3", mimic.Driver, "driver defaults to sqlite3")
	assert.Equal(t, "/data/mimic_demo.sqlite", mimic.DSN)
	assert.True(t, mimic.Migrate)
	assert.False(t, mimic.Seed)
	assert.Equal(t, "subject_id", mimic.Profile().ColumnsFor("main", "labevents").Entity)

	eicu := cfg.Databases[1]
	assert.Equal(t, "duckdb", eicu.Driver)
	cols := eicu.Profile().ColumnsFor("eicu_crd", "lab")
	assert.Equal(t, "patientunitstayid", cols.Entity)
	assert.Equal(t, "labname", cols.Code)
	assert.Empty(t, cols.Unit, "unit column stays empty unless configured")
}

func TestLoadFromEnv_UnsupportedDriver(t *testing.T) {
	t.Setenv("DATABASES", "weird")
	t.Setenv("DB_WEIRD_DRIVER", "oracle")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestLoadFromEnv_SqliteRequiresDSN(t *testing.T) {
	t.Setenv("DATABASES", "mimic_demo")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN is required")
}

func TestLoadFromEnv_ProductionRequiresDatabases(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://icu.example.org")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASES")
}

func TestSlogLevel(t *testing.T) {
	for level, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	} {
		cfg := Config{LogLevel: level}
		assert.Equal(t, want, cfg.SlogLevel(), level)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"# comment\nCATALOG_PATH=\"/etc/icuts/concepts.yaml\"\nLOG_LEVEL=debug\n"), 0o600))

	t.Setenv("LOG_LEVEL", "warn") // existing env wins
	t.Setenv("CATALOG_PATH", "")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "/etc/icuts/concepts.yaml", os.Getenv("CATALOG_PATH"))
	assert.Equal(t, "warn", os.Getenv("LOG_LEVEL"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")), ".env not found is not an error")
}
