//go:build integration

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icuts/internal/api"
	"icuts/internal/app"
	"icuts/internal/config"
	internaldb "icuts/internal/db"
)

const integrationCatalog = `
creatinine:
  label: Creatinine
  specimen: blood
  units: mg/dL
  db_settings:
    - database: mimic_demo
      schemas:
        main:
          labevents:
            item_ids: [50912]
bun:
  label: Blood urea nitrogen
  units: mg/dL
  db_settings:
    - database: mimic_demo
      schemas:
        main:
          labevents:
            item_ids: [51006]
heart_rate:
  label: Heart rate
  units: bpm
  db_settings:
    - database: mimic_demo
      schemas:
        main:
          chartevents:
            item_ids: [220045]
lactate:
  label: Lactate
  db_settings:
    - database: eicu_demo
      schemas:
        eicu_crd:
          lab:
            item_ids: [lactate]
`

// setupServer builds the full stack against a migrated and seeded SQLite
// file database and returns a running test server.
func setupServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "concepts.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(integrationCatalog), 0o600))

	pool, err := internaldb.OpenSQLite(filepath.Join(dir, "mimic_demo.sqlite"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	require.NoError(t, internaldb.RunMigrations(pool))
	require.NoError(t, app.SeedDemo(context.Background(), pool))

	cfg := &config.Config{
		CatalogPath:        catalogPath,
		DispatchLimit:      4,
		RateLimitRPS:       1000,
		RateLimitBurst:     1000,
		CORSAllowedOrigins: []string{"*"},
		Databases:          []config.DatabaseConfig{{Name: "mimic_demo", Driver: "sqlite3", DSN: "unused"}},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := app.New(app.Deps{Cfg: cfg, Logger: logger, DBs: map[string]*sql.DB{"mimic_demo": pool}})
	require.NoError(t, err)

	handler := api.NewHandler(a.Catalog, a.Loader, a.Admissions, a.Registry, logger)
	srv := httptest.NewServer(api.NewRouter(handler, cfg, logger))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTP_LoadAcrossTables(t *testing.T) {
	srv := setupServer(t)

	payload := map[string]any{
		"database":   "mimic_demo",
		"concepts":   []string{"creatinine", "heart_rate", "lactate"},
		"entity_ids": []int64{101},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/v1/load", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Rows []struct {
			EntityID    int64   `json:"entity_id"`
			Concept     string  `json:"concept"`
			Value       float64 `json:"value"`
			SourceTable string  `json:"source_table"`
		} `json:"rows"`
		Unsupported []string `json:"unsupported"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	// Entity 101 has 2 creatinine labs and 2 heart-rate chart events.
	require.Len(t, result.Rows, 4)
	for _, row := range result.Rows {
		assert.Equal(t, int64(101), row.EntityID)
	}
	assert.Equal(t, "creatinine", result.Rows[0].Concept)
	assert.Equal(t, "main.labevents", result.Rows[0].SourceTable)
	assert.Equal(t, []string{"lactate"}, result.Unsupported, "eICU-only concept is unsupported, not an error")
}

func TestHTTP_LoadWithWindow(t *testing.T) {
	srv := setupServer(t)

	payload := map[string]any{
		"database":     "mimic_demo",
		"concepts":     []string{"creatinine"},
		"all_entities": true,
		"window": map[string]string{
			"start": "2180-03-02T00:00:00Z",
			"end":   "2180-03-03T00:00:00Z",
		},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/v1/load", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Rows []struct {
			EntityID int64   `json:"entity_id"`
			Value    float64 `json:"value"`
		} `json:"rows"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	// 2180-03-03 06:15 creatinine falls outside the window.
	require.Len(t, result.Rows, 2)
	assert.Equal(t, int64(101), result.Rows[0].EntityID)
	assert.Equal(t, int64(102), result.Rows[1].EntityID)
}

func TestHTTP_EntitiesThenScopedLoad(t *testing.T) {
	srv := setupServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/databases/mimic_demo/entities")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entities struct {
		Data []int64 `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entities))
	require.Equal(t, []int64{101, 102, 103}, entities.Data)

	payload := map[string]any{
		"database":   "mimic_demo",
		"concepts":   []string{"bun"},
		"entity_ids": entities.Data,
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	loadResp, err := http.Post(srv.URL+"/api/v1/load", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer loadResp.Body.Close()
	require.Equal(t, http.StatusOK, loadResp.StatusCode)

	var result struct {
		Rows []struct {
			Concept string `json:"concept"`
		} `json:"rows"`
	}
	require.NoError(t, json.NewDecoder(loadResp.Body).Decode(&result))
	require.Len(t, result.Rows, 2)
	for _, row := range result.Rows {
		assert.Equal(t, "bun", row.Concept)
	}
}
