// Package api provides the HTTP handlers for the clinical concept REST API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"icuts/internal/adapter"
	"icuts/internal/admission"
	"icuts/internal/catalog"
	"icuts/internal/domain"
	"icuts/internal/resolve"
	"icuts/internal/service/load"
)

// Handler serves the concept catalog, resolver, and loader over HTTP.
type Handler struct {
	catalog    *catalog.Catalog
	resolver   *resolve.Resolver
	loader     *load.Service
	admissions *admission.Service
	registry   *adapter.Registry
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required service dependencies.
func NewHandler(
	cat *catalog.Catalog,
	loader *load.Service,
	admissions *admission.Service,
	registry *adapter.Registry,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		catalog:    cat,
		resolver:   resolve.New(cat),
		loader:     loader,
		admissions: admissions,
		registry:   registry,
		logger:     logger,
	}
}

// Routes mounts all API endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/concepts", h.listConcepts)
	r.Get("/concepts/{concept}", h.getConcept)
	r.Get("/resolve", h.resolve)
	r.Get("/databases", h.listDatabases)
	r.Get("/databases/{database}/entities", h.listEntities)
	r.Post("/load", h.loadMeasurements)
}

// --- response shapes ---

type conceptResponse struct {
	ID          string   `json:"id"`
	Label       string   `json:"label,omitempty"`
	Specimen    string   `json:"specimen,omitempty"`
	Units       string   `json:"units,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type locationResponse struct {
	Database string `json:"database"`
	Schema   string `json:"schema"`
	Table    string `json:"table"`
	Codes    []any  `json:"codes"`
}

type resolutionResponse struct {
	Concept   string             `json:"concept"`
	Supported bool               `json:"supported"`
	Locations []locationResponse `json:"locations"`
}

func conceptToAPI(c domain.Concept) conceptResponse {
	return conceptResponse{
		ID:          c.Identifier,
		Label:       c.Label,
		Specimen:    c.Specimen,
		Units:       c.Units,
		Description: c.Description,
		Tags:        c.Tags,
	}
}

func locationToAPI(l domain.Location) locationResponse {
	codes := make([]any, len(l.Codes))
	for i, c := range l.Codes {
		codes[i] = c.Arg()
	}
	return locationResponse{
		Database: l.Database,
		Schema:   l.Schema,
		Table:    l.Table,
		Codes:    codes,
	}
}

// --- concepts ---

func (h *Handler) listConcepts(w http.ResponseWriter, _ *http.Request) {
	concepts := h.catalog.Concepts()
	out := make([]conceptResponse, len(concepts))
	for i, c := range concepts {
		out[i] = conceptToAPI(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (h *Handler) getConcept(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "concept")
	concept, err := h.catalog.Concept(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var locations []locationResponse
	for _, db := range h.catalog.Databases() {
		locs, err := h.catalog.LocationsFor(id, db)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		for _, l := range locs {
			locations = append(locations, locationToAPI(l))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"concept":   conceptToAPI(concept),
		"locations": locations,
	})
}

// --- resolver ---

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	database := r.URL.Query().Get("database")
	if database == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("query parameter 'database' is required"))
		return
	}
	concepts := r.URL.Query()["concept"]
	if len(concepts) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("at least one 'concept' query parameter is required"))
		return
	}

	results, err := h.resolver.Resolve(concepts, database)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]resolutionResponse, len(results))
	for i, res := range results {
		locs := make([]locationResponse, len(res.Locations))
		for j, l := range res.Locations {
			locs[j] = locationToAPI(l)
		}
		out[i] = resolutionResponse{
			Concept:   res.Concept,
			Supported: !res.Unsupported(),
			Locations: locs,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// --- databases ---

func (h *Handler) listDatabases(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": h.registry.Databases()})
}

func (h *Handler) listEntities(w http.ResponseWriter, r *http.Request) {
	database := chi.URLParam(r, "database")
	ids, err := h.admissions.Entities(r.Context(), database)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": ids})
}

// --- loader ---

type loadRequest struct {
	Database    string      `json:"database"`
	Concepts    []string    `json:"concepts"`
	AllEntities bool        `json:"all_entities"`
	EntityIDs   []int64     `json:"entity_ids"`
	Window      *timeWindow `json:"window"`
}

type timeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type resultRowResponse struct {
	EntityID    int64     `json:"entity_id"`
	Concept     string    `json:"concept"`
	Timestamp   time.Time `json:"timestamp"`
	Value       float64   `json:"value"`
	ValueText   string    `json:"value_text,omitempty"`
	Unit        string    `json:"unit,omitempty"`
	SourceTable string    `json:"source_table"`
}

func (h *Handler) loadMeasurements(w http.ResponseWriter, r *http.Request) {
	var body loadRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if body.Database == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("'database' is required"))
		return
	}
	if len(body.Concepts) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("'concepts' must not be empty"))
		return
	}

	req := domain.LoadRequest{
		Concepts: body.Concepts,
		Database: body.Database,
	}
	if body.AllEntities {
		req.Scope = domain.AllEntities()
	} else {
		req.Scope = domain.Entities(body.EntityIDs...)
	}
	if body.Window != nil {
		req.Window = &domain.TimeWindow{Start: body.Window.Start, End: body.Window.End}
	}

	result, err := h.loader.Load(r.Context(), req)
	if err != nil {
		// Unknown concepts in a load body are a client mistake, not a
		// missing resource.
		if errors.As(err, new(*domain.UnknownConceptError)) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeDomainError(w, err)
		return
	}

	rows := make([]resultRowResponse, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = resultRowResponse{
			EntityID:    row.EntityID,
			Concept:     row.Concept,
			Timestamp:   row.Timestamp,
			Value:       row.Value,
			ValueText:   row.ValueText,
			Unit:        row.Unit,
			SourceTable: row.SourceTable,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":        rows,
		"unsupported": result.Unsupported,
	})
}
