// Package handler contains the HTTP handlers for the geolytics API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/geolytics/geolytics/internal/cluster"
	"github.com/geolytics/geolytics/internal/federation"
	"github.com/geolytics/geolytics/internal/project"
)

// CatalogHandler serves discovery endpoints: clusters, projects, table types,
// configuration rows, and column lookups.
type CatalogHandler struct {
	registry *cluster.Registry
	resolver *project.Resolver
	engine   *federation.Engine
}

func NewCatalogHandler(registry *cluster.Registry, resolver *project.Resolver, engine *federation.Engine) *CatalogHandler {
	return &CatalogHandler{registry: registry, resolver: resolver, engine: engine}
}

// ListDatabases handles GET /databases.
func (h *CatalogHandler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"databases": h.registry.Names()})
}

// ListProjects handles GET /projects.
func (h *CatalogHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.resolver.Projects(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// ListTypes handles GET /projects/{project}/types.
func (h *CatalogHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.resolver.TableTypes(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"types": types})
}

// GetConfig handles GET /projects/{project}/config?table_type=.
func (h *CatalogHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	tableType := r.URL.Query().Get("table_type")
	if tableType == "" {
		writeError(w, http.StatusBadRequest, "table_type query parameter is required")
		return
	}
	columns, rows, err := h.resolver.FullConfig(r.Context(), chi.URLParam(r, "project"), tableType)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"columns": columns, "rows": rows})
}

// Columns handles GET /columns/{project}: the physical columns of the
// project's source table.
func (h *CatalogHandler) Columns(w http.ResponseWriter, r *http.Request) {
	columns, err := h.engine.Columns(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"columns": columns})
}

// DistinctValues handles GET /distinct-values/{table}?col=.
func (h *CatalogHandler) DistinctValues(w http.ResponseWriter, r *http.Request) {
	col := r.URL.Query().Get("col")
	if col == "" {
		writeError(w, http.StatusBadRequest, "col query parameter is required")
		return
	}
	values, err := h.engine.DistinctValues(r.Context(), chi.URLParam(r, "table"), col)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"values": values})
}

// Bands handles GET /bands/{table}: band/cellname pairs for a project label
// or raw table name. Missing band columns yield an empty list, not an error.
func (h *CatalogHandler) Bands(w http.ResponseWriter, r *http.Request) {
	pairs, err := h.engine.Bands(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bands": pairs})
}

// ColumnRange handles GET /column-range?table=&column= with fuzzy column
// matching against the target table.
func (h *CatalogHandler) ColumnRange(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	column := r.URL.Query().Get("column")
	if table == "" || column == "" {
		writeError(w, http.StatusBadRequest, "table and column query parameters are required")
		return
	}
	rng, err := h.engine.ColumnRange(r.Context(), table, column)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rng)
}
