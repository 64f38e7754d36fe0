package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/geolytics/geolytics/internal/template"
)

// TemplateHandler serves saved view templates.
type TemplateHandler struct {
	store *template.Store
}

func NewTemplateHandler(store *template.Store) *TemplateHandler {
	return &TemplateHandler{store: store}
}

type saveTemplateRequest struct {
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config"`
}

// Save handles POST /save-template. The config must be a JSON object, and
// when target_joins is present it must be a list.
func (h *TemplateHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveTemplateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" || len(req.Config) == 0 {
		writeError(w, http.StatusBadRequest, "template must have a name and config")
		return
	}

	var cfg map[string]json.RawMessage
	if err := json.Unmarshal(req.Config, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "config must be a JSON object")
		return
	}
	if joins, ok := cfg["target_joins"]; ok {
		var list []json.RawMessage
		if err := json.Unmarshal(joins, &list); err != nil {
			writeError(w, http.StatusBadRequest, "expected 'target_joins' to be a list")
			return
		}
	}

	if err := h.store.Save(r.Context(), template.Template{Name: req.Name, Config: req.Config}); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Template saved"})
}

// List handles GET /templates.
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.List(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

// Get handles GET /template/{name}.
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.store.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
