package handler

import (
	"net/http"

	"github.com/geolytics/geolytics/internal/federation"
	"github.com/geolytics/geolytics/internal/progress"
)

// QueryHandler serves the federated site query and its progress feed.
type QueryHandler struct {
	engine  *federation.Engine
	tracker *progress.Tracker
}

func NewQueryHandler(engine *federation.Engine) *QueryHandler {
	return &QueryHandler{engine: engine, tracker: engine.Tracker()}
}

// Query handles GET /query?project=&table_type=. The response carries a
// progress_id the client can poll while a long query runs.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	projectName := r.URL.Query().Get("project")
	tableType := r.URL.Query().Get("table_type")
	if projectName == "" || tableType == "" {
		writeError(w, http.StatusBadRequest, "project and table_type query parameters are required")
		return
	}

	result, err := h.engine.Query(r.Context(), projectName, tableType)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Progress handles GET /progress?id=. Without an id it reports the most
// recently started query, preserving the single-poller behavior older
// clients rely on.
func (h *QueryHandler) Progress(w http.ResponseWriter, r *http.Request) {
	state, ok := h.tracker.Snapshot(r.URL.Query().Get("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "no query in progress")
		return
	}
	writeJSON(w, http.StatusOK, state)
}
