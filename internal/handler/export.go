package handler

import (
	"net/http"

	"github.com/paulmach/orb/geojson"

	"github.com/geolytics/geolytics/internal/export"
)

// ExportHandler renders a posted FeatureCollection as a CSV or KML download.
type ExportHandler struct{}

func NewExportHandler() *ExportHandler {
	return &ExportHandler{}
}

type exportRequest struct {
	Format string                     `json:"format"`
	Data   *geojson.FeatureCollection `json:"data"`
}

// Export handles POST /export with body {format: csv|kml, data: <GeoJSON>}.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Data == nil || len(req.Data.Features) == 0 {
		writeError(w, http.StatusBadRequest, "no data provided")
		return
	}

	switch req.Format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename=export.csv`)
		if err := export.WriteCSV(w, req.Data.Features); err != nil {
			fail(w, err)
		}
	case "kml":
		w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
		w.Header().Set("Content-Disposition", `attachment; filename=export.kml`)
		if err := export.WriteKML(w, "export", req.Data.Features); err != nil {
			fail(w, err)
		}
	default:
		writeError(w, http.StatusBadRequest, "invalid format requested")
	}
}
