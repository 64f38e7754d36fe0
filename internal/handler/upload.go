package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/geolytics/geolytics/internal/drivetest"
	"github.com/geolytics/geolytics/internal/gridmap"
)

const defaultGridSize = 0.01 // degrees, roughly 1km at the equator

// UploadHandler serves drive-test and grid-map uploads plus the lookups over
// the held datasets.
type UploadHandler struct {
	driveStore *drivetest.Store
	gridStore  *gridmap.Store
	gridLoader *gridmap.Loader
}

func NewUploadHandler(driveStore *drivetest.Store, gridStore *gridmap.Store, gridLoader *gridmap.Loader) *UploadHandler {
	return &UploadHandler{driveStore: driveStore, gridStore: gridStore, gridLoader: gridLoader}
}

func uploadedFile(r *http.Request) (io.ReadCloser, string, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", err
	}
	return file, header.Filename, nil
}

// UploadDriveTest handles POST /upload-drive-test (multipart, field "file").
func (h *UploadHandler) UploadDriveTest(w http.ResponseWriter, r *http.Request) {
	file, name, err := uploadedFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	ds, err := drivetest.Parse(file, name)
	if err != nil {
		fail(w, err)
		return
	}
	h.driveStore.Put(ds)

	fc := geojson.NewFeatureCollection()
	fc.Features = ds.Features
	writeJSON(w, http.StatusOK, map[string]any{
		"geojson":        fc,
		"available_kpis": ds.KPICols,
		"lat_col":        ds.LatCol,
		"lon_col":        ds.LonCol,
	})
}

// DriveTestColumns handles GET /drive-test/columns.
func (h *UploadHandler) DriveTestColumns(w http.ResponseWriter, r *http.Request) {
	cols, err := h.driveStore.Columns()
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"columns": cols})
}

// DriveTestColumnRange handles GET /drive-test/column-range?column=.
func (h *UploadHandler) DriveTestColumnRange(w http.ResponseWriter, r *http.Request) {
	column := r.URL.Query().Get("column")
	if column == "" {
		writeError(w, http.StatusBadRequest, "column query parameter is required")
		return
	}
	summary, err := h.driveStore.Summarize(column)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// UploadGridMap handles POST /upload-grid-map (multipart, field "file").
// The upload replaces the held grid dataset and is echoed back as GeoJSON.
func (h *UploadHandler) UploadGridMap(w http.ResponseWriter, r *http.Request) {
	file, name, err := uploadedFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	ds, err := drivetest.Parse(file, name)
	if err != nil {
		fail(w, err)
		return
	}
	h.gridStore.Put(ds.Columns, ds.Rows)

	fc := geojson.NewFeatureCollection()
	fc.Features = ds.Features
	writeJSON(w, http.StatusOK, map[string]any{
		"geojson":        fc,
		"available_kpis": ds.KPICols,
	})
}

// GridMapColumnRange handles GET /grid-map/column-range?column=.
func (h *UploadHandler) GridMapColumnRange(w http.ResponseWriter, r *http.Request) {
	column := r.URL.Query().Get("column")
	if column == "" {
		writeError(w, http.StatusBadRequest, "column query parameter is required")
		return
	}
	rng, err := h.gridStore.Range(column)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rng)
}

// GridMapFromTable handles GET /grid-map/from-table?table=: loads a physical
// table's rows with non-null coordinates into the grid store.
func (h *UploadHandler) GridMapFromTable(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	if table == "" {
		writeError(w, http.StatusBadRequest, "table query parameter is required")
		return
	}
	n, err := h.gridLoader.FromTable(r.Context(), h.gridStore, table)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loaded": n, "table": table})
}

// GenerateGrid handles POST /generate-grid?kpi=&grid_size= (multipart
// GeoJSON file, field "file"). Points are binned into square cells and the
// mean of the kpi is reported per occupied cell.
func (h *UploadHandler) GenerateGrid(w http.ResponseWriter, r *http.Request) {
	kpi := r.URL.Query().Get("kpi")
	if kpi == "" {
		writeError(w, http.StatusBadRequest, "kpi query parameter is required")
		return
	}
	gridSize := defaultGridSize
	if raw := r.URL.Query().Get("grid_size"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "grid_size must be a number")
			return
		}
		gridSize = parsed
	}

	file, _, err := uploadedFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}
	features, err := gridmap.ParseFeatures(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cells, err := gridmap.Generate(features, gridSize, kpi)
	if err != nil {
		fail(w, err)
		return
	}
	fc := geojson.NewFeatureCollection()
	fc.Features = cells
	writeJSON(w, http.StatusOK, fc)
}
