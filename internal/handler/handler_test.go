package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/geolytics/geolytics/internal/drivetest"
	"github.com/geolytics/geolytics/internal/federation"
	"github.com/geolytics/geolytics/internal/gridmap"
	"github.com/geolytics/geolytics/internal/progress"
	"github.com/geolytics/geolytics/internal/project"
	"github.com/geolytics/geolytics/internal/schema"
	"github.com/geolytics/geolytics/internal/template"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{project.ErrNotFound, http.StatusNotFound},
		{schema.ErrTableNotFound, http.StatusNotFound},
		{template.ErrNotFound, http.StatusNotFound},
		{drivetest.ErrNoDataset, http.StatusNotFound},
		{drivetest.ErrUnknownColumn, http.StatusNotFound},
		{gridmap.ErrNoData, http.StatusNotFound},
		{schema.ErrColumnNotFound, http.StatusUnprocessableEntity},
		{drivetest.ErrNoCoordinates, http.StatusBadRequest},
		{gridmap.ErrBadCellSize, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusNotFound, "missing", map[string]interface{}{"table": "x"})

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body struct {
		Error struct {
			Code    int            `json:"code"`
			Message string         `json:"message"`
			Context map[string]any `json:"context"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != 404 || body.Error.Message != "missing" {
		t.Errorf("envelope = %+v", body.Error)
	}
	if body.Error.Context["table"] != "x" {
		t.Errorf("context = %v, want table=x", body.Error.Context)
	}
}

func newTemplateHandler(t *testing.T) *TemplateHandler {
	t.Helper()
	store, err := template.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewTemplateHandler(store)
}

func TestTemplateSaveAndGet(t *testing.T) {
	h := newTemplateHandler(t)
	r := chi.NewRouter()
	r.Post("/save-template", h.Save)
	r.Get("/templates", h.List)
	r.Get("/template/{name}", h.Get)

	body := `{"name":"view1","config":{"project":"p","target_joins":["kpi"]}}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/save-template", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d, body %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/templates", nil))
	var names []string
	if err := json.Unmarshal(rec.Body.Bytes(), &names); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(names) != 1 || names[0] != "view1" {
		t.Errorf("templates = %v, want [view1]", names)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/template/view1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/template/none", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing template status = %d, want 404", rec.Code)
	}
}

func TestTemplateSaveValidation(t *testing.T) {
	h := newTemplateHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"no name", `{"config":{}}`},
		{"no config", `{"name":"x"}`},
		{"target_joins not a list", `{"name":"x","config":{"target_joins":"kpi"}}`},
		{"config not an object", `{"name":"x","config":[1]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Save(rec, httptest.NewRequest("POST", "/save-template", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestProgressLatestAndByID(t *testing.T) {
	tracker := progress.NewTracker()
	engine := federation.NewEngine(nil, nil, tracker, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := NewQueryHandler(engine)

	rec := httptest.NewRecorder()
	h.Progress(rec, httptest.NewRequest("GET", "/progress", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("empty tracker status = %d, want 404", rec.Code)
	}

	handle := tracker.Begin()
	handle.Update(40, "Fetching source data...")

	rec = httptest.NewRecorder()
	h.Progress(rec, httptest.NewRequest("GET", "/progress", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var state struct {
		Progress int    `json:"progress"`
		Stage    string `json:"stage"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Progress != 40 {
		t.Errorf("progress = %d, want 40", state.Progress)
	}

	rec = httptest.NewRecorder()
	h.Progress(rec, httptest.NewRequest("GET", "/progress?id="+handle.ID(), nil))
	if rec.Code != http.StatusOK {
		t.Errorf("by-id status = %d, want 200", rec.Code)
	}
}

func TestExportCSV(t *testing.T) {
	h := NewExportHandler()
	body := `{"format":"csv","data":{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[-0.1,51.5]},
		 "properties":{"cellname":"C1"}}]}}`

	rec := httptest.NewRecorder()
	h.Export(rec, httptest.NewRequest("POST", "/export", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "C1") {
		t.Errorf("csv body missing data: %s", rec.Body)
	}
}

func TestExportBadRequests(t *testing.T) {
	h := NewExportHandler()
	tests := []struct {
		name string
		body string
	}{
		{"empty data", `{"format":"csv","data":{"type":"FeatureCollection","features":[]}}`},
		{"bad format", `{"format":"pdf","data":{"type":"FeatureCollection","features":[
			{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{}}]}}`},
		{"not json", `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Export(rec, httptest.NewRequest("POST", "/export", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	io.WriteString(fw, content)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadDriveTest(t *testing.T) {
	h := NewUploadHandler(drivetest.NewStore(), gridmap.NewStore(), nil)

	csv := "lat,lon,rsrp\n51.5,-0.1,-90\n51.6,-0.2,-95\n"
	body, contentType := multipartBody(t, "run.csv", csv)
	req := httptest.NewRequest("POST", "/upload-drive-test", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	h.UploadDriveTest(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp struct {
		AvailableKPIs []string `json:"available_kpis"`
		LatCol        string   `json:"lat_col"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.LatCol != "lat" {
		t.Errorf("lat_col = %q, want lat", resp.LatCol)
	}
	if len(resp.AvailableKPIs) != 1 || resp.AvailableKPIs[0] != "rsrp" {
		t.Errorf("available_kpis = %v, want [rsrp]", resp.AvailableKPIs)
	}

	// Columns endpoint now serves the held dataset.
	rec = httptest.NewRecorder()
	h.DriveTestColumns(rec, httptest.NewRequest("GET", "/drive-test/columns", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("columns status = %d, want 200", rec.Code)
	}
}

func TestUploadDriveTestNoCoordinates(t *testing.T) {
	h := NewUploadHandler(drivetest.NewStore(), gridmap.NewStore(), nil)

	body, contentType := multipartBody(t, "bad.csv", "a,b\n1,2\n")
	req := httptest.NewRequest("POST", "/upload-drive-test", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	h.UploadDriveTest(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGenerateGrid(t *testing.T) {
	h := NewUploadHandler(drivetest.NewStore(), gridmap.NewStore(), nil)

	fc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[0.01,0.01]},"properties":{"sinr":10}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[0.02,0.02]},"properties":{"sinr":20}}]}`
	body, contentType := multipartBody(t, "run.geojson", fc)
	req := httptest.NewRequest("POST", "/generate-grid?kpi=sinr&grid_size=0.1", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	h.GenerateGrid(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var out struct {
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Features) != 1 {
		t.Fatalf("got %d cells, want 1", len(out.Features))
	}
	if got := out.Features[0].Properties["sinr"].(float64); got != 15 {
		t.Errorf("mean = %v, want 15", got)
	}
}

func TestGenerateGridValidation(t *testing.T) {
	h := NewUploadHandler(drivetest.NewStore(), gridmap.NewStore(), nil)

	rec := httptest.NewRecorder()
	h.GenerateGrid(rec, httptest.NewRequest("POST", "/generate-grid", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing kpi status = %d, want 400", rec.Code)
	}

	body, contentType := multipartBody(t, "x.geojson", `{}`)
	req := httptest.NewRequest("POST", "/generate-grid?kpi=v&grid_size=nope", body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	h.GenerateGrid(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad grid_size status = %d, want 400", rec.Code)
	}
}

func TestGridMapColumnRangeEmpty(t *testing.T) {
	h := NewUploadHandler(drivetest.NewStore(), gridmap.NewStore(), nil)

	rec := httptest.NewRecorder()
	h.GridMapColumnRange(rec, httptest.NewRequest("GET", "/grid-map/column-range?column=v", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
