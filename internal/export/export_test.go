package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func pointFeature(lon, lat float64, props map[string]any) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{lon, lat})
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

func TestWriteCSV(t *testing.T) {
	features := []*geojson.Feature{
		pointFeature(-0.12, 51.5, map[string]any{"cellname": "BHAZ01N78", "band": "N78"}),
		pointFeature(-0.13, 51.6, map[string]any{"cellname": "BHAZ02L18", "rsrp": -92.5}),
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, features); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3 (header + 2 rows)", len(records))
	}

	header := records[0]
	want := []string{"band", "cellname", "rsrp", "longitude", "latitude"}
	if len(header) != len(want) {
		t.Fatalf("header = %v, want %v", header, want)
	}
	for i := range want {
		if header[i] != want[i] {
			t.Errorf("header[%d] = %q, want %q", i, header[i], want[i])
		}
	}

	// First row has no rsrp; it must still have the column, empty.
	if records[1][2] != "" {
		t.Errorf("missing property should render empty, got %q", records[1][2])
	}
	if records[1][3] != "-0.12" || records[1][4] != "51.5" {
		t.Errorf("coordinates = %q,%q, want -0.12,51.5", records[1][3], records[1][4])
	}
	if records[2][2] != "-92.5" {
		t.Errorf("rsrp = %q, want -92.5", records[2][2])
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want header only", len(records))
	}
}

func TestWriteKML(t *testing.T) {
	features := []*geojson.Feature{
		pointFeature(28.05, -26.2, map[string]any{"Site_ID": "JHB001", "band": "L1800"}),
		pointFeature(28.06, -26.21, map[string]any{"cellname": "JHB002A"}),
	}

	var buf bytes.Buffer
	if err := WriteKML(&buf, "coverage", features); err != nil {
		t.Fatalf("WriteKML: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"<kml", "coverage", "JHB001", "JHB002A", "28.05,-26.2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Count(out, "<Placemark>") != 2 {
		t.Errorf("got %d placemarks, want 2", strings.Count(out, "<Placemark>"))
	}
}

func TestPlacemarkName(t *testing.T) {
	tests := []struct {
		props map[string]any
		want  string
	}{
		{map[string]any{"Site_ID": "A1", "cellname": "C1"}, "A1"},
		{map[string]any{"cellname": "C1"}, "C1"},
		{map[string]any{"site_id": "S9"}, "S9"},
		{map[string]any{}, "site"},
		{map[string]any{"Site_ID": nil, "cellname": "C2"}, "C2"},
	}
	for _, tt := range tests {
		f := pointFeature(0, 0, tt.props)
		if got := placemarkName(f); got != tt.want {
			t.Errorf("placemarkName(%v) = %q, want %q", tt.props, got, tt.want)
		}
	}
}
