package gridmap

import (
	"errors"
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

func TestGenerate(t *testing.T) {
	// Two points in the same 0.1-degree cell, one in the neighbour.
	features := []*geojson.Feature{
		pointFeature(0.01, 0.02, map[string]any{"rsrp": -90.0}),
		pointFeature(0.05, 0.08, map[string]any{"rsrp": -100.0}),
		pointFeature(0.15, 0.02, map[string]any{"rsrp": -80.0}),
	}

	out, err := Generate(features, 0.1, "rsrp")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d cells, want 2", len(out))
	}

	// Cells come out sorted west to east.
	first := out[0]
	if got := first.Properties["rsrp"].(float64); got != -95.0 {
		t.Errorf("first cell mean = %v, want -95", got)
	}
	if got := first.Properties["point_count"].(int); got != 2 {
		t.Errorf("first cell count = %v, want 2", got)
	}
	second := out[1]
	if got := second.Properties["rsrp"].(float64); got != -80.0 {
		t.Errorf("second cell mean = %v, want -80", got)
	}

	poly, ok := first.Geometry.(orb.Polygon)
	if !ok {
		t.Fatalf("cell geometry is %T, want orb.Polygon", first.Geometry)
	}
	if len(poly[0]) != 5 {
		t.Errorf("ring has %d points, want 5 (closed square)", len(poly[0]))
	}
	if poly[0][0] != (orb.Point{0, 0}) {
		t.Errorf("cell origin = %v, want {0 0}", poly[0][0])
	}
}

func TestGenerateMissingKPICountsAsZero(t *testing.T) {
	features := []*geojson.Feature{
		pointFeature(0.01, 0.01, map[string]any{"rsrp": -90.0}),
		pointFeature(0.02, 0.02, nil),
	}
	out, err := Generate(features, 1, "rsrp")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d cells, want 1", len(out))
	}
	if got := out[0].Properties["rsrp"].(float64); got != -45.0 {
		t.Errorf("mean = %v, want -45 (missing value counted as 0)", got)
	}
}

func TestGenerateNegativeCoordinates(t *testing.T) {
	features := []*geojson.Feature{
		pointFeature(-0.05, -0.05, map[string]any{"v": 4.0}),
	}
	out, err := Generate(features, 0.1, "v")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	poly := out[0].Geometry.(orb.Polygon)
	if poly[0][0] != (orb.Point{-0.1, -0.1}) {
		t.Errorf("cell origin = %v, want {-0.1 -0.1} (floor binning)", poly[0][0])
	}
}

func TestGenerateBadCellSize(t *testing.T) {
	if _, err := Generate(nil, 0, "v"); !errors.Is(err, ErrBadCellSize) {
		t.Errorf("err = %v, want ErrBadCellSize", err)
	}
	if _, err := Generate(nil, -1, "v"); !errors.Is(err, ErrBadCellSize) {
		t.Errorf("err = %v, want ErrBadCellSize", err)
	}
}

func TestParseFeatures(t *testing.T) {
	data := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"v":3}}]}`)
	features, err := ParseFeatures(data)
	if err != nil {
		t.Fatalf("ParseFeatures: %v", err)
	}
	if len(features) != 1 {
		t.Fatalf("got %d features, want 1", len(features))
	}
	if _, err := ParseFeatures([]byte(`not json`)); err == nil {
		t.Error("ParseFeatures should fail on invalid input")
	}
}

func TestStoreRange(t *testing.T) {
	s := NewStore()

	if _, err := s.Range("v"); !errors.Is(err, ErrNoData) {
		t.Errorf("empty store err = %v, want ErrNoData", err)
	}

	s.Put([]string{"v", "city"}, []map[string]any{
		{"v": 1.5, "city": "Leeds"},
		{"v": 9.0, "city": "York"},
		{"v": nil, "city": "Leeds"},
	})

	num, err := s.Range("v")
	if err != nil {
		t.Fatalf("Range v: %v", err)
	}
	if num.Kind != "numeric" || *num.Min != 1.5 || *num.Max != 9.0 {
		t.Errorf("v range = %+v, want numeric [1.5, 9]", num)
	}

	cat, err := s.Range("city")
	if err != nil {
		t.Fatalf("Range city: %v", err)
	}
	if cat.Kind != "categorical" || len(cat.Values) != 2 {
		t.Fatalf("city range = %+v, want 2 categorical values", cat)
	}
	if cat.Values[0] != "Leeds" || cat.Values[1] != "York" {
		t.Errorf("city values = %v, want [Leeds York]", cat.Values)
	}
}

func TestNumericValue(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{3.5, 3.5},
		{float32(2), 2},
		{int64(7), 7},
		{int(4), 4},
		{"12", 0},
		{nil, 0},
	}
	for _, tt := range tests {
		if got := numericValue(tt.in); got != tt.want {
			t.Errorf("numericValue(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
