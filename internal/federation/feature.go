package federation

import (
	"math"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// toFloat coerces a scanned database value to a float64. Drivers hand back
// different concrete types for the same column depending on dialect.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int:
		return float64(x), true
	case []byte:
		f, err := strconv.ParseFloat(string(x), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// sanitizeValue makes a scanned value JSON-safe: byte slices become strings,
// non-finite floats become nil.
func sanitizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case float32:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	case time.Time:
		return x
	default:
		return v
	}
}

// validCoordinate reports whether (lon, lat) is a finite point on the globe.
func validCoordinate(lon, lat float64) bool {
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

// newFeature builds one GeoJSON point feature from a merged row. Returns nil
// when the row has no usable coordinates; the caller drops it and moves on.
func newFeature(row map[string]any, latKey, lonKey string) *geojson.Feature {
	lat, okLat := toFloat(row[latKey])
	lon, okLon := toFloat(row[lonKey])
	if !okLat || !okLon || !validCoordinate(lon, lat) {
		return nil
	}

	f := geojson.NewFeature(orb.Point{lon, lat})
	props := make(geojson.Properties, len(row))
	for k, v := range row {
		props[k] = v
	}
	f.Properties = props
	return f
}
