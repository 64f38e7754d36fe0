// Package gridmap bins point measurements into square degree cells and
// aggregates a chosen KPI per cell.
package gridmap

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ErrBadCellSize is returned for non-positive grid cell sizes.
var ErrBadCellSize = errors.New("cell size must be positive")

type cellKey struct {
	ix, iy int
}

// Generate bins point features into square cells of size degrees and emits
// one polygon feature per occupied cell with the mean of kpi across the
// cell's points. Points without a numeric kpi value count as 0, matching the
// upstream aggregation.
func Generate(features []*geojson.Feature, cellSize float64, kpi string) ([]*geojson.Feature, error) {
	if cellSize <= 0 {
		return nil, ErrBadCellSize
	}

	type acc struct {
		sum   float64
		count int
	}
	cells := map[cellKey]*acc{}
	for _, f := range features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		key := cellKey{
			ix: int(math.Floor(pt.Lon() / cellSize)),
			iy: int(math.Floor(pt.Lat() / cellSize)),
		}
		a := cells[key]
		if a == nil {
			a = &acc{}
			cells[key] = a
		}
		a.sum += numericValue(f.Properties[kpi])
		a.count++
	}

	keys := make([]cellKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ix != keys[j].ix {
			return keys[i].ix < keys[j].ix
		}
		return keys[i].iy < keys[j].iy
	})

	out := make([]*geojson.Feature, 0, len(keys))
	for _, k := range keys {
		a := cells[k]
		west := float64(k.ix) * cellSize
		south := float64(k.iy) * cellSize
		ring := orb.Ring{
			{west, south},
			{west + cellSize, south},
			{west + cellSize, south + cellSize},
			{west, south + cellSize},
			{west, south},
		}
		f := geojson.NewFeature(orb.Polygon{ring})
		f.Properties[kpi] = a.sum / float64(a.count)
		f.Properties["point_count"] = a.count
		out = append(out, f)
	}
	return out, nil
}

func numericValue(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	}
	return 0
}

// ParseFeatures decodes a posted GeoJSON FeatureCollection.
func ParseFeatures(data []byte) ([]*geojson.Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	return fc.Features, nil
}
