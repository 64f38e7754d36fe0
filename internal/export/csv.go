// Package export renders query results as downloadable CSV and KML files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// WriteCSV flattens features into CSV rows. The header is the sorted union
// of all property keys plus longitude/latitude columns, so features with
// differing property sets still line up.
func WriteCSV(w io.Writer, features []*geojson.Feature) error {
	keys := map[string]struct{}{}
	for _, f := range features {
		for k := range f.Properties {
			keys[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(keys)+2)
	for k := range keys {
		header = append(header, k)
	}
	sort.Strings(header)
	header = append(header, "longitude", "latitude")

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(header))
	for _, f := range features {
		for i, k := range header[:len(header)-2] {
			row[i] = cellString(f.Properties[k])
		}
		lon, lat, ok := pointCoords(f)
		if ok {
			row[len(row)-2] = fmt.Sprintf("%g", lon)
			row[len(row)-1] = fmt.Sprintf("%g", lat)
		} else {
			row[len(row)-2] = ""
			row[len(row)-1] = ""
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func pointCoords(f *geojson.Feature) (lon, lat float64, ok bool) {
	if f == nil || f.Geometry == nil {
		return 0, 0, false
	}
	pt, isPoint := f.Geometry.(orb.Point)
	if !isPoint {
		return 0, 0, false
	}
	return pt.Lon(), pt.Lat(), true
}
