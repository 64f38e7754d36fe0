// Package drivetest ingests field measurement files (CSV or XLSX) and serves
// them back as GeoJSON with per-column summaries.
package drivetest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/xuri/excelize/v2"
)

// ErrNoCoordinates is returned when no latitude/longitude columns can be
// recognized in an upload.
var ErrNoCoordinates = errors.New("no latitude/longitude columns detected")

// Keyword fragments for coordinate column detection, matched against the
// header with spaces and underscores removed.
var (
	latKeywords = []string{"latitude", "gpslat", "positioninglat", "lat", "y"}
	lonKeywords = []string{"longitude", "gpslon", "gpslng", "positioninglon", "long", "lng", "lon", "x"}
)

// Columns excluded from KPI detection even when their values parse as numbers.
var nonKPIColumns = map[string]struct{}{
	"lat": {}, "lon": {}, "time": {}, "imei": {}, "imsi": {}, "device_name": {},
}

// Dataset is one parsed upload.
type Dataset struct {
	Columns  []string
	Rows     []map[string]any
	LatCol   string
	LonCol   string
	KPICols  []string
	Features []*geojson.Feature
}

// Parse reads a CSV or XLSX upload. Format is chosen by the filename
// extension; anything that is not .xlsx is treated as CSV.
func Parse(r io.Reader, filename string) (*Dataset, error) {
	var (
		header []string
		rows   [][]string
		err    error
	)
	if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		header, rows, err = readXLSX(r)
	} else {
		header, rows, err = readCSV(r)
	}
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, errors.New("upload has no header row")
	}
	return build(header, rows)
}

func readCSV(r io.Reader) ([]string, [][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read upload: %w", err)
	}
	// Strip a UTF-8 BOM; Windows exports commonly carry one.
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

func readXLSX(r io.Reader) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.New("xlsx has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

func build(header []string, raw [][]string) (*Dataset, error) {
	latCol := findCoordColumn(header, latKeywords)
	lonCol := findCoordColumn(header, lonKeywords)
	if latCol == "" || lonCol == "" {
		return nil, ErrNoCoordinates
	}

	rows := make([]map[string]any, 0, len(raw))
	for _, rec := range raw {
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = coerce(rec[i])
			} else {
				row[col] = nil
			}
		}
		rows = append(rows, row)
	}

	ds := &Dataset{
		Columns: header,
		Rows:    rows,
		LatCol:  latCol,
		LonCol:  lonCol,
		KPICols: detectKPIs(header, rows, latCol, lonCol),
	}
	ds.Features = toFeatures(ds)
	return ds, nil
}

// findCoordColumn matches keywords against headers with separators removed.
// Longer keywords are listed first so "latitude" wins over a bare "y".
func findCoordColumn(header []string, keywords []string) string {
	for _, kw := range keywords {
		for _, col := range header {
			folded := strings.ToLower(col)
			folded = strings.ReplaceAll(folded, " ", "")
			folded = strings.ReplaceAll(folded, "_", "")
			if len(kw) == 1 {
				if folded == kw {
					return col
				}
				continue
			}
			if strings.Contains(folded, kw) {
				return col
			}
		}
	}
	return ""
}

func coerce(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return trimmed
}

// detectKPIs returns columns whose non-null values all parsed as numbers,
// excluding coordinates and identity fields.
func detectKPIs(header []string, rows []map[string]any, latCol, lonCol string) []string {
	var kpis []string
	for _, col := range header {
		if col == latCol || col == lonCol {
			continue
		}
		if _, skip := nonKPIColumns[strings.ToLower(col)]; skip {
			continue
		}
		numeric, seen := true, false
		for _, row := range rows {
			v := row[col]
			if v == nil {
				continue
			}
			seen = true
			if _, ok := v.(float64); !ok {
				numeric = false
				break
			}
		}
		if numeric && seen {
			kpis = append(kpis, col)
		}
	}
	return kpis
}

func toFeatures(ds *Dataset) []*geojson.Feature {
	features := make([]*geojson.Feature, 0, len(ds.Rows))
	for _, row := range ds.Rows {
		lat, latOK := row[ds.LatCol].(float64)
		lon, lonOK := row[ds.LonCol].(float64)
		if !latOK || !lonOK {
			continue
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			continue
		}
		f := geojson.NewFeature(orb.Point{lon, lat})
		for k, v := range row {
			f.Properties[k] = v
		}
		features = append(features, f)
	}
	return features
}
