package model

import "github.com/paulmach/orb/geojson"

// QueryResult is the federated query response: a GeoJSON feature collection
// plus the derived metadata the map UI needs (band list, joinable columns,
// RCA legend) and the flat row view used for tabular export.
type QueryResult struct {
	Type          string             `json:"type"` // always "FeatureCollection"
	Features      []*geojson.Feature `json:"features"`
	Bands         []string           `json:"bands"`
	SourceColumns []string           `json:"source_columns"`
	TargetColumns []string           `json:"target_columns"`
	RCAColumn     *string            `json:"rca_column"`
	AvailableKPIs []string           `json:"available_kpis"`
	Columns       []string           `json:"columns"`
	Rows          []map[string]any   `json:"rows"`
	RCAColors     map[string]string  `json:"rca_colors,omitempty"`
	RCALegend     []LegendEntry      `json:"rca_legend,omitempty"`
	ProgressID    string             `json:"progress_id"`
}

// LegendEntry maps one RCA category to its assigned colour.
type LegendEntry struct {
	Issue string `json:"issue"`
	Color string `json:"color"`
}

// BandPair is one distinct (band, cellname) pairing from a source table.
type BandPair struct {
	Band     string `json:"band"`
	Cellname string `json:"cellname"`
}

// RangeResult is the numeric min/max of one column.
type RangeResult struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}
