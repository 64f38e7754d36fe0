package gridmap

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/geolytics/geolytics/internal/schema"
)

// ErrNoData is returned when nothing has been uploaded or loaded yet.
var ErrNoData = errors.New("no grid-map data loaded")

const (
	tableRowCap    = 10000
	categoricalCap = 50
)

// ColumnRange is a min/max or distinct-values summary of one held column.
type ColumnRange struct {
	Kind   string   `json:"kind"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Values []string `json:"values,omitempty"`
}

// Store holds the most recent grid-map rows for the process lifetime.
type Store struct {
	mu      sync.RWMutex
	columns []string
	rows    []map[string]any
}

func NewStore() *Store {
	return &Store{}
}

// Put replaces the held rows.
func (s *Store) Put(columns []string, rows []map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns = columns
	s.rows = rows
}

// Rows returns the held rows and columns.
func (s *Store) Rows() ([]string, []map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rows == nil {
		return nil, nil, ErrNoData
	}
	return s.columns, s.rows, nil
}

// Range summarizes one held column: numeric min/max when every non-null
// value is a number, else the distinct values capped and sorted.
func (s *Store) Range(column string) (*ColumnRange, error) {
	_, rows, err := s.Rows()
	if err != nil {
		return nil, err
	}

	var (
		nums []float64
		strs []string
	)
	for _, row := range rows {
		switch v := row[column].(type) {
		case nil:
		case float64:
			nums = append(nums, v)
		case float32:
			nums = append(nums, float64(v))
		case int64:
			nums = append(nums, float64(v))
		case int:
			nums = append(nums, float64(v))
		case string:
			strs = append(strs, v)
		}
	}

	if len(nums) > 0 && len(strs) == 0 {
		min, max := nums[0], nums[0]
		for _, n := range nums[1:] {
			if n < min {
				min = n
			}
			if n > max {
				max = n
			}
		}
		return &ColumnRange{Kind: "numeric", Min: &min, Max: &max}, nil
	}

	seen := map[string]struct{}{}
	var values []string
	for _, v := range strs {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
		if len(values) == categoricalCap {
			break
		}
	}
	sort.Strings(values)
	return &ColumnRange{Kind: "categorical", Values: values}, nil
}

// Loader pulls physical table rows into a grid-map store.
type Loader struct {
	prober *schema.Prober
}

func NewLoader(prober *schema.Prober) *Loader {
	return &Loader{prober: prober}
}

// FromTable locates a table anywhere in the registry, detects its coordinate
// columns, and loads rows with non-null coordinates into the store.
func (l *Loader) FromTable(ctx context.Context, s *Store, tableName string) (int, error) {
	rt, err := l.prober.FindTable(ctx, tableName)
	if err != nil {
		return 0, err
	}
	cols, err := l.prober.ListColumns(ctx, rt)
	if err != nil {
		return 0, err
	}
	names := schema.Names(cols)

	latCol, latOK := schema.DetectRole(names, schema.RoleLat, "")
	lonCol, lonOK := schema.DetectRole(names, schema.RoleLon, "")
	if !latOK || !lonOK {
		return 0, schema.ErrColumnNotFound
	}

	q := rt.Cluster.Dialect.QuoteIdentifier
	query := rt.Cluster.Dialect.ApplyLimit(
		"SELECT * FROM "+rt.Qualified()+
			" WHERE "+q(latCol)+" IS NOT NULL AND "+q(lonCol)+" IS NOT NULL",
		tableRowCap)

	rows, err := rt.Cluster.DB.QueryxContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var loaded []map[string]any
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return 0, err
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		loaded = append(loaded, row)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	s.Put(names, loaded)
	return len(loaded), nil
}
