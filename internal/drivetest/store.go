package drivetest

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

// ErrNoDataset is returned when no drive-test file has been uploaded yet.
var ErrNoDataset = errors.New("no drive-test data uploaded")

// ErrUnknownColumn is returned when a summary is requested for a column the
// held dataset does not have.
var ErrUnknownColumn = errors.New("column not found in drive-test data")

const categoricalCap = 50

// ColumnSummary describes one column of the held dataset. Exactly one of the
// numeric range or Values is populated, depending on the column kind; an
// all-null column reports kind "empty" with nothing else set.
type ColumnSummary struct {
	Kind   string   `json:"kind"` // numeric, datetime, categorical or empty
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	MinStr string   `json:"min_str,omitempty"`
	MaxStr string   `json:"max_str,omitempty"`
	Values []string `json:"values,omitempty"`
}

// Store holds the most recent upload for the process lifetime. A new upload
// replaces the previous one.
type Store struct {
	mu sync.RWMutex
	ds *Dataset
}

func NewStore() *Store {
	return &Store{}
}

// Put replaces the held dataset.
func (s *Store) Put(ds *Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = ds
}

// Get returns the held dataset.
func (s *Store) Get() (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ds == nil {
		return nil, ErrNoDataset
	}
	return s.ds, nil
}

// Columns returns the held dataset's column names.
func (s *Store) Columns() ([]string, error) {
	ds, err := s.Get()
	if err != nil {
		return nil, err
	}
	return ds.Columns, nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// Summarize computes a range or value summary for one column of the held
// dataset.
func (s *Store) Summarize(column string) (*ColumnSummary, error) {
	ds, err := s.Get()
	if err != nil {
		return nil, err
	}
	if !slices.Contains(ds.Columns, column) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, column)
	}

	var (
		nums    []float64
		strs    []string
		allTime = true
	)
	for _, row := range ds.Rows {
		switch v := row[column].(type) {
		case nil:
		case float64:
			nums = append(nums, v)
		case string:
			strs = append(strs, v)
			if allTime {
				allTime = parsesAsTime(v)
			}
		}
	}

	if len(nums) == 0 && len(strs) == 0 {
		return &ColumnSummary{Kind: "empty"}, nil
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
		return &ColumnSummary{Kind: "numeric", Min: &min, Max: &max}, nil
	}

	if len(strs) > 0 && allTime {
		min, max := strs[0], strs[0]
		for _, v := range strs[1:] {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		return &ColumnSummary{Kind: "datetime", MinStr: min, MaxStr: max}, nil
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
	return &ColumnSummary{Kind: "categorical", Values: values}, nil
}

func parsesAsTime(s string) bool {
	for _, layout := range timeLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
