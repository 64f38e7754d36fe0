// Package schema probes physical table catalogs: it resolves table names
// across clusters, lists columns with their declared types, and locates
// semantic roles (lat, lon, azimuth, band, site, city, cell name) when the
// configuration does not pin them down exactly.
package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geolytics/geolytics/internal/cluster"
)

// ErrTableNotFound is returned when the resolved name is absent from every
// scanned cluster.
var ErrTableNotFound = errors.New("table not found")

// ErrColumnNotFound is returned when a required column role cannot be
// detected.
var ErrColumnNotFound = errors.New("column not found")

// ResolvedTable is one schema-qualified table identity on a specific cluster.
type ResolvedTable struct {
	Cluster *cluster.Cluster
	Schema  string
	Table   string
}

// Qualified returns the dialect-quoted schema.table identifier.
func (t ResolvedTable) Qualified() string {
	q := t.Cluster.Dialect.QuoteIdentifier
	return q(t.Schema) + "." + q(t.Table)
}

// Column is one catalog column with its declared SQL type.
type Column struct {
	Name     string `db:"column_name"`
	DataType string `db:"data_type"`
}

// Names extracts just the column names, preserving catalog order.
func Names(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// Prober resolves tables and columns against the cluster registry.
type Prober struct {
	registry *cluster.Registry
}

// NewProber creates a Prober over the given registry.
func NewProber(registry *cluster.Registry) *Prober {
	return &Prober{registry: registry}
}

// FindTableIn resolves a raw table name within one cluster, matching
// case-insensitively and ignoring surrounding whitespace. When the name
// exists in several schemas the tie breaks deterministically: "public" wins
// when present, else the lexicographically first schema.
func (p *Prober) FindTableIn(ctx context.Context, c *cluster.Cluster, rawName string) (ResolvedTable, error) {
	base := baseName(rawName)

	query := c.DB.Rebind(
		`SELECT table_schema, table_name FROM information_schema.tables
		 WHERE lower(trim(table_name)) = lower(trim(?))
		   AND table_schema NOT IN ('pg_catalog', 'information_schema')
		 ORDER BY CASE WHEN table_schema = 'public' THEN 0 ELSE 1 END, table_schema`)

	row := struct {
		Schema string `db:"table_schema"`
		Table  string `db:"table_name"`
	}{}
	rows, err := c.DB.QueryxContext(ctx, query, base)
	if err != nil {
		return ResolvedTable{}, fmt.Errorf("probe %s on %s: %w", rawName, c.Name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return ResolvedTable{}, fmt.Errorf("probe %s on %s: %w", rawName, c.Name, err)
		}
		return ResolvedTable{}, fmt.Errorf("%w: %s in %s", ErrTableNotFound, rawName, c.Name)
	}
	if err := rows.StructScan(&row); err != nil {
		return ResolvedTable{}, fmt.Errorf("probe %s on %s: %w", rawName, c.Name, err)
	}
	return ResolvedTable{Cluster: c, Schema: row.Schema, Table: row.Table}, nil
}

// FindTable resolves a raw table name across all clusters in the registry's
// deterministic scan order (primaries first, then name-sorted). A cluster
// that errors during probing is skipped; only total absence is an error.
func (p *Prober) FindTable(ctx context.Context, rawName string) (ResolvedTable, error) {
	for _, c := range p.registry.Ordered() {
		t, err := p.FindTableIn(ctx, c, rawName)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrTableNotFound) {
			continue // unreachable cluster, keep scanning
		}
	}
	return ResolvedTable{}, fmt.Errorf("%w: %s in any cluster", ErrTableNotFound, rawName)
}

// ListColumns returns the table's columns with declared types in ordinal
// order.
func (p *Prober) ListColumns(ctx context.Context, t ResolvedTable) ([]Column, error) {
	query := t.Cluster.DB.Rebind(
		`SELECT column_name, data_type FROM information_schema.columns
		 WHERE table_schema = ? AND table_name = ?
		 ORDER BY ordinal_position`)

	var cols []Column
	if err := t.Cluster.DB.SelectContext(ctx, &cols, query, t.Schema, t.Table); err != nil {
		return nil, fmt.Errorf("list columns of %s.%s: %w", t.Schema, t.Table, err)
	}
	return cols, nil
}

// AllowIdentifier reports whether name appears in the catalog-fetched column
// list. Every identifier interpolated into SQL must pass this check first;
// the allow-list is what closes the injection surface while keeping the
// build-query-from-discovered-schema capability.
func AllowIdentifier(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

// baseName strips quoting and any schema qualifier from a configured table
// name, keeping only the final path element.
func baseName(raw string) string {
	s := strings.ReplaceAll(strings.TrimSpace(raw), `"`, "")
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[i+1:]
	}
	return s
}
