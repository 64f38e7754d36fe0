// Package project resolves logical (project, table_type) pairs to physical
// table mappings held in the external configuration store.
package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when no configuration row matches the lookup. It is
// a distinct condition from any downstream query failure.
var ErrNotFound = errors.New("no configuration found")

const configTable = "geolytics_projectconfiguration"

// Config is one resolved configuration row. Target fields are optional:
// their absence selects the source-only query mode.
type Config struct {
	SourceTable  string `db:"source_table"`
	SourceColumn string `db:"source_column"`
	SourceDB     string `db:"source_db"`
	TargetDB     string `db:"target_db"`
	TargetTable  string `db:"target_table"`
	TargetColumn string `db:"target_column"`
}

// Resolver looks up project configuration in the dedicated configuration
// database. All reads, no writes: the store is owned externally.
type Resolver struct {
	db *sqlx.DB
}

// NewResolver wraps the configuration database pool.
func NewResolver(db *sqlx.DB) *Resolver {
	return &Resolver{db: db}
}

// normalizeType strips, lowercases, and folds curly/encoded apostrophes in a
// table_type value so UI variants of the same label compare equal.
func normalizeType(tableType string) string {
	s := strings.TrimSpace(tableType)
	s = strings.NewReplacer("’", "'", "`", "'", "%27", "'").Replace(s)
	return strings.ToLower(s)
}

// typeCandidates expands a normalized table_type into its synonym forms:
// "kpi's" and "kpis" are interchangeable, tried in order, first match wins.
func typeCandidates(clean string) []string {
	candidates := []string{clean}
	switch {
	case strings.Contains(clean, "kpi's"):
		candidates = append(candidates, strings.ReplaceAll(clean, "kpi's", "kpis"))
	case strings.Contains(clean, "kpis"):
		candidates = append(candidates, strings.ReplaceAll(clean, "kpis", "kpi's"))
	}
	return candidates
}

// Resolve returns the configuration row for (project, tableType). Matching is
// case-insensitive and whitespace-trimmed on both keys.
func (r *Resolver) Resolve(ctx context.Context, projectName, tableType string) (*Config, error) {
	p := strings.ToLower(strings.TrimSpace(projectName))

	query := `SELECT COALESCE(source_table, '') AS source_table,
	                 COALESCE(source_column, '') AS source_column,
	                 COALESCE(source_db, '') AS source_db,
	                 COALESCE(target_db, '') AS target_db,
	                 COALESCE(target_table, '') AS target_table,
	                 COALESCE(target_column, '') AS target_column
	          FROM ` + configTable + `
	          WHERE lower(trim(project_name)) = $1 AND lower(trim(table_type)) = $2
	          LIMIT 1`

	for _, cand := range typeCandidates(normalizeType(tableType)) {
		var cfg Config
		err := r.db.GetContext(ctx, &cfg, query, p, cand)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %s/%s: %w", projectName, tableType, err)
		}
		cfg.trim()
		return &cfg, nil
	}
	return nil, fmt.Errorf("%w for %s/%s", ErrNotFound, projectName, tableType)
}

func (c *Config) trim() {
	c.SourceTable = strings.TrimSpace(c.SourceTable)
	c.SourceColumn = strings.TrimSpace(c.SourceColumn)
	c.SourceDB = strings.TrimSpace(c.SourceDB)
	c.TargetDB = strings.TrimSpace(c.TargetDB)
	c.TargetTable = strings.TrimSpace(c.TargetTable)
	c.TargetColumn = strings.TrimSpace(c.TargetColumn)
}

// HasTarget reports whether the row configures a join target.
func (c *Config) HasTarget() bool {
	return c.TargetTable != "" && c.TargetColumn != ""
}

// Projects lists the distinct project names known to the store.
func (r *Resolver) Projects(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.SelectContext(ctx, &names,
		`SELECT DISTINCT project_name FROM `+configTable+` ORDER BY project_name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return names, nil
}

// TableTypes lists the table types configured for one project.
func (r *Resolver) TableTypes(ctx context.Context, projectName string) ([]string, error) {
	var types []string
	err := r.db.SelectContext(ctx, &types,
		`SELECT DISTINCT table_type FROM `+configTable+` WHERE project_name = $1 ORDER BY table_type`,
		projectName)
	if err != nil {
		return nil, fmt.Errorf("list table types for %s: %w", projectName, err)
	}
	return types, nil
}

// SourceTableFor maps a project name to its configured source table. The
// second return value is false when no row exists, in which case callers
// treat the input as a raw table name.
func (r *Resolver) SourceTableFor(ctx context.Context, projectName string) (string, bool, error) {
	var table string
	err := r.db.GetContext(ctx, &table,
		`SELECT source_table FROM `+configTable+`
		 WHERE lower(trim(project_name)) = lower($1) LIMIT 1`,
		strings.TrimSpace(projectName))
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("map project %s: %w", projectName, err)
	}
	return strings.TrimSpace(table), true, nil
}

// TargetFor maps a project name to its configured target table and cluster,
// used by numeric-range lookups where the caller passes the project name in
// place of the physical table.
func (r *Resolver) TargetFor(ctx context.Context, projectName string) (table, db string, ok bool, err error) {
	row := struct {
		Table string `db:"target_table"`
		DB    string `db:"target_db"`
	}{}
	err = r.db.GetContext(ctx, &row,
		`SELECT COALESCE(target_table, '') AS target_table, COALESCE(target_db, '') AS target_db
		 FROM `+configTable+`
		 WHERE lower(trim(project_name)) = lower($1) LIMIT 1`,
		strings.TrimSpace(projectName))
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("map project %s: %w", projectName, err)
	}
	return strings.TrimSpace(row.Table), strings.TrimSpace(row.DB), row.Table != "", nil
}

// SourceTableBySubstring resolves a label that embeds a project name (for
// example "4G-Nokia_Eric-Master Sheet") to that project's source table.
func (r *Resolver) SourceTableBySubstring(ctx context.Context, label string) (string, bool, error) {
	var table string
	err := r.db.GetContext(ctx, &table,
		`SELECT source_table FROM `+configTable+`
		 WHERE $1 LIKE '%' || project_name || '%' LIMIT 1`, label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("substring map %s: %w", label, err)
	}
	return strings.TrimSpace(table), table != "", nil
}

// FullConfig returns every column of every matching configuration row, so
// callers see threshold and colour columns added after this code was built.
func (r *Resolver) FullConfig(ctx context.Context, projectName, tableType string) ([]string, []map[string]any, error) {
	var columns []string
	err := r.db.SelectContext(ctx, &columns,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_name = $1 ORDER BY ordinal_position`, configTable)
	if err != nil {
		return nil, nil, fmt.Errorf("config columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, nil, fmt.Errorf("%w: configuration relation missing", ErrNotFound)
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = `"` + strings.ReplaceAll(c, `"`, `""`) + `"`
	}

	query := `SELECT ` + strings.Join(quoted, ", ") + ` FROM ` + configTable + `
	          WHERE lower(trim(project_name)) = $1 AND lower(trim(table_type)) = $2`

	p := strings.ToLower(strings.TrimSpace(projectName))
	for _, cand := range typeCandidates(normalizeType(tableType)) {
		rows, err := r.db.QueryxContext(ctx, query, p, cand)
		if err != nil {
			return nil, nil, fmt.Errorf("full config: %w", err)
		}
		var out []map[string]any
		for rows.Next() {
			m := map[string]any{}
			if err := rows.MapScan(m); err != nil {
				rows.Close()
				return nil, nil, fmt.Errorf("scan config row: %w", err)
			}
			out = append(out, m)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, nil, fmt.Errorf("full config: %w", err)
		}
		if len(out) > 0 {
			return columns, out, nil
		}
	}
	return nil, nil, fmt.Errorf("%w for %s/%s", ErrNotFound, projectName, tableType)
}
