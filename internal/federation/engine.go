// Package federation orchestrates the three federated query modes
// (source-only, KPI/CM join, categorical RCA join) against the resolved
// clusters and emits a normalized feature collection with derived metadata.
package federation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/geolytics/geolytics/internal/band"
	"github.com/geolytics/geolytics/internal/cluster"
	"github.com/geolytics/geolytics/internal/model"
	"github.com/geolytics/geolytics/internal/progress"
	"github.com/geolytics/geolytics/internal/project"
	"github.com/geolytics/geolytics/internal/schema"
	"github.com/paulmach/orb/geojson"
)

// Row caps are safety bounds, not a pagination contract: exceeding them
// silently truncates.
const (
	sourceRowCap   = 10000
	kpiRowCap      = 5000
	rcaRowCap      = 10000
	bandPairCap    = 1000
	distinctValCap = 300
)

// numericTypeKeywords select join-target columns treated as KPI values.
var numericTypeKeywords = []string{"int", "double", "real", "numeric", "float", "decimal"}

// rcaPriority is the ordered list of known category column names, matched
// case-insensitively, before falling back to any column containing "issue"
// or "analysis".
var rcaPriority = []string{
	"Issue/Analysis Bucket new",
	"Issue_Bucket",
	"Analysis_Counters",
}

// sourceAliases is the fixed shape every source read is projected onto.
var sourceAliases = []string{"cellname", "lat", "long", "azimuth", "site_id", "band", "city"}

// catalog is the slice of schema.Prober the engine depends on, split out so
// run modes can be exercised against a canned catalog.
type catalog interface {
	FindTableIn(ctx context.Context, c *cluster.Cluster, rawName string) (schema.ResolvedTable, error)
	FindTable(ctx context.Context, rawName string) (schema.ResolvedTable, error)
	ListColumns(ctx context.Context, t schema.ResolvedTable) ([]schema.Column, error)
}

// fetchFunc runs a parameterless query against one cluster and returns the
// rows as sanitized maps.
type fetchFunc func(ctx context.Context, c *cluster.Cluster, query string) ([]map[string]any, error)

// Engine executes federated queries. One run per request, sequential stages,
// progress reported at each transition.
type Engine struct {
	registry *cluster.Registry
	resolver *project.Resolver
	prober   catalog
	fetch    fetchFunc
	tracker  *progress.Tracker
	logger   *slog.Logger
}

// NewEngine wires the engine over its collaborators.
func NewEngine(registry *cluster.Registry, resolver *project.Resolver, tracker *progress.Tracker, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry: registry,
		resolver: resolver,
		prober:   schema.NewProber(registry),
		fetch:    fetchMaps,
		tracker:  tracker,
		logger:   logger,
	}
}

// Tracker exposes the progress tracker for the polling endpoint.
func (e *Engine) Tracker() *progress.Tracker { return e.tracker }

// Query runs one federated request for (project, tableType). Fatal errors
// also move the request's progress handle to the error state, so a poller
// observes the failure even if this return value is lost.
func (e *Engine) Query(ctx context.Context, projectName, tableType string) (*model.QueryResult, error) {
	h := e.tracker.Begin()
	res, err := e.run(ctx, h, projectName, tableType)
	if err != nil {
		h.Fail(err)
		e.logger.Error("federated query failed", "project", projectName, "table_type", tableType, "error", err)
		return nil, err
	}
	h.Update(100, "Complete")
	res.ProgressID = h.ID()
	return res, nil
}

func (e *Engine) run(ctx context.Context, h *progress.Handle, projectName, tableType string) (*model.QueryResult, error) {
	h.Update(10, "Fetching configuration...")
	cfg, err := e.resolver.Resolve(ctx, projectName, tableType)
	if err != nil {
		return nil, err
	}

	h.Update(20, "Resolving source schema...")
	src, err := e.locate(ctx, cfg.SourceDB, cfg.SourceTable)
	if err != nil {
		return nil, err
	}
	srcCols, err := e.prober.ListColumns(ctx, src)
	if err != nil {
		return nil, err
	}
	srcNames := schema.Names(srcCols)

	roles, err := detectSourceRoles(srcNames, cfg.SourceColumn)
	if err != nil {
		return nil, fmt.Errorf("%w in %s", err, cfg.SourceTable)
	}
	e.logger.Info("detected source roles",
		"table", src.Table, "cluster", src.Cluster.Name,
		"lat", roles[schema.RoleLat], "lon", roles[schema.RoleLon],
		"cell", roles[schema.RoleCell], "band", roles[schema.RoleBand])

	switch {
	case !cfg.HasTarget():
		h.Update(40, "Fetching source data...")
		return e.runSourceOnly(ctx, src, srcNames, roles)
	case strings.Contains(strings.ToLower(tableType), "rca"):
		h.Update(40, "Fetching RCA data...")
		return e.runRCA(ctx, cfg, src, srcNames, roles)
	default:
		h.Update(40, "Fetching target data...")
		return e.runKPIJoin(ctx, cfg, src, srcNames, roles)
	}
}

// locate resolves a raw table name to a cluster-qualified identity. A
// configured cluster name is tried first; a table missing there, or an
// unconfigured cluster, falls back to the deterministic registry scan.
func (e *Engine) locate(ctx context.Context, clusterName, table string) (schema.ResolvedTable, error) {
	if clusterName != "" {
		if c, ok := e.registry.Get(clusterName); ok {
			t, err := e.prober.FindTableIn(ctx, c, table)
			if err == nil {
				return t, nil
			}
			if !errors.Is(err, schema.ErrTableNotFound) {
				return schema.ResolvedTable{}, err
			}
		}
	}
	return e.prober.FindTable(ctx, table)
}

// detectSourceRoles builds the role map for a source table. Lat and lon must
// both resolve or the request fails; the rest degrade to null output.
func detectSourceRoles(columns []string, configuredCell string) (map[schema.Role]string, error) {
	roles := make(map[schema.Role]string, 7)
	for _, role := range []schema.Role{
		schema.RoleCell, schema.RoleLat, schema.RoleLon,
		schema.RoleAzimuth, schema.RoleSite, schema.RoleBand, schema.RoleCity,
	} {
		configured := ""
		if role == schema.RoleCell {
			configured = configuredCell
		}
		if col, ok := schema.DetectRole(columns, role, configured); ok {
			roles[role] = col
		}
	}
	if roles[schema.RoleLat] == "" || roles[schema.RoleLon] == "" {
		return nil, fmt.Errorf("%w: could not detect lat/lon columns", schema.ErrColumnNotFound)
	}
	if roles[schema.RoleCell] == "" {
		return nil, fmt.Errorf("%w: could not detect a cell-name column", schema.ErrColumnNotFound)
	}
	return roles, nil
}

// buildSourceSQL projects the detected role columns onto the fixed source
// aliases, keeping undetected optional roles as NULL so the row shape is
// stable across projects.
func buildSourceSQL(t schema.ResolvedTable, roles map[schema.Role]string) string {
	q := t.Cluster.Dialect.QuoteIdentifier
	expr := func(role schema.Role, alias string) string {
		if col, ok := roles[role]; ok {
			return q(col) + " AS " + q(alias)
		}
		return "NULL AS " + q(alias)
	}

	sel := strings.Join([]string{
		q(roles[schema.RoleCell]) + " AS " + q("cellname"),
		q(roles[schema.RoleLat]) + " AS " + q("lat"),
		q(roles[schema.RoleLon]) + " AS " + q("long"),
		expr(schema.RoleAzimuth, "azimuth"),
		expr(schema.RoleSite, "site_id"),
		expr(schema.RoleBand, "band"),
		expr(schema.RoleCity, "city"),
	}, ", ")

	query := "SELECT " + sel + " FROM " + t.Qualified() +
		" WHERE " + q(roles[schema.RoleLat]) + " IS NOT NULL AND " + q(roles[schema.RoleLon]) + " IS NOT NULL"
	return t.Cluster.Dialect.ApplyLimit(query, sourceRowCap)
}

// fetchMaps is the default fetchFunc: it runs the query on the cluster's
// pool and scans every row into a sanitized map.
func fetchMaps(ctx context.Context, c *cluster.Cluster, query string) ([]map[string]any, error) {
	rows, err := c.DB.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.Name, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("scan row from %s: %w", c.Name, err)
		}
		for k, v := range m {
			m[k] = sanitizeValue(v)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows from %s: %w", c.Name, err)
	}
	return out, nil
}

// emitFeatures converts merged rows into point features. Rows with invalid
// coordinates are dropped, never the whole request; dropped + emitted always
// equals the candidate count. Band codes are derived from the band property,
// falling back to the cell name.
func (e *Engine) emitFeatures(rows []map[string]any) ([]*geojson.Feature, []string) {
	features := make([]*geojson.Feature, 0, len(rows))
	bandSet := map[string]bool{}
	dropped := 0

	for _, row := range rows {
		f := newFeature(row, "lat", "long")
		if f == nil {
			dropped++
			continue
		}
		raw := stringOf(row["band"])
		if raw == "" {
			raw = stringOf(row["cellname"])
		}
		if code, ok := band.Normalize(raw); ok {
			f.Properties["band"] = code
			row["band"] = code
			bandSet[code] = true
		}
		features = append(features, f)
	}
	if dropped > 0 {
		e.logger.Warn("dropped rows with invalid coordinates", "dropped", dropped, "kept", len(features))
	}

	bands := make([]string, 0, len(bandSet))
	for b := range bandSet {
		bands = append(bands, b)
	}
	sort.Strings(bands)
	return features, bands
}

func stringOf(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// leftJoin merges target rows onto source rows by text equality of the join
// keys. Every source row appears exactly once; the first matching target row
// wins; source values are never overwritten by target values.
func leftJoin(src, tgt []map[string]any, srcKey, tgtKey string) []map[string]any {
	index := make(map[string]map[string]any, len(tgt))
	for _, row := range tgt {
		key := stringOf(row[tgtKey])
		if key == "" {
			continue
		}
		if _, ok := index[key]; !ok {
			index[key] = row
		}
	}

	merged := make([]map[string]any, 0, len(src))
	for _, row := range src {
		out := make(map[string]any, len(row)+4)
		for k, v := range row {
			out[k] = v
		}
		if match, ok := index[stringOf(row[srcKey])]; ok {
			for k, v := range match {
				if _, exists := out[k]; !exists {
					out[k] = v
				}
			}
		}
		merged = append(merged, out)
	}
	return merged
}

func (e *Engine) runSourceOnly(ctx context.Context, src schema.ResolvedTable, srcNames []string, roles map[schema.Role]string) (*model.QueryResult, error) {
	rows, err := e.fetch(ctx, src.Cluster, buildSourceSQL(src, roles))
	if err != nil {
		return nil, err
	}
	features, bands := e.emitFeatures(rows)
	e.logger.Info("feature collection ready", "mode", "source-only", "features", len(features), "bands", bands)

	return &model.QueryResult{
		Type:          "FeatureCollection",
		Features:      features,
		Bands:         bands,
		SourceColumns: srcNames,
		TargetColumns: []string{},
		AvailableKPIs: []string{},
		Columns:       append([]string(nil), sourceAliases...),
		Rows:          rows,
	}, nil
}

func (e *Engine) runKPIJoin(ctx context.Context, cfg *project.Config, src schema.ResolvedTable, srcNames []string, roles map[schema.Role]string) (*model.QueryResult, error) {
	tgt, err := e.locate(ctx, cfg.TargetDB, cfg.TargetTable)
	if err != nil {
		return nil, err
	}
	tgtCols, err := e.prober.ListColumns(ctx, tgt)
	if err != nil {
		return nil, err
	}
	tgtNames := schema.Names(tgtCols)

	joinKey := cfg.TargetColumn
	if !schema.AllowIdentifier(tgtNames, joinKey) {
		return nil, fmt.Errorf("%w: join column %q absent from %s", schema.ErrColumnNotFound, joinKey, cfg.TargetTable)
	}

	kpiCols := make([]string, 0, len(tgtCols))
	for _, c := range tgtCols {
		dt := strings.ToLower(c.DataType)
		for _, kw := range numericTypeKeywords {
			if strings.Contains(dt, kw) {
				kpiCols = append(kpiCols, c.Name)
				break
			}
		}
	}

	q := tgt.Cluster.Dialect.QuoteIdentifier
	sel := []string{q(joinKey) + " AS " + q("target_key")}
	for _, c := range kpiCols {
		sel = append(sel, q(c))
	}
	kpiSQL := tgt.Cluster.Dialect.ApplyLimit(
		"SELECT "+strings.Join(sel, ", ")+" FROM "+tgt.Qualified(), kpiRowCap)

	srcRows, err := e.fetch(ctx, src.Cluster, buildSourceSQL(src, roles))
	if err != nil {
		return nil, err
	}
	tgtRows, err := e.fetch(ctx, tgt.Cluster, kpiSQL)
	if err != nil {
		return nil, err
	}

	merged := leftJoin(srcRows, tgtRows, "cellname", "target_key")
	features, bands := e.emitFeatures(merged)
	e.logger.Info("feature collection ready", "mode", "kpi-join",
		"features", len(features), "kpis", len(kpiCols), "bands", bands)

	targetColumns := make([]string, 0, len(tgtNames))
	for _, c := range tgtNames {
		if c != joinKey {
			targetColumns = append(targetColumns, c)
		}
	}

	columns := append([]string(nil), sourceAliases...)
	columns = append(columns, "target_key")
	columns = append(columns, kpiCols...)

	return &model.QueryResult{
		Type:          "FeatureCollection",
		Features:      features,
		Bands:         bands,
		SourceColumns: srcNames,
		TargetColumns: targetColumns,
		AvailableKPIs: kpiCols,
		Columns:       columns,
		Rows:          merged,
	}, nil
}

func (e *Engine) runRCA(ctx context.Context, cfg *project.Config, src schema.ResolvedTable, srcNames []string, roles map[schema.Role]string) (*model.QueryResult, error) {
	tgt, err := e.locate(ctx, cfg.TargetDB, cfg.TargetTable)
	if err != nil {
		return nil, err
	}
	tgtCols, err := e.prober.ListColumns(ctx, tgt)
	if err != nil {
		return nil, err
	}
	tgtNames := schema.Names(tgtCols)

	rcaCol, ok := pickRCAColumn(tgtNames)
	if !ok {
		return nil, fmt.Errorf("%w: no RCA category column in %s", schema.ErrColumnNotFound, cfg.TargetTable)
	}
	joinKey := pickJoinKey(tgtNames, cfg.TargetColumn)

	q := tgt.Cluster.Dialect.QuoteIdentifier
	rcaSQL := tgt.Cluster.Dialect.ApplyLimit(
		"SELECT "+q(joinKey)+" AS "+q("target_key")+", "+q(rcaCol)+
			" FROM "+tgt.Qualified()+
			" WHERE "+q(joinKey)+" IS NOT NULL", rcaRowCap)

	srcRows, err := e.fetch(ctx, src.Cluster, buildSourceSQL(src, roles))
	if err != nil {
		return nil, err
	}
	tgtRows, err := e.fetch(ctx, tgt.Cluster, rcaSQL)
	if err != nil {
		return nil, err
	}

	merged := leftJoin(srcRows, tgtRows, "cellname", "target_key")

	categories := make([]string, 0, len(merged))
	for _, row := range merged {
		if v := row[rcaCol]; v != nil {
			categories = append(categories, stringOf(v))
		}
	}
	colors, legend := buildColorMap(categories)

	for _, row := range merged {
		if color, ok := colors[stringOf(row[rcaCol])]; ok && row[rcaCol] != nil {
			row["rca_color"] = color
		} else {
			row["rca_color"] = nil
		}
	}

	features, bands := e.emitFeatures(merged)
	for _, f := range features {
		color := DefaultColor
		if v, ok := f.Properties[rcaCol]; ok && v != nil {
			if c, mapped := colors[stringOf(v)]; mapped {
				color = c
			}
		}
		f.Properties["color"] = color
	}
	e.logger.Info("feature collection ready", "mode", "rca",
		"features", len(features), "categories", len(legend), "rca_column", rcaCol)

	columns := append([]string(nil), sourceAliases...)
	columns = append(columns, "target_key", rcaCol, "rca_color")

	return &model.QueryResult{
		Type:          "FeatureCollection",
		Features:      features,
		Bands:         bands,
		SourceColumns: srcNames,
		TargetColumns: []string{rcaCol},
		RCAColumn:     &rcaCol,
		AvailableKPIs: []string{},
		Columns:       columns,
		Rows:          merged,
		RCAColors:     colors,
		RCALegend:     legend,
	}, nil
}

// pickRCAColumn chooses the categorical "issue/bucket" column: known names
// first, then any column containing "issue" or "analysis".
func pickRCAColumn(columns []string) (string, bool) {
	lower := make(map[string]string, len(columns))
	for _, c := range columns {
		if _, ok := lower[strings.ToLower(c)]; !ok {
			lower[strings.ToLower(c)] = c
		}
	}
	for _, want := range rcaPriority {
		if c, ok := lower[strings.ToLower(want)]; ok {
			return c, true
		}
	}
	for _, c := range columns {
		lc := strings.ToLower(c)
		if strings.Contains(lc, "issue") || strings.Contains(lc, "analysis") {
			return c, true
		}
	}
	return "", false
}

// pickJoinKey chooses the RCA join column: the configured value when it
// exists in the catalog, else the first column containing "element" or
// "cell", else the first column.
func pickJoinKey(columns []string, configured string) string {
	if configured != "" && schema.AllowIdentifier(columns, configured) {
		return configured
	}
	for _, c := range columns {
		lc := strings.ToLower(c)
		if strings.Contains(lc, "element") || strings.Contains(lc, "cell") {
			return c
		}
	}
	return columns[0]
}
