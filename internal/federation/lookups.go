package federation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/geolytics/geolytics/internal/model"
	"github.com/geolytics/geolytics/internal/schema"
)

// ColumnRange returns the numeric min/max of a column. The table argument
// may be a project name, which auto-maps to that project's target table;
// the column matches fuzzily against the catalog.
func (e *Engine) ColumnRange(ctx context.Context, table, column string) (*model.RangeResult, error) {
	rawTable := strings.ReplaceAll(strings.TrimSpace(table), `"`, "")
	preferredCluster := ""

	if mapped, db, ok, err := e.resolver.TargetFor(ctx, rawTable); err != nil {
		return nil, err
	} else if ok {
		e.logger.Info("mapped project to target table", "project", rawTable, "table", mapped, "cluster", db)
		rawTable, preferredCluster = mapped, db
	}

	t, err := e.locate(ctx, preferredCluster, rawTable)
	if err != nil {
		return nil, err
	}
	cols, err := e.prober.ListColumns(ctx, t)
	if err != nil {
		return nil, err
	}

	match, ok := schema.FuzzyMatch(schema.Names(cols), column)
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", schema.ErrColumnNotFound, column, rawTable)
	}

	q := t.Cluster.Dialect.QuoteIdentifier
	query := "SELECT MIN(" + q(match) + ") AS min_val, MAX(" + q(match) + ") AS max_val FROM " +
		t.Qualified() + " WHERE " + q(match) + " IS NOT NULL"

	row := struct {
		Min any `db:"min_val"`
		Max any `db:"max_val"`
	}{}
	if err := t.Cluster.DB.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("range of %s.%s: %w", rawTable, match, err)
	}

	minF, okMin := toFloat(row.Min)
	maxF, okMax := toFloat(row.Max)
	if !okMin || !okMax {
		return nil, fmt.Errorf("column %q is not numeric or has no data", match)
	}
	return &model.RangeResult{Min: &minF, Max: &maxF}, nil
}

// Bands returns the distinct (band, cellname) pairs of a project's source
// table. A table without detectable band or cell-name columns yields an
// empty list, not an error.
func (e *Engine) Bands(ctx context.Context, table string) ([]model.BandPair, error) {
	source := table
	if mapped, ok, err := e.resolver.SourceTableFor(ctx, table); err != nil {
		return nil, err
	} else if ok {
		source = mapped
	}

	t, err := e.prober.FindTable(ctx, source)
	if err != nil {
		return nil, err
	}
	cols, err := e.prober.ListColumns(ctx, t)
	if err != nil {
		return nil, err
	}
	names := schema.Names(cols)

	bandCol, okBand := schema.DetectRole(names, schema.RoleBand, "")
	cellCol, okCell := schema.DetectRole(names, schema.RoleCell, "")
	if !okBand || !okCell {
		e.logger.Warn("band or cell column missing", "table", source, "band", bandCol, "cell", cellCol)
		return []model.BandPair{}, nil
	}

	q := t.Cluster.Dialect.QuoteIdentifier
	query := t.Cluster.Dialect.ApplyLimit(
		"SELECT DISTINCT "+q(bandCol)+" AS "+q("band")+", "+q(cellCol)+" AS "+q("cellname")+
			" FROM "+t.Qualified()+
			" WHERE "+q(bandCol)+" IS NOT NULL AND "+q(cellCol)+" IS NOT NULL", bandPairCap)

	rows, err := e.fetch(ctx, t.Cluster, query)
	if err != nil {
		return nil, err
	}

	pairs := make([]model.BandPair, 0, len(rows))
	for _, row := range rows {
		b, c := stringOf(row["band"]), stringOf(row["cellname"])
		if b == "" || c == "" {
			continue
		}
		pairs = append(pairs, model.BandPair{Band: b, Cellname: c})
	}
	return pairs, nil
}

// DistinctValues returns up to 300 distinct non-empty values of a column,
// sorted case-insensitively. The table may be a label embedding a project
// name; it then maps to that project's source table.
func (e *Engine) DistinctValues(ctx context.Context, table, column string) ([]string, error) {
	t, err := e.prober.FindTable(ctx, table)
	if errors.Is(err, schema.ErrTableNotFound) {
		mapped, ok, mapErr := e.resolver.SourceTableBySubstring(ctx, table)
		if mapErr != nil {
			return nil, mapErr
		}
		if !ok {
			return nil, err
		}
		e.logger.Info("mapped label to source table", "label", table, "table", mapped)
		t, err = e.prober.FindTable(ctx, mapped)
	}
	if err != nil {
		return nil, err
	}

	cols, err := e.prober.ListColumns(ctx, t)
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(strings.TrimSpace(column))
	match := ""
	for _, c := range schema.Names(cols) {
		if strings.ToLower(strings.TrimSpace(c)) == want {
			match = c
			break
		}
	}
	if match == "" {
		return nil, fmt.Errorf("%w: %q in %s", schema.ErrColumnNotFound, column, table)
	}

	q := t.Cluster.Dialect.QuoteIdentifier
	query := t.Cluster.Dialect.ApplyLimit(
		"SELECT DISTINCT "+q(match)+" AS "+q("val")+" FROM "+t.Qualified()+
			" WHERE "+q(match)+" IS NOT NULL", distinctValCap)

	rows, err := e.fetch(ctx, t.Cluster, query)
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, len(rows))
	for _, row := range rows {
		if v := strings.TrimSpace(stringOf(row["val"])); v != "" {
			values = append(values, v)
		}
	}
	sort.Slice(values, func(i, j int) bool {
		return strings.ToLower(values[i]) < strings.ToLower(values[j])
	})
	return values, nil
}

// Columns returns the column names of a project's source table, accepting a
// raw table name when no configuration row exists.
func (e *Engine) Columns(ctx context.Context, projectName string) ([]string, error) {
	clean := strings.TrimSpace(strings.ReplaceAll(projectName, `"`, ""))

	source := clean
	if mapped, ok, err := e.resolver.SourceTableFor(ctx, clean); err != nil {
		return nil, err
	} else if ok {
		e.logger.Info("mapped project to source table", "project", clean, "table", mapped)
		source = mapped
	}

	t, err := e.prober.FindTable(ctx, source)
	if err != nil {
		return nil, err
	}
	cols, err := e.prober.ListColumns(ctx, t)
	if err != nil {
		return nil, err
	}
	return schema.Names(cols), nil
}
