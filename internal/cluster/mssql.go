package cluster

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"
)

type mssqlDialect struct{}

func (mssqlDialect) DriverName() string { return "sqlserver" }

func (mssqlDialect) DSN(h HostConfig, database string) string {
	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
		url.PathEscape(h.User), url.PathEscape(h.Password), h.Host, h.Port, url.QueryEscape(database))
}

func (mssqlDialect) ListDatabases(ctx context.Context, db *sqlx.DB) ([]string, error) {
	var names []string
	// database_id <= 4 covers master, tempdb, model, msdb.
	err := db.SelectContext(ctx, &names,
		`SELECT name FROM sys.databases WHERE database_id > 4 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list mssql databases: %w", err)
	}
	return names, nil
}

func (mssqlDialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (mssqlDialect) ApplyLimit(query string, n int) string {
	// SQL Server has no LIMIT clause; rewrite the outer SELECT as SELECT TOP n.
	// TOP must follow DISTINCT when both are present.
	rest, ok := strings.CutPrefix(strings.TrimLeft(query, " \n\t"), "SELECT ")
	if !ok {
		return query
	}
	if tail, distinct := strings.CutPrefix(rest, "DISTINCT "); distinct {
		return fmt.Sprintf("SELECT DISTINCT TOP %d %s", n, tail)
	}
	return fmt.Sprintf("SELECT TOP %d %s", n, rest)
}
