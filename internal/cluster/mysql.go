package cluster

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

type mysqlDialect struct{}

func (mysqlDialect) DriverName() string { return "mysql" }

func (mysqlDialect) DSN(h HostConfig, database string) string {
	// go-sql-driver requires the tcp() wrapper; without it a password
	// containing "@" makes ParseDSN treat the fragment as a network name.
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", h.User, h.Password, h.Host, h.Port, database)
}

func (mysqlDialect) ListDatabases(ctx context.Context, db *sqlx.DB) ([]string, error) {
	var names []string
	err := db.SelectContext(ctx, &names,
		`SELECT schema_name FROM information_schema.schemata
		 WHERE schema_name NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
		 ORDER BY schema_name`)
	if err != nil {
		return nil, fmt.Errorf("list mysql databases: %w", err)
	}
	return names, nil
}

func (mysqlDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDialect) ApplyLimit(query string, n int) string {
	return fmt.Sprintf("%s LIMIT %d", query, n)
}
