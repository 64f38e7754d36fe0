package cluster

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

type postgresDialect struct{}

func (postgresDialect) DriverName() string { return "pgx" }

func (postgresDialect) DSN(h HostConfig, database string) string {
	// Percent-encode userinfo so passwords with @ or # don't mis-split the
	// authority component.
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.PathEscape(h.User), url.PathEscape(h.Password), h.Host, h.Port, database)
}

func (postgresDialect) ListDatabases(ctx context.Context, db *sqlx.DB) ([]string, error) {
	var names []string
	err := db.SelectContext(ctx, &names,
		`SELECT datname FROM pg_database WHERE datistemplate = false ORDER BY datname`)
	if err != nil {
		return nil, fmt.Errorf("list postgres databases: %w", err)
	}
	return names, nil
}

func (postgresDialect) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (postgresDialect) ApplyLimit(query string, n int) string {
	return fmt.Sprintf("%s LIMIT %d", query, n)
}
