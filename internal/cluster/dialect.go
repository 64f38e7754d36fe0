package cluster

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// HostConfig describes one database host to scan during discovery.
type HostConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"` // postgres | mysql | mssql
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	// AdminDB is the maintenance database used for the discovery scan
	// (defaults per driver: postgres, mysql's information_schema, master).
	AdminDB string `yaml:"admin_db" mapstructure:"admin_db"`
}

// Dialect abstracts the driver-specific pieces of cluster discovery and
// identifier handling. All query execution goes through sqlx with `?`
// placeholders and Rebind, so dialects only cover what sqlx cannot.
type Dialect interface {
	// DriverName is the database/sql driver to open connections with.
	DriverName() string
	// DSN builds a connection string for one database on the host.
	DSN(h HostConfig, database string) string
	// ListDatabases enumerates the non-template, non-system databases
	// reachable on the host's admin connection.
	ListDatabases(ctx context.Context, db *sqlx.DB) ([]string, error)
	// QuoteIdentifier quotes a schema/table/column name for interpolation.
	QuoteIdentifier(name string) string
	// ApplyLimit bounds a SELECT to at most n rows.
	ApplyLimit(query string, n int) string
}

// DialectFor returns the dialect for a configured driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "":
		return postgresDialect{}, nil
	case "mysql":
		return mysqlDialect{}, nil
	case "mssql":
		return mssqlDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s (available: postgres, mysql, mssql)", driver)
	}
}
