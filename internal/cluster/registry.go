// Package cluster maintains a live registry of database clusters discovered
// by scanning a fixed set of hosts, one pooled connection per database.
package cluster

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	poolMaxOpen  = 15 // base pool of 5 plus bounded overflow of 10
	poolMaxIdle  = 5
	poolLifetime = 30 * time.Minute
	scanTimeout  = 30 * time.Second
)

// Cluster is one discovered database: a named, pooled connection plus the
// dialect needed to build queries against it.
type Cluster struct {
	Name    string
	DB      *sqlx.DB
	Dialect Dialect
}

// Registry maps cluster name to Cluster. Lookups are O(1); absence of a name
// is a normal outcome, not every table lives everywhere.
type Registry struct {
	mu        sync.RWMutex
	clusters  map[string]*Cluster
	hosts     []HostConfig
	primaries []string
	logger    *slog.Logger

	// refreshMu is the single-flight guard: a refresh already in progress
	// suppresses a concurrent trigger rather than queuing one.
	refreshMu sync.Mutex
}

// NewRegistry creates an empty registry for the given hosts. primaries is the
// ordered list of cluster names scanned first during table resolution, the
// explicit tie-break for tables hosted on more than one cluster.
func NewRegistry(hosts []HostConfig, primaries []string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		clusters:  make(map[string]*Cluster),
		hosts:     hosts,
		primaries: primaries,
		logger:    logger,
	}
}

// Refresh re-scans every configured host, lists its non-template databases,
// opens a pool per database, and merges the fresh entries over the existing
// map. Databases that vanished from a host are not evicted; their stale
// pools persist until the process restarts. A host that cannot be reached is
// logged and skipped, so entries already loaded from other hosts stay
// available. A refresh in flight suppresses this call. Superseded pools are
// not force-closed: in-flight requests may still hold them, and idle
// connections age out through the pool lifetime.
func (r *Registry) Refresh(ctx context.Context) {
	if !r.refreshMu.TryLock() {
		r.logger.Debug("cluster refresh already in progress, trigger dropped")
		return
	}
	defer r.refreshMu.Unlock()

	fresh := make(map[string]*Cluster)
	loaded := 0

	for _, host := range r.hosts {
		dialect, err := DialectFor(host.Driver)
		if err != nil {
			r.logger.Error("skipping host", "host", host.Host, "error", err)
			continue
		}

		names, err := r.scanHost(ctx, host, dialect)
		if err != nil {
			r.logger.Warn("host unreachable, skipping", "host", host.Host, "port", host.Port, "error", err)
			continue
		}

		for _, name := range names {
			db, err := sqlx.Open(dialect.DriverName(), dialect.DSN(host, name))
			if err != nil {
				r.logger.Warn("skipping database", "database", name, "host", host.Host, "error", err)
				continue
			}
			db.SetMaxOpenConns(poolMaxOpen)
			db.SetMaxIdleConns(poolMaxIdle)
			db.SetConnMaxLifetime(poolLifetime)
			fresh[name] = &Cluster{Name: name, DB: db, Dialect: dialect}
			loaded++
		}
		r.logger.Info("scanned host", "host", host.Host, "port", host.Port, "databases", len(names))
	}

	r.mu.Lock()
	for name, c := range fresh {
		r.clusters[name] = c
	}
	r.mu.Unlock()

	r.logger.Info("cluster refresh complete", "loaded", loaded, "total", r.Len())
}

func (r *Registry) scanHost(ctx context.Context, host HostConfig, dialect Dialect) ([]string, error) {
	admin := host.AdminDB
	if admin == "" {
		switch host.Driver {
		case "mysql":
			admin = "information_schema"
		case "mssql":
			admin = "master"
		default:
			admin = "postgres"
		}
	}

	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	db, err := sqlx.Open(dialect.DriverName(), dialect.DSN(host, admin))
	if err != nil {
		return nil, err
	}
	defer db.Close()

	// Validate before use: a stale or refused endpoint fails here, not on
	// the first federation request.
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return dialect.ListDatabases(ctx, db)
}

// Get returns the cluster for a database name.
func (r *Registry) Get(name string) (*Cluster, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clusters[name]
	return c, ok
}

// Names returns all registered cluster names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clusters))
	for name := range r.clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered clusters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clusters)
}

// Ordered returns clusters in deterministic scan order: configured primaries
// first (in their configured order), then the remainder sorted by name.
// Table resolution walks this order, so ties between clusters hosting a
// same-named table always break the same way.
func (r *Registry) Ordered() []*Cluster {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Cluster, 0, len(r.clusters))
	seen := make(map[string]bool, len(r.primaries))
	for _, name := range r.primaries {
		if c, ok := r.clusters[name]; ok {
			out = append(out, c)
			seen[name] = true
		}
	}

	rest := make([]string, 0, len(r.clusters))
	for name := range r.clusters {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, r.clusters[name])
	}
	return out
}

// Put registers a cluster directly, replacing any previous entry with the
// same name. Used by tests and by callers that manage their own pools.
func (r *Registry) Put(c *Cluster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clusters[c.Name] = c
}

// Close closes every registered pool.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, c := range r.clusters {
		c.DB.Close()
		delete(r.clusters, name)
	}
}
