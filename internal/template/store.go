// Package template persists named view templates (saved project/KPI/filter
// selections) in an embedded SQLite store.
package template

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a named template does not exist.
var ErrNotFound = errors.New("template not found")

// Template is one saved view configuration. Config is opaque JSON owned by
// the UI except for target_joins, which must be a list when present.
type Template struct {
	Name      string          `json:"name" db:"name"`
	Config    json.RawMessage `json:"config" db:"config"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Store manages template persistence. Pass empty string for in-memory.
type Store struct {
	db *sqlx.DB
}

// NewStore opens (or creates) the template database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "templates.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open template database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate template database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS templates (
		name TEXT PRIMARY KEY,
		config TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save upserts a template by name.
func (s *Store) Save(ctx context.Context, t Template) error {
	if t.Name == "" {
		return errors.New("template name is required")
	}
	if len(t.Config) == 0 {
		return errors.New("template config is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO templates (name, config, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`,
		t.Name, string(t.Config), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save template %q: %w", t.Name, err)
	}
	return nil
}

// Get returns one template by name.
func (s *Store) Get(ctx context.Context, name string) (*Template, error) {
	row := struct {
		Name      string    `db:"name"`
		Config    string    `db:"config"`
		UpdatedAt time.Time `db:"updated_at"`
	}{}
	err := s.db.GetContext(ctx, &row, `SELECT name, config, updated_at FROM templates WHERE name = ?`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("get template %q: %w", name, err)
	}
	return &Template{Name: row.Name, Config: json.RawMessage(row.Config), UpdatedAt: row.UpdatedAt}, nil
}

// List returns all template names, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, `SELECT name FROM templates ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return names, nil
}
