// Package settings persists the dashboard collection and installation
// settings in a SQLite database.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kipmarine/kipdash/internal/dashboard"
)

// Settings keys stored in the kv table.
const (
	keyInstanceID = "instance_id"
	keyLoginName  = "connection.login_name"
	keyServerURL  = "connection.url"
)

// ConnectionConfig is the Signal K connection identity.
type ConnectionConfig struct {
	LoginName string `json:"loginName" yaml:"login_name"`
	URL       string `json:"url" yaml:"url"`
}

// Store is the SQLite settings store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the settings database at path and runs
// migrations. Use ":memory:" for an in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := ":memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create settings directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing connection. Migrations are not run.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path given to Open.
func (s *Store) Path() string {
	return s.path
}

// --- Dashboards ---

// DashboardConfig loads the persisted collection in display order. An
// empty database yields an empty slice.
func (s *Store) DashboardConfig(ctx context.Context) ([]dashboard.Dashboard, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, icon, configuration FROM dashboards ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dashboards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []dashboard.Dashboard
	for rows.Next() {
		var (
			d   dashboard.Dashboard
			cfg string
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Icon, &cfg); err != nil {
			return nil, fmt.Errorf("failed to scan dashboard: %w", err)
		}
		if err := json.Unmarshal([]byte(cfg), &d.Configuration); err != nil {
			return nil, fmt.Errorf("failed to decode configuration of dashboard %s: %w", d.ID, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dashboards: %w", err)
	}
	return out, nil
}

// SaveDashboards replaces the persisted collection in one transaction.
func (s *Store) SaveDashboards(ctx context.Context, ds []dashboard.Dashboard) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM dashboards`); err != nil {
		return fmt.Errorf("failed to clear dashboards: %w", err)
	}
	for i, d := range ds {
		cfg, mErr := json.Marshal(d.Configuration)
		if mErr != nil {
			err = fmt.Errorf("failed to encode configuration of dashboard %s: %w", d.ID, mErr)
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO dashboards (position, id, name, icon, configuration) VALUES (?, ?, ?, ?, ?)`,
			i, d.ID, d.Name, d.Icon, string(cfg),
		); err != nil {
			return fmt.Errorf("failed to insert dashboard %s: %w", d.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dashboards: %w", err)
	}
	return nil
}

// --- Key/value settings ---

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// InstanceID returns the stable installation identifier, generating and
// storing it on first use.
func (s *Store) InstanceID(ctx context.Context) (string, error) {
	if id, ok, err := s.get(ctx, keyInstanceID); err != nil || ok {
		return id, err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO kv (key, value) VALUES (?, ?)`, keyInstanceID, uuid.New().String(),
	); err != nil {
		return "", fmt.Errorf("failed to store instance id: %w", err)
	}
	id, _, err := s.get(ctx, keyInstanceID)
	return id, err
}

// ConnectionConfig returns the last saved connection identity.
func (s *Store) ConnectionConfig(ctx context.Context) (ConnectionConfig, error) {
	var cc ConnectionConfig
	login, _, err := s.get(ctx, keyLoginName)
	if err != nil {
		return cc, err
	}
	url, _, err := s.get(ctx, keyServerURL)
	if err != nil {
		return cc, err
	}
	cc.LoginName, cc.URL = login, url
	return cc, nil
}

// SaveConnectionConfig stores the connection identity.
func (s *Store) SaveConnectionConfig(ctx context.Context, cc ConnectionConfig) error {
	if err := s.set(ctx, keyLoginName, cc.LoginName); err != nil {
		return err
	}
	return s.set(ctx, keyServerURL, cc.URL)
}
