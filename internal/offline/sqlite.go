package offline

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// migration is a single schema change applied after the base schema.
type migration struct {
	Version int
	Name    string
	Up      string
}

// migrations are applied in order and recorded in schema_migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "Add generation index on cache_entries",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_cache_entries_generation ON cache_entries(generation);
		`,
	},
}

type sqliteStorage struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a cache database at path.
func OpenSQLite(path string) (Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to cache database: %w", err)
	}

	s := &sqliteStorage{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *sqliteStorage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		generation TEXT NOT NULL,
		url TEXT NOT NULL,
		status INTEGER NOT NULL,
		headers TEXT NOT NULL,
		body BLOB NOT NULL,
		stored_at DATETIME NOT NULL,
		PRIMARY KEY (generation, url)
	);

	CREATE TABLE IF NOT EXISTS cache_generations (
		name TEXT PRIMARY KEY,
		activated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return nil
}

func (s *sqliteStorage) migrate() error {
	var current int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			m.Version, m.Name, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStorage) Put(generation string, entries map[string]Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin cache write: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cache_entries WHERE generation = ?`, generation); err != nil {
		return fmt.Errorf("failed to reset generation %s: %w", generation, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO cache_entries (generation, url, status, headers, body, stored_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for url, e := range entries {
		headers, err := json.Marshal(e.Header)
		if err != nil {
			return fmt.Errorf("failed to marshal headers for %s: %w", url, err)
		}
		body := e.Body
		if body == nil {
			body = []byte{}
		}
		if _, err := stmt.Exec(generation, url, e.Status, string(headers), body,
			e.StoredAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("failed to store %s: %w", url, err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStorage) Get(generation, url string) (Entry, bool, error) {
	var (
		e        Entry
		headers  string
		storedAt string
	)
	err := s.db.QueryRow(
		`SELECT status, headers, body, stored_at FROM cache_entries WHERE generation = ? AND url = ?`,
		generation, url,
	).Scan(&e.Status, &headers, &e.Body, &storedAt)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	e.Header = make(http.Header)
	if err := json.Unmarshal([]byte(headers), &e.Header); err != nil {
		return Entry{}, false, fmt.Errorf("failed to parse cached headers: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, storedAt); err == nil {
		e.StoredAt = t
	}
	return e, true, nil
}

func (s *sqliteStorage) Activate(generation string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin activation: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cache_entries WHERE generation != ?`, generation); err != nil {
		return fmt.Errorf("failed to drop old generations: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM cache_generations WHERE name != ?`, generation); err != nil {
		return fmt.Errorf("failed to drop old generations: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO cache_generations (name, activated_at) VALUES (?, ?)`,
		generation, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("failed to activate %s: %w", generation, err)
	}
	return tx.Commit()
}

func (s *sqliteStorage) Active() (string, bool, error) {
	var name string
	err := s.db.QueryRow(`SELECT name FROM cache_generations ORDER BY activated_at DESC LIMIT 1`).Scan(&name)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read active generation: %w", err)
	}
	return name, true, nil
}

func (s *sqliteStorage) Keys(generation string) ([]string, error) {
	rows, err := s.db.Query(`SELECT url FROM cache_entries WHERE generation = ? ORDER BY url`, generation)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *sqliteStorage) Close() error {
	return s.db.Close()
}
