// Package state provides the durable single-file store backing the display
// registry and the small amount of key/value state that must survive
// restarts (notably the debug-exit flag).
package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gjbm2/screen-machine-sub001/internal/domain/entities/display"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/logging"
)

// ErrNotFound is returned when a display id is unknown.
var ErrNotFound = errors.New("display not found")

// KV is the injected key-value dependency used by components that need one
// durable flag without caring where it lives.
type KV interface {
	GetBool(key string) (bool, error)
	SetBool(key string, value bool) error
}

// Store wraps the SQLite database holding displays and key/value state.
type Store struct {
	db     *sql.DB
	logger *logging.ChanneledLogger
}

// Open opens (creating if needed) the state database at path.
func Open(path string, logger *logging.ChanneledLogger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open state db at %s: %w", path, err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if logger != nil {
		logger.State().Info("State store opened", "path", path)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS displays (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		params TEXT NOT NULL,
		created TEXT NOT NULL,
		changed TEXT
	);
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create state tables: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// Display registry
// =============================================================================

// CreateDisplay persists a new display record.
func (s *Store) CreateDisplay(rec *display.Record) error {
	params, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO displays (id, name, params, created) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Name, string(params), rec.Created.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert display %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateDisplayParams replaces a display's params snapshot wholesale.
func (s *Store) UpdateDisplayParams(id string, params display.Params) error {
	encoded, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode params: %w", err)
	}

	res, err := s.db.Exec(
		`UPDATE displays SET params = ?, changed = ? WHERE id = ?`,
		string(encoded), time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update display %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetDisplay loads one display record.
func (s *Store) GetDisplay(id string) (*display.Record, error) {
	row := s.db.QueryRow(`SELECT id, name, params, created, changed FROM displays WHERE id = ?`, id)
	return scanDisplay(row)
}

// ListDisplays loads the whole registry ordered by creation time.
func (s *Store) ListDisplays() ([]*display.Record, error) {
	rows, err := s.db.Query(`SELECT id, name, params, created, changed FROM displays ORDER BY created`)
	if err != nil {
		return nil, fmt.Errorf("failed to list displays: %w", err)
	}
	defer rows.Close()

	var records []*display.Record
	for rows.Next() {
		rec, err := scanDisplay(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteDisplay removes a display record.
func (s *Store) DeleteDisplay(id string) error {
	res, err := s.db.Exec(`DELETE FROM displays WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete display %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDisplay(row rowScanner) (*display.Record, error) {
	var rec display.Record
	var params, created string
	var changed sql.NullString

	if err := row.Scan(&rec.ID, &rec.Name, &params, &created, &changed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan display row: %w", err)
	}

	if err := json.Unmarshal([]byte(params), &rec.Params); err != nil {
		return nil, fmt.Errorf("failed to decode params for display %s: %w", rec.ID, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		rec.Created = t
	}
	if changed.Valid {
		if t, err := time.Parse(time.RFC3339Nano, changed.String); err == nil {
			rec.Changed = &t
		}
	}
	return &rec, nil
}

// =============================================================================
// Key/value state
// =============================================================================

// GetBool reads a boolean flag; a missing key reads as false.
func (s *Store) GetBool(key string) (bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read kv %s: %w", key, err)
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("corrupt kv value for %s: %w", key, err)
	}
	return b, nil
}

// SetBool durably writes a boolean flag.
func (s *Store) SetBool(key string, value bool) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, strconv.FormatBool(value),
	)
	if err != nil {
		return fmt.Errorf("failed to write kv %s: %w", key, err)
	}
	if s.logger != nil {
		s.logger.State().Debug("KV flag written", "key", key, "value", value)
	}
	return nil
}
