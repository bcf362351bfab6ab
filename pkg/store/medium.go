package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"dreamer/pkg/utils"
)

// Medium is a durable slot holding one blob. Load returns nil, nil when
// nothing has been saved yet.
type Medium interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

// File keeps the snapshot in a JSON file, replaced atomically on save.
type File struct {
	Path string
}

func (f File) Load() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func (f File) Save(data []byte) error {
	return utils.WriteFileAtomic(f.Path, data)
}

// Memory is a process-local medium, mostly for tests and dry runs.
type Memory struct {
	mu   sync.Mutex
	data []byte
}

func (m *Memory) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return append([]byte(nil), m.data...), nil
}

func (m *Memory) Save(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

const snapshotKey = "dreams"

// SQLite keeps the snapshot in a one-row key/value table.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load() ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(context.Background(), `SELECT value FROM kv WHERE key = ?`, snapshotKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return data, err
}

func (s *SQLite) Save(data []byte) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		snapshotKey, data)
	return err
}

func (s *SQLite) Close() error { return s.db.Close() }
