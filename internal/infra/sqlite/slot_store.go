package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"concurso-study-service/internal/domain"
	_ "modernc.org/sqlite"
)

// SlotStore keeps performance slots in a local SQLite file.
type SlotStore struct {
	db *sql.DB
}

// Open creates the database file and its directory when missing.
func Open(dbPath string) (*SlotStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL keeps readers from blocking the single writer.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SlotStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SlotStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS performance_slots (
		key TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SlotStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM performance_slots WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan slot row: %w", err)
	}
	return []byte(data), nil
}

func (s *SlotStore) Put(ctx context.Context, key string, value []byte) error {
	query := `
	INSERT INTO performance_slots (key, data, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		data = excluded.data,
		updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, key, string(value), time.Now().Unix()); err != nil {
		return fmt.Errorf("upsert slot: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SlotStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SlotStore) Close() error {
	return s.db.Close()
}
