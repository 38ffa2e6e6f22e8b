package persist

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/PiperEve/BlueGhost/internal/clock"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - documents table only
// 1 - document_history keeps the previous body of each document
const currentSchemaVersion = 1

// SQLite stores documents in a single-file database.
type SQLite struct {
	db    *sql.DB
	clock clock.Clock
}

// OpenSQLite creates or opens the database at path, applying pragmas and
// migrations. Safe to call repeatedly on the same file. c stamps
// updated_at and replaced_at; nil means the system clock.
func OpenSQLite(path string, c clock.Clock) (*SQLite, error) {
	if c == nil {
		c = clock.System{}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// SQLite has one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db, clock: c}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return runMigrations(db)
}

func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 adds the history table used to recover from a bad write.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS document_history (
			name        TEXT NOT NULL,
			body        TEXT NOT NULL,
			replaced_at TEXT NOT NULL,
			PRIMARY KEY (name)
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// Load implements Backend.
func (s *SQLite) Load(ctx context.Context, name string) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return []byte(body), nil
}

// Save implements Backend. The previous body moves to document_history in
// the same transaction.
func (s *SQLite) Save(ctx context.Context, name string, data []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	defer tx.Rollback()

	now := s.clock.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO document_history (name, body, replaced_at)
		SELECT name, body, ? FROM documents WHERE name = ?
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, replaced_at = excluded.replaced_at
	`, now, name)
	if err != nil {
		return fmt.Errorf("save %s history: %w", name, err)
	}

	sum := sha256.Sum256(data)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (name, body, digest, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			body = excluded.body,
			digest = excluded.digest,
			updated_at = excluded.updated_at
	`, name, string(data), hex.EncodeToString(sum[:]), now)
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save %s: commit: %w", name, err)
	}
	return nil
}

// Previous returns the body replaced by the most recent Save of name.
func (s *SQLite) Previous(ctx context.Context, name string) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM document_history WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("load %s history: %w", name, err)
	}
	return []byte(body), nil
}

// UpdatedAt returns when name was last saved.
func (s *SQLite) UpdatedAt(ctx context.Context, name string) (time.Time, error) {
	var stamp string
	err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM documents WHERE name = ?`, name).Scan(&stamp)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNoDocument
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load %s: %w", name, err)
	}
	return time.Parse(time.RFC3339Nano, stamp)
}

// Close implements Backend.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// verifyPragma checks a pragma value. Used by tests.
func (s *SQLite) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
