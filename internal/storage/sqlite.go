package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hanamilabs/pretender-bot/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the relay mapping in a single relays table.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, path: path}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Location() string {
	return s.path
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS relays (
			owner_id INTEGER PRIMARY KEY,
			dest_id INTEGER NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("run migration query: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (domain.Mapping, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT owner_id, dest_id FROM relays;`)
	if err != nil {
		return nil, &domain.StorageError{Op: "load", Path: s.path, Err: err}
	}
	defer rows.Close()

	out := domain.Mapping{}
	for rows.Next() {
		var ownerID, destID int64
		if err := rows.Scan(&ownerID, &destID); err != nil {
			return nil, &domain.StorageError{Op: "load", Path: s.path, Err: err}
		}
		out[ownerID] = destID
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Op: "load", Path: s.path, Err: err}
	}
	return out, nil
}

// Save makes the table match mapping exactly, inside one transaction.
func (s *SQLiteStore) Save(ctx context.Context, mapping domain.Mapping) error {
	if err := s.save(ctx, mapping); err != nil {
		return &domain.StorageError{Op: "save", Path: s.path, Err: err}
	}
	return nil
}

func (s *SQLiteStore) save(ctx context.Context, mapping domain.Mapping) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	existing, err := ownerIDs(ctx, tx)
	if err != nil {
		return err
	}
	for _, ownerID := range existing {
		if _, ok := mapping[ownerID]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM relays WHERE owner_id = ?;`, ownerID); err != nil {
			return err
		}
	}
	for ownerID, destID := range mapping {
		if err := upsertRelay(ctx, tx, ownerID, destID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpsertRelay(ctx context.Context, ownerID int64, destID int64) error {
	return upsertRelay(ctx, s.db, ownerID, destID)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertRelay(ctx context.Context, db execer, ownerID int64, destID int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO relays (owner_id, dest_id, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(owner_id)
		DO UPDATE SET
			dest_id = excluded.dest_id,
			updated_at = datetime('now')
		WHERE relays.dest_id != excluded.dest_id;
	`, ownerID, destID)
	return err
}

func ownerIDs(ctx context.Context, tx *sql.Tx) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT owner_id FROM relays;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]int64, 0)
	for rows.Next() {
		var ownerID int64
		if err := rows.Scan(&ownerID); err != nil {
			return nil, err
		}
		out = append(out, ownerID)
	}
	return out, rows.Err()
}
