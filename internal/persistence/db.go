package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps saves in a SQLite key-value table.
type SQLiteStore struct {
	conn *sqlx.DB
}

// OpenSQLite opens or creates a SQLite database at the given path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &SQLiteStore{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *SQLiteStore) Close() error {
	return db.conn.Close()
}

func (db *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS saves (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	_, err := db.conn.Exec(schema)
	return err
}

func (db *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := db.conn.GetContext(ctx, &value, "SELECT value FROM saves WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return value, err
}

func (db *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO saves (key, value, updated_at) VALUES (?, ?, ?)",
		key, value, time.Now().UnixMilli(),
	)
	return err
}

func (db *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM saves WHERE key = ?", key)
	return err
}

// List returns every stored save, most recent first.
func (db *SQLiteStore) List(ctx context.Context) ([]SaveInfo, error) {
	out := []SaveInfo{}
	err := db.conn.SelectContext(ctx, &out,
		"SELECT key, updated_at, length(value) AS size FROM saves ORDER BY updated_at DESC, key",
	)
	return out, err
}
