package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bad33ndj3/repack-catalog/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS datasets (
	name         TEXT PRIMARY KEY,
	version      INTEGER NOT NULL,
	fingerprint  TEXT NOT NULL,
	ingested_at  TIMESTAMP NOT NULL,
	records      INTEGER NOT NULL,
	payload      BLOB NOT NULL
);`

// SQLiteCache implements Cache on a single SQLite database file.
type SQLiteCache struct {
	memory
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteCache{memory: newMemory(), db: db}, nil
}

// Close releases the database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

// LoadFromDisk reads the dataset saved under name.
func (c *SQLiteCache) LoadFromDisk(name string) (*domain.Dataset, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var version int
	var payload []byte
	err := c.db.QueryRowContext(ctx, `
		SELECT version, payload
		FROM datasets
		WHERE name = ?
	`, name).Scan(&version, &payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if version != domain.CacheVersion {
		return nil, ErrVersionMismatch
	}
	return decode(payload)
}

// SaveToDisk upserts the dataset under name.
func (c *SQLiteCache) SaveToDisk(name string, ds *domain.Dataset) error {
	payload, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO datasets (name, version, fingerprint, ingested_at, records, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			version = excluded.version,
			fingerprint = excluded.fingerprint,
			ingested_at = excluded.ingested_at,
			records = excluded.records,
			payload = excluded.payload
	`, name, ds.Version, ds.Fingerprint, ds.IngestedAt.UTC(), len(ds.Records), payload)
	if err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}
	return nil
}
