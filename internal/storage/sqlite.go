package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS blobs (
  bucket       TEXT    NOT NULL,
  key          TEXT    NOT NULL,
  body         BLOB    NOT NULL,
  content_type TEXT    NOT NULL DEFAULT '',
  updated_at   INTEGER NOT NULL,
  PRIMARY KEY (bucket, key)
);
CREATE TABLE IF NOT EXISTS pointers (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);`

// SQLiteStore persists buckets and pointer cells in a single SQLite file.
type SQLiteStore struct {
	sqlDB *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Bucket returns a BlobStore view scoped to one bucket name.
func (s *SQLiteStore) Bucket(name string) *SQLiteBucket {
	return &SQLiteBucket{store: s, name: name}
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM pointers WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get pointer %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO pointers (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set pointer %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) CompareAndSwap(ctx context.Context, key, prev, next string) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if prev == "" {
		res, err = s.sqlDB.ExecContext(ctx,
			`INSERT INTO pointers (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`, key, next)
	} else {
		res, err = s.sqlDB.ExecContext(ctx,
			`UPDATE pointers SET value = ? WHERE key = ? AND value = ?`, next, key, prev)
	}
	if err != nil {
		return false, fmt.Errorf("swap pointer %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swap pointer %s: %w", key, err)
	}
	return n == 1, nil
}

// SQLiteBucket is one named bucket inside a SQLiteStore.
type SQLiteBucket struct {
	store *SQLiteStore
	name  string
}

func (b *SQLiteBucket) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	if body == nil {
		body = []byte{}
	}
	_, err := b.store.sqlDB.ExecContext(ctx,
		`INSERT INTO blobs (bucket, key, body, content_type, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(bucket, key) DO UPDATE SET
		   body = excluded.body,
		   content_type = excluded.content_type,
		   updated_at = excluded.updated_at`,
		b.name, key, body, contentType, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", b.name, key, err)
	}
	return nil
}

func (b *SQLiteBucket) GetObject(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := b.store.sqlDB.QueryRowContext(ctx,
		`SELECT body FROM blobs WHERE bucket = ? AND key = ?`, b.name, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", b.name, key, err)
	}
	return body, nil
}

func (b *SQLiteBucket) Head(ctx context.Context, key string) (ObjectMeta, error) {
	var (
		size        int
		contentType string
		updatedAt   int64
	)
	err := b.store.sqlDB.QueryRowContext(ctx,
		`SELECT length(body), content_type, updated_at FROM blobs WHERE bucket = ? AND key = ?`,
		b.name, key).Scan(&size, &contentType, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ObjectMeta{}, ErrNotFound
	}
	if err != nil {
		return ObjectMeta{}, fmt.Errorf("head %s/%s: %w", b.name, key, err)
	}
	return ObjectMeta{
		Key:         key,
		Size:        size,
		ContentType: contentType,
		UpdatedAt:   time.UnixMilli(updatedAt).UTC(),
	}, nil
}

func (b *SQLiteBucket) DeleteObject(ctx context.Context, key string) error {
	_, err := b.store.sqlDB.ExecContext(ctx,
		`DELETE FROM blobs WHERE bucket = ? AND key = ?`, b.name, key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", b.name, key, err)
	}
	return nil
}

func (b *SQLiteBucket) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := b.store.sqlDB.QueryContext(ctx,
		`SELECT key FROM blobs WHERE bucket = ? AND substr(key, 1, length(?)) = ? ORDER BY key`,
		b.name, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", b.name, prefix, err)
	}
	defer rows.Close()
	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", b.name, prefix, err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
