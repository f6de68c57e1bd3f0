package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS custody_blobs (
  bucket       TEXT        NOT NULL,
  key          TEXT        NOT NULL,
  body         BYTEA       NOT NULL,
  content_type TEXT        NOT NULL DEFAULT '',
  updated_at   TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (bucket, key)
);
CREATE TABLE IF NOT EXISTS custody_pointers (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);`

// PostgresStore persists buckets and pointer cells in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Bucket returns a BlobStore view scoped to one bucket name.
func (s *PostgresStore) Bucket(name string) *PostgresBucket {
	return &PostgresBucket{store: s, name: name}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM custody_pointers WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get pointer %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO custody_pointers (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		return fmt.Errorf("set pointer %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, key, prev, next string) (bool, error) {
	var sql string
	args := []any{key, next}
	if prev == "" {
		sql = `INSERT INTO custody_pointers (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`
	} else {
		sql = `UPDATE custody_pointers SET value = $2 WHERE key = $1 AND value = $3`
		args = append(args, prev)
	}
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("swap pointer %s: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

// PostgresBucket is one named bucket inside a PostgresStore.
type PostgresBucket struct {
	store *PostgresStore
	name  string
}

func (b *PostgresBucket) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	if body == nil {
		body = []byte{}
	}
	_, err := b.store.pool.Exec(ctx,
		`INSERT INTO custody_blobs (bucket, key, body, content_type, updated_at) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (bucket, key) DO UPDATE SET
		   body = EXCLUDED.body,
		   content_type = EXCLUDED.content_type,
		   updated_at = EXCLUDED.updated_at`,
		b.name, key, body, contentType, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", b.name, key, err)
	}
	return nil
}

func (b *PostgresBucket) GetObject(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := b.store.pool.QueryRow(ctx,
		`SELECT body FROM custody_blobs WHERE bucket = $1 AND key = $2`, b.name, key).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", b.name, key, err)
	}
	return body, nil
}

func (b *PostgresBucket) Head(ctx context.Context, key string) (ObjectMeta, error) {
	var (
		size        int32
		contentType string
		updatedAt   time.Time
	)
	err := b.store.pool.QueryRow(ctx,
		`SELECT length(body), content_type, updated_at FROM custody_blobs WHERE bucket = $1 AND key = $2`,
		b.name, key).Scan(&size, &contentType, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ObjectMeta{}, ErrNotFound
	}
	if err != nil {
		return ObjectMeta{}, fmt.Errorf("head %s/%s: %w", b.name, key, err)
	}
	return ObjectMeta{Key: key, Size: int(size), ContentType: contentType, UpdatedAt: updatedAt.UTC()}, nil
}

func (b *PostgresBucket) DeleteObject(ctx context.Context, key string) error {
	_, err := b.store.pool.Exec(ctx,
		`DELETE FROM custody_blobs WHERE bucket = $1 AND key = $2`, b.name, key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", b.name, key, err)
	}
	return nil
}

func (b *PostgresBucket) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := b.store.pool.Query(ctx,
		`SELECT key FROM custody_blobs WHERE bucket = $1 AND left(key, length($2)) = $2 ORDER BY key`,
		b.name, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", b.name, prefix, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", b.name, prefix, err)
	}
	return keys, nil
}
