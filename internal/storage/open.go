package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Backend bundles the three buckets and the pointer store the service runs on.
type Backend struct {
	Data     BlobStore
	Audit    BlobStore
	Blocks   BlobStore
	Pointers PointerStore

	closers []func() error
}

// Close releases every underlying connection.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewMemoryBackend returns a Backend with independent in-memory buckets.
func NewMemoryBackend() *Backend {
	return &Backend{
		Data:     NewMemoryStore(),
		Audit:    NewMemoryStore(),
		Blocks:   NewMemoryStore(),
		Pointers: NewMemoryStore(),
	}
}

// Open builds the Backend described by cfg.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	b := &Backend{}
	var (
		sqliteStore   *SQLiteStore
		postgresStore *PostgresStore
	)
	sqliteHandle := func() (*SQLiteStore, error) {
		if sqliteStore != nil {
			return sqliteStore, nil
		}
		s, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		sqliteStore = s
		b.closers = append(b.closers, s.Close)
		return s, nil
	}
	postgresHandle := func() (*PostgresStore, error) {
		if postgresStore != nil {
			return postgresStore, nil
		}
		s, err := OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		postgresStore = s
		b.closers = append(b.closers, s.Close)
		return s, nil
	}

	switch cfg.BlobBackend {
	case "", "memory":
		b.Data, b.Audit, b.Blocks = NewMemoryStore(), NewMemoryStore(), NewMemoryStore()
	case "sqlite":
		s, err := sqliteHandle()
		if err != nil {
			return nil, err
		}
		b.Data, b.Audit, b.Blocks = s.Bucket(cfg.DataBucket), s.Bucket(cfg.AuditBucket), s.Bucket(cfg.BlocksBucket)
	case "postgres":
		s, err := postgresHandle()
		if err != nil {
			return nil, err
		}
		b.Data, b.Audit, b.Blocks = s.Bucket(cfg.DataBucket), s.Bucket(cfg.AuditBucket), s.Bucket(cfg.BlocksBucket)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}

	switch cfg.PointerBackend {
	case "", "memory":
		b.Pointers = NewMemoryStore()
	case "sqlite":
		s, err := sqliteHandle()
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Pointers = s
	case "postgres":
		s, err := postgresHandle()
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Pointers = s
	case "redis":
		s, err := OpenRedis(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.RedisPrefix)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Pointers = s
		b.closers = append(b.closers, s.Close)
	default:
		_ = b.Close()
		return nil, fmt.Errorf("unknown pointer backend %q", cfg.PointerBackend)
	}
	return b, nil
}
