package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
)

func exerciseBlobStore(t *testing.T, s BlobStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.GetObject(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetObject(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := s.Head(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Head(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.PutObject(ctx, "attachments/a.bin", []byte("hello"), "application/octet-stream"); err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	body, err := s.GetObject(ctx, "attachments/a.bin")
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("GetObject() = %q, want hello", body)
	}
	meta, err := s.Head(ctx, "attachments/a.bin")
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if meta.Size != 5 || meta.ContentType != "application/octet-stream" {
		t.Errorf("Head() = %+v, want size 5 and octet-stream", meta)
	}

	if err := s.PutObject(ctx, "attachments/a.bin", []byte("bye"), "text/plain"); err != nil {
		t.Fatalf("PutObject(overwrite) error = %v", err)
	}
	body, _ = s.GetObject(ctx, "attachments/a.bin")
	if string(body) != "bye" {
		t.Errorf("GetObject() after overwrite = %q, want bye", body)
	}

	if err := s.DeleteObject(ctx, "attachments/a.bin"); err != nil {
		t.Fatalf("DeleteObject() error = %v", err)
	}
	if _, err := s.GetObject(ctx, "attachments/a.bin"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetObject() after delete error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteObject(ctx, "attachments/a.bin"); err != nil {
		t.Fatalf("DeleteObject(missing) error = %v, want nil", err)
	}

	for _, key := range []string{"todos:bob", "todos:alice", "system:kept_items"} {
		if err := s.PutObject(ctx, key, []byte("[]"), "application/json"); err != nil {
			t.Fatalf("PutObject(%s) error = %v", key, err)
		}
	}
	keys, err := s.List(ctx, "todos:")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 2 || keys[0] != "todos:alice" || keys[1] != "todos:bob" {
		t.Errorf("List(todos:) = %v, want [todos:alice todos:bob]", keys)
	}
	for _, key := range []string{"todos:bob", "todos:alice", "system:kept_items"} {
		_ = s.DeleteObject(ctx, key)
	}
}

func exercisePointerStore(t *testing.T, s PointerStore, key string) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(absent) error = %v, want ErrNotFound", err)
	}
	ok, err := s.CompareAndSwap(ctx, key, "", "h1")
	if err != nil || !ok {
		t.Fatalf("CompareAndSwap(absent -> h1) = %v, %v; want true", ok, err)
	}
	ok, err = s.CompareAndSwap(ctx, key, "", "h2")
	if err != nil || ok {
		t.Fatalf("CompareAndSwap(absent -> h2) on present key = %v, %v; want false", ok, err)
	}
	ok, err = s.CompareAndSwap(ctx, key, "stale", "h2")
	if err != nil || ok {
		t.Fatalf("CompareAndSwap(stale) = %v, %v; want false", ok, err)
	}
	ok, err = s.CompareAndSwap(ctx, key, "h1", "h2")
	if err != nil || !ok {
		t.Fatalf("CompareAndSwap(h1 -> h2) = %v, %v; want true", ok, err)
	}
	if err := s.Set(ctx, key, "h3"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "h3" {
		t.Errorf("Get() = %s, want h3", got)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseBlobStore(t, NewMemoryStore())
	exercisePointerStore(t, NewMemoryStore(), "LATEST_HASH")
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	body := []byte("abc")
	_ = s.PutObject(ctx, "k", body, "")
	body[0] = 'x'
	got, _ := s.GetObject(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("stored body aliased caller slice: %q", got)
	}
	got[1] = 'y'
	again, _ := s.GetObject(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("returned body aliased stored slice: %q", again)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "custodian.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer s.Close()

	exerciseBlobStore(t, s.Bucket("data"))
	exercisePointerStore(t, s, "LATEST_HASH")
}

func TestSQLiteBucketsAreIsolated(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "custodian.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.Bucket("blocks").PutObject(ctx, "k", []byte("block"), "application/json"); err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if _, err := s.Bucket("data").GetObject(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetObject() across buckets error = %v, want ErrNotFound", err)
	}
}

func TestOpenMemoryAndSQLite(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, Config{BlobBackend: "memory", PointerBackend: "memory"})
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if b.Data == b.Blocks {
		t.Error("data and blocks buckets must be distinct stores")
	}
	_ = b.Close()

	cfg := Config{
		BlobBackend:    "sqlite",
		PointerBackend: "sqlite",
		SQLitePath:     filepath.Join(t.TempDir(), "custodian.db"),
		DataBucket:     "data",
		AuditBucket:    "audit-logs",
		BlocksBucket:   "blocks",
	}
	b, err = Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	defer b.Close()
	exercisePointerStore(t, b.Pointers, "LATEST_HASH")
	exerciseBlobStore(t, b.Audit)

	if _, err := Open(ctx, Config{BlobBackend: "s3"}); err == nil {
		t.Error("Open() with unknown backend should fail")
	}
}

func TestRedisPointerStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	s, err := OpenRedis(ctx, &redis.Options{Addr: addr}, "custodian-test:")
	if err != nil {
		t.Fatalf("OpenRedis() error = %v", err)
	}
	defer s.Close()
	key := "head-" + t.Name()
	_ = s.client.Del(ctx, s.prefix+key).Err()
	defer s.client.Del(ctx, s.prefix+key)

	exercisePointerStore(t, s, key)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPostgres() error = %v", err)
	}
	defer s.Close()
	_, _ = s.pool.Exec(ctx, `DELETE FROM custody_pointers WHERE key = 'TEST_HEAD'`)
	_, _ = s.pool.Exec(ctx, `DELETE FROM custody_blobs WHERE bucket = 'test'`)

	exerciseBlobStore(t, s.Bucket("test"))
	exercisePointerStore(t, s, "TEST_HEAD")
}
