// Package storage provides the content-addressed blob stores and the mutable
// pointer cell that the audit chain, the anchor blocks and the custody records
// persist into.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent.
var ErrNotFound = errors.New("storage: not found")

// ObjectMeta describes a stored blob without its body.
type ObjectMeta struct {
	Key         string
	Size        int
	ContentType string
	UpdatedAt   time.Time
}

// BlobStore is a flat key/value object bucket.
type BlobStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	Head(ctx context.Context, key string) (ObjectMeta, error)
	DeleteObject(ctx context.Context, key string) error
	// List returns the keys starting with prefix in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// PointerStore holds small mutable string cells such as the audit chain head.
//
// Set is an unconditional overwrite. CompareAndSwap writes next only when the
// cell still holds prev; prev == "" means the cell must be absent.
type PointerStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	CompareAndSwap(ctx context.Context, key, prev, next string) (bool, error)
}
