package storage

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps blobs and pointer cells in process memory. It is used for
// local runs and tests; every instance is an independent bucket.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string][]byte
	meta     map[string]ObjectMeta
	pointers map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:     map[string][]byte{},
		meta:     map[string]ObjectMeta{},
		pointers: map[string]string{},
	}
}

func (s *MemoryStore) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = bytes.Clone(body)
	s.meta[key] = ObjectMeta{
		Key:         key,
		Size:        len(body),
		ContentType: contentType,
		UpdatedAt:   time.Now().UTC(),
	}
	return nil
}

func (s *MemoryStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(body), nil
}

func (s *MemoryStore) Head(_ context.Context, key string) (ObjectMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.meta[key]
	if !ok {
		return ObjectMeta{}, ErrNotFound
	}
	return meta, nil
}

func (s *MemoryStore) DeleteObject(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	delete(s.meta, key)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0)
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Keys lists the stored blob keys. Order is unspecified.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.pointers[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointers[key] = value
	return nil
}

func (s *MemoryStore) CompareAndSwap(ctx context.Context, key, prev, next string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.pointers[key]
	if prev == "" && ok {
		return false, nil
	}
	if prev != "" && (!ok || cur != prev) {
		return false, nil
	}
	s.pointers[key] = next
	return true, nil
}
