package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/yourorg/custodian/internal/storage"
)

// UserStore persists the share-link user map as one JSON blob.
type UserStore struct {
	mu    sync.Mutex
	blobs storage.BlobStore
}

func NewUserStore(blobs storage.BlobStore) *UserStore {
	return &UserStore{blobs: blobs}
}

// Load returns the users keyed by token. An absent blob is an empty map.
func (s *UserStore) Load(ctx context.Context) (map[string]User, error) {
	raw, err := s.blobs.GetObject(ctx, UsersKey)
	if errors.Is(err, storage.ErrNotFound) {
		return map[string]User{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	users := map[string]User{}
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	for token, u := range users {
		if u.Token == "" {
			u.Token = token
			users[token] = u
		}
	}
	return users, nil
}

// Lookup finds the user holding token.
func (s *UserStore) Lookup(ctx context.Context, token string) (User, bool, error) {
	users, err := s.Load(ctx)
	if err != nil {
		return User{}, false, err
	}
	u, ok := users[token]
	return u, ok, nil
}

// Update applies fn to the user map under the store lock and saves the result.
func (s *UserStore) Update(ctx context.Context, fn func(users map[string]User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if err := fn(users); err != nil {
		return err
	}
	raw, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	if err := s.blobs.PutObject(ctx, UsersKey, raw, "application/json"); err != nil {
		return fmt.Errorf("save users: %w", err)
	}
	return nil
}
