package custody

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/yourorg/custodian/internal/storage"
)

const (
	todosPrefix        = "todos:"
	deletedTodosKey    = "system:deleted_todos"
	keptItemsKey       = "system:kept_items"
	deletedItemsKey    = "system:deleted_items"
	deletedProgressKey = "system:deleted_progress"
)

func todosKey(ownerID string) string {
	return todosPrefix + ownerID
}

// Store reads and writes the JSON collections kept in the data bucket. An
// absent collection reads as empty.
type Store struct {
	blobs storage.BlobStore
}

func NewStore(blobs storage.BlobStore) *Store {
	return &Store{blobs: blobs}
}

func loadList[T any](ctx context.Context, blobs storage.BlobStore, key string) ([]T, error) {
	raw, err := blobs.GetObject(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	list := []T{}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return list, nil
}

func saveList[T any](ctx context.Context, blobs storage.BlobStore, key string, list []T) error {
	if list == nil {
		list = []T{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := blobs.PutObject(ctx, key, raw, "application/json"); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *Store) Todos(ctx context.Context, ownerID string) ([]Todo, error) {
	return loadList[Todo](ctx, s.blobs, todosKey(ownerID))
}

func (s *Store) SaveTodos(ctx context.Context, ownerID string, todos []Todo) error {
	for i := range todos {
		todos[i].OwnerID = ""
	}
	return saveList(ctx, s.blobs, todosKey(ownerID), todos)
}

// Owners lists every owner that has a todo list.
func (s *Store) Owners(ctx context.Context) ([]string, error) {
	keys, err := s.blobs.List(ctx, todosPrefix)
	if err != nil {
		return nil, fmt.Errorf("list todo owners: %w", err)
	}
	owners := make([]string, 0, len(keys))
	for _, k := range keys {
		owners = append(owners, strings.TrimPrefix(k, todosPrefix))
	}
	return owners, nil
}

// AllTodos returns every owner's todos, newest first, with OwnerID set.
func (s *Store) AllTodos(ctx context.Context) ([]Todo, error) {
	owners, err := s.Owners(ctx)
	if err != nil {
		return nil, err
	}
	all := []Todo{}
	for _, owner := range owners {
		todos, err := s.Todos(ctx, owner)
		if err != nil {
			return nil, err
		}
		for _, t := range todos {
			t.OwnerID = owner
			all = append(all, t)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

func (s *Store) DeletedTodos(ctx context.Context) ([]DeletedTodo, error) {
	return loadList[DeletedTodo](ctx, s.blobs, deletedTodosKey)
}

func (s *Store) SaveDeletedTodos(ctx context.Context, todos []DeletedTodo) error {
	return saveList(ctx, s.blobs, deletedTodosKey, todos)
}

func (s *Store) KeptItems(ctx context.Context) ([]Item, error) {
	return loadList[Item](ctx, s.blobs, keptItemsKey)
}

func (s *Store) SaveKeptItems(ctx context.Context, items []Item) error {
	return saveList(ctx, s.blobs, keptItemsKey, items)
}

func (s *Store) DeletedItems(ctx context.Context) ([]DeletedItem, error) {
	return loadList[DeletedItem](ctx, s.blobs, deletedItemsKey)
}

func (s *Store) SaveDeletedItems(ctx context.Context, items []DeletedItem) error {
	return saveList(ctx, s.blobs, deletedItemsKey, items)
}

func (s *Store) DeletedProgress(ctx context.Context) ([]DeletedProgress, error) {
	return loadList[DeletedProgress](ctx, s.blobs, deletedProgressKey)
}

func (s *Store) SaveDeletedProgress(ctx context.Context, progress []DeletedProgress) error {
	return saveList(ctx, s.blobs, deletedProgressKey, progress)
}

// updateTodos applies fn to every stored todo (restricted to one owner when
// ownerID is set) and saves each owner list in which fn reported a change. It
// returns the number of todos changed.
func (s *Store) updateTodos(ctx context.Context, ownerID string, fn func(owner string, t *Todo) bool) (int, error) {
	owners := []string{ownerID}
	if ownerID == "" {
		var err error
		if owners, err = s.Owners(ctx); err != nil {
			return 0, err
		}
	}
	changed := 0
	for _, owner := range owners {
		todos, err := s.Todos(ctx, owner)
		if err != nil {
			return changed, err
		}
		dirty := false
		for i := range todos {
			if fn(owner, &todos[i]) {
				dirty = true
				changed++
			}
		}
		if dirty {
			if err := s.SaveTodos(ctx, owner, todos); err != nil {
				return changed, err
			}
		}
	}
	return changed, nil
}
