package custody

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/yourorg/custodian/internal/apperr"
	"github.com/yourorg/custodian/internal/auditlog"
	"github.com/yourorg/custodian/internal/auth"
	"github.com/yourorg/custodian/internal/storage"
)

type recorded struct {
	actorID string
	action  string
	data    map[string]any
}

type fakeRecorder struct {
	entries []recorded
	err     error
}

func (f *fakeRecorder) Append(_ context.Context, actorID, action string, data any) (auditlog.Entry, string, error) {
	if f.err != nil {
		return auditlog.Entry{}, "", f.err
	}
	m, _ := data.(map[string]any)
	f.entries = append(f.entries, recorded{actorID: actorID, action: action, data: m})
	return auditlog.Entry{}, fmt.Sprintf("h%d", len(f.entries)), nil
}

func (f *fakeRecorder) actions() []string {
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.action)
	}
	return out
}

type staticUsers map[string]auth.User

func (s staticUsers) Users(context.Context) (map[string]auth.User, error) {
	return s, nil
}

type testEnv struct {
	svc   *Service
	blobs *storage.MemoryStore
	audit *fakeRecorder
	now   time.Time
}

func newTestService(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		blobs: storage.NewMemoryStore(),
		audit: &fakeRecorder{},
		now:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.svc = NewService(NewStore(env.blobs), staticUsers{"abcd1234": {Username: "alice", Token: "abcd1234"}}, env.audit, Config{DeletedRetention: 24 * time.Hour}, nil)
	env.svc.now = func() time.Time { return env.now }
	seq := 0
	env.svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return env
}

func boolPtr(b bool) *bool { return &b }

func TestAddTodoCopiesPerOwner(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	todo, err := env.svc.AddTodo(ctx, "admin", AddTodoRequest{Text: "buy milk", OwnerIDs: []string{"alice", " bob ", "alice"}})
	if err != nil {
		t.Fatalf("AddTodo() error = %v", err)
	}
	for _, owner := range []string{"alice", "bob"} {
		todos, err := env.svc.store.Todos(ctx, owner)
		if err != nil {
			t.Fatalf("Todos(%s) error = %v", owner, err)
		}
		if len(todos) != 1 || todos[0].ID != todo.ID {
			t.Errorf("Todos(%s) = %+v, want one copy of %s", owner, todos, todo.ID)
		}
	}
	if len(env.audit.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(env.audit.entries))
	}
	e := env.audit.entries[0]
	if e.action != auditlog.ActionAddTodo || e.actorID != "admin" {
		t.Errorf("audit = %+v, want add_todo by admin", e)
	}
	if !reflect.DeepEqual(e.data["ownerIds"], []string{"alice", "bob"}) {
		t.Errorf("audit ownerIds = %v", e.data["ownerIds"])
	}
}

func TestAddTodoDefaultsToPublic(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	if _, err := env.svc.AddTodo(ctx, "admin", AddTodoRequest{Text: "x"}); err != nil {
		t.Fatalf("AddTodo() error = %v", err)
	}
	todos, _ := env.svc.store.Todos(ctx, PublicOwner)
	if len(todos) != 1 {
		t.Errorf("public todos = %d, want 1", len(todos))
	}
}

func TestValidationNamesField(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	tests := []struct {
		name  string
		call  func() error
		field string
	}{
		{"todo text", func() error { _, err := env.svc.AddTodo(ctx, "admin", AddTodoRequest{}); return err }, "text"},
		{"status completed", func() error {
			return env.svc.SetTodoStatus(ctx, "admin", SetTodoStatusRequest{ID: "1", OwnerID: "public"})
		}, "completed"},
		{"text owner", func() error { return env.svc.UpdateTodoText(ctx, "admin", UpdateTodoTextRequest{ID: "1", Text: "x"}) }, "ownerId"},
		{"progress todo", func() error { _, err := env.svc.AddProgress(ctx, "admin", AddProgressRequest{Text: "x"}); return err }, "todoId"},
		{"item keepers", func() error {
			_, err := env.svc.AddItem(ctx, "admin", AddItemRequest{Name: "key", Keepers: []string{" "}})
			return err
		}, "keepers"},
		{"transfer keepers", func() error { return env.svc.TransferItem(ctx, "admin", TransferItemRequest{ItemID: "i"}) }, "newKeepers"},
		{"restore id", func() error { return env.svc.RestoreItem(ctx, "admin", IDRequest{}) }, "id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verr apperr.ValidationError
			if err := tt.call(); !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("error = %v, want validation error on %s", err, tt.field)
			}
		})
	}
	if len(env.audit.entries) != 0 {
		t.Errorf("validation failures recorded %d audit entries", len(env.audit.entries))
	}
}

func TestUnknownIDsNotFound(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	tests := []struct {
		name string
		call func() error
	}{
		{"status", func() error {
			return env.svc.SetTodoStatus(ctx, "admin", SetTodoStatusRequest{ID: "nope", OwnerID: "public", Completed: boolPtr(true)})
		}},
		{"delete todo", func() error { return env.svc.DeleteTodo(ctx, "admin", DeleteTodoRequest{ID: "nope", OwnerID: "public"}) }},
		{"restore todo", func() error { return env.svc.RestoreTodo(ctx, "admin", IDRequest{ID: "nope"}) }},
		{"add progress", func() error {
			_, err := env.svc.AddProgress(ctx, "admin", AddProgressRequest{TodoID: "nope", Text: "x"})
			return err
		}},
		{"update progress", func() error { return env.svc.UpdateProgress(ctx, "admin", UpdateProgressRequest{ID: "nope", Text: "x"}) }},
		{"delete progress", func() error { return env.svc.DeleteProgress(ctx, "admin", IDRequest{ID: "nope"}) }},
		{"transfer", func() error {
			return env.svc.TransferItem(ctx, "admin", TransferItemRequest{ItemID: "nope", NewKeepers: []string{"bob"}})
		}},
		{"return", func() error { return env.svc.ReturnItem(ctx, "admin", IDRequest{ID: "nope"}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var nf apperr.NotFoundError
			if err := tt.call(); !errors.As(err, &nf) {
				t.Errorf("error = %v, want NotFoundError", err)
			}
		})
	}
}

func TestTodoLifecycle(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	todo, err := env.svc.AddTodo(ctx, "admin", AddTodoRequest{Text: "draft", OwnerIDs: []string{"alice"}})
	if err != nil {
		t.Fatalf("AddTodo() error = %v", err)
	}
	if err := env.svc.SetTodoStatus(ctx, "alice", SetTodoStatusRequest{ID: todo.ID, OwnerID: "alice", Completed: boolPtr(true)}); err != nil {
		t.Fatalf("SetTodoStatus() error = %v", err)
	}
	if err := env.svc.UpdateTodoText(ctx, "alice", UpdateTodoTextRequest{ID: todo.ID, OwnerID: "alice", Text: "final"}); err != nil {
		t.Fatalf("UpdateTodoText() error = %v", err)
	}

	todos, _ := env.svc.store.Todos(ctx, "alice")
	got := todos[0]
	if !got.Completed || got.CompletedBy != "alice" || got.CompletedAt == nil || got.Text != "final" {
		t.Errorf("todo = %+v, want completed by alice with text final", got)
	}
	if n := len(got.ActivityLog); n != 3 {
		t.Errorf("activity entries = %d, want 3", n)
	}

	if err := env.svc.DeleteTodo(ctx, "alice", DeleteTodoRequest{ID: todo.ID, OwnerID: "alice"}); err != nil {
		t.Fatalf("DeleteTodo() error = %v", err)
	}
	if todos, _ := env.svc.store.Todos(ctx, "alice"); len(todos) != 0 {
		t.Errorf("owner list after delete = %d todos, want 0", len(todos))
	}
	deleted, _ := env.svc.store.DeletedTodos(ctx)
	if len(deleted) != 1 || deleted[0].OwnerID != "alice" || deleted[0].DeletedBy != "alice" {
		t.Fatalf("deleted todos = %+v", deleted)
	}

	if err := env.svc.RestoreTodo(ctx, "admin", IDRequest{ID: todo.ID}); err != nil {
		t.Fatalf("RestoreTodo() error = %v", err)
	}
	todos, _ = env.svc.store.Todos(ctx, "alice")
	if len(todos) != 1 || todos[0].OwnerID != "" {
		t.Errorf("restored todos = %+v, want one todo without persisted owner", todos)
	}
	if deleted, _ := env.svc.store.DeletedTodos(ctx); len(deleted) != 0 {
		t.Errorf("deleted todos after restore = %d, want 0", len(deleted))
	}

	want := []string{
		auditlog.ActionAddTodo,
		auditlog.ActionUpdateTodoStatus,
		auditlog.ActionUpdateTodoText,
		auditlog.ActionDeleteTodo,
		auditlog.ActionRestoreTodo,
	}
	if got := env.audit.actions(); !reflect.DeepEqual(got, want) {
		t.Errorf("audit actions = %v, want %v", got, want)
	}
}

func TestUncompleteClearsCompletion(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()
	todo, _ := env.svc.AddTodo(ctx, "admin", AddTodoRequest{Text: "x"})
	_ = env.svc.SetTodoStatus(ctx, "admin", SetTodoStatusRequest{ID: todo.ID, OwnerID: PublicOwner, Completed: boolPtr(true)})
	if err := env.svc.SetTodoStatus(ctx, "admin", SetTodoStatusRequest{ID: todo.ID, OwnerID: PublicOwner, Completed: boolPtr(false)}); err != nil {
		t.Fatalf("SetTodoStatus() error = %v", err)
	}
	todos, _ := env.svc.store.Todos(ctx, PublicOwner)
	if todos[0].Completed || todos[0].CompletedAt != nil || todos[0].CompletedBy != "" {
		t.Errorf("todo = %+v, want completion cleared", todos[0])
	}
}

func TestProgressAcrossOwnerCopies(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	todo, _ := env.svc.AddTodo(ctx, "admin", AddTodoRequest{Text: "shared", OwnerIDs: []string{"alice", "bob"}})
	p, err := env.svc.AddProgress(ctx, "alice", AddProgressRequest{TodoID: todo.ID, Text: "halfway"})
	if err != nil {
		t.Fatalf("AddProgress() error = %v", err)
	}
	for _, owner := range []string{"alice", "bob"} {
		todos, _ := env.svc.store.Todos(ctx, owner)
		if len(todos[0].Progress) != 1 {
			t.Errorf("%s copy progress = %d, want 1", owner, len(todos[0].Progress))
		}
	}

	if err := env.svc.UpdateProgress(ctx, "alice", UpdateProgressRequest{ID: p.ID, Text: "nearly"}); err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	if err := env.svc.DeleteProgress(ctx, "bob", IDRequest{ID: p.ID}); err != nil {
		t.Fatalf("DeleteProgress() error = %v", err)
	}
	deleted, _ := env.svc.store.DeletedProgress(ctx)
	if len(deleted) != 1 || deleted[0].TodoID != todo.ID || deleted[0].Text != "nearly" {
		t.Fatalf("deleted progress = %+v, want one restorable copy", deleted)
	}
	if err := env.svc.RestoreProgress(ctx, "admin", IDRequest{ID: p.ID}); err != nil {
		t.Fatalf("RestoreProgress() error = %v", err)
	}
	todos, _ := env.svc.store.Todos(ctx, "bob")
	if len(todos[0].Progress) != 1 || todos[0].Progress[0].Text != "nearly" {
		t.Errorf("bob progress after restore = %+v", todos[0].Progress)
	}

	want := []string{
		auditlog.ActionAddTodo,
		auditlog.ActionAddProgress,
		auditlog.ActionUpdateProgress,
		auditlog.ActionDeleteProgress,
		auditlog.ActionRestoreProgress,
	}
	if got := env.audit.actions(); !reflect.DeepEqual(got, want) {
		t.Errorf("audit actions = %v, want %v", got, want)
	}
	if got := env.audit.entries[2].data["newText"]; got != "nearly" {
		t.Errorf("update_progress newText = %v, want nearly", got)
	}
}

func TestRestoreProgressWithoutTodo(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	todo, _ := env.svc.AddTodo(ctx, "admin", AddTodoRequest{Text: "x"})
	p, _ := env.svc.AddProgress(ctx, "admin", AddProgressRequest{TodoID: todo.ID, Text: "step"})
	_ = env.svc.DeleteProgress(ctx, "admin", IDRequest{ID: p.ID})
	_ = env.svc.DeleteTodo(ctx, "admin", DeleteTodoRequest{ID: todo.ID, OwnerID: PublicOwner})

	var nf apperr.NotFoundError
	if err := env.svc.RestoreProgress(ctx, "admin", IDRequest{ID: p.ID}); !errors.As(err, &nf) {
		t.Fatalf("RestoreProgress() error = %v, want NotFoundError", err)
	}
	if deleted, _ := env.svc.store.DeletedProgress(ctx); len(deleted) != 1 {
		t.Errorf("deleted progress = %d, want entry kept for a later restore", len(deleted))
	}
}

func TestItemLifecycle(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	todo, _ := env.svc.AddTodo(ctx, "admin", AddTodoRequest{Text: "hand over keys"})
	item, err := env.svc.AddItem(ctx, "admin", AddItemRequest{Name: "key", Keepers: []string{"alice"}, TodoID: todo.ID})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if err := env.svc.RenameItem(ctx, "admin", RenameItemRequest{ID: item.ID, Name: "front key"}); err != nil {
		t.Fatalf("RenameItem() error = %v", err)
	}
	env.now = env.now.Add(time.Hour)
	if err := env.svc.TransferItem(ctx, "alice", TransferItemRequest{ItemID: item.ID, NewKeepers: []string{"bob", "carol"}}); err != nil {
		t.Fatalf("TransferItem() error = %v", err)
	}

	items, _ := env.svc.store.KeptItems(ctx)
	got := items[0]
	if got.Name != "front key" || len(got.Keepers) != 2 {
		t.Fatalf("item = %+v, want renamed with two custody records", got)
	}
	if !reflect.DeepEqual(got.CurrentKeepers(), []string{"bob", "carol"}) || got.Keepers[1].TransferredBy != "alice" {
		t.Errorf("latest custody = %+v", got.Keepers[1])
	}

	if err := env.svc.ReturnItem(ctx, "bob", IDRequest{ID: item.ID}); err != nil {
		t.Fatalf("ReturnItem() error = %v", err)
	}
	if err := env.svc.DeleteItem(ctx, "admin", IDRequest{ID: item.ID}); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if items, _ := env.svc.store.KeptItems(ctx); len(items) != 0 {
		t.Errorf("kept items after delete = %d, want 0", len(items))
	}
	if err := env.svc.RestoreItem(ctx, "admin", IDRequest{ID: item.ID}); err != nil {
		t.Fatalf("RestoreItem() error = %v", err)
	}
	items, _ = env.svc.store.KeptItems(ctx)
	if len(items) != 1 || items[0].ReturnedBy != "bob" {
		t.Errorf("restored items = %+v, want the returned item back", items)
	}

	todos, _ := env.svc.store.Todos(ctx, PublicOwner)
	var actions []string
	for _, a := range todos[0].ActivityLog {
		actions = append(actions, a.Action)
	}
	wantActivity := []string{"create", "create_item", "update_item_name", "transfer_item", "return_item", "delete_item", "restore_item"}
	if !reflect.DeepEqual(actions, wantActivity) {
		t.Errorf("todo activity = %v, want %v", actions, wantActivity)
	}

	wantAudit := []string{
		auditlog.ActionAddTodo,
		auditlog.ActionAddItem,
		auditlog.ActionUpdateItemName,
		auditlog.ActionTransferItem,
		auditlog.ActionReturnItem,
		auditlog.ActionDeleteItem,
		auditlog.ActionRestoreItem,
	}
	if got := env.audit.actions(); !reflect.DeepEqual(got, wantAudit) {
		t.Errorf("audit actions = %v, want %v", got, wantAudit)
	}
}

func TestAuditFailureSurfaces(t *testing.T) {
	env := newTestService(t)
	env.audit.err = errors.New("bucket down")
	_, err := env.svc.AddTodo(context.Background(), "admin", AddTodoRequest{Text: "x"})
	var audit apperr.AuditError
	if !errors.As(err, &audit) || audit.Action != auditlog.ActionAddTodo {
		t.Fatalf("AddTodo() error = %v, want AuditError for add_todo", err)
	}
	if apperr.Retryable(err) {
		t.Error("audit failure after a stored todo must not be retryable")
	}
}

func TestSnapshotPrunesOldDeletions(t *testing.T) {
	env := newTestService(t)
	ctx := context.Background()

	old, _ := env.svc.AddTodo(ctx, "admin", AddTodoRequest{Text: "old"})
	_ = env.svc.DeleteTodo(ctx, "admin", DeleteTodoRequest{ID: old.ID, OwnerID: PublicOwner})
	oldItem, _ := env.svc.AddItem(ctx, "admin", AddItemRequest{Name: "old", Keepers: []string{"alice"}})
	_ = env.svc.DeleteItem(ctx, "admin", IDRequest{ID: oldItem.ID})

	env.now = env.now.Add(48 * time.Hour)
	fresh, _ := env.svc.AddTodo(ctx, "admin", AddTodoRequest{Text: "fresh"})
	_ = env.svc.DeleteTodo(ctx, "admin", DeleteTodoRequest{ID: fresh.ID, OwnerID: PublicOwner})
	kept, _ := env.svc.AddTodo(ctx, "admin", AddTodoRequest{Text: "kept", OwnerIDs: []string{"alice"}})
	audited := len(env.audit.entries)

	snap, err := env.svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(snap.RecentDeletedTodos) != 1 || snap.RecentDeletedTodos[0].ID != fresh.ID {
		t.Errorf("RecentDeletedTodos = %+v, want only %s", snap.RecentDeletedTodos, fresh.ID)
	}
	if len(snap.RecentDeletedItems) != 0 {
		t.Errorf("RecentDeletedItems = %d, want 0", len(snap.RecentDeletedItems))
	}
	if len(snap.AllTodos) != 1 || snap.AllTodos[0].ID != kept.ID || snap.AllTodos[0].OwnerID != "alice" {
		t.Errorf("AllTodos = %+v, want kept todo owned by alice", snap.AllTodos)
	}
	if _, ok := snap.ShareLinks["abcd1234"]; !ok {
		t.Errorf("ShareLinks = %v, want alice's link", snap.ShareLinks)
	}
	if stored, _ := env.svc.store.DeletedTodos(ctx); len(stored) != 1 {
		t.Errorf("stored deleted todos = %d, want pruned to 1", len(stored))
	}
	if len(env.audit.entries) != audited {
		t.Errorf("Snapshot() appended %d audit entries, want 0", len(env.audit.entries)-audited)
	}
}

func TestLegacyKeepersDecode(t *testing.T) {
	raw := `[{"id":"i1","name":"key","createdAt":"2024-01-01T00:00:00Z","keepers":["alice","bob"]}]`
	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(items[0].Keepers) != 1 {
		t.Fatalf("Keepers = %+v, want one custody record", items[0].Keepers)
	}
	k := items[0].Keepers[0]
	if !reflect.DeepEqual(k.UserIDs, []string{"alice", "bob"}) || k.TransferredBy != "unknown" || !k.Timestamp.Equal(items[0].CreatedAt) {
		t.Errorf("legacy custody = %+v", k)
	}
}

func TestDeletedItemKeepsDeletionFields(t *testing.T) {
	at := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	in := DeletedItem{Item: Item{ID: "i1", Name: "key", Keepers: []Custody{{UserIDs: []string{"a"}}}}, DeletedAt: at, DeletedBy: "bob"}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var out DeletedItem
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !out.DeletedAt.Equal(at) || out.DeletedBy != "bob" || out.Name != "key" {
		t.Errorf("round trip = %+v", out)
	}
}

func TestServiceWithChain(t *testing.T) {
	blobs := storage.NewMemoryStore()
	chain := auditlog.NewChain(storage.NewMemoryStore(), storage.NewMemoryStore(), auditlog.Config{})
	svc := NewService(NewStore(blobs), nil, chain, Config{}, nil)
	ctx := context.Background()

	todo, err := svc.AddTodo(ctx, "admin", AddTodoRequest{Text: "x"})
	if err != nil {
		t.Fatalf("AddTodo() error = %v", err)
	}
	if err := svc.DeleteTodo(ctx, "admin", DeleteTodoRequest{ID: todo.ID, OwnerID: PublicOwner}); err != nil {
		t.Fatalf("DeleteTodo() error = %v", err)
	}
	result, err := chain.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !result.Verified || result.LogCount != 2 {
		t.Errorf("Verify() = %+v, want 2 verified entries", result)
	}
}
