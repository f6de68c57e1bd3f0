package custody

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/custodian/internal/apperr"
	"github.com/yourorg/custodian/internal/auditlog"
	"github.com/yourorg/custodian/internal/auth"
)

// UserLister supplies the share-link users included in a Snapshot.
type UserLister interface {
	Users(ctx context.Context) (map[string]auth.User, error)
}

// Service implements the todo, progress and item operations. Every mutation
// appends exactly one audit entry after its collections are saved.
//
// Mutations are serialized within one Service. Separate processes writing the
// same bucket still race and the last write of a collection wins.
type Service struct {
	mu     sync.Mutex
	store  *Store
	users  UserLister
	audit  auditlog.Recorder
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(store *Store, users UserLister, audit auditlog.Recorder, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DeletedRetention <= 0 {
		cfg.DeletedRetention = 20 * 24 * time.Hour
	}
	return &Service{
		store:  store,
		users:  users,
		audit:  audit,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

type AddTodoRequest struct {
	Text           string   `json:"text"`
	OwnerIDs       []string `json:"ownerIds"`
	AttachmentPath string   `json:"attachmentPath,omitempty"`
}

type SetTodoStatusRequest struct {
	ID        string `json:"id"`
	OwnerID   string `json:"ownerId"`
	Completed *bool  `json:"completed"`
}

type UpdateTodoTextRequest struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
	Text    string `json:"text"`
}

type DeleteTodoRequest struct {
	ID      string `json:"id"`
	OwnerID string `json:"ownerId"`
}

// IDRequest addresses a single record by id.
type IDRequest struct {
	ID string `json:"id"`
}

type AddProgressRequest struct {
	TodoID          string   `json:"todoId"`
	OwnerID         string   `json:"ownerId,omitempty"`
	Text            string   `json:"text"`
	AttachmentPaths []string `json:"attachmentPaths,omitempty"`
}

type UpdateProgressRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type AddItemRequest struct {
	Name           string   `json:"name"`
	Keepers        []string `json:"keepers"`
	TodoID         string   `json:"todoId,omitempty"`
	AttachmentPath string   `json:"attachmentPath,omitempty"`
}

type RenameItemRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TransferItemRequest struct {
	ItemID     string   `json:"itemId"`
	NewKeepers []string `json:"newKeepers"`
}

func (s *Service) activity(actorID, action string, details map[string]any) Activity {
	if details == nil {
		details = map[string]any{}
	}
	return Activity{Timestamp: s.now().UTC(), ActorID: actorID, Action: action, Details: details}
}

func (s *Service) record(ctx context.Context, actorID, action string, data map[string]any) error {
	if _, _, err := s.audit.Append(ctx, actorID, action, data); err != nil {
		return apperr.AuditError{Action: action, Err: err}
	}
	return nil
}

// addActivity appends an activity record to every copy of todoID. A missing
// todo is logged and otherwise ignored.
func (s *Service) addActivity(ctx context.Context, todoID, actorID, action string, details map[string]any) error {
	if todoID == "" {
		return nil
	}
	entry := s.activity(actorID, action, details)
	changed, err := s.store.updateTodos(ctx, "", func(_ string, t *Todo) bool {
		if t.ID != todoID {
			return false
		}
		t.ActivityLog = append(t.ActivityLog, entry)
		return true
	})
	if err != nil {
		return err
	}
	if changed == 0 {
		s.logger.Warn("activity target todo not found", "todoId", todoID, "action", action)
	}
	return nil
}

func (s *Service) AddTodo(ctx context.Context, actorID string, req AddTodoRequest) (Todo, error) {
	if req.Text == "" {
		return Todo{}, apperr.Missing("text")
	}
	owners := compactIDs(req.OwnerIDs)
	if len(owners) == 0 {
		owners = []string{PublicOwner}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	todo := Todo{
		ID:             s.newID(),
		Text:           req.Text,
		CreatedAt:      now,
		CreatorID:      actorID,
		AttachmentPath: req.AttachmentPath,
		ActivityLog:    []Activity{s.activity(actorID, activityCreate, map[string]any{"text": req.Text})},
	}
	for _, owner := range owners {
		todos, err := s.store.Todos(ctx, owner)
		if err != nil {
			return Todo{}, err
		}
		if err := s.store.SaveTodos(ctx, owner, append(todos, todo)); err != nil {
			return Todo{}, err
		}
	}
	if err := s.record(ctx, actorID, auditlog.ActionAddTodo, map[string]any{
		"todoId":   todo.ID,
		"text":     todo.Text,
		"ownerIds": owners,
	}); err != nil {
		return Todo{}, err
	}
	s.logger.Info("todo added", "todoId", todo.ID, "owners", owners, "actorId", actorID)
	return todo, nil
}

func (s *Service) SetTodoStatus(ctx context.Context, actorID string, req SetTodoStatusRequest) error {
	switch {
	case req.ID == "":
		return apperr.Missing("id")
	case req.OwnerID == "":
		return apperr.Missing("ownerId")
	case req.Completed == nil:
		return apperr.Missing("completed")
	}
	completed := *req.Completed

	s.mu.Lock()
	defer s.mu.Unlock()

	todos, err := s.store.Todos(ctx, req.OwnerID)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(todos, func(t Todo) bool { return t.ID == req.ID })
	if i < 0 {
		return apperr.NotFoundError{Kind: "todo", Key: req.ID}
	}
	t := &todos[i]
	if t.Completed != completed {
		t.ActivityLog = append(t.ActivityLog, s.activity(actorID, activityUpdateStatus, map[string]any{"from": t.Completed, "to": completed}))
	}
	t.Completed = completed
	if completed {
		now := s.now().UTC()
		t.CompletedAt = &now
		t.CompletedBy = actorID
	} else {
		t.CompletedAt = nil
		t.CompletedBy = ""
	}
	if err := s.store.SaveTodos(ctx, req.OwnerID, todos); err != nil {
		return err
	}
	return s.record(ctx, actorID, auditlog.ActionUpdateTodoStatus, map[string]any{
		"todoId":    req.ID,
		"ownerId":   req.OwnerID,
		"completed": completed,
	})
}

func (s *Service) UpdateTodoText(ctx context.Context, actorID string, req UpdateTodoTextRequest) error {
	switch {
	case req.ID == "":
		return apperr.Missing("id")
	case req.OwnerID == "":
		return apperr.Missing("ownerId")
	case req.Text == "":
		return apperr.Missing("text")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	todos, err := s.store.Todos(ctx, req.OwnerID)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(todos, func(t Todo) bool { return t.ID == req.ID })
	if i < 0 {
		return apperr.NotFoundError{Kind: "todo", Key: req.ID}
	}
	old := todos[i].Text
	todos[i].Text = req.Text
	todos[i].ActivityLog = append(todos[i].ActivityLog, s.activity(actorID, activityUpdateText, map[string]any{"from": old, "to": req.Text}))
	if err := s.store.SaveTodos(ctx, req.OwnerID, todos); err != nil {
		return err
	}
	return s.record(ctx, actorID, auditlog.ActionUpdateTodoText, map[string]any{
		"todoId":  req.ID,
		"ownerId": req.OwnerID,
		"text":    req.Text,
	})
}

// DeleteTodo moves the owner's copy of a todo to the deleted list.
func (s *Service) DeleteTodo(ctx context.Context, actorID string, req DeleteTodoRequest) error {
	switch {
	case req.ID == "":
		return apperr.Missing("id")
	case req.OwnerID == "":
		return apperr.Missing("ownerId")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	todos, err := s.store.Todos(ctx, req.OwnerID)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(todos, func(t Todo) bool { return t.ID == req.ID })
	if i < 0 {
		return apperr.NotFoundError{Kind: "todo", Key: req.ID}
	}
	todo := todos[i]
	todo.ActivityLog = append(todo.ActivityLog, s.activity(actorID, activityDelete, nil))
	todo.OwnerID = req.OwnerID
	if err := s.store.SaveTodos(ctx, req.OwnerID, slices.Delete(todos, i, i+1)); err != nil {
		return err
	}

	deleted, err := s.store.DeletedTodos(ctx)
	if err != nil {
		return err
	}
	deleted = append(deleted, DeletedTodo{Todo: todo, DeletedAt: s.now().UTC(), DeletedBy: actorID})
	if err := s.store.SaveDeletedTodos(ctx, deleted); err != nil {
		return err
	}
	return s.record(ctx, actorID, auditlog.ActionDeleteTodo, map[string]any{"todoId": req.ID, "ownerId": req.OwnerID})
}

// RestoreTodo moves a deleted todo back to the owner it was deleted from.
func (s *Service) RestoreTodo(ctx context.Context, actorID string, req IDRequest) error {
	if req.ID == "" {
		return apperr.Missing("id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, err := s.store.DeletedTodos(ctx)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(deleted, func(d DeletedTodo) bool { return d.ID == req.ID })
	if i < 0 {
		return apperr.NotFoundError{Kind: "deleted todo", Key: req.ID}
	}
	todo := deleted[i].Todo
	owner := todo.OwnerID
	if owner == "" {
		owner = PublicOwner
	}
	todo.ActivityLog = append(todo.ActivityLog, s.activity(actorID, activityRestore, nil))

	todos, err := s.store.Todos(ctx, owner)
	if err != nil {
		return err
	}
	if err := s.store.SaveDeletedTodos(ctx, slices.Delete(deleted, i, i+1)); err != nil {
		return err
	}
	if err := s.store.SaveTodos(ctx, owner, append(todos, todo)); err != nil {
		return err
	}
	return s.record(ctx, actorID, auditlog.ActionRestoreTodo, map[string]any{"todoId": req.ID})
}

func (s *Service) AddProgress(ctx context.Context, actorID string, req AddProgressRequest) (Progress, error) {
	switch {
	case req.TodoID == "":
		return Progress{}, apperr.Missing("todoId")
	case req.Text == "":
		return Progress{}, apperr.Missing("text")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	progress := Progress{
		ID:              s.newID(),
		Text:            req.Text,
		CreatedAt:       s.now().UTC(),
		CreatorID:       actorID,
		AttachmentPaths: req.AttachmentPaths,
	}
	entry := s.activity(actorID, activityAddProgress, map[string]any{"progressId": progress.ID, "text": progress.Text})
	changed, err := s.store.updateTodos(ctx, req.OwnerID, func(_ string, t *Todo) bool {
		if t.ID != req.TodoID {
			return false
		}
		t.Progress = append(t.Progress, progress)
		t.ActivityLog = append(t.ActivityLog, entry)
		return true
	})
	if err != nil {
		return Progress{}, err
	}
	if changed == 0 {
		return Progress{}, apperr.NotFoundError{Kind: "todo", Key: req.TodoID}
	}
	if err := s.record(ctx, actorID, auditlog.ActionAddProgress, map[string]any{
		"todoId":     req.TodoID,
		"progressId": progress.ID,
		"text":       progress.Text,
	}); err != nil {
		return Progress{}, err
	}
	return progress, nil
}

func (s *Service) UpdateProgress(ctx context.Context, actorID string, req UpdateProgressRequest) error {
	switch {
	case req.ID == "":
		return apperr.Missing("id")
	case req.Text == "":
		return apperr.Missing("text")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed, err := s.store.updateTodos(ctx, "", func(_ string, t *Todo) bool {
		i := slices.IndexFunc(t.Progress, func(p Progress) bool { return p.ID == req.ID })
		if i < 0 {
			return false
		}
		old := t.Progress[i].Text
		t.Progress[i].Text = req.Text
		t.ActivityLog = append(t.ActivityLog, s.activity(actorID, activityUpdateProgress, map[string]any{
			"progressId": req.ID,
			"from":       old,
			"to":         req.Text,
		}))
		return true
	})
	if err != nil {
		return err
	}
	if changed == 0 {
		return apperr.NotFoundError{Kind: "progress", Key: req.ID}
	}
	return s.record(ctx, actorID, auditlog.ActionUpdateProgress, map[string]any{"progressId": req.ID, "newText": req.Text})
}

// DeleteProgress removes a progress entry from every copy of its todo and
// keeps one restorable copy.
func (s *Service) DeleteProgress(ctx context.Context, actorID string, req IDRequest) error {
	if req.ID == "" {
		return apperr.Missing("id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed *DeletedProgress
	changed, err := s.store.updateTodos(ctx, "", func(_ string, t *Todo) bool {
		i := slices.IndexFunc(t.Progress, func(p Progress) bool { return p.ID == req.ID })
		if i < 0 {
			return false
		}
		p := t.Progress[i]
		t.Progress = slices.Delete(t.Progress, i, i+1)
		t.ActivityLog = append(t.ActivityLog, s.activity(actorID, activityDeleteProgress, map[string]any{"progressId": req.ID, "text": p.Text}))
		if removed == nil {
			removed = &DeletedProgress{Progress: p, TodoID: t.ID, DeletedAt: s.now().UTC(), DeletedBy: actorID}
		}
		return true
	})
	if err != nil {
		return err
	}
	if changed == 0 {
		return apperr.NotFoundError{Kind: "progress", Key: req.ID}
	}

	deleted, err := s.store.DeletedProgress(ctx)
	if err != nil {
		return err
	}
	if err := s.store.SaveDeletedProgress(ctx, append(deleted, *removed)); err != nil {
		return err
	}
	return s.record(ctx, actorID, auditlog.ActionDeleteProgress, map[string]any{"progressId": req.ID, "todoId": removed.TodoID})
}

func (s *Service) RestoreProgress(ctx context.Context, actorID string, req IDRequest) error {
	if req.ID == "" {
		return apperr.Missing("id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, err := s.store.DeletedProgress(ctx)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(deleted, func(d DeletedProgress) bool { return d.ID == req.ID })
	if i < 0 {
		return apperr.NotFoundError{Kind: "deleted progress", Key: req.ID}
	}
	d := deleted[i]
	entry := s.activity(actorID, activityRestoreProgress, map[string]any{"progressId": d.ID, "text": d.Text})
	changed, err := s.store.updateTodos(ctx, "", func(_ string, t *Todo) bool {
		if t.ID != d.TodoID {
			return false
		}
		t.Progress = append(t.Progress, d.Progress)
		t.ActivityLog = append(t.ActivityLog, entry)
		return true
	})
	if err != nil {
		return err
	}
	if changed == 0 {
		return apperr.NotFoundError{Kind: "todo for progress", Key: d.TodoID}
	}
	if err := s.store.SaveDeletedProgress(ctx, slices.Delete(deleted, i, i+1)); err != nil {
		return err
	}
	return s.record(ctx, actorID, auditlog.ActionRestoreProgress, map[string]any{"progressId": d.ID, "text": d.Text})
}

func (s *Service) AddItem(ctx context.Context, actorID string, req AddItemRequest) (Item, error) {
	keepers := compactIDs(req.Keepers)
	switch {
	case req.Name == "":
		return Item{}, apperr.Missing("name")
	case len(keepers) == 0:
		return Item{}, apperr.Missing("keepers")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	item := Item{
		ID:             s.newID(),
		Name:           req.Name,
		TodoID:         req.TodoID,
		AttachmentPath: req.AttachmentPath,
		CreatedAt:      now,
		Keepers:        []Custody{{UserIDs: keepers, Timestamp: now, TransferredBy: actorID}},
	}
	items, err := s.store.KeptItems(ctx)
	if err != nil {
		return Item{}, err
	}
	if err := s.store.SaveKeptItems(ctx, append(items, item)); err != nil {
		return Item{}, err
	}
	if err := s.addActivity(ctx, item.TodoID, actorID, activityCreateItem, map[string]any{"itemId": item.ID, "name": item.Name}); err != nil {
		return Item{}, err
	}
	if err := s.record(ctx, actorID, auditlog.ActionAddItem, map[string]any{
		"itemId":  item.ID,
		"name":    item.Name,
		"keepers": keepers,
	}); err != nil {
		return Item{}, err
	}
	s.logger.Info("item added", "itemId", item.ID, "actorId", actorID)
	return item, nil
}

// mutateItem applies fn to the kept item with id, saves the list, records the
// todo activity and appends the audit entry built by fn.
func (s *Service) mutateItem(ctx context.Context, actorID, id, activityAction, auditAction string, fn func(it *Item) (activity, audit map[string]any)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.store.KeptItems(ctx)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(items, func(it Item) bool { return it.ID == id })
	if i < 0 {
		return apperr.NotFoundError{Kind: "item", Key: id}
	}
	details, data := fn(&items[i])
	if err := s.store.SaveKeptItems(ctx, items); err != nil {
		return err
	}
	if err := s.addActivity(ctx, items[i].TodoID, actorID, activityAction, details); err != nil {
		return err
	}
	return s.record(ctx, actorID, auditAction, data)
}

func (s *Service) RenameItem(ctx context.Context, actorID string, req RenameItemRequest) error {
	switch {
	case req.ID == "":
		return apperr.Missing("id")
	case req.Name == "":
		return apperr.Missing("name")
	}
	return s.mutateItem(ctx, actorID, req.ID, activityRenameItem, auditlog.ActionUpdateItemName, func(it *Item) (map[string]any, map[string]any) {
		old := it.Name
		it.Name = req.Name
		return map[string]any{"itemId": it.ID, "from": old, "to": req.Name},
			map[string]any{"itemId": it.ID, "oldName": old, "newName": req.Name}
	})
}

// TransferItem appends a custody record handing the item to newKeepers.
func (s *Service) TransferItem(ctx context.Context, actorID string, req TransferItemRequest) error {
	keepers := compactIDs(req.NewKeepers)
	switch {
	case req.ItemID == "":
		return apperr.Missing("itemId")
	case len(keepers) == 0:
		return apperr.Missing("newKeepers")
	}
	return s.mutateItem(ctx, actorID, req.ItemID, activityTransferItem, auditlog.ActionTransferItem, func(it *Item) (map[string]any, map[string]any) {
		it.Keepers = append(it.Keepers, Custody{UserIDs: keepers, Timestamp: s.now().UTC(), TransferredBy: actorID})
		return map[string]any{"itemId": it.ID, "name": it.Name, "to": strings.Join(keepers, ", ")},
			map[string]any{"itemId": it.ID, "name": it.Name, "newKeepers": keepers}
	})
}

func (s *Service) ReturnItem(ctx context.Context, actorID string, req IDRequest) error {
	if req.ID == "" {
		return apperr.Missing("id")
	}
	return s.mutateItem(ctx, actorID, req.ID, activityReturnItem, auditlog.ActionReturnItem, func(it *Item) (map[string]any, map[string]any) {
		now := s.now().UTC()
		it.ReturnedAt = &now
		it.ReturnedBy = actorID
		details := map[string]any{"itemId": it.ID, "name": it.Name}
		return details, details
	})
}

func (s *Service) DeleteItem(ctx context.Context, actorID string, req IDRequest) error {
	if req.ID == "" {
		return apperr.Missing("id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.store.KeptItems(ctx)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(items, func(it Item) bool { return it.ID == req.ID })
	if i < 0 {
		return apperr.NotFoundError{Kind: "item", Key: req.ID}
	}
	item := items[i]
	if err := s.store.SaveKeptItems(ctx, slices.Delete(items, i, i+1)); err != nil {
		return err
	}
	deleted, err := s.store.DeletedItems(ctx)
	if err != nil {
		return err
	}
	if err := s.store.SaveDeletedItems(ctx, append(deleted, DeletedItem{Item: item, DeletedAt: s.now().UTC(), DeletedBy: actorID})); err != nil {
		return err
	}
	details := map[string]any{"itemId": item.ID, "name": item.Name}
	if err := s.addActivity(ctx, item.TodoID, actorID, activityDeleteItem, details); err != nil {
		return err
	}
	return s.record(ctx, actorID, auditlog.ActionDeleteItem, details)
}

func (s *Service) RestoreItem(ctx context.Context, actorID string, req IDRequest) error {
	if req.ID == "" {
		return apperr.Missing("id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, err := s.store.DeletedItems(ctx)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(deleted, func(d DeletedItem) bool { return d.ID == req.ID })
	if i < 0 {
		return apperr.NotFoundError{Kind: "deleted item", Key: req.ID}
	}
	item := deleted[i].Item
	items, err := s.store.KeptItems(ctx)
	if err != nil {
		return err
	}
	if err := s.store.SaveDeletedItems(ctx, slices.Delete(deleted, i, i+1)); err != nil {
		return err
	}
	if err := s.store.SaveKeptItems(ctx, append(items, item)); err != nil {
		return err
	}
	details := map[string]any{"itemId": item.ID, "name": item.Name}
	if err := s.addActivity(ctx, item.TodoID, actorID, activityRestoreItem, details); err != nil {
		return err
	}
	return s.record(ctx, actorID, auditlog.ActionRestoreItem, details)
}

// Snapshot returns the whole read model. Deleted entries older than the
// retention window are pruned from storage on the way; pruning is
// housekeeping and is not audited.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.cfg.DeletedRetention)
	var snap Snapshot
	var err error

	if snap.AllTodos, err = s.store.AllTodos(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.KeptItems, err = s.store.KeptItems(ctx); err != nil {
		return Snapshot{}, err
	}

	todos, err := s.store.DeletedTodos(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap.RecentDeletedTodos = recent(todos, func(d DeletedTodo) time.Time { return d.DeletedAt }, cutoff)
	if len(snap.RecentDeletedTodos) < len(todos) {
		if err := s.store.SaveDeletedTodos(ctx, snap.RecentDeletedTodos); err != nil {
			return Snapshot{}, err
		}
	}

	items, err := s.store.DeletedItems(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap.RecentDeletedItems = recent(items, func(d DeletedItem) time.Time { return d.DeletedAt }, cutoff)
	if len(snap.RecentDeletedItems) < len(items) {
		if err := s.store.SaveDeletedItems(ctx, snap.RecentDeletedItems); err != nil {
			return Snapshot{}, err
		}
	}

	progress, err := s.store.DeletedProgress(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap.RecentDeletedProgress = recent(progress, func(d DeletedProgress) time.Time { return d.DeletedAt }, cutoff)
	if len(snap.RecentDeletedProgress) < len(progress) {
		if err := s.store.SaveDeletedProgress(ctx, snap.RecentDeletedProgress); err != nil {
			return Snapshot{}, err
		}
	}

	if s.users != nil {
		if snap.ShareLinks, err = s.users.Users(ctx); err != nil {
			return Snapshot{}, err
		}
	}
	if snap.ShareLinks == nil {
		snap.ShareLinks = map[string]auth.User{}
	}
	return snap, nil
}

func recent[T any](list []T, deletedAt func(T) time.Time, cutoff time.Time) []T {
	kept := make([]T, 0, len(list))
	for _, v := range list {
		if deletedAt(v).After(cutoff) {
			kept = append(kept, v)
		}
	}
	return kept
}

// compactIDs trims ids, drops blanks and keeps the first occurrence of each.
func compactIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
