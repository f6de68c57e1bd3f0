package custody

import (
	"encoding/json"
	"time"

	"github.com/yourorg/custodian/internal/auth"
)

// Activity actions recorded on a todo.
const (
	activityCreate          = "create"
	activityUpdateStatus    = "update_status"
	activityUpdateText      = "update_text"
	activityDelete          = "delete"
	activityRestore         = "restore"
	activityAddProgress     = "add_progress"
	activityUpdateProgress  = "update_progress"
	activityDeleteProgress  = "delete_progress"
	activityRestoreProgress = "restore_progress"
	activityCreateItem      = "create_item"
	activityRenameItem      = "update_item_name"
	activityTransferItem    = "transfer_item"
	activityReturnItem      = "return_item"
	activityDeleteItem      = "delete_item"
	activityRestoreItem     = "restore_item"
)

// PublicOwner receives todos created without explicit owners.
const PublicOwner = "public"

type Activity struct {
	Timestamp time.Time      `json:"timestamp"`
	ActorID   string         `json:"actorId"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
}

type Progress struct {
	ID              string    `json:"id"`
	Text            string    `json:"text"`
	CreatedAt       time.Time `json:"createdAt"`
	CreatorID       string    `json:"creatorId"`
	AttachmentPaths []string  `json:"attachmentPaths,omitempty"`
}

// Todo is stored once per owner list; OwnerID is filled in when read across
// owners and is not persisted in the owner list itself.
type Todo struct {
	ID             string     `json:"id"`
	Text           string     `json:"text"`
	Completed      bool       `json:"completed"`
	CreatedAt      time.Time  `json:"createdAt"`
	CreatorID      string     `json:"creatorId"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	CompletedBy    string     `json:"completedBy,omitempty"`
	AttachmentPath string     `json:"attachmentPath,omitempty"`
	Progress       []Progress `json:"progress,omitempty"`
	ActivityLog    []Activity `json:"activityLog"`
	OwnerID        string     `json:"ownerId,omitempty"`
}

type DeletedTodo struct {
	Todo
	DeletedAt time.Time `json:"deletedAt"`
	DeletedBy string    `json:"deletedBy"`
}

type DeletedProgress struct {
	Progress
	TodoID    string    `json:"todoId"`
	DeletedAt time.Time `json:"deletedAt"`
	DeletedBy string    `json:"deletedBy"`
}

// Custody is one hand-over of an item to a set of keepers.
type Custody struct {
	UserIDs       []string  `json:"userIds"`
	Timestamp     time.Time `json:"timestamp"`
	TransferredBy string    `json:"transferredBy"`
}

type Item struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	TodoID         string     `json:"todoId,omitempty"`
	AttachmentPath string     `json:"attachmentPath,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	Keepers        []Custody  `json:"keepers"`
	ReturnedAt     *time.Time `json:"returnedAt,omitempty"`
	ReturnedBy     string     `json:"returnedBy,omitempty"`
}

// UnmarshalJSON accepts items written before custody history existed, whose
// keepers field is a plain list of user ids.
func (i *Item) UnmarshalJSON(b []byte) error {
	type plain Item
	var raw struct {
		plain
		Keepers json.RawMessage `json:"keepers"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*i = Item(raw.plain)
	i.Keepers = nil
	if len(raw.Keepers) == 0 || string(raw.Keepers) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw.Keepers, &i.Keepers); err == nil {
		return nil
	}
	var legacy []string
	if err := json.Unmarshal(raw.Keepers, &legacy); err != nil {
		return err
	}
	i.Keepers = []Custody{{UserIDs: legacy, Timestamp: i.CreatedAt, TransferredBy: "unknown"}}
	return nil
}

// CurrentKeepers returns the user ids of the latest custody record.
func (i Item) CurrentKeepers() []string {
	if len(i.Keepers) == 0 {
		return nil
	}
	return i.Keepers[len(i.Keepers)-1].UserIDs
}

type DeletedItem struct {
	Item
	DeletedAt time.Time `json:"deletedAt"`
	DeletedBy string    `json:"deletedBy"`
}

// UnmarshalJSON is required because Item's decoder would otherwise be
// promoted and drop the deletion fields.
func (d *DeletedItem) UnmarshalJSON(b []byte) error {
	if err := d.Item.UnmarshalJSON(b); err != nil {
		return err
	}
	var meta struct {
		DeletedAt time.Time `json:"deletedAt"`
		DeletedBy string    `json:"deletedBy"`
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return err
	}
	d.DeletedAt, d.DeletedBy = meta.DeletedAt, meta.DeletedBy
	return nil
}

// Snapshot is the full read model returned by GET /data.
type Snapshot struct {
	AllTodos              []Todo               `json:"allTodos"`
	RecentDeletedTodos    []DeletedTodo        `json:"recentDeletedTodos"`
	KeptItems             []Item               `json:"keptItems"`
	RecentDeletedItems    []DeletedItem        `json:"recentDeletedItems"`
	RecentDeletedProgress []DeletedProgress    `json:"recentDeletedProgress"`
	ShareLinks            map[string]auth.User `json:"shareLinks"`
}
