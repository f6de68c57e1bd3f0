package auditlog

import (
	"encoding/json"
	"time"
)

const (
	// Genesis terminates every chain; the first entry links to it.
	Genesis = "GENESIS"
	// DefaultHeadKey is the pointer-store key of the chain head.
	DefaultHeadKey = "LATEST_HASH"
	// TimestampLayout matches ISO 8601 with millisecond precision in UTC.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Action names recorded by mutating operations.
const (
	ActionAddTodo          = "add_todo"
	ActionUpdateTodoStatus = "update_todo_status"
	ActionUpdateTodoText   = "update_todo_text"
	ActionDeleteTodo       = "delete_todo"
	ActionRestoreTodo      = "restore_todo"
	ActionAddProgress      = "add_progress"
	ActionUpdateProgress   = "update_progress"
	ActionDeleteProgress   = "delete_progress"
	ActionRestoreProgress  = "restore_progress"
	ActionAddItem          = "add_item"
	ActionUpdateItemName   = "update_item_name"
	ActionTransferItem     = "transfer_item"
	ActionReturnItem       = "return_item"
	ActionDeleteItem       = "delete_item"
	ActionRestoreItem      = "restore_item"
	ActionCreateUser       = "create_user"
	ActionDeleteUser       = "delete_user"
	ActionUploadAttachment = "upload_attachment"
)

// Entry is one immutable audit record. Field order is part of the hash and
// must not change.
type Entry struct {
	Timestamp    string          `json:"timestamp"`
	ActorID      string          `json:"actorId"`
	Action       string          `json:"action"`
	Data         json.RawMessage `json:"data"`
	PreviousHash string          `json:"previousHash"`
}

// Time parses the entry timestamp.
func (e Entry) Time() (time.Time, error) {
	return time.Parse(TimestampLayout, e.Timestamp)
}

// VerifyResult is the outcome of a full chain replay.
type VerifyResult struct {
	Verified bool   `json:"verified"`
	LogCount int    `json:"logCount"`
	Message  string `json:"message"`
	BrokenAt string `json:"brokenAt,omitempty"`
}
