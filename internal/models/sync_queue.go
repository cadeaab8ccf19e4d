package models

import "encoding/json"

// Queue actions. One constant per replayable mutation; deleting an
// animal is an archive on the server side, never a physical delete.
const (
	ActionCreateAnimal   = "create_animal"
	ActionUpdateAnimal   = "update_animal"
	ActionDeleteAnimal   = "delete_animal"
	ActionCreateEvent    = "create_event"
	ActionCreateTask     = "create_task"
	ActionUpdateTask     = "update_task"
	ActionDeleteTask     = "delete_task"
	ActionDeleteDocument = "delete_document"
)

// SyncQueueEntry represents one pending offline mutation. LocalID is a
// store-assigned autoincrement, so insertion order is replay order.
type SyncQueueEntry struct {
	LocalID        int64           `db:"local_id" json:"localId"`
	Action         string          `db:"action" json:"action"`
	EntityID       int64           `db:"entity_id" json:"entityId,omitempty"`
	TempID         int64           `db:"temp_id" json:"tempId,omitempty"`
	Payload        json.RawMessage `db:"payload" json:"payload,omitempty"`
	IdempotencyKey string          `db:"idempotency_key" json:"idempotencyKey"`
	CreatedAt      int64           `db:"created_at" json:"created_at"`
}

// TableName returns the table name for SyncQueueEntry.
func (SyncQueueEntry) TableName() string {
	return "sync_queue"
}

// Creates reports whether the entry mints a new server-side record,
// i.e. whether a successful replay returns a real ID for TempID.
func (e *SyncQueueEntry) Creates() bool {
	switch e.Action {
	case ActionCreateAnimal, ActionCreateEvent, ActionCreateTask:
		return true
	}
	return false
}
