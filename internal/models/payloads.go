package models

// AnimalPayload is the mutation body for creating or (partially)
// updating an animal. Nil fields are omitted on the wire, matching the
// remote store's partial-update semantics, and the same JSON shape is
// stored in queue entries for offline replay.
type AnimalPayload struct {
	TagID      *string  `json:"tag_id,omitempty"`
	Name       *string  `json:"name,omitempty"`
	Breed      *string  `json:"breed,omitempty"`
	BirthDate  *string  `json:"birth_date,omitempty"`
	Gender     *string  `json:"gender,omitempty"`
	Status     *string  `json:"status,omitempty"`
	DamID      *int64   `json:"dam,omitempty"`
	SireID     *int64   `json:"sire,omitempty"`
	GroupID    *int64   `json:"group,omitempty"`
	WeightKg   *float64 `json:"weight_kg,omitempty"`
	ExitDate   *string  `json:"exit_date,omitempty"`
	ExitReason *string  `json:"exit_reason,omitempty"`
}

// EventPayload is the mutation body for creating an event.
type EventPayload struct {
	AnimalID  int64  `json:"animal"`
	EventType string `json:"event_type"`
	Date      string `json:"date"`
	Notes     string `json:"notes,omitempty"`
}

// TaskPayload is the mutation body for creating or updating a task.
type TaskPayload struct {
	Title     *string `json:"title,omitempty"`
	DueDate   *string `json:"due_date,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
	AnimalID  *int64  `json:"animal,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}
