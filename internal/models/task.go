package models

import "time"

// Task is a schedulable unit of work, optionally tied to an animal.
type Task struct {
	ID        int64  `db:"id" json:"id"`
	Title     string `db:"title" json:"title"`
	DueDate   string `db:"due_date" json:"due_date"` // 2006-01-02
	Completed bool   `db:"completed" json:"completed"`
	AnimalID  *int64 `db:"animal_id" json:"animal,omitempty"`
	Notes     string `db:"notes" json:"notes,omitempty"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Task.
func (Task) TableName() string {
	return "tasks"
}

// Touch updates the UpdatedAt timestamp.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now().Unix()
}

// Overdue reports whether the task's due date is strictly before the
// given day and the task is still open.
func (t *Task) Overdue(at time.Time) bool {
	if t.Completed {
		return false
	}
	due, err := time.Parse("2006-01-02", t.DueDate)
	if err != nil {
		return false
	}
	return due.Before(at.Truncate(24 * time.Hour))
}
