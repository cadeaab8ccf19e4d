package models

// Event type values.
const (
	EventTreatment   = "TREATMENT"
	EventVaccination = "VACCINATION"
	EventCalving     = "CALVING"
	EventCheckup     = "CHECKUP"
	EventOther       = "OTHER"
)

// Event is a timestamped occurrence tied to exactly one animal.
// Events are immutable once created.
type Event struct {
	ID        int64  `db:"id" json:"id"`
	AnimalID  int64  `db:"animal_id" json:"animal"`
	EventType string `db:"event_type" json:"event_type"`
	Date      string `db:"date" json:"date"` // 2006-01-02
	Notes     string `db:"notes" json:"notes,omitempty"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for Event.
func (Event) TableName() string {
	return "events"
}
