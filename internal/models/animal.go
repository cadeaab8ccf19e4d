// Package models provides data model definitions for the herdsync engine.
package models

import "time"

// Animal lifecycle status values. Archiving replaces physical deletion.
const (
	StatusActive   = "ACTIVE"
	StatusSold     = "SOLD"
	StatusArchived = "ARCHIVED"
)

// Gender values.
const (
	GenderMale   = "M"
	GenderFemale = "F"
)

// DefaultBreed is applied when a create payload carries no breed.
const DefaultBreed = "Highland Cattle"

// Animal represents one animal in the herd. IDs are assigned by the
// remote store; a negative ID marks a locally minted row that has not
// been confirmed by the server yet.
type Animal struct {
	ID         int64    `db:"id" json:"id"`
	TagID      string   `db:"tag_id" json:"tag_id"`
	Name       string   `db:"name" json:"name"`
	Breed      string   `db:"breed" json:"breed"`
	BirthDate  string   `db:"birth_date" json:"birth_date"` // 2006-01-02
	Gender     string   `db:"gender" json:"gender"`
	Status     string   `db:"status" json:"status"`
	DamID      *int64   `db:"dam_id" json:"dam,omitempty"`
	SireID     *int64   `db:"sire_id" json:"sire,omitempty"`
	GroupID    *int64   `db:"group_id" json:"group,omitempty"`
	WeightKg   *float64 `db:"weight_kg" json:"weight_kg,omitempty"`
	PhotoURL   string   `db:"photo_url" json:"photo_url,omitempty"`
	ExitDate   *string  `db:"exit_date" json:"exit_date,omitempty"`
	ExitReason string   `db:"exit_reason" json:"exit_reason,omitempty"`
	CreatedAt  int64    `db:"created_at" json:"created_at"`
	UpdatedAt  int64    `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Animal.
func (Animal) TableName() string {
	return "animals"
}

// Pending reports whether the row still carries a temporary ID.
func (a *Animal) Pending() bool {
	return a.ID < 0
}

// AgeYears computes the animal's age in full years at the given date.
// Returns 0 when the birth date cannot be parsed.
func (a *Animal) AgeYears(at time.Time) int {
	born, err := time.Parse("2006-01-02", a.BirthDate)
	if err != nil {
		return 0
	}
	years := at.Year() - born.Year()
	if at.Month() < born.Month() || (at.Month() == born.Month() && at.Day() < born.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// Touch updates the UpdatedAt timestamp.
func (a *Animal) Touch() {
	a.UpdatedAt = time.Now().Unix()
}

// AnimalWithParents is the list-view projection: an animal annotated
// with its dam and sire names resolved from the local cache.
type AnimalWithParents struct {
	Animal
	DamName  string `json:"dam_name,omitempty"`
	SireName string `json:"sire_name,omitempty"`
	Pending  bool   `json:"pending"` // awaiting server confirmation; UI renders sync badge
}

// HerdStats summarizes the cached herd for the dashboard.
type HerdStats struct {
	Total      int            `json:"total"`
	ByGender   map[string]int `json:"by_gender"`
	ByBreed    map[string]int `json:"by_breed"`
	AverageAge float64        `json:"average_age"`
}
