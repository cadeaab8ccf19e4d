package store

import (
	"herdsync/internal/errors"
	"herdsync/internal/models"
)

const eventColumns = "id, animal_id, event_type, date, notes, created_at"

// ListEvents returns cached events, newest first. Pass animalID 0 for
// every animal.
func (s *Store) ListEvents(animalID int64) ([]*models.Event, error) {
	query := "SELECT " + eventColumns + " FROM events"
	var args []any
	if animalID != 0 {
		query += " WHERE animal_id = ?"
		args = append(args, animalID)
	}
	query += " ORDER BY date DESC, created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "list events", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.AnimalID, &e.EventType, &e.Date, &e.Notes, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(errors.KindStorage, "scan event", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "iterate events", err)
	}
	return events, nil
}

// PutEvent writes an event row keyed by its id.
func (t *Tx) PutEvent(e *models.Event) error {
	_, err := t.exec(TableEvents, `
	INSERT OR REPLACE INTO events (id, animal_id, event_type, date, notes, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.AnimalID, e.EventType, e.Date, e.Notes, e.CreatedAt,
	)
	return err
}

// ReplaceEvents replaces confirmed event rows with a server snapshot,
// scoped to one animal when animalID is non-zero. Pending rows keep
// their place in the cache.
func (t *Tx) ReplaceEvents(animalID int64, events []*models.Event) error {
	query := "DELETE FROM events WHERE id > 0"
	var args []any
	if animalID != 0 {
		query += " AND animal_id = ?"
		args = append(args, animalID)
	}
	if _, err := t.exec(TableEvents, query, args...); err != nil {
		return err
	}
	for _, e := range events {
		if err := t.PutEvent(e); err != nil {
			return err
		}
	}
	return nil
}
