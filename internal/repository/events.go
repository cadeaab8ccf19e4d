package repository

import (
	"context"
	"fmt"
	"time"

	"herdsync/internal/errors"
	"herdsync/internal/models"
	"herdsync/internal/notify"
	"herdsync/internal/store"
)

func validateEventPayload(p *models.EventPayload) error {
	if p.AnimalID == 0 {
		return errors.Field("animal", "animal is required")
	}
	switch p.EventType {
	case models.EventTreatment, models.EventVaccination, models.EventCalving,
		models.EventCheckup, models.EventOther:
	default:
		return errors.Field("event_type", "unknown event type")
	}
	if p.Date == "" {
		return errors.Field("date", "date is required")
	}
	return nil
}

// CreateEvent appends a health event to an animal's log. The animal
// must carry a server-confirmed id: an event queued against a
// temporary id could replay before the id exists remotely, so the
// create is rejected up front, online or not.
func (r *Repository) CreateEvent(ctx context.Context, p *models.EventPayload) (*models.Event, error) {
	if err := validateEventPayload(p); err != nil {
		return nil, r.fail(err)
	}
	if p.AnimalID < 0 {
		return nil, r.fail(errors.New(errors.KindPrecondition,
			"animal is not synced yet, sync before adding events"))
	}

	if r.conn.Online() {
		e, err := r.client.CreateEvent(ctx, p)
		if err != nil {
			if errors.Is(err, errors.KindNetwork) {
				r.conn.MarkOffline()
			}
			return nil, r.fail(err)
		}
		err = r.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.PutEvent(e)
		})
		if err != nil {
			return nil, r.fail(err)
		}
		notify.Success(r.notifier, "Event recorded")
		return e, nil
	}

	e := &models.Event{
		AnimalID:  p.AnimalID,
		EventType: p.EventType,
		Date:      p.Date,
		Notes:     p.Notes,
		CreatedAt: time.Now().Unix(),
	}
	err := r.store.WithTx(ctx, func(tx *store.Tx) error {
		id, err := tx.NextTempID()
		if err != nil {
			return err
		}
		e.ID = id
		if err := tx.PutEvent(e); err != nil {
			return err
		}
		entry, err := newQueueEntry(models.ActionCreateEvent, 0, id, p)
		if err != nil {
			return err
		}
		return tx.Enqueue(entry)
	})
	if err != nil {
		return nil, r.fail(err)
	}
	notify.Warning(r.notifier, fmt.Sprintf("%s event saved offline, will sync when back online", p.EventType))
	return e, nil
}
