package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"herdsync/internal/errors"
	"herdsync/internal/models"
	"herdsync/internal/notify"
	"herdsync/internal/store"
)

// newQueueEntry builds a queue entry carrying the mutation payload and
// a fresh idempotency key.
func newQueueEntry(action string, entityID, tempID int64, payload any) (*models.SyncQueueEntry, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(errors.KindStorage, "encode queue payload", err)
		}
		raw = b
	}
	return &models.SyncQueueEntry{
		Action:         action,
		EntityID:       entityID,
		TempID:         tempID,
		Payload:        raw,
		IdempotencyKey: uuid.NewString(),
		CreatedAt:      time.Now().Unix(),
	}, nil
}

// applyAnimalPayload copies the payload's set fields onto the animal.
func applyAnimalPayload(a *models.Animal, p *models.AnimalPayload) {
	if p.TagID != nil {
		a.TagID = *p.TagID
	}
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Breed != nil {
		a.Breed = *p.Breed
	}
	if p.BirthDate != nil {
		a.BirthDate = *p.BirthDate
	}
	if p.Gender != nil {
		a.Gender = *p.Gender
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.DamID != nil {
		a.DamID = p.DamID
	}
	if p.SireID != nil {
		a.SireID = p.SireID
	}
	if p.GroupID != nil {
		a.GroupID = p.GroupID
	}
	if p.WeightKg != nil {
		a.WeightKg = p.WeightKg
	}
	if p.ExitDate != nil {
		a.ExitDate = p.ExitDate
	}
	if p.ExitReason != nil {
		a.ExitReason = *p.ExitReason
	}
}

// fillAnimalDefaults mutates a create payload in place so the queued
// copy replays with the same defaults the optimistic row got.
func fillAnimalDefaults(p *models.AnimalPayload) {
	if p.Breed == nil || *p.Breed == "" {
		breed := models.DefaultBreed
		p.Breed = &breed
	}
	if p.Gender == nil || *p.Gender == "" {
		gender := models.GenderFemale
		p.Gender = &gender
	}
	if p.Status == nil || *p.Status == "" {
		status := models.StatusActive
		p.Status = &status
	}
}

// CreateAnimal registers a new animal. Online it goes straight to the
// server; offline it writes an optimistic row under a temporary
// negative id and queues the create for replay.
func (r *Repository) CreateAnimal(ctx context.Context, p *models.AnimalPayload) (*models.Animal, error) {
	if err := validateNewAnimal(p); err != nil {
		return nil, r.fail(err)
	}
	fillAnimalDefaults(p)

	if r.conn.Online() {
		a, err := r.client.CreateAnimal(ctx, p)
		if err != nil {
			if errors.Is(err, errors.KindNetwork) {
				r.conn.MarkOffline()
			}
			return nil, r.fail(err)
		}
		err = r.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.PutAnimal(a)
		})
		if err != nil {
			return nil, r.fail(err)
		}
		notify.Success(r.notifier, fmt.Sprintf("Animal %s added", a.TagID))
		return a, nil
	}

	if existing, err := r.store.GetAnimalByTag(*p.TagID); err == nil && existing != nil {
		return nil, r.fail(errors.Field("tag_id", fmt.Sprintf("tag %s is already in use", *p.TagID)))
	}

	now := time.Now().Unix()
	a := &models.Animal{CreatedAt: now, UpdatedAt: now}
	applyAnimalPayload(a, p)
	err := r.store.WithTx(ctx, func(tx *store.Tx) error {
		id, err := tx.NextTempID()
		if err != nil {
			return err
		}
		a.ID = id
		if err := tx.PutAnimal(a); err != nil {
			return err
		}
		entry, err := newQueueEntry(models.ActionCreateAnimal, 0, id, p)
		if err != nil {
			return err
		}
		return tx.Enqueue(entry)
	})
	if err != nil {
		return nil, r.fail(err)
	}
	notify.Warning(r.notifier, fmt.Sprintf("Animal %s saved offline, will sync when back online", a.TagID))
	return a, nil
}

// UpdateAnimal applies a partial update. Offline edits of a still
// pending row queue against its temporary id; the queue processor
// rewrites the reference once the create confirms.
func (r *Repository) UpdateAnimal(ctx context.Context, id int64, p *models.AnimalPayload) (*models.Animal, error) {
	if err := validateAnimalPayload(p); err != nil {
		return nil, r.fail(err)
	}
	current, err := r.store.GetAnimal(id)
	if err != nil {
		return nil, r.fail(err)
	}

	if r.conn.Online() {
		a, err := r.client.UpdateAnimal(ctx, id, p)
		if err != nil {
			if errors.Is(err, errors.KindNetwork) {
				r.conn.MarkOffline()
			}
			return nil, r.fail(err)
		}
		err = r.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.PutAnimal(a)
		})
		if err != nil {
			return nil, r.fail(err)
		}
		notify.Success(r.notifier, fmt.Sprintf("Animal %s updated", a.TagID))
		return a, nil
	}

	if p.TagID != nil && *p.TagID != current.TagID {
		if other, err := r.store.GetAnimalByTag(*p.TagID); err == nil && other != nil && other.ID != id {
			return nil, r.fail(errors.Field("tag_id", fmt.Sprintf("tag %s is already in use", *p.TagID)))
		}
	}

	applyAnimalPayload(current, p)
	current.Touch()
	err = r.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutAnimal(current); err != nil {
			return err
		}
		entry, err := newQueueEntry(models.ActionUpdateAnimal, id, 0, p)
		if err != nil {
			return err
		}
		return tx.Enqueue(entry)
	})
	if err != nil {
		return nil, r.fail(err)
	}
	notify.Warning(r.notifier, fmt.Sprintf("Update to %s saved offline, will sync when back online", current.TagID))
	return current, nil
}

// ArchiveAnimal retires an animal. Records are never deleted; the
// server flips the row to ARCHIVED and so does the offline branch.
func (r *Repository) ArchiveAnimal(ctx context.Context, id int64) (*models.Animal, error) {
	current, err := r.store.GetAnimal(id)
	if err != nil {
		return nil, r.fail(err)
	}

	if r.conn.Online() {
		a, err := r.client.ArchiveAnimal(ctx, id)
		if err != nil {
			if errors.Is(err, errors.KindNetwork) {
				r.conn.MarkOffline()
			}
			return nil, r.fail(err)
		}
		err = r.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.PutAnimal(a)
		})
		if err != nil {
			return nil, r.fail(err)
		}
		notify.Success(r.notifier, fmt.Sprintf("Animal %s archived", a.TagID))
		return a, nil
	}

	current.Status = models.StatusArchived
	current.Touch()
	err = r.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.SetAnimalStatus(id, models.StatusArchived, current.UpdatedAt); err != nil {
			return err
		}
		entry, err := newQueueEntry(models.ActionDeleteAnimal, id, 0, nil)
		if err != nil {
			return err
		}
		return tx.Enqueue(entry)
	})
	if err != nil {
		return nil, r.fail(err)
	}
	notify.Warning(r.notifier, fmt.Sprintf("Animal %s archived offline, will sync when back online", current.TagID))
	return current, nil
}

// UploadPhoto attaches a photo to an animal. Binary uploads are never
// queued: the call requires a connection and a server-confirmed id.
func (r *Repository) UploadPhoto(ctx context.Context, id int64, filename string, photo io.Reader) (*models.Animal, error) {
	if id < 0 {
		return nil, r.fail(errors.New(errors.KindPrecondition, "animal is not synced yet, photo upload needs a confirmed record"))
	}
	if !r.conn.Online() {
		return nil, r.fail(errors.New(errors.KindPrecondition, "photo upload requires a connection"))
	}
	a, err := r.client.UploadPhoto(ctx, id, filename, photo)
	if err != nil {
		if errors.Is(err, errors.KindNetwork) {
			r.conn.MarkOffline()
		}
		return nil, r.fail(err)
	}
	err = r.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.PutAnimal(a)
	})
	if err != nil {
		return nil, r.fail(err)
	}
	notify.Success(r.notifier, fmt.Sprintf("Photo uploaded for %s", a.TagID))
	return a, nil
}
