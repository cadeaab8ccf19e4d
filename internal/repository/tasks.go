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

func validateNewTask(p *models.TaskPayload) error {
	if p.Title == nil || *p.Title == "" {
		return errors.Field("title", "title is required")
	}
	if p.DueDate == nil || *p.DueDate == "" {
		return errors.Field("due_date", "due date is required")
	}
	return nil
}

// pendingAnimalRef rejects task payloads that point at a locally
// minted animal. Same rule as events: the reference could replay
// before the animal's real id exists.
func pendingAnimalRef(p *models.TaskPayload) error {
	if p.AnimalID != nil && *p.AnimalID < 0 {
		return errors.New(errors.KindPrecondition,
			"animal is not synced yet, sync before linking tasks to it")
	}
	return nil
}

func applyTaskPayload(t *models.Task, p *models.TaskPayload) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.AnimalID != nil {
		t.AnimalID = p.AnimalID
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
}

// CreateTask adds a reminder, optionally linked to one animal.
func (r *Repository) CreateTask(ctx context.Context, p *models.TaskPayload) (*models.Task, error) {
	if err := validateNewTask(p); err != nil {
		return nil, r.fail(err)
	}
	if err := pendingAnimalRef(p); err != nil {
		return nil, r.fail(err)
	}

	if r.conn.Online() {
		t, err := r.client.CreateTask(ctx, p)
		if err != nil {
			if errors.Is(err, errors.KindNetwork) {
				r.conn.MarkOffline()
			}
			return nil, r.fail(err)
		}
		err = r.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.PutTask(t)
		})
		if err != nil {
			return nil, r.fail(err)
		}
		notify.Success(r.notifier, fmt.Sprintf("Task %q added", t.Title))
		return t, nil
	}

	now := time.Now().Unix()
	t := &models.Task{CreatedAt: now, UpdatedAt: now}
	applyTaskPayload(t, p)
	err := r.store.WithTx(ctx, func(tx *store.Tx) error {
		id, err := tx.NextTempID()
		if err != nil {
			return err
		}
		t.ID = id
		if err := tx.PutTask(t); err != nil {
			return err
		}
		entry, err := newQueueEntry(models.ActionCreateTask, 0, id, p)
		if err != nil {
			return err
		}
		return tx.Enqueue(entry)
	})
	if err != nil {
		return nil, r.fail(err)
	}
	notify.Warning(r.notifier, fmt.Sprintf("Task %q saved offline, will sync when back online", t.Title))
	return t, nil
}

// UpdateTask applies a partial update, completion toggles included.
func (r *Repository) UpdateTask(ctx context.Context, id int64, p *models.TaskPayload) (*models.Task, error) {
	if err := pendingAnimalRef(p); err != nil {
		return nil, r.fail(err)
	}
	current, err := r.store.GetTask(id)
	if err != nil {
		return nil, r.fail(err)
	}

	if r.conn.Online() {
		t, err := r.client.UpdateTask(ctx, id, p)
		if err != nil {
			if errors.Is(err, errors.KindNetwork) {
				r.conn.MarkOffline()
			}
			return nil, r.fail(err)
		}
		err = r.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.PutTask(t)
		})
		if err != nil {
			return nil, r.fail(err)
		}
		notify.Success(r.notifier, fmt.Sprintf("Task %q updated", t.Title))
		return t, nil
	}

	applyTaskPayload(current, p)
	current.Touch()
	err = r.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutTask(current); err != nil {
			return err
		}
		entry, err := newQueueEntry(models.ActionUpdateTask, id, 0, p)
		if err != nil {
			return err
		}
		return tx.Enqueue(entry)
	})
	if err != nil {
		return nil, r.fail(err)
	}
	notify.Warning(r.notifier, fmt.Sprintf("Task %q updated offline, will sync when back online", current.Title))
	return current, nil
}

// DeleteTask removes a task. Offline deletion of a still pending task
// queues against the temporary id; the drain rewrites the reference
// once the create confirms.
func (r *Repository) DeleteTask(ctx context.Context, id int64) error {
	if _, err := r.store.GetTask(id); err != nil {
		return r.fail(err)
	}

	if r.conn.Online() {
		if err := r.client.DeleteTask(ctx, id); err != nil {
			if errors.Is(err, errors.KindNetwork) {
				r.conn.MarkOffline()
			}
			return r.fail(err)
		}
		err := r.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.DeleteTask(id)
		})
		if err != nil {
			return r.fail(err)
		}
		notify.Success(r.notifier, "Task deleted")
		return nil
	}

	err := r.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.DeleteTask(id); err != nil {
			return err
		}
		entry, err := newQueueEntry(models.ActionDeleteTask, id, 0, nil)
		if err != nil {
			return err
		}
		return tx.Enqueue(entry)
	})
	if err != nil {
		return r.fail(err)
	}
	notify.Warning(r.notifier, "Task deleted offline, will sync when back online")
	return nil
}
