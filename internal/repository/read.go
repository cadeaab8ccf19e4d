package repository

import (
	"context"
	"strconv"
	"time"

	"herdsync/internal/errors"
	"herdsync/internal/models"
	"herdsync/internal/store"
)

// withParents decorates animals with the cached names of their dam
// and sire. Parents missing from the cache resolve to empty names.
func withParents(animals, herd []*models.Animal) []*models.AnimalWithParents {
	byID := make(map[int64]*models.Animal, len(herd))
	for _, a := range herd {
		byID[a.ID] = a
	}
	out := make([]*models.AnimalWithParents, 0, len(animals))
	for _, a := range animals {
		wp := &models.AnimalWithParents{Animal: *a, Pending: a.Pending()}
		if a.DamID != nil {
			if dam, ok := byID[*a.DamID]; ok {
				wp.DamName = dam.Name
			}
		}
		if a.SireID != nil {
			if sire, ok := byID[*a.SireID]; ok {
				wp.SireName = sire.Name
			}
		}
		out = append(out, wp)
	}
	return out
}

// ListAnimals returns cached animals, optionally filtered by status,
// with dam and sire names resolved. Parent names resolve against the
// whole herd, so a SOLD dam still names correctly on an ACTIVE list.
func (r *Repository) ListAnimals(status string) ([]*models.AnimalWithParents, error) {
	herd, err := r.store.ListAnimals("")
	if err != nil {
		return nil, err
	}
	if status == "" {
		return withParents(herd, herd), nil
	}
	filtered := herd[:0:0]
	for _, a := range herd {
		if a.Status == status {
			filtered = append(filtered, a)
		}
	}
	return withParents(filtered, herd), nil
}

// GetAnimal returns one cached animal with parent names resolved.
func (r *Repository) GetAnimal(id int64) (*models.AnimalWithParents, error) {
	a, err := r.store.GetAnimal(id)
	if err != nil {
		return nil, err
	}
	wp := &models.AnimalWithParents{Animal: *a, Pending: a.Pending()}
	if a.DamID != nil {
		if dam, err := r.store.GetAnimal(*a.DamID); err == nil {
			wp.DamName = dam.Name
		}
	}
	if a.SireID != nil {
		if sire, err := r.store.GetAnimal(*a.SireID); err == nil {
			wp.SireName = sire.Name
		}
	}
	return wp, nil
}

// SearchAnimalByTag looks a tag up in the cache. On a cache miss
// while online the remote store is asked as a fallback and a hit is
// cached, so a tag scanned on a fresh device still resolves.
func (r *Repository) SearchAnimalByTag(ctx context.Context, tagID string) (*models.Animal, error) {
	a, err := r.store.GetAnimalByTag(tagID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, errors.KindNotFound) || !r.conn.Online() {
		return nil, err
	}
	remote, rerr := r.client.SearchAnimal(ctx, tagID)
	if rerr != nil {
		if errors.Is(rerr, errors.KindNetwork) {
			r.conn.MarkOffline()
			return nil, err
		}
		return nil, rerr
	}
	err = r.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.PutAnimal(remote)
	})
	if err != nil {
		return nil, err
	}
	return remote, nil
}

// LastSyncedAt reports when a drain last confirmed queued mutations;
// ok is false before the first successful drain.
func (r *Repository) LastSyncedAt() (int64, bool) {
	raw, ok, err := r.store.GetMeta(store.MetaLastSyncAt)
	if err != nil || !ok {
		return 0, false
	}
	at, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return at, true
}

// Stats computes herd statistics from the cached animals.
func (r *Repository) Stats() (*models.HerdStats, error) {
	animals, err := r.store.ListAnimals("")
	if err != nil {
		return nil, err
	}
	stats := &models.HerdStats{ByGender: map[string]int{}, ByBreed: map[string]int{}}
	now := time.Now()
	var ageSum int
	for _, a := range animals {
		stats.Total++
		stats.ByGender[a.Gender]++
		stats.ByBreed[a.Breed]++
		ageSum += a.AgeYears(now)
	}
	if stats.Total > 0 {
		stats.AverageAge = float64(ageSum) / float64(stats.Total)
	}
	return stats, nil
}

// ListEvents returns cached events for one animal, or the whole log
// when animalID is zero.
func (r *Repository) ListEvents(animalID int64) ([]*models.Event, error) {
	return r.store.ListEvents(animalID)
}

// ListTasks returns cached tasks ordered by due date. Pass animalID 0
// for every animal.
func (r *Repository) ListTasks(animalID int64) ([]*models.Task, error) {
	return r.store.ListTasks(animalID)
}

// ListOverdueTasks returns open cached tasks whose due date has
// passed.
func (r *Repository) ListOverdueTasks() ([]*models.Task, error) {
	tasks, err := r.store.ListTasks(0)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	overdue := make([]*models.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.Overdue(now) {
			overdue = append(overdue, task)
		}
	}
	return overdue, nil
}

// ListDocuments returns cached documents for one animal.
func (r *Repository) ListDocuments(animalID int64) ([]*models.Document, error) {
	return r.store.ListDocuments(animalID)
}

// QueueDepth reports the number of pending queued mutations.
func (r *Repository) QueueDepth() (int, error) {
	return r.store.QueueDepth()
}

// RefreshAnimals replaces the cached herd with the server snapshot.
// A failed fetch is logged and swallowed so the stale cache keeps
// serving reads.
func (r *Repository) RefreshAnimals(ctx context.Context) {
	animals, err := r.client.ListAnimals(ctx)
	if err != nil {
		r.log.WithError(err).Warn("animal refresh skipped")
		return
	}
	err = r.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.ReplaceAnimals(animals)
	})
	if err != nil {
		r.log.WithError(err).Warn("animal refresh failed to apply")
	}
}

// RefreshEvents replaces the cached event log for one animal.
func (r *Repository) RefreshEvents(ctx context.Context, animalID int64) {
	events, err := r.client.ListEvents(ctx, animalID)
	if err != nil {
		r.log.WithError(err).Warn("event refresh skipped")
		return
	}
	err = r.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.ReplaceEvents(animalID, events)
	})
	if err != nil {
		r.log.WithError(err).Warn("event refresh failed to apply")
	}
}

// RefreshTasks replaces the cached task list with the server snapshot.
func (r *Repository) RefreshTasks(ctx context.Context) {
	tasks, err := r.client.ListTasks(ctx)
	if err != nil {
		r.log.WithError(err).Warn("task refresh skipped")
		return
	}
	err = r.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.ReplaceTasks(0, tasks)
	})
	if err != nil {
		r.log.WithError(err).Warn("task refresh failed to apply")
	}
}

// RefreshDocuments replaces the cached documents for one animal.
func (r *Repository) RefreshDocuments(ctx context.Context, animalID int64) {
	docs, err := r.client.ListDocuments(ctx, animalID)
	if err != nil {
		r.log.WithError(err).Warn("document refresh skipped")
		return
	}
	err = r.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.ReplaceDocuments(animalID, docs)
	})
	if err != nil {
		r.log.WithError(err).Warn("document refresh failed to apply")
	}
}
