package repository

import (
	"herdsync/internal/live"
	"herdsync/internal/models"
	"herdsync/internal/store"
)

// Live query adapters. Each one names exactly the tables its read
// touches, so the subscription layer re-evaluates only when one of
// them changes.

// AnimalListQuery watches the herd list, optionally status-filtered.
func (r *Repository) AnimalListQuery(status string) live.QueryFunc[[]*models.AnimalWithParents] {
	return func() ([]*models.AnimalWithParents, []string, error) {
		animals, err := r.ListAnimals(status)
		return animals, []string{store.TableAnimals}, err
	}
}

// AnimalQuery watches a single animal. Parent names come from the
// same table, so one table covers the whole projection.
func (r *Repository) AnimalQuery(id int64) live.QueryFunc[*models.AnimalWithParents] {
	return func() (*models.AnimalWithParents, []string, error) {
		a, err := r.GetAnimal(id)
		return a, []string{store.TableAnimals}, err
	}
}

// StatsQuery watches the herd statistics.
func (r *Repository) StatsQuery() live.QueryFunc[*models.HerdStats] {
	return func() (*models.HerdStats, []string, error) {
		stats, err := r.Stats()
		return stats, []string{store.TableAnimals}, err
	}
}

// EventListQuery watches one animal's event log.
func (r *Repository) EventListQuery(animalID int64) live.QueryFunc[[]*models.Event] {
	return func() ([]*models.Event, []string, error) {
		events, err := r.ListEvents(animalID)
		return events, []string{store.TableEvents}, err
	}
}

// TaskListQuery watches the task list. Tasks reference animals, so
// an animal rename must re-resolve the projection too.
func (r *Repository) TaskListQuery(animalID int64) live.QueryFunc[[]*models.Task] {
	return func() ([]*models.Task, []string, error) {
		tasks, err := r.ListTasks(animalID)
		return tasks, []string{store.TableTasks, store.TableAnimals}, err
	}
}

// DocumentListQuery watches one animal's documents.
func (r *Repository) DocumentListQuery(animalID int64) live.QueryFunc[[]*models.Document] {
	return func() ([]*models.Document, []string, error) {
		docs, err := r.ListDocuments(animalID)
		return docs, []string{store.TableDocuments}, err
	}
}

// QueueDepthQuery watches the pending mutation count.
func (r *Repository) QueueDepthQuery() live.QueryFunc[int] {
	return func() (int, []string, error) {
		depth, err := r.QueueDepth()
		return depth, []string{store.TableSyncQueue}, err
	}
}
