package store

import (
	"database/sql"

	"herdsync/internal/errors"
	"herdsync/internal/models"
)

const taskColumns = "id, title, due_date, completed, animal_id, notes, created_at, updated_at"

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	var t models.Task
	var animalID sql.NullInt64
	err := row.Scan(&t.ID, &t.Title, &t.DueDate, &t.Completed, &animalID, &t.Notes,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if animalID.Valid {
		t.AnimalID = &animalID.Int64
	}
	return &t, nil
}

// GetTask retrieves a cached task by id.
func (s *Store) GetTask(id int64) (*models.Task, error) {
	row := s.db.QueryRow("SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.KindNotFound, "task %d not in local cache", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "get task", err)
	}
	return t, nil
}

// ListTasks returns cached tasks ordered by due date. Pass animalID 0
// for every animal.
func (s *Store) ListTasks(animalID int64) ([]*models.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks"
	var args []any
	if animalID != 0 {
		query += " WHERE animal_id = ?"
		args = append(args, animalID)
	}
	query += " ORDER BY due_date ASC, id ASC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "list tasks", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, errors.Wrap(errors.KindStorage, "scan task", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "iterate tasks", err)
	}
	return tasks, nil
}

// PutTask writes a task row keyed by its id.
func (t *Tx) PutTask(task *models.Task) error {
	_, err := t.exec(TableTasks, `
	INSERT OR REPLACE INTO tasks (id, title, due_date, completed, animal_id, notes, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.DueDate, task.Completed, task.AnimalID, task.Notes,
		task.CreatedAt, task.UpdatedAt,
	)
	return err
}

// DeleteTask removes a cached task row.
func (t *Tx) DeleteTask(id int64) error {
	_, err := t.exec(TableTasks, "DELETE FROM tasks WHERE id = ?", id)
	return err
}

// ReplaceTasks replaces confirmed task rows with a server snapshot,
// scoped to one animal when animalID is non-zero.
func (t *Tx) ReplaceTasks(animalID int64, tasks []*models.Task) error {
	query := "DELETE FROM tasks WHERE id > 0"
	var args []any
	if animalID != 0 {
		query += " AND animal_id = ?"
		args = append(args, animalID)
	}
	if _, err := t.exec(TableTasks, query, args...); err != nil {
		return err
	}
	for _, task := range tasks {
		if err := t.PutTask(task); err != nil {
			return err
		}
	}
	return nil
}
