package store

import (
	"database/sql"

	"herdsync/internal/errors"
	"herdsync/internal/models"
)

const animalColumns = `id, tag_id, name, breed, birth_date, gender, status, dam_id, sire_id,
	group_id, weight_kg, photo_url, exit_date, exit_reason, created_at, updated_at`

func scanAnimal(row interface{ Scan(...any) error }) (*models.Animal, error) {
	var a models.Animal
	var damID, sireID, groupID sql.NullInt64
	var weight sql.NullFloat64
	var exitDate sql.NullString

	err := row.Scan(
		&a.ID, &a.TagID, &a.Name, &a.Breed, &a.BirthDate, &a.Gender, &a.Status,
		&damID, &sireID, &groupID, &weight, &a.PhotoURL, &exitDate, &a.ExitReason,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if damID.Valid {
		a.DamID = &damID.Int64
	}
	if sireID.Valid {
		a.SireID = &sireID.Int64
	}
	if groupID.Valid {
		a.GroupID = &groupID.Int64
	}
	if weight.Valid {
		a.WeightKg = &weight.Float64
	}
	if exitDate.Valid {
		a.ExitDate = &exitDate.String
	}
	return &a, nil
}

// GetAnimal retrieves a cached animal by id.
func (s *Store) GetAnimal(id int64) (*models.Animal, error) {
	row := s.db.QueryRow("SELECT "+animalColumns+" FROM animals WHERE id = ?", id)
	a, err := scanAnimal(row)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.KindNotFound, "animal %d not in local cache", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "get animal", err)
	}
	return a, nil
}

// GetAnimalByTag retrieves a cached animal by its unique tag,
// regardless of whether the row is confirmed or still pending.
func (s *Store) GetAnimalByTag(tagID string) (*models.Animal, error) {
	row := s.db.QueryRow("SELECT "+animalColumns+" FROM animals WHERE tag_id = ?", tagID)
	a, err := scanAnimal(row)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.KindNotFound, "no animal with tag %q in local cache", tagID)
	}
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "get animal by tag", err)
	}
	return a, nil
}

// ListAnimals returns cached animals, optionally filtered by status.
// An empty status returns every row, newest first.
func (s *Store) ListAnimals(status string) ([]*models.Animal, error) {
	query := "SELECT " + animalColumns + " FROM animals"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "list animals", err)
	}
	defer rows.Close()

	var animals []*models.Animal
	for rows.Next() {
		a, err := scanAnimal(rows)
		if err != nil {
			return nil, errors.Wrap(errors.KindStorage, "scan animal", err)
		}
		animals = append(animals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "iterate animals", err)
	}
	return animals, nil
}

// PutAnimal writes an animal row keyed by its id, replacing any
// existing row with that id.
func (t *Tx) PutAnimal(a *models.Animal) error {
	_, err := t.exec(TableAnimals, `
	INSERT OR REPLACE INTO animals
		(id, tag_id, name, breed, birth_date, gender, status, dam_id, sire_id,
		 group_id, weight_kg, photo_url, exit_date, exit_reason, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TagID, a.Name, a.Breed, a.BirthDate, a.Gender, a.Status,
		a.DamID, a.SireID, a.GroupID, a.WeightKg, a.PhotoURL, a.ExitDate, a.ExitReason,
		a.CreatedAt, a.UpdatedAt,
	)
	return err
}

// SetAnimalStatus flips the lifecycle status of a cached row.
func (t *Tx) SetAnimalStatus(id int64, status string, updatedAt int64) error {
	res, err := t.exec(TableAnimals,
		"UPDATE animals SET status = ?, updated_at = ? WHERE id = ?", status, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Newf(errors.KindNotFound, "animal %d not in local cache", id)
	}
	return nil
}

// DeleteAnimal removes a cached row entirely. Only used to discard an
// optimistic row the server permanently rejected; confirmed animals
// are archived, never deleted.
func (t *Tx) DeleteAnimal(id int64) error {
	_, err := t.exec(TableAnimals, "DELETE FROM animals WHERE id = ?", id)
	return err
}

// ReplaceAnimals replaces the whole cached animal table with rows
// fetched from the remote store. Pending rows (negative ids) survive
// the replacement: they do not exist remotely yet.
func (t *Tx) ReplaceAnimals(animals []*models.Animal) error {
	if _, err := t.exec(TableAnimals, "DELETE FROM animals WHERE id > 0"); err != nil {
		return err
	}
	for _, a := range animals {
		if err := t.PutAnimal(a); err != nil {
			return err
		}
	}
	return nil
}
