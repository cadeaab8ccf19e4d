package store

import (
	"herdsync/internal/errors"
	"herdsync/internal/models"
)

const documentColumns = "id, animal_id, name, file_url, content_type, uploaded_at"

// ListDocuments returns cached document metadata for one animal, or
// for every animal when animalID is 0.
func (s *Store) ListDocuments(animalID int64) ([]*models.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents"
	var args []any
	if animalID != 0 {
		query += " WHERE animal_id = ?"
		args = append(args, animalID)
	}
	query += " ORDER BY uploaded_at DESC, id DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "list documents", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.AnimalID, &d.Name, &d.FileURL, &d.ContentType, &d.UploadedAt); err != nil {
			return nil, errors.Wrap(errors.KindStorage, "scan document", err)
		}
		docs = append(docs, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "iterate documents", err)
	}
	return docs, nil
}

// PutDocument writes a document metadata row keyed by its id.
func (t *Tx) PutDocument(d *models.Document) error {
	_, err := t.exec(TableDocuments, `
	INSERT OR REPLACE INTO documents (id, animal_id, name, file_url, content_type, uploaded_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.AnimalID, d.Name, d.FileURL, d.ContentType, d.UploadedAt,
	)
	return err
}

// DeleteDocument removes a cached document row.
func (t *Tx) DeleteDocument(id int64) error {
	_, err := t.exec(TableDocuments, "DELETE FROM documents WHERE id = ?", id)
	return err
}

// ReplaceDocuments replaces cached document rows with a server
// snapshot, scoped to one animal when animalID is non-zero.
func (t *Tx) ReplaceDocuments(animalID int64, docs []*models.Document) error {
	query := "DELETE FROM documents"
	var args []any
	if animalID != 0 {
		query += " WHERE animal_id = ?"
		args = append(args, animalID)
	}
	if _, err := t.exec(TableDocuments, query, args...); err != nil {
		return err
	}
	for _, d := range docs {
		if err := t.PutDocument(d); err != nil {
			return err
		}
	}
	return nil
}
