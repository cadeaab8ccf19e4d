package store

import (
	"herdsync/internal/errors"
	"herdsync/internal/models"
)

// Enqueue appends a mutation to the queue. LocalID is assigned by the
// store; insertion order is the replay order.
func (t *Tx) Enqueue(entry *models.SyncQueueEntry) error {
	res, err := t.exec(TableSyncQueue, `
	INSERT INTO sync_queue (action, entity_id, temp_id, payload, idempotency_key, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Action, entry.EntityID, entry.TempID, string(entry.Payload),
		entry.IdempotencyKey, entry.CreatedAt,
	)
	if err != nil {
		return err
	}
	entry.LocalID, err = res.LastInsertId()
	if err != nil {
		return errors.Wrap(errors.KindStorage, "queue entry id", err)
	}
	return nil
}

// ListQueue returns the whole queue in insertion (FIFO) order.
func (s *Store) ListQueue() ([]*models.SyncQueueEntry, error) {
	rows, err := s.db.Query(`
	SELECT local_id, action, entity_id, temp_id, payload, idempotency_key, created_at
	FROM sync_queue ORDER BY local_id ASC`)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "list queue", err)
	}
	defer rows.Close()

	var entries []*models.SyncQueueEntry
	for rows.Next() {
		var e models.SyncQueueEntry
		var payload string
		if err := rows.Scan(&e.LocalID, &e.Action, &e.EntityID, &e.TempID, &payload,
			&e.IdempotencyKey, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(errors.KindStorage, "scan queue entry", err)
		}
		if payload != "" {
			e.Payload = []byte(payload)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "iterate queue", err)
	}
	return entries, nil
}

// QueueDepth returns the number of pending mutations.
func (s *Store) QueueDepth() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sync_queue").Scan(&n); err != nil {
		return 0, errors.Wrap(errors.KindStorage, "count queue", err)
	}
	return n, nil
}

// DeleteQueueEntry removes one resolved entry.
func (t *Tx) DeleteQueueEntry(localID int64) error {
	_, err := t.exec(TableSyncQueue, "DELETE FROM sync_queue WHERE local_id = ?", localID)
	return err
}
