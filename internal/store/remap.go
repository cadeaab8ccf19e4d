package store

import (
	"encoding/json"

	"herdsync/internal/errors"
)

// RewriteRowID rewrites a row's primary id from a temporary (negative)
// value to the server-assigned one.
func (t *Tx) RewriteRowID(table string, tempID, realID int64) error {
	_, err := t.exec(table, "UPDATE "+table+" SET id = ? WHERE id = ?", realID, tempID)
	return err
}

// RewriteForeignKey rewrites every reference to a temporary id in one
// {table, column} pair of the remap dependency list.
func (t *Tx) RewriteForeignKey(table, column string, tempID, realID int64) error {
	_, err := t.exec(table,
		"UPDATE "+table+" SET "+column+" = ? WHERE "+column+" = ?", realID, tempID)
	return err
}

// RewriteQueuePayloads rewrites queue entries whose JSON payload still
// references a temporary id under one of the given keys. Entries
// pointing at the temp id through entity_id are handled by
// RewriteForeignKey on sync_queue; this covers the payload body.
func (t *Tx) RewriteQueuePayloads(keys []string, tempID, realID int64) error {
	rows, err := t.tx.Query(
		"SELECT local_id, payload FROM sync_queue WHERE payload IS NOT NULL AND payload != ''")
	if err != nil {
		return errors.Wrap(errors.KindStorage, "read queue payloads", err)
	}

	type update struct {
		localID int64
		payload string
	}
	var updates []update

	for rows.Next() {
		var localID int64
		var raw string
		if err := rows.Scan(&localID, &raw); err != nil {
			rows.Close()
			return errors.Wrap(errors.KindStorage, "scan queue payload", err)
		}

		var body map[string]any
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			rows.Close()
			return errors.Wrap(errors.KindStorage, "decode queue payload", err)
		}

		changed := false
		for _, key := range keys {
			if v, ok := body[key]; ok {
				if n, ok := v.(float64); ok && int64(n) == tempID {
					body[key] = realID
					changed = true
				}
			}
		}
		if !changed {
			continue
		}

		rewritten, err := json.Marshal(body)
		if err != nil {
			rows.Close()
			return errors.Wrap(errors.KindStorage, "encode queue payload", err)
		}
		updates = append(updates, update{localID: localID, payload: string(rewritten)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errors.Wrap(errors.KindStorage, "iterate queue payloads", err)
	}

	for _, u := range updates {
		if _, err := t.exec(TableSyncQueue,
			"UPDATE sync_queue SET payload = ? WHERE local_id = ?", u.payload, u.localID); err != nil {
			return err
		}
	}
	return nil
}
