package store

import (
	"database/sql"
	"strconv"

	"herdsync/internal/errors"
)

const tempIDCounterKey = "temp_id_counter"

// MetaLastSyncAt records the unix time of the last drain cycle that
// confirmed at least one queued mutation.
const MetaLastSyncAt = "last_sync_at"

// NextTempID mints the next temporary id: a strictly decreasing
// negative counter persisted alongside the queue, so two rapid offline
// creates can never collide and the sequence survives restarts. Must
// run inside the same transaction as the optimistic write it serves.
func (t *Tx) NextTempID() (int64, error) {
	var raw string
	err := t.tx.QueryRow("SELECT value FROM meta WHERE key = ?", tempIDCounterKey).Scan(&raw)
	if err != nil {
		return 0, errors.Wrap(errors.KindStorage, "read temp id counter", err)
	}
	current, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrap(errors.KindStorage, "parse temp id counter", err)
	}

	next := current - 1
	if _, err := t.tx.Exec("UPDATE meta SET value = ? WHERE key = ?",
		strconv.FormatInt(next, 10), tempIDCounterKey); err != nil {
		return 0, errors.Wrap(errors.KindStorage, "advance temp id counter", err)
	}
	return next, nil
}

// GetMeta reads an engine metadata value; ok is false when unset.
func (s *Store) GetMeta(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(errors.KindStorage, "read meta", err)
	}
	return value, true, nil
}

// SetMeta writes an engine metadata value.
func (t *Tx) SetMeta(key, value string) error {
	_, err := t.tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "write meta", err)
	}
	return nil
}
