package store

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"herdsync/internal/errors"
)

// migration is one additive schema step. Existing rows always migrate
// forward; destructive changes are not allowed.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "animals and events tables",
		SQL: `
		CREATE TABLE animals (
			id INTEGER PRIMARY KEY,
			tag_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			breed TEXT NOT NULL DEFAULT 'Highland Cattle',
			birth_date TEXT NOT NULL,
			gender TEXT NOT NULL DEFAULT 'F',
			dam_id INTEGER,
			sire_id INTEGER,
			group_id INTEGER,
			weight_kg REAL,
			photo_url TEXT NOT NULL DEFAULT '',
			exit_date TEXT,
			exit_reason TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX idx_animals_name ON animals(name);
		CREATE INDEX idx_animals_breed ON animals(breed);
		CREATE INDEX idx_animals_dam ON animals(dam_id);
		CREATE INDEX idx_animals_sire ON animals(sire_id);
		CREATE INDEX idx_animals_group ON animals(group_id);

		CREATE TABLE events (
			id INTEGER PRIMARY KEY,
			animal_id INTEGER NOT NULL,
			event_type TEXT NOT NULL DEFAULT 'OTHER',
			date TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
		CREATE INDEX idx_events_animal ON events(animal_id);
		CREATE INDEX idx_events_date ON events(date);
		CREATE INDEX idx_events_type ON events(event_type);
		`,
	},
	{
		Version:     2,
		Description: "offline mutation queue",
		SQL: `
		CREATE TABLE sync_queue (
			local_id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			entity_id INTEGER NOT NULL DEFAULT 0,
			temp_id INTEGER NOT NULL DEFAULT 0,
			payload TEXT,
			idempotency_key TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX idx_queue_action ON sync_queue(action);
		CREATE INDEX idx_queue_entity ON sync_queue(entity_id);
		`,
	},
	{
		Version:     3,
		Description: "index queue entries by temporary id for remapping",
		SQL: `
		CREATE INDEX idx_queue_temp ON sync_queue(temp_id);
		`,
	},
	{
		Version:     4,
		Description: "animal lifecycle status",
		SQL: `
		ALTER TABLE animals ADD COLUMN status TEXT NOT NULL DEFAULT 'ACTIVE';
		CREATE INDEX idx_animals_status ON animals(status);
		`,
	},
	{
		Version:     5,
		Description: "tasks, documents and engine metadata",
		SQL: `
		CREATE TABLE tasks (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			due_date TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			animal_id INTEGER,
			notes TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX idx_tasks_due ON tasks(due_date);
		CREATE INDEX idx_tasks_animal ON tasks(animal_id);
		CREATE INDEX idx_tasks_completed ON tasks(completed);

		CREATE TABLE documents (
			id INTEGER PRIMARY KEY,
			animal_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			file_url TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT '',
			uploaded_at INTEGER NOT NULL
		);
		CREATE INDEX idx_documents_animal ON documents(animal_id);

		CREATE TABLE meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		INSERT INTO meta (key, value) VALUES ('temp_id_counter', '0');
		`,
	},
}

// Migrate applies all pending schema migrations in order. Already
// applied versions are checksum-verified so a modified migration is
// caught instead of silently diverging.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL,
		description TEXT NOT NULL,
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`); err != nil {
		return errors.Wrap(errors.KindStorage, "create schema_migrations", err)
	}

	applied := make(map[int]string)
	rows, err := s.db.Query("SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return errors.Wrap(errors.KindStorage, "read applied migrations", err)
	}
	for rows.Next() {
		var version int
		var checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			rows.Close()
			return errors.Wrap(errors.KindStorage, "scan migration row", err)
		}
		applied[version] = checksum
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errors.Wrap(errors.KindStorage, "iterate migrations", err)
	}

	for _, m := range migrations {
		sum := checksum(m.SQL)
		if prev, ok := applied[m.Version]; ok {
			if prev != sum {
				return errors.Newf(errors.KindStorage,
					"migration %d checksum mismatch: applied %s, current %s", m.Version, prev, sum)
			}
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return errors.Wrap(errors.KindStorage, "begin migration", err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return errors.Wrap(errors.KindStorage, "apply migration "+m.Description, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, applied_at, description, checksum) VALUES (?, ?, ?, ?)",
			m.Version, time.Now().Unix(), m.Description, sum,
		); err != nil {
			tx.Rollback()
			return errors.Wrap(errors.KindStorage, "record migration", err)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrap(errors.KindStorage, "commit migration", err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, errors.Wrap(errors.KindStorage, "read schema version", err)
	}
	return version, nil
}

func checksum(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}
