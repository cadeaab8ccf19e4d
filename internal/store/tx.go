package store

import (
	"context"
	"database/sql"

	"herdsync/internal/errors"
)

// Tx is a write transaction spanning any number of tables. Row
// mutations go through Tx methods so the set of touched tables is
// recorded and published once on commit.
type Tx struct {
	tx      *sql.Tx
	touched map[string]struct{}
}

func (t *Tx) touch(table string) {
	t.touched[table] = struct{}{}
}

// Exec runs a statement against the transaction and records the table
// as touched. Used by row helpers in this package.
func (t *Tx) exec(table, query string, args ...any) (sql.Result, error) {
	res, err := t.tx.Exec(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "write "+table, err)
	}
	t.touch(table)
	return res, nil
}

// WithTx runs fn inside a single transaction. On success the touched
// tables are reported to the change listener; on error everything
// rolls back and nothing is published.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "begin transaction", err)
	}

	tx := &Tx{tx: sqlTx, touched: make(map[string]struct{})}

	if err := fn(tx); err != nil {
		sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return errors.Wrap(errors.KindStorage, "commit transaction", err)
	}

	tables := make([]string, 0, len(tx.touched))
	for table := range tx.touched {
		tables = append(tables, table)
	}
	s.notify(tables)
	return nil
}
