package repository

import (
	"context"
	"fmt"
	"io"

	"herdsync/internal/errors"
	"herdsync/internal/models"
	"herdsync/internal/notify"
	"herdsync/internal/store"
)

// UploadDocument attaches a file to an animal. The binary payload
// cannot be queued, so the upload is rejected outright while offline,
// and the animal must carry a server-confirmed id.
func (r *Repository) UploadDocument(ctx context.Context, animalID int64, name, contentType string, file io.Reader) (*models.Document, error) {
	if animalID < 0 {
		return nil, r.fail(errors.New(errors.KindPrecondition,
			"animal is not synced yet, sync before attaching documents"))
	}
	if !r.conn.Online() {
		return nil, r.fail(errors.New(errors.KindPrecondition,
			"document upload requires a connection"))
	}
	d, err := r.client.UploadDocument(ctx, animalID, name, contentType, file)
	if err != nil {
		if errors.Is(err, errors.KindNetwork) {
			r.conn.MarkOffline()
		}
		return nil, r.fail(err)
	}
	err = r.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.PutDocument(d)
	})
	if err != nil {
		return nil, r.fail(err)
	}
	notify.Success(r.notifier, fmt.Sprintf("Document %q uploaded", d.Name))
	return d, nil
}

// DeleteDocument removes a document record. Deletion carries no
// binary payload, so offline it queues like any other mutation.
func (r *Repository) DeleteDocument(ctx context.Context, id int64) error {
	if r.conn.Online() {
		if err := r.client.DeleteDocument(ctx, id); err != nil {
			if errors.Is(err, errors.KindNetwork) {
				r.conn.MarkOffline()
			}
			return r.fail(err)
		}
		err := r.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.DeleteDocument(id)
		})
		if err != nil {
			return r.fail(err)
		}
		notify.Success(r.notifier, "Document deleted")
		return nil
	}

	err := r.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.DeleteDocument(id); err != nil {
			return err
		}
		entry, err := newQueueEntry(models.ActionDeleteDocument, id, 0, nil)
		if err != nil {
			return err
		}
		return tx.Enqueue(entry)
	})
	if err != nil {
		return r.fail(err)
	}
	notify.Warning(r.notifier, "Document deleted offline, will sync when back online")
	return nil
}
