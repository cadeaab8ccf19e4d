// Package repository is the single read/write facade over the local
// store and the network client. Reads come exclusively from cache;
// writes pick the online-direct or offline-queued branch based on
// connectivity.
package repository

import (
	"github.com/sirupsen/logrus"

	"herdsync/internal/api"
	"herdsync/internal/errors"
	"herdsync/internal/logging"
	"herdsync/internal/models"
	"herdsync/internal/notify"
	"herdsync/internal/store"
)

// Connectivity is the reachability view the repository consults,
// satisfied by connectivity.Monitor.
type Connectivity interface {
	Online() bool
	MarkOffline()
}

// Repository resolves optimistic vs confirmed state and owns every
// write to the local store and the mutation queue.
type Repository struct {
	store    *store.Store
	client   *api.Client
	conn     Connectivity
	notifier notify.Notifier
	log      *logrus.Entry
}

// New creates a Repository.
func New(s *store.Store, client *api.Client, conn Connectivity, notifier notify.Notifier) *Repository {
	return &Repository{
		store:    s,
		client:   client,
		conn:     conn,
		notifier: notifier,
		log:      logging.Component("repository"),
	}
}

// fail publishes the error-level notice for a terminal failure and
// returns the error unchanged. The notice names the offending field
// when the error carries one.
func (r *Repository) fail(err error) error {
	field := ""
	message := err.Error()
	if fields := errors.FieldErrors(err); len(fields) > 0 {
		for f, msg := range fields {
			field = f
			message = msg
			break
		}
	}
	notify.Error(r.notifier, message, field)
	return err
}

// validateAnimalPayload rejects structurally invalid payloads before
// any state mutation, online or offline.
func validateAnimalPayload(p *models.AnimalPayload) error {
	if p.DamID != nil && p.SireID != nil && *p.DamID == *p.SireID {
		return errors.Field("sire", "dam and sire cannot be the same animal")
	}
	if p.Gender != nil && *p.Gender != models.GenderMale && *p.Gender != models.GenderFemale {
		return errors.Field("gender", "gender must be M or F")
	}
	if p.Status != nil {
		switch *p.Status {
		case models.StatusActive, models.StatusSold, models.StatusArchived:
		default:
			return errors.Field("status", "unknown status")
		}
	}
	return nil
}

func validateNewAnimal(p *models.AnimalPayload) error {
	if p.TagID == nil || *p.TagID == "" {
		return errors.Field("tag_id", "tag is required")
	}
	if p.Name == nil || *p.Name == "" {
		return errors.Field("name", "name is required")
	}
	if p.BirthDate == nil || *p.BirthDate == "" {
		return errors.Field("birth_date", "birth date is required")
	}
	return validateAnimalPayload(p)
}
