// Package syncqueue drains the offline mutation queue: it ships the
// queued jobs to the remote store as one ordered batch, remaps
// temporary ids to server-assigned ones, and applies compensating
// actions for jobs the server rejected.
package syncqueue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"herdsync/internal/api"
	"herdsync/internal/errors"
	"herdsync/internal/logging"
	"herdsync/internal/models"
	"herdsync/internal/notify"
	"herdsync/internal/store"
)

// Processor states.
const (
	StateIdle     = "idle"
	StateDraining = "draining"
)

const defaultRetriggerDelay = 2 * time.Second

// Connectivity is the reachability view the processor consults.
type Connectivity interface {
	Online() bool
	MarkOffline()
}

// Refresher re-syncs the animal table after the server reports an
// update against an entity it no longer has.
type Refresher interface {
	RefreshAnimals(ctx context.Context)
}

// tempIDRefs is the directed dependency list the remap step iterates:
// every column that may cache a temporary id as a foreign key. The
// temp id counter is global across entity types, so a blanket rewrite
// over the list can never hit the wrong row.
var tempIDRefs = []struct {
	table  string
	column string
}{
	{store.TableAnimals, "dam_id"},
	{store.TableAnimals, "sire_id"},
	{store.TableEvents, "animal_id"},
	{store.TableTasks, "animal_id"},
	{store.TableDocuments, "animal_id"},
	{store.TableSyncQueue, "entity_id"},
}

// payloadRefKeys are the JSON keys inside queued payloads that may
// carry a temporary id.
var payloadRefKeys = []string{"animal", "dam", "sire"}

// rowTableFor maps a create action to the table owning the optimistic
// row whose id gets rewritten.
func rowTableFor(action string) string {
	switch action {
	case models.ActionCreateAnimal:
		return store.TableAnimals
	case models.ActionCreateEvent:
		return store.TableEvents
	case models.ActionCreateTask:
		return store.TableTasks
	}
	return ""
}

// Processor owns the drain state machine. At most one drain cycle
// runs at a time; a trigger arriving mid-cycle sets the rerun flag
// instead of starting a second cycle.
type Processor struct {
	store     *store.Store
	client    *api.Client
	conn      Connectivity
	notifier  notify.Notifier
	refresher Refresher
	log       *logrus.Entry

	retriggerDelay time.Duration

	mu    sync.Mutex
	state string
	rerun bool
}

// Option tweaks processor construction.
type Option func(*Processor)

// WithRetriggerDelay sets the pause before a residual-queue re-drain.
func WithRetriggerDelay(d time.Duration) Option {
	return func(p *Processor) { p.retriggerDelay = d }
}

// New creates an idle Processor. refresher may be nil, which disables
// the missing-entity compensation refresh.
func New(s *store.Store, client *api.Client, conn Connectivity, notifier notify.Notifier, refresher Refresher, opts ...Option) *Processor {
	p := &Processor{
		store:          s,
		client:         client,
		conn:           conn,
		notifier:       notifier,
		refresher:      refresher,
		log:            logging.Component("syncqueue"),
		retriggerDelay: defaultRetriggerDelay,
		state:          StateIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State reports the current drain state.
func (p *Processor) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Drain runs one drain cycle. It is an idempotent no-op when a cycle
// is already running, the device is offline, or the queue is empty.
// A transport failure of the batch call aborts the cycle without
// consuming the queue.
func (p *Processor) Drain(ctx context.Context) error {
	p.mu.Lock()
	if p.state == StateDraining {
		p.rerun = true
		p.mu.Unlock()
		return nil
	}
	p.state = StateDraining
	p.rerun = false
	p.mu.Unlock()

	ran, err := p.cycle(ctx)

	p.mu.Lock()
	p.state = StateIdle
	rerun := p.rerun
	p.rerun = false
	p.mu.Unlock()

	if err != nil {
		return err
	}
	// A guarded-out cycle (offline, empty queue) is a terminal no-op;
	// re-triggering it would spin forever while offline.
	if !ran && !rerun {
		return nil
	}

	// Entries enqueued during the cycle were not in the snapshot;
	// pick them up after a short pause.
	depth, derr := p.store.QueueDepth()
	if derr == nil && (depth > 0 || rerun) {
		time.AfterFunc(p.retriggerDelay, func() {
			if err := p.Drain(context.Background()); err != nil {
				p.log.WithError(err).Warn("re-triggered drain failed")
			}
		})
	}
	return nil
}

// cycle runs one drain pass. The bool reports whether a batch was
// actually submitted; guarded-out passes return false so the caller
// does not re-trigger them.
func (p *Processor) cycle(ctx context.Context) (bool, error) {
	if !p.conn.Online() {
		return false, nil
	}
	batch, err := p.store.ListQueue()
	if err != nil {
		return false, err
	}
	if len(batch) == 0 {
		return false, nil
	}

	jobs := make([]api.SyncJob, len(batch))
	for i, entry := range batch {
		jobs[i] = api.SyncJob{
			LocalID:        entry.LocalID,
			Action:         entry.Action,
			EntityID:       entry.EntityID,
			TempID:         entry.TempID,
			IdempotencyKey: entry.IdempotencyKey,
			Payload:        entry.Payload,
		}
	}

	p.log.WithField("jobs", len(jobs)).Info("draining sync queue")
	resp, err := p.client.Sync(ctx, jobs)
	if err != nil {
		if errors.Is(err, errors.KindNetwork) {
			p.conn.MarkOffline()
		}
		p.log.WithError(err).Warn("batch sync failed, queue left intact")
		return false, err
	}

	byLocalID := make(map[int64]*models.SyncQueueEntry, len(batch))
	for _, entry := range batch {
		byLocalID[entry.LocalID] = entry
	}

	var synced, failed int
	var needsAnimalRefresh bool
	err = p.store.WithTx(ctx, func(tx *store.Tx) error {
		for _, res := range resp.Results {
			entry, ok := byLocalID[res.QueueID]
			if !ok {
				p.log.WithField("queueId", res.QueueID).Warn("result for unknown queue entry")
				continue
			}
			switch res.Status {
			case api.JobStatusOK, api.JobStatusMerged:
				if entry.Creates() && res.RealID != 0 {
					if err := p.remap(tx, entry, res.RealID); err != nil {
						return err
					}
				}
				if err := tx.DeleteQueueEntry(entry.LocalID); err != nil {
					return err
				}
				synced++
			case api.JobStatusError:
				if err := tx.DeleteQueueEntry(entry.LocalID); err != nil {
					return err
				}
				failed++
				if p.compensate(tx, entry, res.Error) {
					needsAnimalRefresh = true
				}
			default:
				p.log.WithFields(logrus.Fields{
					"queueId": res.QueueID,
					"status":  res.Status,
				}).Warn("unknown job status, entry left queued")
			}
		}
		if synced > 0 {
			stamp := strconv.FormatInt(time.Now().Unix(), 10)
			if err := tx.SetMeta(store.MetaLastSyncAt, stamp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return true, err
	}

	if synced > 0 {
		notify.Success(p.notifier, fmt.Sprintf("Synced %d offline change(s)", synced))
	}
	p.log.WithFields(logrus.Fields{"synced": synced, "failed": failed}).Info("drain cycle complete")

	if needsAnimalRefresh && p.refresher != nil {
		p.refresher.RefreshAnimals(ctx)
	}
	return true, nil
}

// remap rewrites a confirmed create's temporary id to the real one:
// the row itself, every foreign-key column in the dependency list,
// and id references inside still-queued payloads. All of it runs in
// the caller's transaction so a crash cannot orphan children.
func (p *Processor) remap(tx *store.Tx, entry *models.SyncQueueEntry, realID int64) error {
	table := rowTableFor(entry.Action)
	if table == "" {
		return nil
	}
	if err := tx.RewriteRowID(table, entry.TempID, realID); err != nil {
		return err
	}
	for _, ref := range tempIDRefs {
		if err := tx.RewriteForeignKey(ref.table, ref.column, entry.TempID, realID); err != nil {
			return err
		}
	}
	return tx.RewriteQueuePayloads(payloadRefKeys, entry.TempID, realID)
}

// compensate handles a server-rejected job. Returns true when the
// failure calls for a full animal re-sync.
func (p *Processor) compensate(tx *store.Tx, entry *models.SyncQueueEntry, msg string) bool {
	switch {
	case entry.Action == models.ActionCreateAnimal && isUniqueConflict(msg):
		// The server rejected the tag permanently; the optimistic
		// row can never confirm.
		if err := tx.DeleteAnimal(entry.TempID); err != nil {
			p.log.WithError(err).Warn("failed to remove rejected optimistic row")
		}
		notify.Error(p.notifier, fmt.Sprintf("Animal could not be synced: %s", msg), "tag_id")
		return false
	case entry.Action == models.ActionUpdateAnimal && isMissingEntity(msg):
		notify.Warning(p.notifier, "Animal was changed on the server, re-syncing the herd")
		return true
	default:
		// Accepted drift: local optimistic state stays as-is.
		notify.Warning(p.notifier, fmt.Sprintf("Change could not be synced: %s", msg))
		return false
	}
}

func isUniqueConflict(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "unique") || strings.Contains(m, "already exists") ||
		strings.Contains(m, "duplicate")
}

func isMissingEntity(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "not found") || strings.Contains(m, "does not exist")
}
