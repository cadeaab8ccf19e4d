package syncqueue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herdsync/internal/api"
	"herdsync/internal/models"
	"herdsync/internal/notify"
	"herdsync/internal/store"
)

type fakeConn struct {
	mu     sync.Mutex
	online bool
	checks int
}

func (c *fakeConn) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks++
	return c.online
}

// checkCount reports how many drain cycles consulted connectivity.
func (c *fakeConn) checkCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checks
}

func (c *fakeConn) MarkOffline() {
	c.mu.Lock()
	c.online = false
	c.mu.Unlock()
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []notify.Notice
}

func (r *noticeRecorder) Publish(n notify.Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *noticeRecorder) all() []notify.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Notice(nil), r.notices...)
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRefresher) RefreshAnimals(ctx context.Context) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeRefresher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func newClient(t *testing.T, handler http.Handler) *api.Client {
	t.Helper()
	baseURL := "http://127.0.0.1:1"
	if handler != nil {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		baseURL = srv.URL
	}
	c, err := api.New(api.Config{BaseURL: baseURL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

// syncHandler decodes the batch request and responds with fn's
// results, counting calls.
type syncHandler struct {
	mu    sync.Mutex
	calls int
	fn    func(jobs []api.SyncJob) []api.SyncJobResult
}

func (h *syncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	var req struct {
		Jobs []api.SyncJob `json:"jobs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(api.SyncResponse{
		Status:  "ok",
		Results: h.fn(req.Jobs),
	})
}

func (h *syncHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// allOK confirms every job, minting real ids for creates starting at
// base.
func allOK(base int64) func([]api.SyncJob) []api.SyncJobResult {
	next := base
	return func(jobs []api.SyncJob) []api.SyncJobResult {
		results := make([]api.SyncJobResult, len(jobs))
		for i, j := range jobs {
			res := api.SyncJobResult{QueueID: j.LocalID, Status: api.JobStatusOK, Action: j.Action}
			if j.TempID < 0 {
				res.TempID = j.TempID
				res.RealID = next
				next++
			}
			results[i] = res
		}
		return results
	}
}

func pendingAnimal(id int64, tag string) *models.Animal {
	now := time.Now().Unix()
	return &models.Animal{
		ID:        id,
		TagID:     tag,
		Name:      "Bella",
		Breed:     models.DefaultBreed,
		BirthDate: "2021-05-10",
		Gender:    models.GenderFemale,
		Status:    models.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func enqueueAction(t *testing.T, s *store.Store, action string, tempID int64, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, s.WithTx(context.Background(), func(tx *store.Tx) error {
		return tx.Enqueue(&models.SyncQueueEntry{
			Action:         action,
			TempID:         tempID,
			Payload:        raw,
			IdempotencyKey: uuid.NewString(),
			CreatedAt:      time.Now().Unix(),
		})
	}))
}

func enqueueCreate(t *testing.T, s *store.Store, tempID int64, payload any) {
	t.Helper()
	enqueueAction(t, s, models.ActionCreateAnimal, tempID, payload)
}

func TestDrainEmptyQueueIsNoop(t *testing.T) {
	s := newTestStore(t)
	h := &syncHandler{fn: allOK(100)}
	rec := &noticeRecorder{}
	p := New(s, newClient(t, h), &fakeConn{online: true}, rec, nil)

	require.NoError(t, p.Drain(context.Background()))

	assert.Zero(t, h.count())
	assert.Empty(t, rec.all())
	assert.Equal(t, StateIdle, p.State())
}

func TestDrainOfflineIsNoop(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WithTx(context.Background(), func(tx *store.Tx) error {
		return tx.PutAnimal(pendingAnimal(-1, "PL100"))
	}))
	enqueueCreate(t, s, -1, map[string]string{"tag_id": "PL100"})
	h := &syncHandler{fn: allOK(100)}
	p := New(s, newClient(t, h), &fakeConn{online: false}, &noticeRecorder{}, nil)

	require.NoError(t, p.Drain(context.Background()))

	assert.Zero(t, h.count())
	depth, err := s.QueueDepth()
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestDrainConfirmsOfflineCreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(tx *store.Tx) error {
		return tx.PutAnimal(pendingAnimal(-1, "PL100"))
	}))
	enqueueCreate(t, s, -1, map[string]string{"tag_id": "PL100", "name": "Bella"})

	h := &syncHandler{fn: allOK(42)}
	rec := &noticeRecorder{}
	p := New(s, newClient(t, h), &fakeConn{online: true}, rec, nil)

	require.NoError(t, p.Drain(ctx))

	a, err := s.GetAnimal(42)
	require.NoError(t, err)
	assert.Equal(t, "PL100", a.TagID)
	_, err = s.GetAnimal(-1)
	assert.Error(t, err)

	depth, err := s.QueueDepth()
	require.NoError(t, err)
	assert.Zero(t, depth)

	notices := rec.all()
	require.Len(t, notices, 1)
	assert.Equal(t, notify.LevelSuccess, notices[0].Level)

	stamp, ok, err := s.GetMeta(store.MetaLastSyncAt)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, stamp)
}

func TestDrainRemapsEveryReference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Two pending animals; the calf's dam reference and its queued
	// payload both carry the dam's temporary id.
	dam := pendingAnimal(-1, "PL100")
	calf := pendingAnimal(-2, "PL101")
	damRef := int64(-1)
	calf.DamID = &damRef
	require.NoError(t, s.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutAnimal(dam); err != nil {
			return err
		}
		return tx.PutAnimal(calf)
	}))
	enqueueCreate(t, s, -1, map[string]any{"tag_id": "PL100"})
	enqueueCreate(t, s, -2, map[string]any{"tag_id": "PL101", "dam": -1})

	h := &syncHandler{fn: allOK(42)}
	p := New(s, newClient(t, h), &fakeConn{online: true}, &noticeRecorder{}, nil)

	require.NoError(t, p.Drain(ctx))

	animals, err := s.ListAnimals("")
	require.NoError(t, err)
	require.Len(t, animals, 2)
	for _, a := range animals {
		assert.Greater(t, a.ID, int64(0))
		if a.DamID != nil {
			assert.Equal(t, int64(42), *a.DamID)
		}
	}
	depth, err := s.QueueDepth()
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestDrainTransportFailureLeavesQueue(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WithTx(context.Background(), func(tx *store.Tx) error {
		return tx.PutAnimal(pendingAnimal(-1, "PL100"))
	}))
	enqueueCreate(t, s, -1, map[string]string{"tag_id": "PL100"})

	conn := &fakeConn{online: true}
	p := New(s, newClient(t, nil), conn, &noticeRecorder{}, nil)

	require.Error(t, p.Drain(context.Background()))

	depth, err := s.QueueDepth()
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
	assert.False(t, conn.Online())
	assert.Equal(t, StateIdle, p.State())
}

func TestDrainDropsFailedJobKeepingDrift(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	archived := pendingAnimal(7, "PL007")
	archived.Status = models.StatusArchived
	require.NoError(t, s.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutAnimal(archived); err != nil {
			return err
		}
		return tx.Enqueue(&models.SyncQueueEntry{
			Action:         models.ActionDeleteAnimal,
			EntityID:       7,
			IdempotencyKey: uuid.NewString(),
			CreatedAt:      time.Now().Unix(),
		})
	}))

	h := &syncHandler{fn: func(jobs []api.SyncJob) []api.SyncJobResult {
		return []api.SyncJobResult{{
			QueueID: jobs[0].LocalID,
			Status:  api.JobStatusError,
			Action:  jobs[0].Action,
			Error:   "animal is already archived",
		}}
	}}
	rec := &noticeRecorder{}
	p := New(s, newClient(t, h), &fakeConn{online: true}, rec, nil)

	require.NoError(t, p.Drain(ctx))

	depth, err := s.QueueDepth()
	require.NoError(t, err)
	assert.Zero(t, depth)

	a, err := s.GetAnimal(7)
	require.NoError(t, err)
	assert.Equal(t, models.StatusArchived, a.Status)

	notices := rec.all()
	require.Len(t, notices, 1)
	assert.Equal(t, notify.LevelWarning, notices[0].Level)
}

func TestDrainUniqueConflictRemovesOptimisticRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(tx *store.Tx) error {
		return tx.PutAnimal(pendingAnimal(-5, "PL200"))
	}))
	enqueueCreate(t, s, -5, map[string]string{"tag_id": "PL200"})

	h := &syncHandler{fn: func(jobs []api.SyncJob) []api.SyncJobResult {
		return []api.SyncJobResult{{
			QueueID: jobs[0].LocalID,
			Status:  api.JobStatusError,
			Action:  jobs[0].Action,
			TempID:  -5,
			Error:   "animal with this tag already exists",
		}}
	}}
	rec := &noticeRecorder{}
	p := New(s, newClient(t, h), &fakeConn{online: true}, rec, nil)

	require.NoError(t, p.Drain(ctx))

	_, err := s.GetAnimal(-5)
	assert.Error(t, err)
	depth, err := s.QueueDepth()
	require.NoError(t, err)
	assert.Zero(t, depth)

	notices := rec.all()
	require.Len(t, notices, 1)
	assert.Equal(t, notify.LevelError, notices[0].Level)
	assert.Equal(t, "tag_id", notices[0].Field)
}

func TestDrainMissingEntityTriggersRefresh(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutAnimal(pendingAnimal(7, "PL007")); err != nil {
			return err
		}
		payload, _ := json.Marshal(map[string]string{"name": "Renamed"})
		return tx.Enqueue(&models.SyncQueueEntry{
			Action:         models.ActionUpdateAnimal,
			EntityID:       7,
			Payload:        payload,
			IdempotencyKey: uuid.NewString(),
			CreatedAt:      time.Now().Unix(),
		})
	}))

	h := &syncHandler{fn: func(jobs []api.SyncJob) []api.SyncJobResult {
		return []api.SyncJobResult{{
			QueueID: jobs[0].LocalID,
			Status:  api.JobStatusError,
			Action:  jobs[0].Action,
			Error:   "animal not found",
		}}
	}}
	ref := &fakeRefresher{}
	p := New(s, newClient(t, h), &fakeConn{online: true}, &noticeRecorder{}, ref)

	require.NoError(t, p.Drain(ctx))

	assert.Equal(t, 1, ref.count())
}

func TestDrainRetriggersForResidualEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(tx *store.Tx) error {
		return tx.PutAnimal(pendingAnimal(-1, "PL100"))
	}))
	enqueueCreate(t, s, -1, map[string]string{"tag_id": "PL100"})

	// The first batch call sneaks a new entry into the queue while
	// the cycle is mid-flight; the snapshot cannot contain it.
	var once sync.Once
	ok := allOK(42)
	h := &syncHandler{}
	h.fn = func(jobs []api.SyncJob) []api.SyncJobResult {
		once.Do(func() {
			s.WithTx(context.Background(), func(tx *store.Tx) error {
				if err := tx.PutAnimal(pendingAnimal(-2, "PL101")); err != nil {
					return err
				}
				payload, _ := json.Marshal(map[string]string{"tag_id": "PL101"})
				return tx.Enqueue(&models.SyncQueueEntry{
					Action:         models.ActionCreateAnimal,
					TempID:         -2,
					Payload:        payload,
					IdempotencyKey: uuid.NewString(),
					CreatedAt:      time.Now().Unix(),
				})
			})
		})
		return ok(jobs)
	}

	p := New(s, newClient(t, h), &fakeConn{online: true}, &noticeRecorder{}, nil,
		WithRetriggerDelay(20*time.Millisecond))

	require.NoError(t, p.Drain(ctx))

	assert.Eventually(t, func() bool {
		depth, err := s.QueueDepth()
		return err == nil && depth == 0
	}, 2*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, h.count(), 2)
}

func TestDrainOfflineDoesNotRetrigger(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.WithTx(context.Background(), func(tx *store.Tx) error {
		return tx.PutAnimal(pendingAnimal(-1, "PL100"))
	}))
	enqueueCreate(t, s, -1, map[string]string{"tag_id": "PL100"})

	conn := &fakeConn{online: false}
	p := New(s, newClient(t, nil), conn, &noticeRecorder{}, nil,
		WithRetriggerDelay(10*time.Millisecond))

	require.NoError(t, p.Drain(context.Background()))

	// A guarded-out offline cycle must not chain re-drains; give any
	// stray timer ample room to fire before counting.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, conn.checkCount())

	depth, err := s.QueueDepth()
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestDrainRewritesEventAndTaskRowIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutAnimal(pendingAnimal(7, "PL007")); err != nil {
			return err
		}
		if err := tx.PutEvent(&models.Event{
			ID:        -3,
			AnimalID:  7,
			EventType: models.EventVaccination,
			Date:      "2024-07-01",
			CreatedAt: time.Now().Unix(),
		}); err != nil {
			return err
		}
		return tx.PutTask(&models.Task{
			ID:      -4,
			Title:   "Follow-up checkup",
			DueDate: "2024-07-15",
		})
	}))
	enqueueAction(t, s, models.ActionCreateEvent, -3,
		map[string]any{"animal": 7, "event_type": models.EventVaccination, "date": "2024-07-01"})
	enqueueAction(t, s, models.ActionCreateTask, -4,
		map[string]any{"title": "Follow-up checkup", "due_date": "2024-07-15"})

	h := &syncHandler{fn: allOK(500)}
	p := New(s, newClient(t, h), &fakeConn{online: true}, &noticeRecorder{}, nil)

	require.NoError(t, p.Drain(ctx))

	events, err := s.ListEvents(7)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Greater(t, events[0].ID, int64(0))

	tasks, err := s.ListTasks(0)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Greater(t, tasks[0].ID, int64(0))

	depth, err := s.QueueDepth()
	require.NoError(t, err)
	assert.Zero(t, depth)
}
