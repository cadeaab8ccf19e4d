package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herdsync/internal/errors"
	"herdsync/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func testAnimal(id int64, tag string) *models.Animal {
	now := time.Now().Unix()
	return &models.Animal{
		ID:        id,
		TagID:     tag,
		Name:      "Bella",
		Breed:     models.DefaultBreed,
		BirthDate: "2020-04-01",
		Gender:    models.GenderFemale,
		Status:    models.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Migrate())

	version, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 5, version)
}

func TestAnimalRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	dam := int64(3)
	a := testAnimal(7, "PL007")
	a.DamID = &dam

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		return tx.PutAnimal(a)
	}))

	got, err := s.GetAnimal(7)
	require.NoError(t, err)
	assert.Equal(t, "PL007", got.TagID)
	require.NotNil(t, got.DamID)
	assert.Equal(t, int64(3), *got.DamID)
	assert.Nil(t, got.SireID)

	byTag, err := s.GetAnimalByTag("PL007")
	require.NoError(t, err)
	assert.Equal(t, int64(7), byTag.ID)

	_, err = s.GetAnimal(99)
	assert.True(t, errors.Is(err, errors.KindNotFound))
}

func TestListAnimalsStatusFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		active := testAnimal(1, "PL001")
		archived := testAnimal(2, "PL002")
		archived.Status = models.StatusArchived
		if err := tx.PutAnimal(active); err != nil {
			return err
		}
		return tx.PutAnimal(archived)
	}))

	all, err := s.ListAnimals("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := s.ListAnimals(models.StatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].ID)
}

func TestQueueFIFO(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := &models.SyncQueueEntry{
			Action:         models.ActionCreateAnimal,
			TempID:         int64(-1 - i),
			Payload:        json.RawMessage(fmt.Sprintf(`{"tag_id":"PL10%d"}`, i)),
			IdempotencyKey: fmt.Sprintf("key-%d", i),
			CreatedAt:      time.Now().Unix(),
		}
		require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
			return tx.Enqueue(entry)
		}))
		assert.Equal(t, int64(i+1), entry.LocalID)
	}

	entries, err := s.ListQueue()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.LocalID, "insertion order is replay order")
	}

	depth, err := s.QueueDepth()
	require.NoError(t, err)
	assert.Equal(t, 3, depth)

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		return tx.DeleteQueueEntry(2)
	}))
	depth, err = s.QueueDepth()
	require.NoError(t, err)
	assert.Equal(t, 2, depth)
}

func TestNextTempIDMonotonicAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())

	ctx := context.Background()
	var first, second int64
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		first, err = tx.NextTempID()
		if err != nil {
			return err
		}
		second, err = tx.NextTempID()
		return err
	}))
	assert.Equal(t, int64(-1), first)
	assert.Equal(t, int64(-2), second)
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Migrate())

	var third int64
	require.NoError(t, reopened.WithTx(ctx, func(tx *Tx) error {
		third, err = tx.NextTempID()
		return err
	}))
	assert.Equal(t, int64(-3), third, "counter survives restart")
}

func TestWithTxRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var notified bool
	s.SetChangeListener(func(tables []string) { notified = true })

	boom := fmt.Errorf("boom")
	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.PutAnimal(testAnimal(1, "PL001")); err != nil {
			return err
		}
		return boom
	})
	assert.Equal(t, boom, err)

	_, err = s.GetAnimal(1)
	assert.True(t, errors.Is(err, errors.KindNotFound), "rollback leaves no row")
	assert.False(t, notified, "no change published for a rolled back tx")
}

func TestChangeListenerReceivesTouchedTables(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var got []string
	s.SetChangeListener(func(tables []string) {
		got = append([]string(nil), tables...)
	})

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.PutAnimal(testAnimal(1, "PL001")); err != nil {
			return err
		}
		return tx.Enqueue(&models.SyncQueueEntry{
			Action:         models.ActionCreateAnimal,
			TempID:         -1,
			IdempotencyKey: "k",
			CreatedAt:      time.Now().Unix(),
		})
	}))

	sort.Strings(got)
	assert.Equal(t, []string{TableAnimals, TableSyncQueue}, got)
}

func TestRemapHelpers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		parent := testAnimal(-5, "PL005")
		if err := tx.PutAnimal(parent); err != nil {
			return err
		}
		calf := testAnimal(-6, "PL006")
		dam := int64(-5)
		calf.DamID = &dam
		if err := tx.PutAnimal(calf); err != nil {
			return err
		}
		if err := tx.PutEvent(&models.Event{
			ID: -7, AnimalID: -5, EventType: models.EventCheckup,
			Date: "2025-01-10", CreatedAt: time.Now().Unix(),
		}); err != nil {
			return err
		}
		return tx.Enqueue(&models.SyncQueueEntry{
			Action:         models.ActionCreateEvent,
			EntityID:       -5,
			TempID:         -7,
			Payload:        json.RawMessage(`{"animal":-5,"event_type":"CHECKUP"}`),
			IdempotencyKey: "k",
			CreatedAt:      time.Now().Unix(),
		})
	}))

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.RewriteRowID(TableAnimals, -5, 42); err != nil {
			return err
		}
		if err := tx.RewriteForeignKey(TableAnimals, "dam_id", -5, 42); err != nil {
			return err
		}
		if err := tx.RewriteForeignKey(TableEvents, "animal_id", -5, 42); err != nil {
			return err
		}
		if err := tx.RewriteForeignKey(TableSyncQueue, "entity_id", -5, 42); err != nil {
			return err
		}
		return tx.RewriteQueuePayloads([]string{"animal", "dam", "sire"}, -5, 42)
	}))

	parent, err := s.GetAnimal(42)
	require.NoError(t, err)
	assert.Equal(t, "PL005", parent.TagID)

	calf, err := s.GetAnimal(-6)
	require.NoError(t, err)
	require.NotNil(t, calf.DamID)
	assert.Equal(t, int64(42), *calf.DamID)

	events, err := s.ListEvents(42)
	require.NoError(t, err)
	require.Len(t, events, 1)

	entries, err := s.ListQueue()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(42), entries[0].EntityID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(entries[0].Payload, &body))
	assert.Equal(t, float64(42), body["animal"])
}
