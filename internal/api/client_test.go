package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herdsync/internal/errors"
	"herdsync/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, Token: "secret-token"})
	require.NoError(t, err)
	return c
}

func TestBearerTokenInjection(t *testing.T) {
	var gotAuth, gotRequestID string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.Write([]byte(`[]`))
	}))

	_, err := c.ListAnimals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.NotEmpty(t, gotRequestID)
}

func TestUnauthorizedMapsToAuthError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"token expired"}`))
	}))

	_, err := c.GetAnimal(context.Background(), 1)
	assert.True(t, errors.Is(err, errors.KindAuth))
}

func TestFieldErrorDecoding(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"tag_id":["animal with this tag already exists"]}`))
	}))

	_, err := c.CreateAnimal(context.Background(), &models.AnimalPayload{})
	require.True(t, errors.Is(err, errors.KindServer))
	assert.Equal(t, "animal with this tag already exists", errors.FieldErrors(err)["tag_id"])
}

func TestDetailErrorDecoding(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"not found"}`))
	}))

	_, err := c.GetAnimal(context.Background(), 999)
	require.True(t, errors.Is(err, errors.KindNotFound))
	assert.Contains(t, err.Error(), "not found")
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	c, err := New(Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	cerr := c.Health(context.Background())
	assert.True(t, errors.Is(cerr, errors.KindNetwork))
}

func TestSyncBatchRoundTrip(t *testing.T) {
	var got syncRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sync/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		resp := SyncResponse{
			Status: "ok",
			Results: []SyncJobResult{
				{QueueID: 1, Status: JobStatusOK, Action: models.ActionCreateAnimal, TempID: -1, RealID: 42},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))

	jobs := []SyncJob{{
		LocalID: 1,
		Action:  models.ActionCreateAnimal,
		TempID:  -1,
		Payload: json.RawMessage(`{"tag_id":"PL100"}`),
	}}
	resp, err := c.Sync(context.Background(), jobs)
	require.NoError(t, err)

	require.Len(t, got.Jobs, 1)
	assert.Equal(t, int64(-1), got.Jobs[0].TempID)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, int64(42), resp.Results[0].RealID)
}

func TestCreateAnimalReturnsServerRow(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var payload models.AnimalPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Animal{
			ID: 7, TagID: *payload.TagID, Name: *payload.Name,
			Breed: models.DefaultBreed, Status: models.StatusActive,
		})
	}))

	tag, name := "PL100", "Bella"
	a, err := c.CreateAnimal(context.Background(), &models.AnimalPayload{TagID: &tag, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, int64(7), a.ID)
	assert.Equal(t, models.StatusActive, a.Status)
}
