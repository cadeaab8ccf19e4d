package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"herdsync/internal/connectivity"
	"herdsync/internal/errors"
	"herdsync/internal/live"
	"herdsync/internal/models"
	"herdsync/internal/notify"
	"herdsync/internal/repository"
	"herdsync/internal/syncqueue"
)

func newRouter(repo *repository.Repository, processor *syncqueue.Processor,
	monitor *connectivity.Monitor, hub *notify.Hub, broker *live.Broker) http.Handler {

	h := &handlers{repo: repo, processor: processor, monitor: monitor, hub: hub, broker: broker}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/health", h.health)
	r.Get("/ws", h.websocket)

	r.Route("/api", func(r chi.Router) {
		r.Route("/animals", func(r chi.Router) {
			r.Get("/", h.listAnimals)
			r.Post("/", h.createAnimal)
			r.Get("/search", h.searchAnimal)
			r.Get("/stats", h.stats)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getAnimal)
				r.Patch("/", h.updateAnimal)
				r.Delete("/", h.archiveAnimal)
				r.Post("/photo", h.uploadPhoto)
				r.Get("/events", h.listEvents)
				r.Get("/documents", h.listDocuments)
				r.Post("/documents", h.uploadDocument)
			})
		})
		r.Post("/events", h.createEvent)
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.listTasks)
			r.Post("/", h.createTask)
			r.Patch("/{id}", h.updateTask)
			r.Delete("/{id}", h.deleteTask)
		})
		r.Delete("/documents/{id}", h.deleteDocument)
		r.Route("/sync", func(r chi.Router) {
			r.Post("/", h.triggerSync)
			r.Get("/status", h.syncStatus)
		})
	})
	return r
}

type handlers struct {
	repo      *repository.Repository
	processor *syncqueue.Processor
	monitor   *connectivity.Monitor
	hub       *notify.Hub
	broker    *live.Broker
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError maps the error taxonomy onto HTTP statuses and ships the
// field-level message map the UI highlights from.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errors.KindValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errors.KindPrecondition):
		status = http.StatusConflict
	case errors.Is(err, errors.KindNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errors.KindAuth):
		status = http.StatusUnauthorized
	case errors.Is(err, errors.KindNetwork):
		status = http.StatusBadGateway
	case errors.Is(err, errors.KindServer):
		status = http.StatusBadGateway
	}
	body := map[string]any{"error": err.Error()}
	if fields := errors.FieldErrors(err); len(fields) > 0 {
		body["fields"] = fields
	}
	writeJSON(w, status, body)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errors.Field("id", "id must be an integer")
	}
	return id, nil
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	depth, _ := h.repo.QueueDepth()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"online":     h.monitor.Online(),
		"queueDepth": depth,
	})
}

func (h *handlers) listAnimals(w http.ResponseWriter, r *http.Request) {
	animals, err := h.repo.ListAnimals(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	go h.repo.RefreshAnimals(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, animals)
}

func (h *handlers) getAnimal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	a, err := h.repo.GetAnimal(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handlers) searchAnimal(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag_id")
	if tag == "" {
		writeError(w, errors.Field("tag_id", "tag_id query parameter is required"))
		return
	}
	a, err := h.repo.SearchAnimalByTag(r.Context(), tag)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handlers) createAnimal(w http.ResponseWriter, r *http.Request) {
	var p models.AnimalPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, errors.Wrap(errors.KindValidation, "invalid request body", err))
		return
	}
	a, err := h.repo.CreateAnimal(r.Context(), &p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *handlers) updateAnimal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var p models.AnimalPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, errors.Wrap(errors.KindValidation, "invalid request body", err))
		return
	}
	a, err := h.repo.UpdateAnimal(r.Context(), id, &p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handlers) archiveAnimal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	a, err := h.repo.ArchiveAnimal(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handlers) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		writeError(w, errors.Field("photo", "photo file is required"))
		return
	}
	defer file.Close()
	a, err := h.repo.UploadPhoto(r.Context(), id, header.Filename, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	events, err := h.repo.ListEvents(id)
	if err != nil {
		writeError(w, err)
		return
	}
	go h.repo.RefreshEvents(context.WithoutCancel(r.Context()), id)
	writeJSON(w, http.StatusOK, events)
}

func (h *handlers) createEvent(w http.ResponseWriter, r *http.Request) {
	var p models.EventPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, errors.Wrap(errors.KindValidation, "invalid request body", err))
		return
	}
	e, err := h.repo.CreateEvent(r.Context(), &p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	var tasks []*models.Task
	var err error
	if r.URL.Query().Get("overdue") == "true" {
		tasks, err = h.repo.ListOverdueTasks()
	} else {
		var animalID int64
		if raw := r.URL.Query().Get("animal"); raw != "" {
			animalID, _ = strconv.ParseInt(raw, 10, 64)
		}
		tasks, err = h.repo.ListTasks(animalID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	go h.repo.RefreshTasks(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, tasks)
}

func (h *handlers) createTask(w http.ResponseWriter, r *http.Request) {
	var p models.TaskPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, errors.Wrap(errors.KindValidation, "invalid request body", err))
		return
	}
	task, err := h.repo.CreateTask(r.Context(), &p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var p models.TaskPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, errors.Wrap(errors.KindValidation, "invalid request body", err))
		return
	}
	task, err := h.repo.UpdateTask(r.Context(), id, &p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.repo.DeleteTask(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *handlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	docs, err := h.repo.ListDocuments(id)
	if err != nil {
		writeError(w, err)
		return
	}
	go h.repo.RefreshDocuments(context.WithoutCancel(r.Context()), id)
	writeJSON(w, http.StatusOK, docs)
}

func (h *handlers) uploadDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, errors.Field("file", "document file is required"))
		return
	}
	defer file.Close()
	d, err := h.repo.UploadDocument(r.Context(), id, header.Filename,
		header.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *handlers) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.repo.DeleteDocument(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *handlers) triggerSync(w http.ResponseWriter, r *http.Request) {
	go func() {
		h.processor.Drain(context.Background())
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

func (h *handlers) syncStatus(w http.ResponseWriter, r *http.Request) {
	depth, err := h.repo.QueueDepth()
	if err != nil {
		writeError(w, err)
		return
	}
	status := map[string]any{
		"state":      h.processor.State(),
		"online":     h.monitor.Online(),
		"queueDepth": depth,
	}
	if at, ok := h.repo.LastSyncedAt(); ok {
		status["lastSyncAt"] = at
	}
	writeJSON(w, http.StatusOK, status)
}
