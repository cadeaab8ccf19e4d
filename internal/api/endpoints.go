package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"herdsync/internal/errors"
	"herdsync/internal/models"
)

// ListAnimals fetches every animal from the remote store.
func (c *Client) ListAnimals(ctx context.Context) ([]*models.Animal, error) {
	var animals []*models.Animal
	if err := c.doJSON(ctx, http.MethodGet, "/animals/", nil, &animals); err != nil {
		return nil, err
	}
	return animals, nil
}

// GetAnimal fetches one animal by its confirmed id.
func (c *Client) GetAnimal(ctx context.Context, id int64) (*models.Animal, error) {
	var a models.Animal
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/animals/%d/", id), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SearchAnimal looks an animal up by its unique tag.
func (c *Client) SearchAnimal(ctx context.Context, tagID string) (*models.Animal, error) {
	var a models.Animal
	path := "/animals/search/?tag_id=" + url.QueryEscape(tagID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAnimal creates an animal and returns the server's
// authoritative row, including the assigned id.
func (c *Client) CreateAnimal(ctx context.Context, payload *models.AnimalPayload) (*models.Animal, error) {
	var a models.Animal
	if err := c.doJSON(ctx, http.MethodPost, "/animals/", payload, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAnimal partially updates an animal.
func (c *Client) UpdateAnimal(ctx context.Context, id int64, payload *models.AnimalPayload) (*models.Animal, error) {
	var a models.Animal
	if err := c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/animals/%d/", id), payload, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ArchiveAnimal asks the remote store to archive an animal. The store
// models deletion as a status transition, never a physical delete.
func (c *Client) ArchiveAnimal(ctx context.Context, id int64) (*models.Animal, error) {
	status := models.StatusArchived
	return c.UpdateAnimal(ctx, id, &models.AnimalPayload{Status: &status})
}

// UploadPhoto attaches a photo to an animal via multipart upload and
// returns the refreshed row carrying the photo URL.
func (c *Client) UploadPhoto(ctx context.Context, id int64, filename string, photo io.Reader) (*models.Animal, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("photo", filename)
	if err != nil {
		return nil, fmt.Errorf("api: photo form: %w", err)
	}
	if _, err := io.Copy(part, photo); err != nil {
		return nil, fmt.Errorf("api: photo copy: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("api: photo form close: %w", err)
	}

	path := fmt.Sprintf("/animals/%d/upload_photo/", id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("api: new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	c.setCommonHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.KindNetwork, "POST "+path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, raw)
	}

	var a models.Animal
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, errors.Wrap(errors.KindServer, "decode response", err)
	}
	return &a, nil
}

// ListEvents fetches events, scoped to one animal when animalID is
// non-zero.
func (c *Client) ListEvents(ctx context.Context, animalID int64) ([]*models.Event, error) {
	path := "/events/"
	if animalID != 0 {
		path += fmt.Sprintf("?animal=%d", animalID)
	}
	var events []*models.Event
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CreateEvent creates an event and returns the server's row.
func (c *Client) CreateEvent(ctx context.Context, payload *models.EventPayload) (*models.Event, error) {
	var e models.Event
	if err := c.doJSON(ctx, http.MethodPost, "/events/", payload, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListTasks fetches every task.
func (c *Client) ListTasks(ctx context.Context) ([]*models.Task, error) {
	var tasks []*models.Task
	if err := c.doJSON(ctx, http.MethodGet, "/tasks/", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask creates a task and returns the server's row.
func (c *Client) CreateTask(ctx context.Context, payload *models.TaskPayload) (*models.Task, error) {
	var t models.Task
	if err := c.doJSON(ctx, http.MethodPost, "/tasks/", payload, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask partially updates a task.
func (c *Client) UpdateTask(ctx context.Context, id int64, payload *models.TaskPayload) (*models.Task, error) {
	var t models.Task
	if err := c.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/tasks/%d/", id), payload, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/tasks/%d/", id), nil, nil)
}

// ListDocuments fetches document metadata for one animal.
func (c *Client) ListDocuments(ctx context.Context, animalID int64) ([]*models.Document, error) {
	path := fmt.Sprintf("/documents/?animal=%d", animalID)
	var docs []*models.Document
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// UploadDocument attaches a file to an animal via multipart upload.
func (c *Client) UploadDocument(ctx context.Context, animalID int64, name, contentType string, file io.Reader) (*models.Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("animal", fmt.Sprintf("%d", animalID)); err != nil {
		return nil, fmt.Errorf("api: document form: %w", err)
	}
	if err := mw.WriteField("name", name); err != nil {
		return nil, fmt.Errorf("api: document form: %w", err)
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("api: document form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("api: document copy: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("api: document form close: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/documents/", &buf)
	if err != nil {
		return nil, fmt.Errorf("api: new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	c.setCommonHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.KindNetwork, "POST /documents/", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp.StatusCode, raw)
	}

	var d models.Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, errors.Wrap(errors.KindServer, "decode response", err)
	}
	return &d, nil
}

// DeleteDocument deletes a document.
func (c *Client) DeleteDocument(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/documents/%d/", id), nil, nil)
}
