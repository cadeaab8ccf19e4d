package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// Per-job result statuses returned by the batch endpoint.
const (
	JobStatusOK     = "ok"
	JobStatusMerged = "merged"
	JobStatusError  = "error"
)

// SyncJob is one queued mutation submitted to the batch endpoint. The
// remote store executes jobs strictly in slice order.
type SyncJob struct {
	LocalID        int64           `json:"localId"`
	Action         string          `json:"action"`
	EntityID       int64           `json:"entityId,omitempty"`
	TempID         int64           `json:"tempId,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// SyncJobResult is the per-job outcome, tagged with the originating
// queue entry id. RealID is set for successful creation jobs.
type SyncJobResult struct {
	QueueID int64  `json:"queueId"`
	Status  string `json:"status"` // ok|merged|error
	Action  string `json:"action"`
	TempID  int64  `json:"tempId,omitempty"`
	RealID  int64  `json:"realId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SyncResponse is the batch endpoint's envelope.
type SyncResponse struct {
	Status  string          `json:"status"`
	Results []SyncJobResult `json:"results"`
}

type syncRequest struct {
	Jobs []SyncJob `json:"jobs"`
}

// Sync submits the whole mutation batch in one request. A returned
// error is a transport- or envelope-level failure: no job was
// consumed and the caller retries the entire batch later. Individual
// job failures arrive inside the response instead.
func (c *Client) Sync(ctx context.Context, jobs []SyncJob) (*SyncResponse, error) {
	var resp SyncResponse
	if err := c.doJSON(ctx, http.MethodPost, "/sync/", &syncRequest{Jobs: jobs}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
