// Package api implements the network client: a stateless JSON wrapper
// over the remote store's REST endpoints with bearer-token injection
// and uniform error decoding.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"herdsync/internal/errors"
)

const defaultTimeout = 10 * time.Second

// Config configures a Client.
type Config struct {
	BaseURL   string
	Token     string            // bearer token; empty disables auth header
	Timeout   time.Duration     // defaults to 10s
	Transport http.RoundTripper // injectable for tests
}

// Client talks to the remote store. It is stateless: safe for
// concurrent use, no caching, no retries.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// New creates a Client for the given remote store.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		http:    &http.Client{Timeout: timeout, Transport: transport},
		baseURL: base,
		token:   cfg.Token,
	}, nil
}

// doJSON issues one JSON request. A nil in sends no body; a nil out
// discards the response body. Non-2xx responses decode into the error
// taxonomy; transport failures come back as network errors.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setCommonHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(errors.KindNetwork, method+" "+path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(errors.KindServer, "decode response", err)
	}
	return nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
}

// decodeError maps a non-2xx response onto the error taxonomy. The
// remote store answers either {"detail": "..."} or a field->messages
// map for validation failures.
func decodeError(status int, raw []byte) error {
	if status == http.StatusUnauthorized {
		return errors.New(errors.KindAuth, "session expired or token rejected")
	}
	if status == http.StatusNotFound {
		return serverBody(errors.KindNotFound, status, raw)
	}
	return serverBody(errors.KindServer, status, raw)
}

func serverBody(kind errors.Kind, status int, raw []byte) error {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil || len(body) == 0 {
		return errors.Newf(kind, "remote store returned status %d", status)
	}

	if detail, ok := body["detail"]; ok {
		var msg string
		if json.Unmarshal(detail, &msg) == nil && msg != "" {
			return errors.New(kind, msg)
		}
	}
	if errMsg, ok := body["error"]; ok {
		var msg string
		if json.Unmarshal(errMsg, &msg) == nil && msg != "" {
			return errors.New(kind, msg)
		}
	}

	// Field-level validation map: values are a string or a list.
	fields := make(map[string]string)
	for field, val := range body {
		var msgs []string
		if json.Unmarshal(val, &msgs) == nil {
			fields[field] = strings.Join(msgs, ", ")
			continue
		}
		var msg string
		if json.Unmarshal(val, &msg) == nil {
			fields[field] = msg
		}
	}
	if len(fields) == 0 {
		return errors.Newf(kind, "remote store returned status %d", status)
	}
	return &errors.Error{
		Kind:    kind,
		Message: fmt.Sprintf("remote store rejected the request (status %d)", status),
		Fields:  fields,
	}
}

// Health probes the remote store. Used by the connectivity monitor; a
// nil error means the device is online.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health/", nil, nil)
}
