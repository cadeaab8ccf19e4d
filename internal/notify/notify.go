// Package notify carries user-visible notices from the engine to the
// UI: queued-offline warnings, sync successes, terminal failures.
package notify

import (
	"sync"
	"time"
)

// Notice levels.
const (
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notice is one user-visible message. Field names the offending input
// field when known, so the UI can highlight it.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	At      int64  `json:"at"`
}

// Notifier publishes notices. Hub is the production implementation;
// tests use a recorder.
type Notifier interface {
	Publish(n Notice)
}

// Hub fans notices out to subscribers (the websocket layer). A slow
// subscriber drops notices rather than blocking the engine.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Notice]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Notice]struct{})}
}

// Subscribe returns a notice channel and its cancel function.
func (h *Hub) Subscribe() (<-chan Notice, func()) {
	ch := make(chan Notice, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish implements Notifier.
func (h *Hub) Publish(n Notice) {
	if n.At == 0 {
		n.At = time.Now().Unix()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// Success publishes a success-level notice.
func Success(n Notifier, message string) {
	n.Publish(Notice{Level: LevelSuccess, Message: message})
}

// Warning publishes a warning-level notice.
func Warning(n Notifier, message string) {
	n.Publish(Notice{Level: LevelWarning, Message: message})
}

// Error publishes an error-level notice, naming the offending field
// when known.
func Error(n Notifier, message, field string) {
	n.Publish(Notice{Level: LevelError, Message: message, Field: field})
}
