package main

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"herdsync/internal/live"
	"herdsync/internal/logging"
)

// Websocket event types pushed to the UI.
const (
	eventNotice     = "notice"
	eventAnimals    = "animals.changed"
	eventStats      = "stats.changed"
	eventTasks      = "tasks.changed"
	eventQueueDepth = "queue.depth"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The agent serves a local UI only.
		host := r.Host
		return strings.HasPrefix(host, "localhost") || strings.HasPrefix(host, "127.0.0.1")
	},
}

// wsEnvelope wraps every websocket message.
type wsEnvelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// websocket streams notices and live query results to one UI client.
// Each connection gets its own subscriptions, torn down when the peer
// goes away.
func (h *handlers) websocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	log := logging.Component("ws").WithField("remote", conn.RemoteAddr().String())
	log.Info("ui client connected")

	send := make(chan wsEnvelope, 32)
	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() { closeOnce.Do(func() { close(done) }) }

	notices, cancelNotices := h.hub.Subscribe()
	animals := live.Subscribe(h.broker, h.repo.AnimalListQuery(""))
	stats := live.Subscribe(h.broker, h.repo.StatsQuery())
	tasks := live.Subscribe(h.broker, h.repo.TaskListQuery(0))
	depth := live.Subscribe(h.broker, h.repo.QueueDepthQuery())

	push := func(typ string, data any) {
		env := wsEnvelope{Type: typ, Data: data, Timestamp: time.Now().Unix()}
		select {
		case send <- env:
		case <-done:
		default:
			// Slow client; drop rather than stall the engine.
		}
	}

	// Fan subscriptions into the send channel.
	go func() {
		for {
			select {
			case n, ok := <-notices:
				if !ok {
					return
				}
				push(eventNotice, n)
			case res, ok := <-animals.C:
				if !ok {
					return
				}
				push(eventAnimals, liveData(res))
			case res, ok := <-stats.C:
				if !ok {
					return
				}
				push(eventStats, liveData(res))
			case res, ok := <-tasks.C:
				if !ok {
					return
				}
				push(eventTasks, liveData(res))
			case res, ok := <-depth.C:
				if !ok {
					return
				}
				push(eventQueueDepth, liveData(res))
			case <-done:
				return
			}
		}
	}()

	// Reader: we never expect messages, but reads detect the close.
	go func() {
		defer closeDone()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Writer.
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer func() {
			ticker.Stop()
			cancelNotices()
			animals.Close()
			stats.Close()
			tasks.Close()
			depth.Close()
			conn.Close()
			log.Info("ui client disconnected")
		}()
		for {
			select {
			case env := <-send:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(env); err != nil {
					closeDone()
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					closeDone()
					return
				}
			case <-done:
				return
			}
		}
	}()
}

// liveData flattens a live result for the wire: loading and error
// states are explicit so the UI can render skeletons and toasts.
func liveData[T any](res live.Result[T]) map[string]any {
	data := map[string]any{"loading": res.Loading}
	if res.Err != nil {
		data["error"] = res.Err.Error()
		return data
	}
	if !res.Loading {
		data["value"] = res.Value
	}
	return data
}
