// Package events fans out progress updates from a running search to any
// number of listeners (SSE clients, log taps). Slow listeners lose events
// rather than blocking the scraper.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Event is the wire envelope published to subscribers.
type Event struct {
	Type    string          `json:"type"`
	At      time.Time       `json:"at"`
	RunID   string          `json:"run_id,omitempty"`
	Percent int             `json:"percent"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Progress encodes a progress event for the given run.
func Progress(runID string, percent int, message string) string {
	return encode(Event{Type: "progress", At: time.Now().UTC(), RunID: runID, Percent: percent, Message: message})
}

// Done encodes a completion event carrying an arbitrary payload.
func Done(runID string, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	return encode(Event{Type: "done", At: time.Now().UTC(), RunID: runID, Percent: 100, Data: raw})
}

func encode(e Event) string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Hub is a broadcast registry of subscriber channels.
type Hub struct {
	mu      sync.Mutex
	clients map[chan string]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan string]struct{})}
}

// Subscribe registers a new listener. The channel is buffered; Publish drops
// events for listeners whose buffer is full.
func (h *Hub) Subscribe() chan string {
	ch := make(chan string, 16)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a listener channel.
func (h *Hub) Unsubscribe(ch chan string) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

// Publish delivers evt to every subscriber that can take it without blocking.
func (h *Hub) Publish(evt string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- evt:
		default:
		}
	}
}
