package events

import (
	"encoding/json"
	"testing"
)

func TestHubFanOut(t *testing.T) {
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe()
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	h.Publish("hello")

	for _, ch := range []chan string{a, b} {
		select {
		case got := <-ch:
			if got != "hello" {
				t.Errorf("got %q, want hello", got)
			}
		default:
			t.Error("subscriber did not receive event")
		}
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	for i := 0; i < cap(ch)+5; i++ {
		h.Publish("evt")
	}
	// Publish must not have blocked; buffer holds at most cap(ch) events.
	if len(ch) != cap(ch) {
		t.Errorf("buffered %d events, want %d", len(ch), cap(ch))
	}
}

func TestUnsubscribeCloses(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	h.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("channel not closed after Unsubscribe")
	}
	// publishing after unsubscribe must not panic
	h.Publish("evt")
}

func TestProgressEncoding(t *testing.T) {
	raw := Progress("run-1", 40, "Extracting business details...")
	var e Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Type != "progress" || e.RunID != "run-1" || e.Percent != 40 {
		t.Errorf("event mismatch: %+v", e)
	}
	if e.At.IsZero() {
		t.Error("At not set")
	}
}

func TestDoneEncoding(t *testing.T) {
	raw := Done("run-2", map[string]int{"leads": 7})
	var e Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Type != "done" || e.Percent != 100 {
		t.Errorf("event mismatch: %+v", e)
	}
	var payload map[string]int
	if err := json.Unmarshal(e.Data, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["leads"] != 7 {
		t.Errorf("payload = %v", payload)
	}
}
