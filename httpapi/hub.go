package httpapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/fileclassifier/schema"
	"pkt.systems/pslog"
)

// StreamEvent is sent to SSE clients.
type StreamEvent struct {
	Seq       uint64              `json:"seq"`
	Type      string              `json:"type"`
	Ledger    *schema.LedgerEvent `json:"ledger,omitempty"`
	Summary   *StreamSummary      `json:"summary,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// StreamSummary seeds client progress on connect.
type StreamSummary struct {
	CurrentIndex int `json:"currentIndex"`
	TotalItems   int `json:"totalItems"`
	Classified   int `json:"classified"`
}

// Hub broadcasts ledger events to stream subscribers.
type Hub struct {
	mu          sync.Mutex
	seq         uint64
	history     []StreamEvent
	subs        map[chan StreamEvent]struct{}
	historySize int
	log         pslog.Logger
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = 256
	}
	return &Hub{
		subs:        make(map[chan StreamEvent]struct{}),
		historySize: historySize,
		log:         pslog.Ctx(context.Background()),
	}
}

// OnLedgerEvent implements core.EventSink.
func (h *Hub) OnLedgerEvent(event schema.LedgerEvent) {
	h.log.Trace("hub ledger event", "type", string(event.Type), "item", event.ItemIndex)
	ev := event
	h.publish(StreamEvent{
		Type:      "ledger",
		Ledger:    &ev,
		Timestamp: time.Now(),
	})
}

// Subscribe registers a subscriber and returns its channel, an unsubscribe
// func, and the current sequence number.
func (h *Hub) Subscribe() (<-chan StreamEvent, func(), uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan StreamEvent, 64)
	h.subs[ch] = struct{}{}
	seq := h.seq
	h.log.Info("hub subscribe", "subs", len(h.subs), "history", len(h.history))
	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			remaining := len(h.subs)
			h.mu.Unlock()
			h.log.Info("hub unsubscribe", "subs", remaining)
		})
	}
	return ch, unsub, seq
}

// Replay returns events after the provided seq.
func (h *Hub) Replay(after uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := make([]StreamEvent, 0, len(h.history))
	for _, event := range h.history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	h.log.Debug("hub replay", "after", after, "count", len(events))
	return events
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) publish(event StreamEvent) {
	h.mu.Lock()
	h.seq++
	event.Seq = h.seq
	h.history = append(h.history, event)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
	dropped := 0
	for sub := range h.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	h.mu.Unlock()

	if dropped > 0 {
		h.log.Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}
