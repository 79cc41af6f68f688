package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// Hub fans Bakery lifecycle events out to subscribers. Publication is
// non-blocking: a subscriber that stops draining its channel loses events
// (counted in Stats) rather than stalling the executor's dispatch path.
type Hub struct {
	mu     sync.RWMutex
	byType map[EventType][]chan Event
	all    []chan Event

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{byType: make(map[EventType][]chan Event)}
}

// Publish delivers e to every matching subscriber without blocking. A zero
// timestamp is stamped with the current time.
func (h *Hub) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	h.published.Add(1)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.byType[e.Type] {
		h.offer(ch, e)
	}
	for _, ch := range h.all {
		h.offer(ch, e)
	}
}

func (h *Hub) offer(ch chan Event, e Event) {
	select {
	case ch <- e:
	default:
		h.dropped.Add(1)
	}
}

// PublishAsync publishes from a fresh goroutine, for callers that must not
// even pay the fan-out cost inline.
func (h *Hub) PublishAsync(e Event) {
	go h.Publish(e)
}

// Subscribe registers a buffered channel for the given event types, or for
// every event when none are named. The caller drains the channel; the hub
// never closes it.
func (h *Hub) Subscribe(bufSize int, types ...EventType) <-chan Event {
	if bufSize <= 0 {
		bufSize = 256
	}
	ch := make(chan Event, bufSize)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(types) == 0 {
		h.all = append(h.all, ch)
		return ch
	}
	for _, t := range types {
		h.byType[t] = append(h.byType[t], ch)
	}
	return ch
}

// Unsubscribe detaches a channel from every registration. The channel is
// left open; the caller owns its lifetime.
func (h *Hub) Unsubscribe(ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all = without(h.all, ch)
	for t, subs := range h.byType {
		h.byType[t] = without(subs, ch)
	}
}

// Stats reports how many events have been published and how many deliveries
// were dropped on full subscriber channels.
func (h *Hub) Stats() (published, dropped uint64) {
	return h.published.Load(), h.dropped.Load()
}

func without(subs []chan Event, target <-chan Event) []chan Event {
	out := subs[:0]
	for _, ch := range subs {
		if ch != target {
			out = append(out, ch)
		}
	}
	return out
}

// Emission helpers used by the executor and batch engine.

// EmitCircuitMaterialized publishes a circuit materialization event.
func (h *Hub) EmitCircuitMaterialized(circuitHash, siteHash int64, state string) {
	h.Publish(Event{
		Type:   EventCircuitMaterialized,
		Source: "executor",
		Data: CircuitLifecycleData{
			CircuitHash: circuitHash,
			SiteHash:    siteHash,
			State:       state,
		},
	})
}

// EmitCircuitPruned publishes a circuit prune event carrying the state the
// circuit landed at (virtual, or htb-only when only the SQM leaf went).
func (h *Hub) EmitCircuitPruned(circuitHash, siteHash int64, state string) {
	h.Publish(Event{
		Type:   EventCircuitPruned,
		Source: "executor",
		Data: CircuitLifecycleData{
			CircuitHash: circuitHash,
			SiteHash:    siteHash,
			State:       state,
		},
	})
}

// EmitSiteSpeedChanged publishes a live site rate-change event.
func (h *Hub) EmitSiteSpeedChanged(siteHash int64, downMax, upMax float32) {
	h.Publish(Event{
		Type:   EventSiteSpeedChanged,
		Source: "executor",
		Data: SiteSpeedChangedData{
			SiteHash: siteHash,
			DownMax:  downMax,
			UpMax:    upMax,
		},
	})
}

// EmitDispatchFailed publishes a failed `tc` dispatch event.
func (h *Hub) EmitDispatchFailed(argv []string, err error) {
	h.Publish(Event{
		Type:   EventDispatchFailed,
		Source: "executor",
		Data: DispatchFailedData{
			Argv:  argv,
			Error: err.Error(),
		},
	})
}
