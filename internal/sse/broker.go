// Package sse streams organizer activity to HTTP clients as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/archivist/internal/models"
)

// Event types.
const (
	TypeProcessed = "file.processed"
	TypeDuplicate = "file.duplicate"
	TypeSkipped   = "file.skipped"
	TypeFailed    = "file.failed"
	TypeStats     = "stats.updated"
)

// Event is one SSE message.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broker fans events out to subscribed clients.
//
// A single goroutine owns the client set and the running outcome tally;
// public methods talk to it over channels.
type Broker struct {
	statsMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	outcomeCh     chan models.Outcome
	countReqCh    chan chan int
	tallyReqCh    chan chan models.Stats

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits at most one stats.updated event per
// statsThrottle.
func NewBroker(statsThrottle time.Duration) *Broker {
	if statsThrottle <= 0 {
		statsThrottle = 2 * time.Second
	}
	b := &Broker{
		statsMin:      statsThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		outcomeCh:     make(chan models.Outcome, 256),
		countReqCh:    make(chan chan int),
		tallyReqCh:    make(chan chan models.Stats),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

// TypeOf maps an outcome to its event type.
func TypeOf(o models.Outcome) string {
	switch {
	case o.Success:
		return TypeProcessed
	case o.Duplicate():
		return TypeDuplicate
	case o.Skipped():
		return TypeSkipped
	default:
		return TypeFailed
	}
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		tally     models.Stats
		lastStats time.Time
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case o := <-b.outcomeCh:
			tally.Add(o)
			broadcast(Event{Type: TypeOf(o), Data: o})
			if now := time.Now(); now.Sub(lastStats) >= b.statsMin {
				lastStats = now
				broadcast(Event{Type: TypeStats, Data: tally})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)

		case resp := <-b.tallyReqCh:
			resp <- tally
		}
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	resp := make(chan int, 1)
	if !b.request(func() bool {
		select {
		case b.countReqCh <- resp:
			return true
		case <-b.stopped:
			return false
		}
	}) {
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Tally returns the outcome counters accumulated since the broker started.
func (b *Broker) Tally() models.Stats {
	resp := make(chan models.Stats, 1)
	if !b.request(func() bool {
		select {
		case b.tallyReqCh <- resp:
			return true
		case <-b.stopped:
			return false
		}
	}) {
		return models.Stats{}
	}
	select {
	case s := <-resp:
		return s
	case <-b.stopped:
		return models.Stats{}
	}
}

func (b *Broker) request(send func() bool) bool {
	if b.closed.Load() {
		return false
	}
	return send()
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishOutcome broadcasts a per-file outcome and a throttled stats.updated event.
func (b *Broker) PublishOutcome(o models.Outcome) {
	if b.closed.Load() {
		return
	}
	select {
	case b.outcomeCh <- o:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
