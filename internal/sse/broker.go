// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Event types.
const (
	TypeDocumentCreated = "document.created"
	TypeDocumentUpdated = "document.updated"
	TypeDocumentDeleted = "document.deleted"
	TypeOutlineUpdated  = "outline.updated"
	TypeSessionSynced   = "session.synced"
)

// DocumentChange is the payload of document.* and outline.updated events.
type DocumentChange struct {
	Path string `json:"path"`
}

// SessionSynced is the payload of a session.synced event.
type SessionSynced struct {
	Session  string `json:"session"`
	Path     string `json:"path,omitempty"`
	Headings int    `json:"headings"`
	Assigned int    `json:"assigned"`
}

const clientBuffer = 64

// Option configures a Broker.
type Option func(*Broker)

// WithHeartbeat makes every stream emit a comment line at the given interval
// so idle connections survive proxies. Zero disables it.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) { b.heartbeat = d }
}

type documentEventReq struct {
	kind string
	path string
}

// outlineState tracks the outline.updated window of one path.
type outlineState struct {
	last    time.Time
	pending *time.Timer
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop owns the clients and the per-path outline windows.
// Public methods talk to it over channels.
//
// outline.updated is coalesced per path: the first change in a window is
// announced at once, and any further changes inside the window produce one
// trailing announcement when it closes.
type Broker struct {
	outlineMin time.Duration
	heartbeat  time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	docEventCh    chan documentEventReq
	outlineDueCh  chan string
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. outlineThrottle is the minimum interval
// between two outline.updated events for the same document.
func NewBroker(outlineThrottle time.Duration, opts ...Option) *Broker {
	if outlineThrottle <= 0 {
		outlineThrottle = 2 * time.Second
	}

	b := &Broker{
		outlineMin:    outlineThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		docEventCh:    make(chan documentEventReq, 256),
		outlineDueCh:  make(chan string),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	outlines := make(map[string]*outlineState)
	var seq uint64

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("event: %s\nid: %d\ndata: %s\n\n", event.Type, seq, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; the event is dropped for it alone.
			}
		}
	}

	announceOutline := func(path string) {
		st := outlines[path]
		if st == nil {
			st = &outlineState{}
			outlines[path] = st
		}
		now := time.Now()
		if wait := st.last.Add(b.outlineMin).Sub(now); wait > 0 {
			if st.pending == nil {
				st.pending = time.AfterFunc(wait, func() {
					select {
					case b.outlineDueCh <- path:
					case <-b.stopCh:
					}
				})
			}
			return
		}
		st.last = now
		broadcast(Event{Type: TypeOutlineUpdated, Data: DocumentChange{Path: path}})
	}

	for {
		select {
		case <-b.stopCh:
			for _, st := range outlines {
				if st.pending != nil {
					st.pending.Stop()
				}
			}
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

		case req := <-b.docEventCh:
			data := DocumentChange{Path: req.path}
			switch req.kind {
			case "created":
				broadcast(Event{Type: TypeDocumentCreated, Data: data})
			case "updated":
				broadcast(Event{Type: TypeDocumentUpdated, Data: data})
			case "deleted":
				broadcast(Event{Type: TypeDocumentDeleted, Data: data})
				if st := outlines[req.path]; st != nil && st.pending != nil {
					st.pending.Stop()
				}
				delete(outlines, req.path)
				continue
			default:
				continue
			}
			announceOutline(req.path)

		case path := <-b.outlineDueCh:
			st := outlines[path]
			if st == nil || st.pending == nil {
				// Deleted while the window was open.
				continue
			}
			st.pending = nil
			st.last = time.Now()
			broadcast(Event{Type: TypeOutlineUpdated, Data: DocumentChange{Path: path}})

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
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
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
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

// PublishDocumentEvent publishes a document change of the given kind
// ("created", "updated" or "deleted") and schedules outline.updated for it.
func (b *Broker) PublishDocumentEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.docEventCh <- documentEventReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// PublishSessionSynced announces a finished synchronisation pass of an
// editing session.
func (b *Broker) PublishSessionSynced(ev SessionSynced) {
	b.Publish(Event{Type: TypeSessionSynced, Data: ev})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). CORS headers are
// left to the router.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var beat <-chan time.Time
	if b.heartbeat > 0 {
		t := time.NewTicker(b.heartbeat)
		defer t.Stop()
		beat = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-beat:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
