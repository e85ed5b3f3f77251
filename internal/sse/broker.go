// Package sse implements a Server-Sent Events broker for sync and note
// notifications.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/coursevault/internal/models"
)

// Event types broadcast to clients.
const (
	TypeSyncStarted   = "sync.started"
	TypeSyncCompleted = "sync.completed"
	TypeNoteEdited    = "note.edited"
	TypeNoteRemoved   = "note.removed"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NoteEvent is the payload of note.edited and note.removed.
type NoteEvent struct {
	Path   string      `json:"path"`
	Kind   models.Kind `json:"kind"`
	ItemID string      `json:"item_id"`
}

type noteEventReq struct {
	typ  string
	note NoteEvent
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable
// state (clients and the per-note repeat window). Public methods talk to the
// loop through channels, so no mutexes are required.
type Broker struct {
	repeatWindow time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	noteEventCh   chan noteEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. Identical note events for the same path
// arriving within repeatWindow are sent once.
func NewBroker(repeatWindow time.Duration) *Broker {
	if repeatWindow <= 0 {
		repeatWindow = 2 * time.Second
	}

	b := &Broker{
		repeatWindow:  repeatWindow,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		noteEventCh:   make(chan noteEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	lastSent := make(map[string]time.Time)

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
				// Client buffer full; skip to avoid blocking broker loop.
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

		case req := <-b.noteEventCh:
			key := req.typ + "\x00" + req.note.Path
			now := time.Now()
			if now.Sub(lastSent[key]) < b.repeatWindow {
				continue
			}
			for k, at := range lastSent {
				if now.Sub(at) >= b.repeatWindow {
					delete(lastSent, k)
				}
			}
			lastSent[key] = now
			broadcast(Event{Type: req.typ, Data: req.note})

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

// SyncStarted announces a run.
func (b *Broker) SyncStarted(runID string) {
	b.Publish(Event{Type: TypeSyncStarted, Data: map[string]string{"run_id": runID}})
}

// SyncCompleted announces the summary of a finished run.
func (b *Broker) SyncCompleted(summary *models.RunSummary) {
	b.Publish(Event{Type: TypeSyncCompleted, Data: summary})
}

// NoteEdited reports a synced note changed outside of a sync.
func (b *Broker) NoteEdited(path string, key models.ItemKey) {
	b.publishNote(TypeNoteEdited, path, key)
}

// NoteRemoved reports a synced note deleted from the vault.
func (b *Broker) NoteRemoved(path string, key models.ItemKey) {
	b.publishNote(TypeNoteRemoved, path, key)
}

func (b *Broker) publishNote(typ, path string, key models.ItemKey) {
	if b.closed.Load() {
		return
	}
	req := noteEventReq{typ: typ, note: NoteEvent{Path: path, Kind: key.Kind, ItemID: key.ID}}
	select {
	case b.noteEventCh <- req:
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
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
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
