package http

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
)

// Event is one committed change of a document as seen by SSE subscribers.
type Event struct {
	Seq     uint64          `json:"seq"`
	Changed []string        `json:"changed"`
	Patch   json.RawMessage `json:"patch"`
}

// Touches reports whether the event changed any of names. An empty list matches everything.
func (e Event) Touches(names []string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if slices.Contains(e.Changed, n) {
			return true
		}
	}
	return false
}

// StreamManager handles active SSE connections
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- Event]struct{} // DocID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- Event]struct{}),
		logger:      slog.Default(),
	}
}

func (sm *StreamManager) Subscribe(docID string) (chan Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Event, 10)
	if _, ok := sm.subscribers[docID]; !ok {
		sm.subscribers[docID] = make(map[chan<- Event]struct{})
	}
	sm.subscribers[docID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[docID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, docID)
			}
		}
	}
}

// Subscribers returns the number of open subscriptions for docID.
func (sm *StreamManager) Subscribers(docID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[docID])
}

func (sm *StreamManager) Broadcast(docID string, ev Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sm.logger.Debug("StreamManager: Broadcasting", "doc_id", docID, "seq", ev.Seq, "payload_size", len(ev.Patch))

	for ch := range sm.subscribers[docID] {
		select {
		case ch <- ev:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "doc_id", docID)
		}
	}
}
