// Package stream provides an in-memory fan-out hub for in-flight
// assistant messages. Each streaming message owns one Stream; SSE
// handlers subscribe to it, the streaming service publishes formatted
// events into it. A catchup buffer lets clients that connect (or
// reconnect) mid-stream replay everything published so far, so observers
// always see the pending entry grow from the start.
package stream

import (
	"context"
	"sync"
)

// Hub tracks active streams keyed by message ID.
type Hub struct {
	mu      sync.Mutex
	streams map[string]*Stream
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		streams: make(map[string]*Stream),
	}
}

// Create registers a stream for a message and stores the cancel function
// that aborts its producer. Returns the existing stream if one is already
// registered; a message never has two producers.
func (h *Hub) Create(messageID string, cancel context.CancelFunc) *Stream {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s, ok := h.streams[messageID]; ok {
		return s
	}
	s := &Stream{
		clients: make(map[string]chan string),
		cancel:  cancel,
	}
	h.streams[messageID] = s
	return s
}

// Get returns the stream for a message, or nil when none is active.
func (h *Hub) Get(messageID string) *Stream {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.streams[messageID]
}

// Cancel aborts the producer for a message. Reports whether a stream was
// found; cancelling an already-finished stream is a no-op.
func (h *Hub) Cancel(messageID string) bool {
	h.mu.Lock()
	s, ok := h.streams[messageID]
	h.mu.Unlock()

	if !ok {
		return false
	}
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true
}

// Remove drops the stream for a message. Called by the producer after the
// final event has been published and the stream closed.
func (h *Hub) Remove(messageID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.streams, messageID)
}

// clientBuffer is the per-subscriber channel capacity beyond the catchup
// replay. A subscriber that falls this far behind misses events until it
// reconnects.
const clientBuffer = 64

// Stream is one message's event fan-out.
type Stream struct {
	mu      sync.Mutex
	buffer  []string // every event published so far, in order
	clients map[string]chan string
	closed  bool
	cancel  context.CancelFunc
}

// Publish appends the event to the catchup buffer and delivers it to all
// subscribers. Delivery never blocks the producer: a subscriber with a
// full channel skips the event. Publishing to a closed stream is a no-op.
func (s *Stream) Publish(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.buffer = append(s.buffer, event)
	for _, ch := range s.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe registers a client and returns its event channel. Everything
// published before the subscription is replayed first, so the channel
// always yields the full event sequence in order. If the stream is
// already closed the returned channel holds the replay and is closed.
func (s *Stream) Subscribe(clientID string) <-chan string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan string, len(s.buffer)+clientBuffer)
	for _, event := range s.buffer {
		ch <- event
	}
	if s.closed {
		close(ch)
		return ch
	}
	s.clients[clientID] = ch
	return ch
}

// Unsubscribe removes a client. Safe to call after Close.
func (s *Stream) Unsubscribe(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.clients[clientID]; ok {
		delete(s.clients, clientID)
		if !s.closed {
			close(ch)
		}
	}
}

// Close ends the stream: all client channels are closed and later
// publishes are dropped. Safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.clients {
		close(ch)
		delete(s.clients, id)
	}
}
