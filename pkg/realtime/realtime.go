// Package realtime provides a lightweight in-process publish/subscribe hub
// used to fan out values (controller state snapshots, for instance) to
// multiple listeners such as terminal views or WebSocket sessions.
//
// Delivery is best effort: a slow listener never blocks the publisher. When a
// listener's buffer is full the oldest buffered value is dropped so the
// listener always ends up holding the most recent one. There is no
// persistence or replay.
package realtime

import "sync"

// DefaultBufferSize is used when NewHub receives a non-positive size.
const DefaultBufferSize = 32

// Hub is an in-memory fan-out dispatcher. Each registered listener receives
// values through its own buffered channel.
//
// The hub is concurrency-safe.
type Hub[T any] struct {
	mu        sync.Mutex
	listeners map[uint64]chan T
	nextID    uint64
	bufSize   int
	closed    bool
}

// NewHub constructs a new hub with per-listener buffer size.
// If bufSize <= 0, DefaultBufferSize is used.
func NewHub[T any](bufSize int) *Hub[T] {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Hub[T]{
		listeners: make(map[uint64]chan T),
		bufSize:   bufSize,
	}
}

// Register adds a new listener and returns (listenerID, receiveOnlyChannel).
// Callers must later Unregister(id) to release resources. Registering on a
// closed hub returns an already closed channel.
func (h *Hub[T]) Register() (uint64, <-chan T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan T, h.bufSize)
	if h.closed {
		close(ch)
		return id, ch
	}
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes the listener with the given id and closes its channel.
// It is safe to call multiple times; unknown ids are ignored.
func (h *Hub[T]) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Send delivers a value to a single listener, with the same drop-oldest
// policy as Broadcast. Unknown ids are ignored.
func (h *Hub[T]) Send(id uint64, v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		deliver(ch, v)
	}
}

// Broadcast delivers a value to all registered listeners (best effort).
func (h *Hub[T]) Broadcast(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.listeners {
		deliver(ch, v)
	}
}

// Senders hold the hub lock, so the drain-then-send below cannot race
// another sender for the freed slot.
func deliver[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// Size returns the current number of active listeners.
func (h *Hub[T]) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// Close unregisters every listener, closing their channels. Later calls to
// Register return closed channels.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.listeners {
		delete(h.listeners, id)
		close(ch)
	}
}
