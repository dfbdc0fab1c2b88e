package controller

import (
	"slices"
	"strings"
	"sync"
)

// History is the addressable location the controller mirrors its intent
// into. Current returns the query string of the present entry (a leading
// "?" is tolerated) and Push appends a new entry without navigating away.
type History interface {
	Current() string
	Push(query string)
}

// MemoryHistory is an in-process History with back and forward navigation,
// used by the terminal client and tests.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []string
	pos     int
}

// NewMemoryHistory returns a history whose only entry is initial.
func NewMemoryHistory(initial string) *MemoryHistory {
	return &MemoryHistory{entries: []string{strings.TrimPrefix(initial, "?")}}
}

func (h *MemoryHistory) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.pos]
}

// Push discards any forward entries and appends query.
func (h *MemoryHistory) Push(query string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.pos+1], strings.TrimPrefix(query, "?"))
	h.pos = len(h.entries) - 1
}

// Back moves to the previous entry. It reports false at the oldest entry.
func (h *MemoryHistory) Back() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pos == 0 {
		return h.entries[0], false
	}
	h.pos--
	return h.entries[h.pos], true
}

// Forward moves to the next entry. It reports false at the newest entry.
func (h *MemoryHistory) Forward() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pos == len(h.entries)-1 {
		return h.entries[h.pos], false
	}
	h.pos++
	return h.entries[h.pos], true
}

// Entries returns a copy of every entry, oldest first.
func (h *MemoryHistory) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.entries)
}
