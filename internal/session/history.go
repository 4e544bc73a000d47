package session

import "sync"

// Entry is one evaluated JD.
type Entry struct {
	Position string `json:"position"`
	Content  string `json:"content"`
}

// History is an append-only, ordered log of evaluated JDs. Entries are never
// edited or removed.
type History struct {
	mu      sync.RWMutex
	entries []Entry
}

// Append adds e to the end of the log.
func (h *History) Append(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
}

// All returns a copy of the entries in insertion order.
func (h *History) All() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Prior splits the log into the most recent entry and everything before it.
// ok is false until there is at least one earlier entry to compare with.
func (h *History) Prior() (current Entry, previous []Entry, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := len(h.entries)
	if n < 2 {
		return Entry{}, nil, false
	}

	previous = make([]Entry, n-1)
	copy(previous, h.entries[:n-1])
	return h.entries[n-1], previous, true
}
