package app

import (
	"sync"
)

// Location is the address bar. Replace overwrites the current entry
// without adding history.
type Location interface {
	Path() string
	Replace(path string)
}

// History is an in-memory Location that records every replacement.
type History struct {
	mu      sync.Mutex
	entries []string
}

// NewHistory returns a location starting at path.
func NewHistory(path string) *History {
	return &History{entries: []string{path}}
}

func (h *History) Path() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return ""
	}
	return h.entries[len(h.entries)-1]
}

func (h *History) Replace(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, path)
}

// Entries returns the starting path followed by every replacement.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...)
}
