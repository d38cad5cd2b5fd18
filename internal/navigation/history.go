// Package navigation records where the registry manager sent the
// presentation layer.
package navigation

import (
	"log/slog"
	"sync"
	"time"
)

// Visit is one navigation step.
type Visit struct {
	Path string    `json:"path"`
	At   time.Time `json:"at"`
}

// History is a ports.Navigator that keeps the current location and a
// bounded list of recent visits.
type History struct {
	mu      sync.RWMutex
	visits  []Visit
	limit   int
	current string
	now     func() time.Time
}

// NewHistory creates a History starting at start that keeps up to limit
// visits (50 when limit <= 0).
func NewHistory(start string, limit int) *History {
	if limit <= 0 {
		limit = 50
	}
	return &History{current: start, limit: limit, now: time.Now}
}

// Navigate moves to path.
func (h *History) Navigate(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = path
	h.visits = append(h.visits, Visit{Path: path, At: h.now()})
	if over := len(h.visits) - h.limit; over > 0 {
		h.visits = append(h.visits[:0], h.visits[over:]...)
	}
	slog.Debug("navigate", "path", path)
}

// Current returns the current location.
func (h *History) Current() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Visits returns recent visits, oldest first.
func (h *History) Visits() []Visit {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Visit, len(h.visits))
	copy(out, h.visits)
	return out
}
