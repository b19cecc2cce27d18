package brain

import "sync"

// DefaultHistorySize is how many finished runs are remembered
const DefaultHistorySize = 100

// History is a bounded, newest-first record of run results
type History struct {
	mu    sync.RWMutex
	size  int
	items []*RunResult
}

// NewHistory creates a history holding at most size runs
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size}
}

// Add records a run, evicting the oldest when full
func (h *History) Add(r *RunResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = append([]*RunResult{r}, h.items...)
	if len(h.items) > h.size {
		h.items = h.items[:h.size]
	}
}

// List returns up to limit runs, newest first; limit <= 0 returns all
func (h *History) List(limit int) []*RunResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > len(h.items) {
		limit = len(h.items)
	}
	out := make([]*RunResult, limit)
	copy(out, h.items[:limit])
	return out
}

// Get finds a recorded run by ID
func (h *History) Get(runID string) (*RunResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, r := range h.items {
		if r.RunID == runID {
			return r, true
		}
	}
	return nil, false
}

// Len returns the number of recorded runs
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}
