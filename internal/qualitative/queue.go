package qualitative

import (
	"sort"
	"sync"
	"time"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
)

// QueueItem is a ticker waiting for a later analysis pass
type QueueItem struct {
	Ticker   string                    `json:"ticker"`
	Reason   string                    `json:"reason"`
	Attempts int                       `json:"attempts"`
	QueuedAt time.Time                 `json:"queued_at"`
	Request  contracts.AnalysisRequest `json:"-"`
}

// RetryQueue collects tickers whose analysis failed or was abandoned.
// One entry per ticker; re-queuing bumps the attempt count.
type RetryQueue struct {
	mu    sync.Mutex
	items map[string]*QueueItem
	now   func() time.Time
}

// NewRetryQueue creates an empty queue
func NewRetryQueue() *RetryQueue {
	return &RetryQueue{
		items: make(map[string]*QueueItem),
		now:   time.Now,
	}
}

// Push queues req, or refreshes the existing entry
func (q *RetryQueue) Push(req contracts.AnalysisRequest, reason string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if item, ok := q.items[req.Ticker]; ok {
		item.Attempts++
		item.Reason = reason
		item.Request = req
		return
	}
	q.items[req.Ticker] = &QueueItem{
		Ticker:   req.Ticker,
		Reason:   reason,
		Attempts: 1,
		QueuedAt: q.now(),
		Request:  req,
	}
}

// Drain removes and returns every item, oldest first
func (q *RetryQueue) Drain() []QueueItem {
	q.mu.Lock()
	items := make([]QueueItem, 0, len(q.items))
	for _, item := range q.items {
		items = append(items, *item)
	}
	q.items = make(map[string]*QueueItem)
	q.mu.Unlock()

	sortItems(items)
	return items
}

// Requeue puts a drained item back. attempted counts a pass that ran and failed;
// an item skipped without dispatch keeps its attempt count.
func (q *RetryQueue) Requeue(item QueueItem, reason string, attempted bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.items[item.Ticker]; ok {
		return // a newer run queued it already
	}
	if attempted {
		item.Attempts++
		item.Reason = reason
	}
	q.items[item.Ticker] = &item
}

// Remove drops a ticker, e.g. after a later run analyzed it
func (q *RetryQueue) Remove(ticker string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.items, ticker)
}

// List returns a copy of the queue, oldest first
func (q *RetryQueue) List() []QueueItem {
	q.mu.Lock()
	items := make([]QueueItem, 0, len(q.items))
	for _, item := range q.items {
		items = append(items, *item)
	}
	q.mu.Unlock()

	sortItems(items)
	return items
}

// Len returns the number of queued tickers
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func sortItems(items []QueueItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].QueuedAt.Equal(items[j].QueuedAt) {
			return items[i].Ticker < items[j].Ticker
		}
		return items[i].QueuedAt.Before(items[j].QueuedAt)
	})
}
