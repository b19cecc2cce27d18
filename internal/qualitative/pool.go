package qualitative

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
)

// ErrEmptyPool is returned when no credential is configured
var ErrEmptyPool = errors.New("credential pool is empty")

// Pool rotates requests across credentials, each with its own token
// bucket. Acquire suspends the caller until the earliest credential has
// budget; it never spins.
// ⭐ SSOT: provider rate limiting lives here only
type Pool struct {
	mu    sync.Mutex
	slots []*slot
	next  int // round-robin start, breaks ties between idle credentials
}

type slot struct {
	provider contracts.TextProvider
	limiter  *rate.Limiter
}

// NewPool creates a pool where each provider may issue requestsPerMinute
// requests, spaced at least minInterval apart.
func NewPool(providers []contracts.TextProvider, requestsPerMinute int, minInterval time.Duration) *Pool {
	interval := time.Minute / time.Duration(max(requestsPerMinute, 1))
	if minInterval > interval {
		interval = minInterval
	}

	slots := make([]*slot, 0, len(providers))
	for _, p := range providers {
		slots = append(slots, &slot{
			provider: p,
			limiter:  rate.NewLimiter(rate.Every(interval), 1),
		})
	}
	return &Pool{slots: slots}
}

// Acquire reserves a request slot on the credential that frees up first
// and waits for it. The pool lock is released before waiting.
func (p *Pool) Acquire(ctx context.Context) (contracts.TextProvider, error) {
	if len(p.slots) == 0 {
		return nil, ErrEmptyPool
	}

	p.mu.Lock()
	now := time.Now()
	var (
		best      *slot
		bestRes   *rate.Reservation
		bestDelay time.Duration
	)
	for i := range p.slots {
		s := p.slots[(p.next+i)%len(p.slots)]
		r := s.limiter.ReserveN(now, 1)
		if !r.OK() {
			continue
		}
		d := r.DelayFrom(now)
		if best == nil || d < bestDelay {
			if bestRes != nil {
				bestRes.CancelAt(now)
			}
			best, bestRes, bestDelay = s, r, d
			continue
		}
		r.CancelAt(now)
	}
	p.next = (p.next + 1) % len(p.slots)
	p.mu.Unlock()

	if best == nil {
		return nil, ErrEmptyPool
	}
	if bestDelay == 0 {
		return best.provider, nil
	}

	timer := time.NewTimer(bestDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return best.provider, nil
	case <-ctx.Done():
		bestRes.Cancel()
		return nil, ctx.Err()
	}
}
