package inflight

import (
	"context"
	"fmt"
	"sync"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
)

// Group is a pending-request registry: at most one fn runs per key.
// Callers arriving while a call is pending attach to its result.
// When every attached caller has gone, the call's context is cancelled
// and the next caller starts a fresh call that runs only after the
// abandoned one has returned.
// ⭐ SSOT: per-ticker in-flight tracking for qualitative and macro work
type Group[V any] struct {
	mu      sync.Mutex
	pending map[string]*call[V] // joinable calls
	tail    map[string]*call[V] // most recent call per key, joinable or abandoned
	active  map[string]int      // fn executions in progress
}

type call[V any] struct {
	done    chan struct{}
	tag     string
	val     V
	err     error
	waiters int
	cancel  context.CancelFunc
}

// New creates an empty registry
func New[V any]() *Group[V] {
	return &Group[V]{
		pending: make(map[string]*call[V]),
		tail:    make(map[string]*call[V]),
		active:  make(map[string]int),
	}
}

// Do runs fn for key unless a call is already pending, in which case it
// waits for that call's result. shared reports whether the result came
// from another caller's call. fn receives a context detached from the
// caller's: it is cancelled only when all waiters have left.
func (g *Group[V]) Do(ctx context.Context, key string, fn func(ctx context.Context) (V, error)) (v V, shared bool, err error) {
	return g.DoTagged(ctx, key, "", fn)
}

// DoTagged is Do for calls whose inputs are identified by tag. A caller only
// attaches to a pending call with the same tag; otherwise its own call is
// queued behind the pending one, so calls for one key still never overlap.
func (g *Group[V]) DoTagged(ctx context.Context, key, tag string, fn func(ctx context.Context) (V, error)) (v V, shared bool, err error) {
	g.mu.Lock()
	if c, ok := g.pending[key]; ok && c.tag == tag {
		c.waiters++
		g.mu.Unlock()
		v, err = g.wait(ctx, key, c)
		return v, true, err
	}

	callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &call[V]{done: make(chan struct{}), tag: tag, waiters: 1, cancel: cancel}
	prev := g.tail[key]
	g.pending[key] = c
	g.tail[key] = c
	g.mu.Unlock()

	go g.run(callCtx, key, c, prev, fn)

	v, err = g.wait(ctx, key, c)
	return v, false, err
}

func (g *Group[V]) run(ctx context.Context, key string, c, prev *call[V], fn func(ctx context.Context) (V, error)) {
	defer c.cancel()

	// an abandoned predecessor may still be talking to the provider
	if prev != nil {
		<-prev.done
	}

	if err := ctx.Err(); err != nil {
		c.err = err
	} else if err := g.enter(key); err != nil {
		c.err = err
	} else {
		c.val, c.err = fn(ctx)
		g.leave(key)
	}

	g.mu.Lock()
	if g.pending[key] == c {
		delete(g.pending, key)
	}
	if g.tail[key] == c {
		delete(g.tail, key)
	}
	g.mu.Unlock()
	close(c.done)
}

func (g *Group[V]) enter(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[key] > 0 {
		return fmt.Errorf("%w: second in-flight call for %s", contracts.ErrStateInconsistency, key)
	}
	g.active[key]++
	return nil
}

func (g *Group[V]) leave(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active[key]--; g.active[key] <= 0 {
		delete(g.active, key)
	}
}

func (g *Group[V]) wait(ctx context.Context, key string, c *call[V]) (V, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		g.mu.Lock()
		c.waiters--
		if c.waiters == 0 {
			c.cancel()
			if g.pending[key] == c {
				delete(g.pending, key)
			}
		}
		g.mu.Unlock()

		var zero V
		return zero, ctx.Err()
	}
}

// InFlight reports whether a joinable call is pending for key
func (g *Group[V]) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pending[key]
	return ok
}

// Len returns the number of joinable calls
func (g *Group[V]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Waiters returns how many callers are attached to key's pending call
func (g *Group[V]) Waiters(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.pending[key]; ok {
		return c.waiters
	}
	return 0
}
