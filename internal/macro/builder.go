package macro

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/internal/inflight"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
	"github.com/wonny/alphaterminal/backend/pkg/redis"
)

const flightKey = "macro"

// Builder computes and caches the macro context.
// The cached context is process-wide state guarded by a single key:
// concurrent refreshes coalesce into one provider call.
// ⭐ SSOT: macro context lifecycle lives here only
type Builder struct {
	provider contracts.MacroProvider
	table    []SectorSensitivity
	ttl      time.Duration
	l2       *redis.Cache
	flight   *inflight.Group[*contracts.MacroContext]
	logger   *logger.Logger
	now      func() time.Time

	mu      sync.RWMutex
	current *contracts.MacroContext
}

// NewBuilder creates a builder. l2 may be nil or disabled.
func NewBuilder(provider contracts.MacroProvider, ttl time.Duration, l2 *redis.Cache, log *logger.Logger) *Builder {
	return &Builder{
		provider: provider,
		table:    DefaultSensitivities,
		ttl:      ttl,
		l2:       l2,
		flight:   inflight.New[*contracts.MacroContext](),
		logger:   log.WithComponent("macro"),
		now:      time.Now,
	}
}

// Context returns the cached context when fresh, otherwise recomputes it.
// When the provider fails the last cached value is returned with a warning;
// an error is returned only when nothing was ever cached.
func (b *Builder) Context(ctx context.Context, force bool) (*contracts.MacroContext, error) {
	if !force {
		if cur := b.Current(); cur != nil && b.fresh(cur) {
			return cur, nil
		}
		if cached := b.loadL2(ctx); cached != nil && b.fresh(cached) {
			b.store(cached)
			return cached, nil
		}
	}

	mc, _, err := b.flight.Do(ctx, flightKey, b.refresh)
	return mc, err
}

func (b *Builder) refresh(ctx context.Context) (*contracts.MacroContext, error) {
	ind, err := b.provider.Fetch(ctx)
	if err != nil {
		if last := b.lastKnown(ctx); last != nil {
			b.logger.WithError(err).WithField("computed_at", last.ComputedAt).
				Warn("Macro provider unavailable, using last cached context")
			return last, nil
		}
		return nil, fmt.Errorf("fetch macro indicators: %w", err)
	}

	mc := b.Build(ind)

	// late result of an abandoned refresh
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	b.store(mc)
	if err := b.l2.Set(ctx, redis.MacroKey(), mc, 0); err != nil {
		b.logger.WithError(err).Warn("Failed to write macro context to redis")
	}

	b.logger.WithFields(map[string]interface{}{
		"interest_rate":  mc.InterestRate,
		"inflation_rate": mc.InflationRate,
		"favored":        mc.FavoredSectors,
		"unfavored":      mc.UnfavoredSectors,
	}).Info("Macro context computed")

	return mc, nil
}

// Build computes a context from indicators without touching the cache
func (b *Builder) Build(ind contracts.MacroIndicators) *contracts.MacroContext {
	weights := CalculateSectorWeights(b.table, ind.InterestRate, ind.InflationRate)
	favored, unfavored := RankSectors(b.table, weights)

	return &contracts.MacroContext{
		InterestRate:     ind.InterestRate,
		InflationRate:    ind.InflationRate,
		SectorWeights:    weights,
		FavoredSectors:   favored,
		UnfavoredSectors: unfavored,
		ComputedAt:       b.now(),
	}
}

// Neutral returns a context with every sector at weight 1.0
func (b *Builder) Neutral() *contracts.MacroContext {
	mc := b.Build(contracts.MacroIndicators{InterestRate: NeutralInterest, InflationRate: NeutralInflation})
	mc.Neutral = true
	return mc
}

// Current returns the in-memory context, nil before the first success
func (b *Builder) Current() *contracts.MacroContext {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// Reset drops the in-memory and redis copies
func (b *Builder) Reset(ctx context.Context) error {
	b.mu.Lock()
	b.current = nil
	b.mu.Unlock()
	return b.l2.Delete(ctx, redis.MacroKey())
}

func (b *Builder) fresh(mc *contracts.MacroContext) bool {
	return b.now().Sub(mc.ComputedAt) < b.ttl
}

func (b *Builder) store(mc *contracts.MacroContext) {
	b.mu.Lock()
	b.current = mc
	b.mu.Unlock()
}

func (b *Builder) lastKnown(ctx context.Context) *contracts.MacroContext {
	if cur := b.Current(); cur != nil {
		return cur
	}
	return b.loadL2(ctx)
}

func (b *Builder) loadL2(ctx context.Context) *contracts.MacroContext {
	if !b.l2.Enabled() {
		return nil
	}
	var mc contracts.MacroContext
	found, err := b.l2.Get(ctx, redis.MacroKey(), &mc)
	if err != nil {
		b.logger.WithError(err).Warn("Failed to read macro context from redis")
		return nil
	}
	if !found {
		return nil
	}
	return &mc
}
