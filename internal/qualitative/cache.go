package qualitative

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
	"github.com/wonny/alphaterminal/backend/pkg/redis"
)

// Cache holds assessments per ticker, in memory with an optional redis copy.
// An entry is reusable while it is younger than the TTL and its fingerprint
// matches the current inputs.
type Cache struct {
	ttl    time.Duration
	l2     *redis.Cache
	logger *logger.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*contracts.QualitativeAssessment
}

// NewCache creates an assessment cache. l2 may be nil or disabled.
func NewCache(ttl time.Duration, l2 *redis.Cache, log *logger.Logger) *Cache {
	return &Cache{
		ttl:     ttl,
		l2:      l2,
		logger:  log,
		now:     time.Now,
		entries: make(map[string]*contracts.QualitativeAssessment),
	}
}

// Fingerprint hashes the inputs an assessment depends on as
// "<fundamentals>:<excerpt>", so each half can be compared on its own.
func Fingerprint(req contracts.AnalysisRequest) string {
	f := req.Fundamentals
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%.4f|%.4f|%.4f|%.4f", req.Ticker, req.Sector, f.Valuation, f.ROE, f.Growth, f.Leverage)
	if f.DividendYield != nil {
		fmt.Fprintf(h, "|dy=%.4f", *f.DividendYield)
	}
	excerpt := sha256.Sum256([]byte(req.Excerpt))
	return hex.EncodeToString(h.Sum(nil))[:16] + ":" + hex.EncodeToString(excerpt[:])[:8]
}

// Matches reports whether a stored fingerprint still covers req.
// Without an excerpt (fetch failed) only the fundamentals half counts.
func Matches(stored, current string, req contracts.AnalysisRequest) bool {
	if stored == current {
		return true
	}
	if !req.ExcerptUnavailable {
		return false
	}
	storedFund, _, ok := strings.Cut(stored, ":")
	currentFund, _, _ := strings.Cut(current, ":")
	return ok && storedFund == currentFund
}

// Lookup returns a reusable assessment for req
func (c *Cache) Lookup(ctx context.Context, req contracts.AnalysisRequest, fingerprint string) (*contracts.QualitativeAssessment, bool) {
	a, ok := c.Get(ctx, req.Ticker)
	if !ok {
		return nil, false
	}
	if !Matches(a.Fingerprint, fingerprint, req) || !c.Fresh(a) {
		return nil, false
	}
	return a, true
}

// Get returns the stored assessment regardless of freshness
func (c *Cache) Get(ctx context.Context, ticker string) (*contracts.QualitativeAssessment, bool) {
	c.mu.RLock()
	a, ok := c.entries[ticker]
	c.mu.RUnlock()
	if ok {
		return a, true
	}

	if !c.l2.Enabled() {
		return nil, false
	}
	var stored contracts.QualitativeAssessment
	found, err := c.l2.Get(ctx, redis.AssessmentKey(ticker), &stored)
	if err != nil {
		c.logger.WithError(err).WithField("ticker", ticker).Warn("Failed to read assessment from redis")
		return nil, false
	}
	if !found {
		return nil, false
	}

	c.mu.Lock()
	if existing, ok := c.entries[ticker]; ok {
		c.mu.Unlock()
		return existing, true
	}
	c.entries[ticker] = &stored
	c.mu.Unlock()
	return &stored, true
}

// Fresh reports whether a is within the TTL
func (c *Cache) Fresh(a *contracts.QualitativeAssessment) bool {
	return c.now().Sub(a.AnalyzedAt) < c.ttl
}

// Put stores an assessment
func (c *Cache) Put(ctx context.Context, a *contracts.QualitativeAssessment) {
	c.mu.Lock()
	c.entries[a.Ticker] = a
	c.mu.Unlock()

	if err := c.l2.Set(ctx, redis.AssessmentKey(a.Ticker), a, 2*c.ttl); err != nil {
		c.logger.WithError(err).WithField("ticker", a.Ticker).Warn("Failed to write assessment to redis")
	}
}

// Reset drops every assessment, in memory and in redis
func (c *Cache) Reset(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*contracts.QualitativeAssessment)
	c.mu.Unlock()
	return c.l2.Flush(ctx)
}

// Len returns the number of in-memory entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

