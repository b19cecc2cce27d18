package qualitative

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/internal/inflight"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
	"github.com/wonny/alphaterminal/backend/pkg/retry"
)

// Analyzer obtains catalyst assessments: from cache when reusable,
// otherwise from the provider pool, with at most one request in flight
// per ticker.
// ⭐ SSOT: qualitative analysis lives here only
type Analyzer struct {
	pool   *Pool
	cache  *Cache
	flight *inflight.Group[*contracts.QualitativeAssessment]
	policy DividendTrapPolicy
	retry  retry.Policy
	logger *logger.Logger
	now    func() time.Time

	dispatched atomic.Int64 // provider requests issued, retries included
}

// NewAnalyzer wires the analyzer. policy may be nil for the default heuristic.
func NewAnalyzer(pool *Pool, cache *Cache, policy DividendTrapPolicy, rp retry.Policy, log *logger.Logger) *Analyzer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	rp.Retryable = contracts.IsTransient

	a := &Analyzer{
		pool:   pool,
		cache:  cache,
		flight: inflight.New[*contracts.QualitativeAssessment](),
		policy: policy,
		logger: log.WithComponent("qualitative"),
		now:    time.Now,
	}
	rp.OnRetry = func(attempt int, delay time.Duration, err error) {
		a.logger.WithError(err).WithFields(map[string]interface{}{
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("Retrying qualitative analysis")
	}
	a.retry = rp
	return a
}

// Analyze returns an assessment for req. Unless force is set, a cached
// entry with matching inputs inside the freshness window is reused.
// Concurrent callers for the same ticker and inputs share one provider
// request; a caller with different inputs waits its turn behind it.
func (a *Analyzer) Analyze(ctx context.Context, req contracts.AnalysisRequest, force bool) (*contracts.QualitativeAssessment, contracts.QualitativeOutcome, error) {
	fp := Fingerprint(req)

	if !force {
		if cached, ok := a.cache.Lookup(ctx, req, fp); ok {
			return cached, contracts.OutcomeCached, nil
		}
	}

	outcome := contracts.OutcomeAnalyzed
	assessment, shared, err := a.flight.DoTagged(ctx, req.Ticker, fp, func(callCtx context.Context) (*contracts.QualitativeAssessment, error) {
		// a call queued behind another may find its answer already cached
		if !force {
			if cached, ok := a.cache.Lookup(callCtx, req, fp); ok {
				outcome = contracts.OutcomeCached
				return cached, nil
			}
		}
		return a.dispatch(callCtx, req, fp)
	})
	if err != nil {
		return nil, contracts.OutcomeFailed, err
	}
	if shared {
		a.logger.WithField("ticker", req.Ticker).Debug("Attached to in-flight analysis")
		return assessment, contracts.OutcomeAnalyzed, nil
	}
	return assessment, outcome, nil
}

func (a *Analyzer) dispatch(ctx context.Context, req contracts.AnalysisRequest, fp string) (*contracts.QualitativeAssessment, error) {
	completion := BuildCompletion(req)
	start := a.now()

	var out *contracts.QualitativeAssessment
	err := a.retry.Do(ctx, func(ctx context.Context) error {
		provider, err := a.pool.Acquire(ctx)
		if err != nil {
			return err
		}

		a.dispatched.Add(1)
		raw, err := provider.Complete(ctx, completion)
		if err != nil {
			return err
		}

		out, err = Parse(req.Ticker, raw)
		return err
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			a.logger.WithError(err).WithField("ticker", req.Ticker).Warn("Qualitative analysis exhausted retries")
		}
		return nil, err
	}

	out.DividendTrap = a.policy.IsTrap(out, req.Fundamentals)
	out.Fingerprint = fp
	out.AnalyzedAt = a.now()

	// every waiter left: the result belongs to a cancelled run
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.cache.Put(ctx, out)

	a.logger.WithFields(map[string]interface{}{
		"ticker":        req.Ticker,
		"score":         out.Score,
		"dividend_trap": out.DividendTrap,
		"catalysts":     len(out.Catalysts),
		"duration":      a.now().Sub(start).String(),
	}).Info("Qualitative analysis completed")

	return out, nil
}

// Reusable returns the cached assessment when it is fresh and its inputs still match req
func (a *Analyzer) Reusable(ctx context.Context, req contracts.AnalysisRequest) (*contracts.QualitativeAssessment, bool) {
	return a.cache.Lookup(ctx, req, Fingerprint(req))
}

// Cached returns a ticker's stored assessment, fresh or not
func (a *Analyzer) Cached(ctx context.Context, ticker string) (*contracts.QualitativeAssessment, bool) {
	return a.cache.Get(ctx, ticker)
}

// Dispatched returns how many provider requests were issued so far
func (a *Analyzer) Dispatched() int64 {
	return a.dispatched.Load()
}

// Reset clears the assessment cache
func (a *Analyzer) Reset(ctx context.Context) error {
	return a.cache.Reset(ctx)
}
