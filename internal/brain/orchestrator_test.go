package brain

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/internal/macro"
	"github.com/wonny/alphaterminal/backend/internal/metrics"
	"github.com/wonny/alphaterminal/backend/internal/pricing"
	"github.com/wonny/alphaterminal/backend/internal/qualitative"
	"github.com/wonny/alphaterminal/backend/internal/selection"
	"github.com/wonny/alphaterminal/backend/internal/sentiment"
	"github.com/wonny/alphaterminal/backend/internal/snapshot"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
	"github.com/wonny/alphaterminal/backend/pkg/redis"
	"github.com/wonny/alphaterminal/backend/pkg/retry"
)

const assessmentJSON = `{"score": 8.5, "recommendation": "buy", "ceiling_price": 44.17, "upside": 18.77,
"catalysts": ["new plant"], "risks": ["FX"], "summary": "Capacity expansion drives growth."}`

func ptr(v float64) *float64 { return &v }

func records() []contracts.FundamentalRecord {
	return []contracts.FundamentalRecord{
		{Ticker: "WEGE3", Valuation: 10, ROE: 20, Growth: 15, Sector: "Industrials", Price: ptr(37.19)},
		{Ticker: "ITUB4", Valuation: 8, ROE: 21, Growth: 13, Sector: "Financials", Price: ptr(30)},
		{Ticker: "BBAS3", Valuation: 4, ROE: 10, Growth: 20, Sector: "Financials", Price: ptr(25)},
		{Ticker: "VALE3", Valuation: 5, ROE: 18, Growth: 14, Sector: "Energy"},
	}
}

type staticSource struct {
	records []contracts.FundamentalRecord
	err     error
}

func (s *staticSource) Load(ctx context.Context) ([]contracts.FundamentalRecord, error) {
	return s.records, s.err
}

type fakeMacro struct {
	mu  sync.Mutex
	ind contracts.MacroIndicators
	err error
}

func (f *fakeMacro) Fetch(ctx context.Context) (contracts.MacroIndicators, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ind, f.err
}

type fakeMentions struct {
	counts map[string]int
	err    error
}

func (f *fakeMentions) Mentions(ctx context.Context, ticker string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[ticker], nil
}

// fakeLLM answers every ticker with the same assessment unless told to fail it
type fakeLLM struct {
	mu    sync.Mutex
	fail  map[string]error
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeLLM) Name() string { return "fake-llm" }

func (f *fakeLLM) Complete(ctx context.Context, c contracts.Completion) (string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	ticker := strings.TrimPrefix(strings.SplitN(c.User, "\n", 2)[0], "Ticker: ")
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[ticker]; ok {
		return "", err
	}
	return assessmentJSON, nil
}

func (f *fakeLLM) setFail(ticker string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, ticker)
		return
	}
	f.fail[ticker] = err
}

type harness struct {
	orch     *Orchestrator
	llm      *fakeLLM
	macro    *fakeMacro
	mentions *fakeMentions
	repo     *snapshot.MemoryRepository
	store    *snapshot.Store
	queue    *qualitative.RetryQueue
}

func newHarness(t *testing.T, workers int) *harness {
	t.Helper()
	log := logger.NewNop()

	h := &harness{
		llm:      &fakeLLM{fail: map[string]error{}},
		macro:    &fakeMacro{ind: contracts.MacroIndicators{InterestRate: 9, InflationRate: 4.5}},
		mentions: &fakeMentions{counts: map[string]int{"WEGE3": 50, "ITUB4": 20, "VALE3": 10}},
		repo:     snapshot.NewMemoryRepository(),
		queue:    qualitative.NewRetryQueue(),
	}
	h.store = snapshot.NewStore(h.repo, log)

	l2 := func(prefix string) *redis.Cache { return redis.NewCache(redis.Disabled(), prefix) }
	pool := qualitative.NewPool([]contracts.TextProvider{h.llm}, 60000, 0)
	cache := qualitative.NewCache(24*time.Hour, l2("assessments"), log)
	analyzer := qualitative.NewAnalyzer(pool, cache, nil,
		retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 2}, log)

	h.orch = NewOrchestrator(Deps{
		Source:    &staticSource{records: records()},
		Screener:  selection.NewScreener(selection.DefaultScreenerConfig(), log),
		Ranker:    selection.NewRanker(selection.DefaultWeightConfig(), log),
		Macro:     macro.NewBuilder(h.macro, 24*time.Hour, l2("macro"), log),
		Analyzer:  analyzer,
		Sentiment: sentiment.NewScreener(h.mentions, sentiment.DefaultConfig(), l2("sentiment"), log),
		Pricing:   pricing.NewEngine(pricing.DefaultConfig()),
		Store:     h.store,
		Queue:     h.queue,
		Metrics:   metrics.New(prometheus.NewRegistry()),
		Workers:   workers,

		ConfigHash: "cfg-hash",
	}, log)
	return h
}

func pickByTicker(snap *contracts.Snapshot, ticker string) *contracts.TopPick {
	for i := range snap.Ranking {
		if snap.Ranking[i].Ticker == ticker {
			return &snap.Ranking[i]
		}
	}
	return nil
}

func TestRunRanksAndPersists(t *testing.T) {
	h := newHarness(t, 0)

	res, err := h.orch.Run(context.Background(), RunConfig{Mode: contracts.ModeStrict})
	require.NoError(t, err)

	assert.Equal(t, contracts.StageDone, res.State)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Stages, len(contracts.AllStages()))
	for i, stage := range contracts.AllStages() {
		assert.Equal(t, stage, res.Stages[i].Stage)
		assert.True(t, res.Stages[i].Success)
	}

	snap, err := h.store.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.RunID, snap.RunID)
	assert.False(t, snap.Partial)
	assert.Equal(t, 3, snap.TotalRanked)
	assert.Equal(t, "cfg-hash", snap.ConfigHash)
	assert.Equal(t, 3, res.Summary.NewlyAnalyzed)
	assert.Zero(t, res.Summary.CacheReused)
	assert.Empty(t, res.Summary.Failed)

	// neutral macro regime, equal qualitative scores: efficiency order decides
	assert.Equal(t, []string{"VALE3", "ITUB4", "WEGE3"}, []string{
		snap.Ranking[0].Ticker, snap.Ranking[1].Ticker, snap.Ranking[2].Ticker,
	})
	for i, p := range snap.Ranking {
		assert.Equal(t, i+1, p.Rank)
		assert.Equal(t, 1.0, p.SectorWeight)
		require.NotNil(t, p.Qualitative)
		require.NotNil(t, p.Sentiment)
	}

	wege := pickByTicker(snap, "WEGE3")
	require.NotNil(t, wege.Alert)
	assert.Equal(t, 53.00, wege.Alert.FairValue)
	assert.Equal(t, 44.17, wege.Alert.CeilingPrice)
	assert.Equal(t, contracts.RecommendBuy, wege.Alert.Action)

	assert.Nil(t, pickByTicker(snap, "VALE3").Alert, "unpriced ticker gets no alert")
	assert.Nil(t, pickByTicker(snap, "BBAS3"))
	assert.Equal(t, 1, h.orch.History().Len())
}

func TestSecondRunReusesCache(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	_, err := h.orch.Run(ctx, RunConfig{})
	require.NoError(t, err)
	calls := h.llm.calls.Load()
	require.Equal(t, int32(3), calls)

	res, err := h.orch.Run(ctx, RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, calls, h.llm.calls.Load(), "no provider calls on an unchanged second run")
	assert.Equal(t, 3, res.Summary.CacheReused)
	assert.Zero(t, res.Summary.NewlyAnalyzed)

	res, err = h.orch.Run(ctx, RunConfig{Force: true})
	require.NoError(t, err)
	assert.Equal(t, calls+3, h.llm.calls.Load(), "forced run re-dispatches")
	assert.Equal(t, 3, res.Summary.NewlyAnalyzed)
}

func TestStrictRunFailsOnTickerFailure(t *testing.T) {
	h := newHarness(t, 0)
	h.llm.setFail("ITUB4", &contracts.TransientProviderError{Provider: "fake-llm", Err: errors.New("503")})

	res, err := h.orch.Run(context.Background(), RunConfig{Mode: contracts.ModeStrict})
	require.Error(t, err)

	var stageErr *contracts.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, contracts.StageQualitative, stageErr.Stage)
	assert.Equal(t, contracts.StageFailed, res.State)
	assert.Equal(t, contracts.StageQualitative, res.FailedStage)

	_, err = h.store.Latest(context.Background())
	assert.ErrorIs(t, err, contracts.ErrNoSnapshot, "failed run must not publish")
}

func TestIncrementalRunPublishesPartialSnapshot(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	h.llm.setFail("ITUB4", &contracts.TransientProviderError{Provider: "fake-llm", Err: errors.New("503")})

	res, err := h.orch.Run(ctx, RunConfig{Mode: contracts.ModeIncremental})
	require.NoError(t, err)
	assert.Equal(t, contracts.StageDone, res.State)

	snap, err := h.store.Latest(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Partial)
	assert.Equal(t, 3, snap.TotalRanked, "a failed ticker still ranks")
	itub := pickByTicker(snap, "ITUB4")
	require.NotNil(t, itub)
	assert.True(t, itub.Pending)
	assert.Nil(t, itub.Qualitative, "no earlier assessment to fall back on")
	assert.NotNil(t, itub.Sentiment, "sentiment is screened independently")
	assert.NotNil(t, itub.Alert)
	assert.False(t, pickByTicker(snap, "WEGE3").Pending)
	require.Len(t, snap.Summary.Failed, 1)
	assert.Equal(t, "ITUB4", snap.Summary.Failed[0].Ticker)
	assert.Equal(t, []string{"ITUB4"}, snap.Summary.Pending)
	assert.Equal(t, 1, h.queue.Len())

	// provider recovers: the retry pass warms the cache
	h.llm.setFail("ITUB4", nil)
	report, err := h.orch.RetryPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, RetryReport{Attempted: 1, Recovered: 1}, report)
	assert.Zero(t, h.queue.Len())

	calls := h.llm.calls.Load()
	res, err = h.orch.Run(ctx, RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, calls, h.llm.calls.Load())
	assert.Equal(t, 3, res.Summary.CacheReused)
	assert.Equal(t, 3, res.Snapshot.TotalRanked)
	assert.False(t, res.Snapshot.Partial)
	assert.False(t, pickByTicker(res.Snapshot, "ITUB4").Pending)
}

func TestPermanentErrorDisablesProvider(t *testing.T) {
	h := newHarness(t, 1)
	permanent := &contracts.PermanentProviderError{Provider: "fake-llm", Err: errors.New("401 invalid key")}
	for _, ticker := range []string{"WEGE3", "ITUB4", "VALE3"} {
		h.llm.setFail(ticker, permanent)
	}

	res, err := h.orch.Run(context.Background(), RunConfig{})
	require.NoError(t, err)

	assert.Equal(t, int32(1), h.llm.calls.Load(), "dispatch stops after the first permanent failure")
	assert.Len(t, res.Summary.Failed, 3)
	assert.Equal(t, 3, res.Summary.Ranked, "other stages continue")
	assert.Equal(t, 3, h.queue.Len())
	for _, p := range res.Snapshot.Ranking {
		assert.True(t, p.Pending)
		assert.Nil(t, p.Qualitative)
		assert.NotNil(t, p.Sentiment)
	}

	found := false
	for _, w := range res.Summary.Warnings {
		if strings.Contains(w, "provider disabled") {
			found = true
		}
	}
	assert.True(t, found, "run-level warning expected, got %v", res.Summary.Warnings)
}

func stageResult(res *RunResult, stage contracts.Stage) contracts.StageResult {
	for _, sr := range res.Stages {
		if sr.Stage == stage {
			return sr
		}
	}
	return contracts.StageResult{}
}

func TestRevokedKeyKeepsLastKnownRanking(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	first, err := h.orch.Run(ctx, RunConfig{})
	require.NoError(t, err)
	require.Equal(t, 3, first.Snapshot.TotalRanked)

	permanent := &contracts.PermanentProviderError{Provider: "fake-llm", Err: errors.New("401 invalid key")}
	for _, ticker := range []string{"WEGE3", "ITUB4", "VALE3"} {
		h.llm.setFail(ticker, permanent)
	}

	res, err := h.orch.Run(ctx, RunConfig{Force: true})
	require.NoError(t, err)
	assert.Len(t, res.Summary.Failed, 3)
	assert.Equal(t, 3, h.queue.Len())

	assert.Equal(t, 3, stageResult(res, contracts.StageSentiment).InputCount)
	assert.Equal(t, 2, stageResult(res, contracts.StagePriceAlert).OutputCount)

	snap, err := h.store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, snap.RunID)
	require.Equal(t, 3, snap.TotalRanked, "a revoked key must not empty the ranking")
	assert.True(t, snap.Partial)
	for i, p := range snap.Ranking {
		assert.Equal(t, first.Snapshot.Ranking[i].Ticker, p.Ticker)
		assert.Equal(t, first.Snapshot.Ranking[i].CompositeScore, p.CompositeScore)
		assert.True(t, p.Pending)
		require.NotNil(t, p.Qualitative, "last known assessment is carried")
		assert.Equal(t, 8.5, p.Qualitative.Score)
	}
}

type flakyExcerpts struct {
	mu   sync.Mutex
	text string
	err  error
}

func (f *flakyExcerpts) Excerpt(ctx context.Context, ticker string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.text + " " + ticker, nil
}

func (f *flakyExcerpts) set(text string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text, f.err = text, err
}

func TestExcerptOutageReusesCache(t *testing.T) {
	h := newHarness(t, 0)
	excerpts := &flakyExcerpts{text: "Q3 release"}
	h.orch.excerpts = excerpts
	ctx := context.Background()

	_, err := h.orch.Run(ctx, RunConfig{})
	require.NoError(t, err)
	calls := h.llm.calls.Load()
	require.Equal(t, int32(3), calls)

	excerpts.set("", &contracts.TransientProviderError{Provider: "releases", Err: errors.New("timeout")})
	res, err := h.orch.Run(ctx, RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, calls, h.llm.calls.Load(), "an unavailable excerpt is not a reason to re-analyze")
	assert.Equal(t, 3, res.Summary.CacheReused)
	assert.Zero(t, res.Summary.NewlyAnalyzed)

	// a new release is
	excerpts.set("Q4 release", nil)
	res, err = h.orch.Run(ctx, RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, calls+3, h.llm.calls.Load())
	assert.Equal(t, 3, res.Summary.NewlyAnalyzed)
}

func TestMacroFailure(t *testing.T) {
	t.Run("incremental falls back to neutral weights", func(t *testing.T) {
		h := newHarness(t, 0)
		h.macro.err = errors.New("bcb down")

		res, err := h.orch.Run(context.Background(), RunConfig{})
		require.NoError(t, err)
		require.NotNil(t, res.Snapshot.Macro)
		assert.True(t, res.Snapshot.Macro.Neutral)
		assert.True(t, res.Snapshot.Partial)
		assert.NotEmpty(t, res.Summary.Warnings)
	})

	t.Run("strict fails the stage", func(t *testing.T) {
		h := newHarness(t, 0)
		h.macro.err = errors.New("bcb down")

		res, err := h.orch.Run(context.Background(), RunConfig{Mode: contracts.ModeStrict})
		require.Error(t, err)
		assert.Equal(t, contracts.StageMacroContext, res.FailedStage)
		assert.Zero(t, h.llm.calls.Load())
	})
}

func TestSentimentFailure(t *testing.T) {
	t.Run("incremental ranks without sentiment", func(t *testing.T) {
		h := newHarness(t, 0)
		h.mentions.err = &contracts.TransientProviderError{Provider: "mentions", Err: errors.New("timeout")}

		res, err := h.orch.Run(context.Background(), RunConfig{})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Snapshot.TotalRanked)
		for _, p := range res.Snapshot.Ranking {
			assert.Nil(t, p.Sentiment)
		}
		assert.Len(t, res.Summary.Warnings, 3)
	})

	t.Run("strict fails the stage", func(t *testing.T) {
		h := newHarness(t, 0)
		h.mentions.err = errors.New("boom")

		res, err := h.orch.Run(context.Background(), RunConfig{Mode: contracts.ModeStrict})
		require.Error(t, err)
		assert.Equal(t, contracts.StageSentiment, res.FailedStage)
	})
}

func TestNoCandidates(t *testing.T) {
	h := newHarness(t, 0)
	h.orch.source = &staticSource{records: records()[2:3]}

	_, err := h.orch.Run(context.Background(), RunConfig{Mode: contracts.ModeStrict})
	var stageErr *contracts.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, contracts.StageQuantFilter, stageErr.Stage)

	res, err := h.orch.Run(context.Background(), RunConfig{})
	require.NoError(t, err)
	assert.Zero(t, res.Snapshot.TotalRanked)
	assert.Equal(t, []contracts.TopPick{}, res.Snapshot.Ranking)
}

func TestSourceErrorFailsBothModes(t *testing.T) {
	for _, mode := range []contracts.Mode{contracts.ModeStrict, contracts.ModeIncremental} {
		h := newHarness(t, 0)
		h.orch.source = &staticSource{err: errors.New("csv missing")}

		res, err := h.orch.Run(context.Background(), RunConfig{Mode: mode})
		require.Error(t, err, mode)
		assert.Equal(t, contracts.StageFailed, res.State)
		assert.Equal(t, contracts.StageQuantFilter, res.FailedStage)
	}
}

func TestPersistFailureKeepsPreviousSnapshot(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	repo := &toggleRepo{inner: snapshot.NewMemoryRepository()}
	store := snapshot.NewStore(repo, logger.NewNop())
	h.orch.store = store

	first, err := h.orch.Run(ctx, RunConfig{})
	require.NoError(t, err)

	repo.fail.Store(true)
	res, err := h.orch.Run(ctx, RunConfig{Mode: contracts.ModeIncremental})
	require.Error(t, err)
	assert.Equal(t, contracts.StagePersist, res.FailedStage)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.RunID, latest.RunID)
}

type toggleRepo struct {
	inner *snapshot.MemoryRepository
	fail  atomic.Bool
}

func (r *toggleRepo) Save(ctx context.Context, s *contracts.Snapshot) error {
	if r.fail.Load() {
		return errors.New("disk full")
	}
	return r.inner.Save(ctx, s)
}

func (r *toggleRepo) Latest(ctx context.Context) (*contracts.Snapshot, error) {
	return r.inner.Latest(ctx)
}

func TestCancelledRun(t *testing.T) {
	h := newHarness(t, 0)
	h.llm.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var (
		res *RunResult
		err error
	)
	go func() {
		defer close(done)
		res, err = h.orch.Run(ctx, RunConfig{})
	}()

	require.Eventually(t, func() bool { return h.llm.calls.Load() == 3 }, time.Second, time.Millisecond)
	cancel()
	<-done

	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrRunCancelled)
	assert.Equal(t, contracts.StageCancelled, res.State)
	assert.Empty(t, res.FailedStage)

	_, err = h.store.Latest(context.Background())
	assert.ErrorIs(t, err, contracts.ErrNoSnapshot)
	assert.Zero(t, h.repo.Count())

	// late responses of the cancelled run are discarded
	close(h.llm.gate)
	for _, ticker := range []string{"WEGE3", "ITUB4", "VALE3"} {
		_, ok := h.orch.analyzer.Cached(context.Background(), ticker)
		assert.False(t, ok, ticker)
	}
}

func TestQualitativeDisabledWithoutCredentials(t *testing.T) {
	h := newHarness(t, 0)
	h.orch.analyzer = nil

	res, err := h.orch.Run(context.Background(), RunConfig{Mode: contracts.ModeStrict})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Snapshot.TotalRanked)
	for _, p := range res.Snapshot.Ranking {
		assert.Nil(t, p.Qualitative)
	}
	// efficiency score stands in for the qualitative score
	wege := pickByTicker(res.Snapshot, "WEGE3")
	require.NotNil(t, wege.Alert)
	assert.Equal(t, pricing.NewEngine(pricing.DefaultConfig()).FairValue(37.19, 3.5), wege.Alert.FairValue)
}
