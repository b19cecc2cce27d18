package brain

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/internal/macro"
	"github.com/wonny/alphaterminal/backend/internal/metrics"
	"github.com/wonny/alphaterminal/backend/internal/pricing"
	"github.com/wonny/alphaterminal/backend/internal/qualitative"
	"github.com/wonny/alphaterminal/backend/internal/selection"
	"github.com/wonny/alphaterminal/backend/internal/sentiment"
	"github.com/wonny/alphaterminal/backend/internal/snapshot"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
	"github.com/wonny/alphaterminal/backend/pkg/numeric"
)

// Orchestrator coordinates the ranking pipeline
// ⭐ SSOT: Quant → Macro → Qualitative → Sentiment → Price → Merge → Persist
type Orchestrator struct {
	source    contracts.FundamentalsSource
	screener  *selection.Screener
	ranker    *selection.Ranker
	macro     *macro.Builder
	analyzer  *qualitative.Analyzer // nil: no credentials, stage skipped
	excerpts  contracts.ExcerptSource
	sentiment *sentiment.Screener // nil: no mention provider, stage skipped
	pricing   *pricing.Engine
	store     *snapshot.Store
	queue     *qualitative.RetryQueue
	history   *History
	metrics   *metrics.Metrics

	workers    int
	configHash string
	logger     *logger.Logger
	now        func() time.Time
}

// Deps are the stage components wired into an orchestrator.
// Analyzer, Excerpts, Sentiment and Metrics are optional.
type Deps struct {
	Source    contracts.FundamentalsSource
	Screener  *selection.Screener
	Ranker    *selection.Ranker
	Macro     *macro.Builder
	Analyzer  *qualitative.Analyzer
	Excerpts  contracts.ExcerptSource
	Sentiment *sentiment.Screener
	Pricing   *pricing.Engine
	Store     *snapshot.Store
	Queue     *qualitative.RetryQueue
	History   *History
	Metrics   *metrics.Metrics

	// Workers bounds concurrent ticker work per stage; 0 means one goroutine per ticker
	Workers int
	// ConfigHash identifies the tunables; copied into every snapshot
	ConfigHash string
}

// RunConfig represents pipeline run configuration
type RunConfig struct {
	RunID string
	Mode  contracts.Mode
	Force bool // bypass the qualitative and macro caches

	OnStage func(contracts.Stage) // optional progress hook
}

// RunResult represents pipeline run result
type RunResult struct {
	RunID       string                  `json:"run_id"`
	Mode        contracts.Mode          `json:"mode"`
	Force       bool                    `json:"force"`
	State       contracts.Stage         `json:"state"`
	FailedStage contracts.Stage         `json:"failed_stage,omitempty"`
	StartedAt   time.Time               `json:"started_at"`
	FinishedAt  time.Time               `json:"finished_at,omitempty"`
	Duration    time.Duration           `json:"duration_ns"`
	Stages      []contracts.StageResult `json:"stages"`
	Summary     contracts.RunSummary    `json:"summary"`
	Error       string                  `json:"error,omitempty"`

	Snapshot *contracts.Snapshot `json:"-"`
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(d Deps, log *logger.Logger) *Orchestrator {
	if d.Queue == nil {
		d.Queue = qualitative.NewRetryQueue()
	}
	if d.History == nil {
		d.History = NewHistory(DefaultHistorySize)
	}
	return &Orchestrator{
		source:    d.Source,
		screener:  d.Screener,
		ranker:    d.Ranker,
		macro:     d.Macro,
		analyzer:  d.Analyzer,
		excerpts:  d.Excerpts,
		sentiment: d.Sentiment,
		pricing:   d.Pricing,
		store:     d.Store,
		queue:     d.Queue,
		history:   d.History,
		metrics:   d.Metrics,

		workers:    d.Workers,
		configHash: d.ConfigHash,
		logger:     log.WithComponent("brain"),
		now:        time.Now,
	}
}

// run carries one execution's working set between stages
type run struct {
	cfg    RunConfig
	result *RunResult

	candidates  []contracts.EfficiencyScore
	macro       *contracts.MacroContext
	assessments map[string]*contracts.QualitativeAssessment
	sentiment   map[string]*contracts.SentimentResult
	alerts      map[string]*contracts.PriceAlert
	pending     map[string]bool
	ranking     []contracts.TopPick

	mu sync.Mutex
}

func (r *run) warn(msg string) {
	r.mu.Lock()
	r.result.Summary.Warnings = append(r.result.Summary.Warnings, msg)
	r.mu.Unlock()
}

func (r *run) fail(ticker, reason string) {
	r.mu.Lock()
	r.result.Summary.Failed = append(r.result.Summary.Failed, contracts.FailedTicker{Ticker: ticker, Reason: reason})
	r.pending[ticker] = true
	r.mu.Unlock()
}

func (r *run) strict() bool {
	return r.cfg.Mode == contracts.ModeStrict
}

// Run executes the full pipeline.
// A non-nil error means the run ended FAILED or CANCELLED; the previous snapshot stays current.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Mode == "" {
		cfg.Mode = contracts.ModeIncremental
	}

	r := &run{
		cfg: cfg,
		result: &RunResult{
			RunID:     cfg.RunID,
			Mode:      cfg.Mode,
			Force:     cfg.Force,
			State:     contracts.StageInit,
			StartedAt: o.now(),
			Summary:   contracts.RunSummary{Failed: []contracts.FailedTicker{}},
		},
		assessments: make(map[string]*contracts.QualitativeAssessment),
		sentiment:   make(map[string]*contracts.SentimentResult),
		alerts:      make(map[string]*contracts.PriceAlert),
		pending:     make(map[string]bool),
	}

	log := o.logger.WithRun(cfg.RunID).WithFields(map[string]interface{}{
		"mode":  cfg.Mode,
		"force": cfg.Force,
	})
	log.Info("Starting ranking run")

	stages := []struct {
		stage contracts.Stage
		fn    func(context.Context, *run) (contracts.StageResult, error)
	}{
		{contracts.StageQuantFilter, o.runQuant},
		{contracts.StageMacroContext, o.runMacro},
		{contracts.StageQualitative, o.runQualitative},
		{contracts.StageSentiment, o.runSentiment},
		{contracts.StagePriceAlert, o.runPrice},
		{contracts.StageMerge, o.runMerge},
		{contracts.StagePersist, o.runPersist},
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return o.finish(ctx, r, s.stage, err, log)
		}

		r.result.State = s.stage
		if cfg.OnStage != nil {
			cfg.OnStage(s.stage)
		}
		log.WithField("stage", s.stage).Info("Running stage")

		start := o.now()
		sr, err := s.fn(ctx, r)
		sr.Stage = s.stage
		sr.Duration = o.now().Sub(start)
		sr.Success = err == nil
		if err != nil {
			sr.Error = err.Error()
		}
		r.result.Stages = append(r.result.Stages, sr)
		o.metrics.RecordStage(string(s.stage), sr.Duration)

		if err != nil {
			return o.finish(ctx, r, s.stage, err, log)
		}

		log.WithFields(map[string]interface{}{
			"stage":    s.stage,
			"input":    sr.InputCount,
			"output":   sr.OutputCount,
			"duration": sr.Duration.String(),
		}).Info("Stage completed")
	}

	return o.finish(ctx, r, "", nil, log)
}

// finish sets the terminal state, records the run and returns the caller's error
func (o *Orchestrator) finish(ctx context.Context, r *run, stage contracts.Stage, err error, log *logger.Logger) (*RunResult, error) {
	res := r.result
	res.FinishedAt = o.now()
	res.Duration = res.FinishedAt.Sub(res.StartedAt)

	switch {
	case err == nil:
		res.State = contracts.StageDone
	case ctx.Err() != nil:
		res.State = contracts.StageCancelled
		err = fmt.Errorf("%w at %s: %v", contracts.ErrRunCancelled, stage, err)
	default:
		res.State = contracts.StageFailed
		res.FailedStage = stage
		err = &contracts.StageError{Stage: stage, Err: err}
	}
	if err != nil {
		res.Error = err.Error()
	}

	o.history.Add(res)
	o.metrics.RecordRun(string(res.Mode), string(res.State), res.Duration)
	o.metrics.SetRetryQueueSize(o.queue.Len())

	fields := map[string]interface{}{
		"state":          res.State,
		"duration":       res.Duration.String(),
		"ranked":         res.Summary.Ranked,
		"cache_reused":   res.Summary.CacheReused,
		"newly_analyzed": res.Summary.NewlyAnalyzed,
		"failed":         len(res.Summary.Failed),
	}
	if err != nil {
		log.WithError(err).WithFields(fields).Error("Ranking run did not complete")
		return res, err
	}
	log.WithFields(fields).Info("Ranking run completed")
	return res, nil
}

// runQuant loads fundamentals and keeps the elite candidates
func (o *Orchestrator) runQuant(ctx context.Context, r *run) (contracts.StageResult, error) {
	records, err := o.source.Load(ctx)
	if err != nil {
		return contracts.StageResult{}, fmt.Errorf("load fundamentals: %w", err)
	}

	candidates, err := o.screener.Screen(ctx, records)
	sr := contracts.StageResult{InputCount: len(records), OutputCount: len(candidates)}
	if err != nil {
		return sr, fmt.Errorf("screen: %w", err)
	}

	if len(candidates) == 0 {
		if r.strict() {
			return sr, fmt.Errorf("no candidates passed the quant filter")
		}
		r.warn("no candidates passed the quant filter")
	}
	r.candidates = candidates
	return sr, nil
}

// runMacro resolves sector weights; incremental runs fall back to neutral weights
func (o *Orchestrator) runMacro(ctx context.Context, r *run) (contracts.StageResult, error) {
	mc, err := o.macro.Context(ctx, r.cfg.Force)
	if err != nil {
		if ctx.Err() != nil || r.strict() {
			return contracts.StageResult{}, fmt.Errorf("macro context: %w", err)
		}
		r.warn(fmt.Sprintf("macro context unavailable, neutral weights used: %v", err))
		mc = o.macro.Neutral()
	}
	r.macro = mc

	return contracts.StageResult{
		InputCount:  2,
		OutputCount: len(mc.SectorWeights),
		Metadata: map[string]interface{}{
			"interest_rate":  mc.InterestRate,
			"inflation_rate": mc.InflationRate,
			"neutral":        mc.Neutral,
		},
	}, nil
}

// runQualitative analyzes every candidate concurrently.
// Failed tickers are queued for a later pass and keep their last known
// assessment, if any; they still go through every later stage.
func (o *Orchestrator) runQualitative(ctx context.Context, r *run) (contracts.StageResult, error) {
	sr := contracts.StageResult{InputCount: len(r.candidates)}
	if o.analyzer == nil {
		r.warn("qualitative analysis disabled: no provider credentials configured")
		sr.Metadata = map[string]interface{}{"skipped": true}
		return sr, nil
	}

	var (
		disabled atomic.Bool
		reused   atomic.Int32
		analyzed atomic.Int32
		carried  atomic.Int32
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.limit(len(r.candidates)))

	results := make([]*contracts.QualitativeAssessment, len(r.candidates))
	keepLastKnown := func(ctx context.Context, i int, ticker string) {
		if stale, ok := o.analyzer.Cached(ctx, ticker); ok {
			results[i] = stale
			carried.Add(1)
		}
	}
	for i, c := range r.candidates {
		g.Go(func() error {
			req := o.analysisRequest(gctx, c)

			if disabled.Load() {
				if cached, ok := o.analyzer.Reusable(gctx, req); ok && !r.cfg.Force {
					results[i] = cached
					reused.Add(1)
					o.metrics.RecordQualitative(string(contracts.OutcomeCached))
					return nil
				}
				o.queue.Push(req, contracts.ErrProviderDisabled.Error())
				r.fail(c.Ticker, contracts.ErrProviderDisabled.Error())
				keepLastKnown(gctx, i, c.Ticker)
				o.metrics.RecordQualitative(string(contracts.OutcomeSkipped))
				return nil
			}

			assessment, outcome, err := o.analyzer.Analyze(gctx, req, r.cfg.Force)
			o.metrics.RecordQualitative(string(outcome))
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if contracts.IsPermanent(err) && disabled.CompareAndSwap(false, true) {
					r.warn(fmt.Sprintf("provider disabled for this run: %v", err))
				}
				o.queue.Push(req, err.Error())
				r.fail(c.Ticker, err.Error())
				keepLastKnown(gctx, i, c.Ticker)
				return nil
			}

			o.queue.Remove(c.Ticker)
			results[i] = assessment
			if outcome == contracts.OutcomeCached {
				reused.Add(1)
			} else {
				analyzed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sr, err
	}

	for i, c := range r.candidates {
		if results[i] != nil {
			r.assessments[c.Ticker] = results[i]
		}
	}
	sort.Slice(r.result.Summary.Failed, func(i, j int) bool {
		return r.result.Summary.Failed[i].Ticker < r.result.Summary.Failed[j].Ticker
	})

	r.result.Summary.CacheReused = int(reused.Load())
	r.result.Summary.NewlyAnalyzed = int(analyzed.Load())
	sr.OutputCount = len(r.assessments)
	sr.Metadata = map[string]interface{}{
		"cache_reused":   r.result.Summary.CacheReused,
		"newly_analyzed": r.result.Summary.NewlyAnalyzed,
		"last_known":     int(carried.Load()),
		"failed":         len(r.result.Summary.Failed),
	}

	if len(r.result.Summary.Failed) > 0 {
		if r.strict() {
			first := r.result.Summary.Failed[0]
			return sr, fmt.Errorf("%d ticker(s) without assessment, first %s: %s",
				len(r.result.Summary.Failed), first.Ticker, first.Reason)
		}
		for _, f := range r.result.Summary.Failed {
			r.result.Summary.Pending = append(r.result.Summary.Pending, f.Ticker)
		}
	}
	return sr, nil
}

// analysisRequest assembles the provider input; a failed excerpt fetch degrades to none
// and is flagged so the cached assessment stays reusable
func (o *Orchestrator) analysisRequest(ctx context.Context, c contracts.EfficiencyScore) contracts.AnalysisRequest {
	req := contracts.AnalysisRequest{
		Ticker:       c.Ticker,
		Sector:       c.Sector,
		Fundamentals: c.Record,
		Efficiency:   c.Score,
	}
	if o.excerpts == nil {
		return req
	}

	excerpt, err := o.excerpts.Excerpt(ctx, c.Ticker)
	if err != nil {
		o.logger.WithError(err).WithField("ticker", c.Ticker).Warn("Release excerpt unavailable")
		req.ExcerptUnavailable = true
		return req
	}
	req.Excerpt = excerpt
	return req
}

// runSentiment screens mention volume for every candidate
func (o *Orchestrator) runSentiment(ctx context.Context, r *run) (contracts.StageResult, error) {
	tickers := r.candidates
	sr := contracts.StageResult{InputCount: len(tickers)}
	if o.sentiment == nil {
		r.warn("sentiment screening disabled: no mention provider configured")
		sr.Metadata = map[string]interface{}{"skipped": true}
		return sr, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.limit(len(tickers)))

	results := make([]*contracts.SentimentResult, len(tickers))
	for i, c := range tickers {
		g.Go(func() error {
			res, err := o.sentiment.Analyze(gctx, c.Ticker)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if r.strict() {
					return fmt.Errorf("sentiment for %s: %w", c.Ticker, err)
				}
				r.warn(fmt.Sprintf("sentiment unavailable for %s: %v", c.Ticker, err))
				return nil
			}
			results[i] = res
			o.metrics.RecordSentiment(string(res.Level))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sr, err
	}

	herd := 0
	for i, c := range tickers {
		if results[i] == nil {
			continue
		}
		r.sentiment[c.Ticker] = results[i]
		if results[i].HerdRisk {
			herd++
		}
	}
	sr.OutputCount = len(r.sentiment)
	sr.Metadata = map[string]interface{}{"herd_risk": herd}
	return sr, nil
}

// runPrice evaluates fair value for every priced ticker
func (o *Orchestrator) runPrice(ctx context.Context, r *run) (contracts.StageResult, error) {
	tickers := r.candidates
	sr := contracts.StageResult{InputCount: len(tickers)}

	for _, c := range tickers {
		if c.Price == nil {
			continue
		}

		alert, err := o.pricing.Alert(c.Ticker, *c.Price, o.priceScore(c, r.assessments[c.Ticker]))
		if err != nil {
			if r.strict() {
				return sr, fmt.Errorf("price alert for %s: %w", c.Ticker, err)
			}
			r.warn(fmt.Sprintf("price alert skipped for %s: %v", c.Ticker, err))
			continue
		}
		r.alerts[c.Ticker] = alert
		o.metrics.RecordPriceAlert(string(alert.Action))
	}

	sr.OutputCount = len(r.alerts)
	return sr, nil
}

// priceScore prefers the qualitative score; without one the efficiency score stands in
func (o *Orchestrator) priceScore(c contracts.EfficiencyScore, a *contracts.QualitativeAssessment) float64 {
	if a != nil {
		return a.Score
	}
	return numeric.Clamp(c.Score, 0, 10)
}

// runMerge combines stage outputs into the final ranking
func (o *Orchestrator) runMerge(ctx context.Context, r *run) (contracts.StageResult, error) {
	tickers := r.candidates

	picks := make([]contracts.TopPick, 0, len(tickers))
	for _, c := range tickers {
		picks = append(picks, contracts.TopPick{
			Ticker:       c.Ticker,
			Sector:       c.Sector,
			Efficiency:   c,
			SectorWeight: r.macro.WeightFor(c.Sector),
			Qualitative:  r.assessments[c.Ticker],
			Sentiment:    r.sentiment[c.Ticker],
			Alert:        r.alerts[c.Ticker],
			Pending:      r.pending[c.Ticker],
		})
	}

	r.ranking = o.ranker.Rank(picks)
	r.result.Summary.Ranked = len(r.ranking)

	return contracts.StageResult{InputCount: len(tickers), OutputCount: len(r.ranking)}, nil
}

// runPersist replaces the current snapshot
func (o *Orchestrator) runPersist(ctx context.Context, r *run) (contracts.StageResult, error) {
	snap := &contracts.Snapshot{
		RunID:        r.cfg.RunID,
		Timestamp:    o.now(),
		Mode:         r.cfg.Mode,
		Partial:      len(r.result.Summary.Failed) > 0 || len(r.result.Summary.Warnings) > 0,
		TotalRanked:  len(r.ranking),
		AverageScore: averageScore(r.ranking),
		Ranking:      r.ranking,
		Macro:        r.macro,
		Summary:      r.result.Summary,
		ConfigHash:   o.configHash,
	}

	if err := o.store.Publish(ctx, snap); err != nil {
		return contracts.StageResult{InputCount: len(r.ranking)}, err
	}
	r.result.Snapshot = snap
	o.metrics.RecordSnapshot(snap.TotalRanked, snap.Timestamp)

	return contracts.StageResult{InputCount: len(r.ranking), OutputCount: len(r.ranking)}, nil
}

func averageScore(picks []contracts.TopPick) float64 {
	if len(picks) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range picks {
		sum += p.CompositeScore
	}
	return numeric.Round2(sum / float64(len(picks)))
}

func (o *Orchestrator) limit(n int) int {
	if o.workers > 0 {
		return o.workers
	}
	if n == 0 {
		return 1
	}
	return n
}

// History returns the bounded run history
func (o *Orchestrator) History() *History {
	return o.history
}

// Queue returns the pending-analysis queue
func (o *Orchestrator) Queue() *qualitative.RetryQueue {
	return o.queue
}
