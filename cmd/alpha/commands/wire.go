package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wonny/alphaterminal/backend/internal/brain"
	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/internal/external/bcb"
	"github.com/wonny/alphaterminal/backend/internal/external/llm"
	"github.com/wonny/alphaterminal/backend/internal/external/mentions"
	"github.com/wonny/alphaterminal/backend/internal/external/releases"
	"github.com/wonny/alphaterminal/backend/internal/fundamentals"
	"github.com/wonny/alphaterminal/backend/internal/macro"
	"github.com/wonny/alphaterminal/backend/internal/metrics"
	"github.com/wonny/alphaterminal/backend/internal/pricing"
	"github.com/wonny/alphaterminal/backend/internal/qualitative"
	"github.com/wonny/alphaterminal/backend/internal/selection"
	"github.com/wonny/alphaterminal/backend/internal/sentiment"
	"github.com/wonny/alphaterminal/backend/internal/snapshot"
	"github.com/wonny/alphaterminal/backend/internal/strategyconfig"
	"github.com/wonny/alphaterminal/backend/pkg/config"
	"github.com/wonny/alphaterminal/backend/pkg/database"
	"github.com/wonny/alphaterminal/backend/pkg/httputil"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
	"github.com/wonny/alphaterminal/backend/pkg/redis"
	"github.com/wonny/alphaterminal/backend/pkg/retry"
)

// snapshotRetention is how many snapshots Postgres keeps
const snapshotRetention = 90

// app holds every wired component of one process
// ⭐ SSOT: 의존성 조립은 여기서만
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	db    *database.DB // nil without DATABASE_URL
	redis *redis.Client

	macro        *macro.Builder
	sentiment    *sentiment.Screener // nil without a mention provider
	store        *snapshot.Store
	archive      *snapshot.PostgresRepository // nil without DATABASE_URL
	queue        *qualitative.RetryQueue
	orchestrator *brain.Orchestrator
	manager      *brain.Manager
}

// loadConfig loads configuration and applies global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, nil
}

// newApp wires the whole pipeline. base bounds background runs started
// through the manager.
func newApp(ctx, base context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg)

	a := &app{
		cfg:      cfg,
		logger:   log,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	// 1. Storage
	if cfg.Database.Enabled() {
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		log.Info("Connected to database")
	}

	rdb, err := redis.New(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = rdb

	// 2. Tunables: env by default, STRATEGY_FILE when set
	strategy, err := loadStrategy(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	strategyHash, err := strategyconfig.Hash(strategy)
	if err != nil {
		a.Close()
		return nil, err
	}

	// 3. External collaborators
	httpClient := httputil.New(cfg, log)
	rp := retry.FromConfig(cfg.Retry)

	a.macro = macro.NewBuilder(
		bcb.NewClient(httpClient, cfg.Macro, log),
		cfg.Macro.CacheTTL,
		redis.NewCache(rdb, "macro"),
		log,
	)

	if cfg.Mentions.BaseURL != "" {
		a.sentiment = sentiment.NewScreener(
			mentions.NewClient(httpClient, cfg.Mentions, log),
			strategy.SentimentConfig(),
			redis.NewCache(rdb, "sentiment"),
			log,
		)
	} else {
		log.Warn("MENTIONS_BASE_URL not set, sentiment stage disabled")
	}

	var analyzer *qualitative.Analyzer
	if providers := llm.NewProviders(cfg, a.metrics, log); len(providers) > 0 {
		analyzer = qualitative.NewAnalyzer(
			qualitative.NewPool(providers, cfg.LLM.RequestsPerMinute, cfg.LLM.MinInterval),
			qualitative.NewCache(cfg.Pipeline.QualitativeTTL, redis.NewCache(rdb, "assessments"), log),
			strategy.Policy(),
			rp,
			log,
		)
	} else {
		log.Warn("LLM_API_KEYS not set, qualitative stage disabled")
	}

	var excerpts contracts.ExcerptSource
	if rel := releases.NewClient(httpClient, cfg.Releases, log); rel.Enabled() {
		excerpts = rel
	}

	// 4. Fundamentals and snapshots
	var source contracts.FundamentalsSource
	if cfg.Pipeline.FundamentalsSource == "postgres" {
		source = fundamentals.NewRepository(a.db.Pool)
	} else {
		source = fundamentals.NewCSVSource(cfg.Pipeline.FundamentalsCSV, log)
	}

	var repo contracts.SnapshotRepository
	if a.db != nil {
		a.archive = snapshot.NewPostgresRepository(a.db.Pool, snapshotRetention)
		repo = a.archive
	} else {
		repo = snapshot.NewFileRepository(cfg.Pipeline.SnapshotPath)
	}
	a.store = snapshot.NewStore(repo, log)

	// 5. Stage engines
	a.queue = qualitative.NewRetryQueue()
	a.orchestrator = brain.NewOrchestrator(brain.Deps{
		Source:    source,
		Screener:  selection.NewScreener(strategy.ScreenerConfig(), log),
		Ranker:    selection.NewRanker(strategy.WeightConfig(), log),
		Macro:     a.macro,
		Analyzer:  analyzer,
		Excerpts:  excerpts,
		Sentiment: a.sentiment,
		Pricing:   pricing.NewEngine(strategy.PricingConfig()),
		Store:     a.store,
		Queue:     a.queue,
		Metrics:   a.metrics,
		Workers:   cfg.Pipeline.QualitativeWorkers,

		ConfigHash: strategyHash,
	}, log)
	a.manager = brain.NewManager(base, a.orchestrator, log)

	return a, nil
}

// loadStrategy returns the ranking tunables. Env values are validated the
// same way as a strategy file.
func loadStrategy(cfg *config.Config, log *logger.Logger) (*strategyconfig.Config, error) {
	strategy := strategyconfig.FromPipeline(cfg.Pipeline)
	if path := cfg.Pipeline.StrategyFile; path != "" {
		loaded, _, err := strategyconfig.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load strategy %s: %w", path, err)
		}
		strategy = loaded
	} else if err := strategyconfig.Validate(strategy); err != nil {
		return nil, fmt.Errorf("pipeline tunables: %w", err)
	}

	for _, w := range strategyconfig.Warn(strategy) {
		log.WithFields(map[string]interface{}{
			"code":     w.Code,
			"strategy": strategy.Meta.StrategyID,
		}).Warn(w.Message)
	}
	return strategy, nil
}

// mode returns the configured default run mode
func (a *app) mode() contracts.Mode {
	return contracts.ParseMode(a.cfg.Pipeline.Mode)
}

// health reports dependency status for GET /health
func (a *app) health(r *http.Request) map[string]string {
	status := map[string]string{
		"database": "disabled",
		"redis":    "disabled",
	}
	if a.db != nil {
		if _, err := a.db.HealthCheck(r.Context()); err != nil {
			status["database"] = err.Error()
		} else {
			status["database"] = "ok"
		}
	}
	if a.redis.Enabled() {
		if err := a.redis.Ping(r.Context()); err != nil {
			status["redis"] = err.Error()
		} else {
			status["redis"] = "ok"
		}
	}
	return status
}

// Close releases storage connections
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close redis")
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
