package strategyconfig

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/wonny/alphaterminal/backend/pkg/config"
)

func TestLoad(t *testing.T) {
	path := "../../config/strategy/alphaterminal.yaml"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, yamlData, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Meta.StrategyID != "alphaterminal_default" {
		t.Errorf("expected strategy_id=alphaterminal_default, got %s", cfg.Meta.StrategyID)
	}
	if cfg.Screening.MaxCandidates != 15 {
		t.Errorf("expected max_candidates=15, got %d", cfg.Screening.MaxCandidates)
	}

	hash, err := Hash(cfg)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("expected 64 char hash, got %d", len(hash))
	}

	// 동일 설정 → 동일 해시
	hash2, _ := Hash(cfg)
	if hash != hash2 {
		t.Error("hash not deterministic")
	}

	if len(yamlData) == 0 {
		t.Error("expected raw yaml bytes")
	}
}

// The committed file and the env defaults describe the same strategy
func TestDefaultFileMatchesEnvDefaults(t *testing.T) {
	path := "../../config/strategy/alphaterminal.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	fromFile, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	env, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	fromEnv := FromPipeline(env.Pipeline)
	fromEnv.Meta = fromFile.Meta

	h1, _ := Hash(fromFile)
	h2, _ := Hash(fromEnv)
	if h1 != h2 {
		t.Errorf("file and env defaults diverge:\nfile=%+v\nenv=%+v", fromFile, fromEnv)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	doc := `
meta:
  strategy_id: typo
screening:
  min_roe: 15
  max_valuaton: 15
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestParseRejectsEmptyAndMultiDocument(t *testing.T) {
	data, err := os.ReadFile("../../config/strategy/alphaterminal.yaml")
	if err != nil {
		t.Fatalf("read default strategy: %v", err)
	}

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "", "empty document"},
		{"two documents", string(data) + "\n---\n" + string(data), "single document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		env, err := config.Load()
		if err != nil {
			t.Fatalf("config.Load failed: %v", err)
		}
		return FromPipeline(env.Pipeline)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing id", func(c *Config) { c.Meta.StrategyID = "" }, "meta.strategy_id"},
		{"zero valuation", func(c *Config) { c.Screening.MaxValuation = 0 }, "screening.max_valuation"},
		{"negative candidates", func(c *Config) { c.Screening.MaxCandidates = -1 }, "screening.max_candidates"},
		{"zero weights", func(c *Config) { c.Ranking.Weights = RankingWeights{} }, "ranking.weights"},
		{"penalty above one", func(c *Config) { c.Ranking.Penalties.HerdRisk = 1.2 }, "ranking.penalties.herd_risk"},
		{"zero trap penalty", func(c *Config) { c.Ranking.Penalties.DividendTrap = 0 }, "ranking.penalties.dividend_trap"},
		{"alpha out of range", func(c *Config) { c.Sentiment.Alpha = 1.5 }, "sentiment.alpha"},
		{"zero baseline", func(c *Config) { c.Sentiment.MinBaseline = 0 }, "sentiment.min_baseline"},
		{"full safety margin", func(c *Config) { c.Pricing.SafetyMargin = 1 }, "pricing.safety_margin"},
		{"negative yield", func(c *Config) { c.DividendTrap.MinYield = -1 }, "dividend_trap.min_yield"},
	}

	if err := Validate(valid()); err != nil {
		t.Fatalf("env defaults should validate: %v", err)
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)

			err := Validate(cfg)
			var ve ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Errorf("expected field %s, got %s", tc.field, ve.Field)
			}
		})
	}
}

func TestWarn(t *testing.T) {
	cfg := &Config{}
	cfg.Sentiment.Alpha = 0.9

	codes := map[string]bool{}
	for _, w := range Warn(cfg) {
		codes[w.Code] = true
	}
	for _, code := range []string{"UNBOUNDED_CANDIDATES", "NO_QUALITATIVE_WEIGHT", "FAST_BASELINE", "NO_TRAP_KEYWORDS"} {
		if !codes[code] {
			t.Errorf("expected warning %s", code)
		}
	}
}

func TestStageConfigs(t *testing.T) {
	cfg, err := Parse([]byte(`
meta: {strategy_id: custom}
screening: {min_roe: 10, min_cagr: 5, max_valuation: 20, max_candidates: 3}
ranking:
  weights: {efficiency: 1, qualitative: 0}
  penalties: {herd_risk: 0.5, dividend_trap: 0.5}
sentiment: {threshold: 2, alpha: 0.2, min_baseline: 2}
pricing: {target_return: 0.1, safety_margin: 0.2}
dividend_trap: {keywords: [payout], min_yield: 6, max_growth: 10, earnings_yield_proxy: true}
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got := cfg.ScreenerConfig().MaxCandidates; got != 3 {
		t.Errorf("expected max candidates 3, got %d", got)
	}
	w := cfg.WeightConfig()
	if err := w.Validate(); err != nil {
		t.Errorf("weight config should validate: %v", err)
	}
	if w.HerdRiskPenalty != 0.5 {
		t.Errorf("expected herd penalty 0.5, got %f", w.HerdRiskPenalty)
	}
	if got := cfg.SentimentConfig().MinBaseline; got != 2 {
		t.Errorf("expected min baseline 2, got %f", got)
	}
	if got := cfg.PricingConfig().SafetyMargin; got != 0.2 {
		t.Errorf("expected safety margin 0.2, got %f", got)
	}
	p := cfg.Policy()
	if !p.UseEarningsYieldProxy || strings.Join(p.Keywords, ",") != "payout" {
		t.Errorf("unexpected policy %+v", p)
	}
}
