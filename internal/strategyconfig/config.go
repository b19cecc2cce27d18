package strategyconfig

import (
	"github.com/wonny/alphaterminal/backend/internal/pricing"
	"github.com/wonny/alphaterminal/backend/internal/qualitative"
	"github.com/wonny/alphaterminal/backend/internal/selection"
	"github.com/wonny/alphaterminal/backend/internal/sentiment"
	"github.com/wonny/alphaterminal/backend/pkg/config"
)

// Config는 랭킹 전략의 전체 튜닝 값
// ⭐ SSOT: 스테이지 임계값/가중치는 env 또는 이 YAML 중 하나에서만
type Config struct {
	Meta         Meta         `yaml:"meta" json:"meta"`
	Screening    Screening    `yaml:"screening" json:"screening"`
	Ranking      Ranking      `yaml:"ranking" json:"ranking"`
	Sentiment    Sentiment    `yaml:"sentiment" json:"sentiment"`
	Pricing      Pricing      `yaml:"pricing" json:"pricing"`
	DividendTrap DividendTrap `yaml:"dividend_trap" json:"dividend_trap"`
}

// Meta 메타 정보
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// Screening: quant filter hard cuts (strict inequalities)
type Screening struct {
	MinROE        float64 `yaml:"min_roe" json:"min_roe"`
	MinCAGR       float64 `yaml:"min_cagr" json:"min_cagr"`
	MaxValuation  float64 `yaml:"max_valuation" json:"max_valuation"`
	MaxCandidates int     `yaml:"max_candidates" json:"max_candidates"` // 0 = all
}

// Ranking: composite score
type Ranking struct {
	Weights   RankingWeights `yaml:"weights" json:"weights"`
	Penalties Penalties      `yaml:"penalties" json:"penalties"`
}

type RankingWeights struct {
	Efficiency  float64 `yaml:"efficiency" json:"efficiency"`
	Qualitative float64 `yaml:"qualitative" json:"qualitative"`
}

// Penalties are multipliers in (0, 1]
type Penalties struct {
	HerdRisk     float64 `yaml:"herd_risk" json:"herd_risk"`
	DividendTrap float64 `yaml:"dividend_trap" json:"dividend_trap"`
}

// Sentiment: mention-volume spike detection
type Sentiment struct {
	Threshold   float64 `yaml:"threshold" json:"threshold"`
	Alpha       float64 `yaml:"alpha" json:"alpha"` // EMA smoothing
	MinBaseline float64 `yaml:"min_baseline" json:"min_baseline"`
}

// Pricing: fair value and ceiling price
type Pricing struct {
	TargetReturn float64 `yaml:"target_return" json:"target_return"`
	SafetyMargin float64 `yaml:"safety_margin" json:"safety_margin"`
}

// DividendTrap: heuristic on top of the provider's own flag
type DividendTrap struct {
	Keywords           []string `yaml:"keywords" json:"keywords"`
	MinYield           float64  `yaml:"min_yield" json:"min_yield"`
	MaxGrowth          float64  `yaml:"max_growth" json:"max_growth"`
	EarningsYieldProxy bool     `yaml:"earnings_yield_proxy" json:"earnings_yield_proxy"`
}

// FromPipeline builds the strategy from environment configuration.
// The dividend-trap heuristic keeps its defaults.
func FromPipeline(p config.PipelineConfig) *Config {
	policy := qualitative.DefaultPolicy()
	return &Config{
		Meta: Meta{StrategyID: "env", Version: "1"},
		Screening: Screening{
			MinROE:        p.MinROE,
			MinCAGR:       p.MinCAGR,
			MaxValuation:  p.MaxValuation,
			MaxCandidates: p.MaxCandidates,
		},
		Ranking: Ranking{
			Weights: RankingWeights{
				Efficiency:  p.EfficiencyWeight,
				Qualitative: p.QualitativeWeight,
			},
			Penalties: Penalties{
				HerdRisk:     p.HerdRiskPenalty,
				DividendTrap: p.DividendTrapPenalty,
			},
		},
		Sentiment: Sentiment{
			Threshold:   p.SentimentThreshold,
			Alpha:       p.SentimentAlpha,
			MinBaseline: p.SentimentBaseline,
		},
		Pricing: Pricing{
			TargetReturn: p.TargetReturn,
			SafetyMargin: p.SafetyMargin,
		},
		DividendTrap: DividendTrap{
			Keywords:           policy.Keywords,
			MinYield:           policy.MinYield,
			MaxGrowth:          policy.MaxGrowth,
			EarningsYieldProxy: policy.UseEarningsYieldProxy,
		},
	}
}

// ScreenerConfig returns the quant filter settings
func (c *Config) ScreenerConfig() selection.ScreenerConfig {
	return selection.ScreenerConfig{
		MinROE:        c.Screening.MinROE,
		MinCAGR:       c.Screening.MinCAGR,
		MaxValuation:  c.Screening.MaxValuation,
		MaxCandidates: c.Screening.MaxCandidates,
	}
}

// WeightConfig returns the composite weights
func (c *Config) WeightConfig() selection.WeightConfig {
	return selection.WeightConfig{
		Efficiency:          c.Ranking.Weights.Efficiency,
		Qualitative:         c.Ranking.Weights.Qualitative,
		HerdRiskPenalty:     c.Ranking.Penalties.HerdRisk,
		DividendTrapPenalty: c.Ranking.Penalties.DividendTrap,
	}
}

// SentimentConfig returns the screener settings
func (c *Config) SentimentConfig() sentiment.Config {
	return sentiment.Config{
		Threshold:   c.Sentiment.Threshold,
		Alpha:       c.Sentiment.Alpha,
		MinBaseline: c.Sentiment.MinBaseline,
	}
}

// PricingConfig returns the alert engine settings
func (c *Config) PricingConfig() pricing.Config {
	return pricing.Config{
		TargetReturn: c.Pricing.TargetReturn,
		SafetyMargin: c.Pricing.SafetyMargin,
	}
}

// Policy returns the dividend-trap heuristic
func (c *Config) Policy() *qualitative.HeuristicPolicy {
	return &qualitative.HeuristicPolicy{
		Keywords:              c.DividendTrap.Keywords,
		MinYield:              c.DividendTrap.MinYield,
		MaxGrowth:             c.DividendTrap.MaxGrowth,
		UseEarningsYieldProxy: c.DividendTrap.EarningsYieldProxy,
	}
}
