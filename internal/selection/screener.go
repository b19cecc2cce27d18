package selection

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

// Screener implements the quant filter: hard cuts on fundamentals
// ⭐ SSOT: quant filter logic lives here only
type Screener struct {
	config ScreenerConfig
	logger *logger.Logger
}

// ScreenerConfig defines hard cut conditions (all strict inequalities)
type ScreenerConfig struct {
	MinROE       float64 // ROE > MinROE (%)
	MinCAGR      float64 // growth > MinCAGR (%)
	MaxValuation float64 // 0 < valuation < MaxValuation

	// MaxCandidates caps how many ranked candidates move on to the
	// provider-backed stages; 0 keeps all.
	MaxCandidates int
}

// DefaultScreenerConfig returns default configuration
func DefaultScreenerConfig() ScreenerConfig {
	return ScreenerConfig{
		MinROE:        15,
		MinCAGR:       12,
		MaxValuation:  15,
		MaxCandidates: 15,
	}
}

// NewScreener creates a new screener
func NewScreener(config ScreenerConfig, logger *logger.Logger) *Screener {
	return &Screener{
		config: config,
		logger: logger,
	}
}

// FilterElite keeps records passing every threshold, in input order
func (s *Screener) FilterElite(records []contracts.FundamentalRecord) []contracts.FundamentalRecord {
	passed := make([]contracts.FundamentalRecord, 0, len(records))
	filtered := make(map[string]int) // Filter name -> count

	for _, rec := range records {
		if reason := s.checkConditions(rec); reason != "" {
			filtered[reason]++
			continue
		}
		passed = append(passed, rec)
	}

	s.logger.WithFields(map[string]interface{}{
		"total_input":  len(records),
		"passed":       len(passed),
		"filtered_out": len(records) - len(passed),
		"filters":      filtered,
	}).Info("Screening completed")

	return passed
}

// Screen filters, scores and ranks records, then applies MaxCandidates
func (s *Screener) Screen(ctx context.Context, records []contracts.FundamentalRecord) ([]contracts.EfficiencyScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	elite := s.FilterElite(records)
	scores := make([]contracts.EfficiencyScore, 0, len(elite))
	for _, rec := range elite {
		scores = append(scores, contracts.EfficiencyScore{
			Ticker: rec.Ticker,
			Score:  Score(rec),
			Sector: rec.Sector,
			Price:  rec.Price,
			Record: rec,
		})
	}

	ranked := Rank(scores)
	if s.config.MaxCandidates > 0 && len(ranked) > s.config.MaxCandidates {
		ranked = ranked[:s.config.MaxCandidates]
	}
	return ranked, nil
}

// checkConditions returns empty string if passed, otherwise the filter name
func (s *Screener) checkConditions(rec contracts.FundamentalRecord) string {
	if rec.Valuation <= 0 {
		return "non_positive_valuation"
	}
	if rec.Valuation >= s.config.MaxValuation {
		return "valuation"
	}
	if rec.ROE <= s.config.MinROE {
		return "roe"
	}
	if rec.Growth <= s.config.MinCAGR {
		return "cagr"
	}
	return ""
}

// Score returns (growth+ROE)/valuation rounded to 2 decimals.
// A non-positive valuation yields 0.
func Score(rec contracts.FundamentalRecord) float64 {
	if rec.Valuation <= 0 {
		return 0
	}
	num := decimal.NewFromFloat(rec.Growth).Add(decimal.NewFromFloat(rec.ROE))
	return num.Div(decimal.NewFromFloat(rec.Valuation)).Round(2).InexactFloat64()
}
