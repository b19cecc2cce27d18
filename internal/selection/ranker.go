package selection

import (
	"fmt"
	"sort"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
	"github.com/wonny/alphaterminal/backend/pkg/numeric"
)

// Rank sorts scores descending and assigns ranks 1..N.
// The sort is stable: ties keep filter-output order.
func Rank(scores []contracts.EfficiencyScore) []contracts.EfficiencyScore {
	ranked := make([]contracts.EfficiencyScore, len(scores))
	copy(ranked, scores)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Ranker merges stage outputs into composite scores and final ranks
// ⭐ SSOT: composite ranking lives here only
type Ranker struct {
	weights WeightConfig
	logger  *logger.Logger
}

// WeightConfig defines how stage outputs combine into the composite score.
// Coefficients are tunable; none of them is a business contract.
type WeightConfig struct {
	Efficiency  float64 // weight on the efficiency score
	Qualitative float64 // weight on the qualitative score (0-10)

	HerdRiskPenalty     float64 // multiplier when sentiment flags herd risk
	DividendTrapPenalty float64 // multiplier when the assessment flags a dividend trap
}

// DefaultWeightConfig returns default weight configuration
func DefaultWeightConfig() WeightConfig {
	return WeightConfig{
		Efficiency:          0.6,
		Qualitative:         0.4,
		HerdRiskPenalty:     0.8,
		DividendTrapPenalty: 0.7,
	}
}

// Validate checks weights are non-negative and penalties within (0, 1]
func (w *WeightConfig) Validate() error {
	if w.Efficiency < 0 || w.Qualitative < 0 {
		return fmt.Errorf("composite weights must be non-negative")
	}
	if w.Efficiency+w.Qualitative == 0 {
		return fmt.Errorf("composite weights must not both be zero")
	}
	for _, p := range []float64{w.HerdRiskPenalty, w.DividendTrapPenalty} {
		if p <= 0 || p > 1 {
			return fmt.Errorf("penalties must be within (0, 1]")
		}
	}
	return nil
}

// NewRanker creates a new ranker
func NewRanker(weights WeightConfig, logger *logger.Logger) *Ranker {
	return &Ranker{
		weights: weights,
		logger:  logger,
	}
}

// CompositeScore combines a pick's stage outputs.
// Without a qualitative assessment only the efficiency term contributes.
func (r *Ranker) CompositeScore(p *contracts.TopPick) float64 {
	score := r.weights.Efficiency * p.Efficiency.Score
	if p.Qualitative != nil {
		score += r.weights.Qualitative * p.Qualitative.Score
		if p.Qualitative.DividendTrap {
			score *= r.weights.DividendTrapPenalty
		}
	}

	weight := p.SectorWeight
	if weight == 0 {
		weight = contracts.NeutralSectorWeight
	}
	score *= weight

	if p.Sentiment != nil && p.Sentiment.HerdRisk {
		score *= r.weights.HerdRiskPenalty
	}
	return numeric.Round2(score)
}

// Rank computes composite scores and assigns final ranks 1..N.
// Ties keep input (efficiency rank) order.
func (r *Ranker) Rank(picks []contracts.TopPick) []contracts.TopPick {
	ranked := make([]contracts.TopPick, len(picks))
	copy(ranked, picks)

	for i := range ranked {
		ranked[i].CompositeScore = r.CompositeScore(&ranked[i])
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CompositeScore > ranked[j].CompositeScore
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	if len(ranked) > 0 {
		r.logger.WithFields(map[string]interface{}{
			"total_stocks": len(ranked),
			"top_score":    ranked[0].CompositeScore,
			"top_ticker":   ranked[0].Ticker,
		}).Info("Ranking completed")
	}

	return ranked
}
