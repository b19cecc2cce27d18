package selection

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

func rec(ticker string, valuation, roe, growth float64) contracts.FundamentalRecord {
	return contracts.FundamentalRecord{Ticker: ticker, Valuation: valuation, ROE: roe, Growth: growth}
}

func TestFilterEliteThresholdsAreStrict(t *testing.T) {
	s := NewScreener(DefaultScreenerConfig(), logger.NewNop())

	records := []contracts.FundamentalRecord{
		rec("PASS", 10, 20, 15),
		rec("ROE_EQ", 10, 15, 15),
		rec("CAGR_EQ", 10, 20, 12),
		rec("VAL_EQ", 15, 20, 15),
		rec("VAL_ZERO", 0, 20, 15),
		rec("VAL_NEG", -3, 20, 15),
	}

	got := s.FilterElite(records)

	require.Len(t, got, 1)
	assert.Equal(t, "PASS", got[0].Ticker)
}

func TestFilterEliteSubsetProperty(t *testing.T) {
	cfg := DefaultScreenerConfig()
	s := NewScreener(cfg, logger.NewNop())
	rng := rand.New(rand.NewPCG(1, 2))

	for round := 0; round < 50; round++ {
		records := make([]contracts.FundamentalRecord, 40)
		for i := range records {
			records[i] = rec("T", rng.Float64()*40-5, rng.Float64()*40-5, rng.Float64()*40-5)
		}

		got := s.FilterElite(records)
		assert.LessOrEqual(t, len(got), len(records))
		for _, r := range got {
			assert.Greater(t, r.ROE, cfg.MinROE)
			assert.Greater(t, r.Growth, cfg.MinCAGR)
			assert.Greater(t, r.Valuation, 0.0)
			assert.Less(t, r.Valuation, cfg.MaxValuation)
		}
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		r    contracts.FundamentalRecord
		want float64
	}{
		{"basic", rec("A", 10, 20, 15), 3.5},
		{"rounded", rec("B", 7, 18, 13), 4.43},
		{"zero valuation", rec("C", 0, 20, 15), 0},
		{"negative valuation", rec("D", -4, 20, 15), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.r))
		})
	}
}

func TestRankStableDescending(t *testing.T) {
	scores := []contracts.EfficiencyScore{
		{Ticker: "A", Score: 5.0},
		{Ticker: "B", Score: 7.2},
		{Ticker: "C", Score: 7.2},
	}

	ranked := Rank(scores)

	require.Len(t, ranked, 3)
	assert.Equal(t, "B", ranked[0].Ticker)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, "C", ranked[1].Ticker)
	assert.Equal(t, 2, ranked[1].Rank)
	assert.Equal(t, "A", ranked[2].Ticker)
	assert.Equal(t, 3, ranked[2].Rank)

	// input untouched
	assert.Equal(t, 0, scores[0].Rank)
}

func TestRankIsPermutation(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	scores := make([]contracts.EfficiencyScore, 30)
	for i := range scores {
		scores[i] = contracts.EfficiencyScore{Ticker: string(rune('A' + i)), Score: float64(rng.IntN(5))}
	}

	ranked := Rank(scores)
	for i, s := range ranked {
		assert.Equal(t, i+1, s.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, ranked[i-1].Score, s.Score)
		}
	}
}

func TestScreenCapsCandidates(t *testing.T) {
	cfg := DefaultScreenerConfig()
	cfg.MaxCandidates = 2
	s := NewScreener(cfg, logger.NewNop())

	got, err := s.Screen(context.Background(), []contracts.FundamentalRecord{
		rec("LOW", 14, 16, 13),
		rec("TOP", 5, 30, 20),
		rec("MID", 10, 20, 15),
		rec("OUT", 20, 30, 30),
	})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "TOP", got[0].Ticker)
	assert.Equal(t, 10.0, got[0].Score)
	assert.Equal(t, "MID", got[1].Ticker)
}

func TestRankerComposite(t *testing.T) {
	r := NewRanker(DefaultWeightConfig(), logger.NewNop())

	picks := []contracts.TopPick{
		{
			Ticker:       "A",
			Efficiency:   contracts.EfficiencyScore{Score: 4},
			SectorWeight: 1.2,
			Qualitative:  &contracts.QualitativeAssessment{Score: 8},
		},
		{
			Ticker:       "B",
			Efficiency:   contracts.EfficiencyScore{Score: 5},
			SectorWeight: 1.0,
			Qualitative:  &contracts.QualitativeAssessment{Score: 8},
			Sentiment:    &contracts.SentimentResult{HerdRisk: true},
		},
		{
			Ticker:       "C",
			Efficiency:   contracts.EfficiencyScore{Score: 5},
			SectorWeight: 1.0,
			Qualitative:  &contracts.QualitativeAssessment{Score: 8, DividendTrap: true},
		},
	}

	ranked := r.Rank(picks)

	require.Len(t, ranked, 3)
	// A: (2.4+3.2)*1.2 = 6.72
	assert.Equal(t, "A", ranked[0].Ticker)
	assert.Equal(t, 6.72, ranked[0].CompositeScore)
	// B: (3+3.2)*0.8 = 4.96
	assert.Equal(t, "B", ranked[1].Ticker)
	assert.Equal(t, 4.96, ranked[1].CompositeScore)
	// C: (3+3.2)*0.7 = 4.34
	assert.Equal(t, "C", ranked[2].Ticker)
	assert.Equal(t, 4.34, ranked[2].CompositeScore)

	for i, p := range ranked {
		assert.Equal(t, i+1, p.Rank)
	}
}

func TestWeightConfigValidate(t *testing.T) {
	w := DefaultWeightConfig()
	assert.NoError(t, w.Validate())

	w.HerdRiskPenalty = 1.5
	assert.Error(t, w.Validate())

	w = DefaultWeightConfig()
	w.Efficiency, w.Qualitative = 0, 0
	assert.Error(t, w.Validate())
}
