package qualitative

import (
	"strings"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
)

// DividendTrapPolicy decides whether an assessment describes a dividend trap
type DividendTrapPolicy interface {
	IsTrap(a *contracts.QualitativeAssessment, rec contracts.FundamentalRecord) bool
}

// HeuristicPolicy flags a trap when the provider says so, when the thesis
// talks dividends with no growth catalyst, or when a high yield comes
// with weak growth. Every threshold is tunable.
type HeuristicPolicy struct {
	Keywords  []string // matched case-insensitively against the thesis
	MinYield  float64  // % yield at which the quant proxy starts to matter
	MaxGrowth float64  // growth % below which a high yield is suspicious

	// fall back to earnings yield (100/valuation) when the record has no dividend yield
	UseEarningsYieldProxy bool
}

// DefaultPolicy returns the default heuristic
func DefaultPolicy() *HeuristicPolicy {
	return &HeuristicPolicy{
		Keywords:              []string{"dividend", "dividendo", "payout", "proventos", "yield"},
		MinYield:              8,
		MaxGrowth:             15,
		UseEarningsYieldProxy: false,
	}
}

// IsTrap implements DividendTrapPolicy
func (p *HeuristicPolicy) IsTrap(a *contracts.QualitativeAssessment, rec contracts.FundamentalRecord) bool {
	if a.DividendTrap {
		return true
	}

	if len(a.Catalysts) == 0 && p.mentionsDividends(a.Thesis) {
		return true
	}

	yield, ok := p.yield(rec)
	return ok && yield >= p.MinYield && rec.Growth < p.MaxGrowth
}

func (p *HeuristicPolicy) mentionsDividends(thesis string) bool {
	lower := strings.ToLower(thesis)
	for _, kw := range p.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (p *HeuristicPolicy) yield(rec contracts.FundamentalRecord) (float64, bool) {
	if rec.DividendYield != nil {
		return *rec.DividendYield, true
	}
	if p.UseEarningsYieldProxy && rec.Valuation > 0 {
		return 100 / rec.Valuation, true
	}
	return 0, false
}
