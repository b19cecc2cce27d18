package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
)

// Recommendation bands on current/ceiling
var (
	buyBelow   = decimal.RequireFromString("0.95")
	waitBelow  = decimal.RequireFromString("1.05")
	sellUpside = decimal.NewFromInt(-10)

	hundred    = decimal.NewFromInt(100)
	scoreScale = decimal.NewFromInt(20)
)

// Config holds the valuation parameters
type Config struct {
	TargetReturn float64
	SafetyMargin float64
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		TargetReturn: 0.05,
		SafetyMargin: 0.15,
	}
}

// Engine computes fair value, ceiling price and the recommended action.
// All arithmetic is decimal; every published figure has 2 decimals.
// ⭐ SSOT: price alert logic lives here only
type Engine struct {
	cfg Config
}

// NewEngine creates a pricing engine
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// FairValue = current * (1 + score/20)
func (e *Engine) FairValue(current, score float64) float64 {
	return fairValue(decimal.NewFromFloat(current), decimal.NewFromFloat(score)).InexactFloat64()
}

// CeilingPrice = fair / (1 + target_return + safety_margin)
func (e *Engine) CeilingPrice(fair float64) float64 {
	return e.ceiling(decimal.NewFromFloat(fair)).InexactFloat64()
}

// Recommend maps current/ceiling onto BUY, WAIT or SELL
func Recommend(current, ceiling float64) contracts.Recommendation {
	return recommend(decimal.NewFromFloat(current), decimal.NewFromFloat(ceiling))
}

// Alert evaluates a priced ticker. current must be positive.
func (e *Engine) Alert(ticker string, current, score float64) (*contracts.PriceAlert, error) {
	if current <= 0 {
		return nil, &contracts.ValidationError{Entity: ticker, Field: "price", Reason: fmt.Sprintf("must be positive, got %v", current)}
	}

	cur := decimal.NewFromFloat(current)
	fair := fairValue(cur, decimal.NewFromFloat(score))
	ceiling := e.ceiling(fair)
	if !ceiling.IsPositive() {
		return nil, &contracts.ValidationError{Entity: ticker, Field: "ceiling_price", Reason: "non-positive"}
	}

	return &contracts.PriceAlert{
		Ticker:        ticker,
		CurrentPrice:  current,
		FairValue:     fair.InexactFloat64(),
		CeilingPrice:  ceiling.InexactFloat64(),
		SafetyMargin:  e.cfg.SafetyMargin,
		MarginPercent: upside(cur, ceiling).Round(2).InexactFloat64(),
		Action:        recommend(cur, ceiling),
	}, nil
}

func fairValue(current, score decimal.Decimal) decimal.Decimal {
	multiplier := decimal.NewFromInt(1).Add(score.Div(scoreScale))
	return current.Mul(multiplier).Round(2)
}

func (e *Engine) ceiling(fair decimal.Decimal) decimal.Decimal {
	divisor := decimal.NewFromInt(1).
		Add(decimal.NewFromFloat(e.cfg.TargetReturn)).
		Add(decimal.NewFromFloat(e.cfg.SafetyMargin))
	return fair.Div(divisor).Round(2)
}

// upside = (ceiling/current - 1) * 100
func upside(current, ceiling decimal.Decimal) decimal.Decimal {
	return ceiling.Div(current).Sub(decimal.NewFromInt(1)).Mul(hundred)
}

func recommend(current, ceiling decimal.Decimal) contracts.Recommendation {
	if !ceiling.IsPositive() || !current.IsPositive() {
		return contracts.RecommendWait
	}

	ratio := current.Div(ceiling)
	switch {
	case ratio.LessThanOrEqual(buyBelow):
		return contracts.RecommendBuy
	case ratio.LessThanOrEqual(waitBelow):
		return contracts.RecommendWait
	case upside(current, ceiling).LessThan(sellUpside):
		return contracts.RecommendSell
	default:
		return contracts.RecommendWait
	}
}
