package contracts

import "strings"

// FundamentalRecord is one row of fundamentals, immutable per ingestion cycle
// ⭐ SSOT: fundamentals source → quant filter
type FundamentalRecord struct {
	Ticker    string   `json:"ticker"`
	Valuation float64  `json:"valuation"` // P/E or similar multiple
	ROE       float64  `json:"roe"`       // %
	Growth    float64  `json:"growth"`    // revenue/earnings CAGR %
	Leverage  float64  `json:"leverage"`  // net debt / EBITDA
	Sector    string   `json:"sector,omitempty"`
	Price     *float64 `json:"price,omitempty"`

	// DividendYield feeds the dividend-trap proxy; nil when the source has no column
	DividendYield *float64 `json:"dividend_yield,omitempty"`
}

// NormalizeTicker upper-cases and trims a ticker symbol
func NormalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// EfficiencyScore is the quant stage output for a single ticker
// ⭐ SSOT: quant filter → qualitative / pricing / merge
type EfficiencyScore struct {
	Ticker string   `json:"ticker"`
	Score  float64  `json:"score"` // (growth+ROE)/valuation, 2 decimals
	Rank   int      `json:"rank"`  // 1..N
	Sector string   `json:"sector,omitempty"`
	Price  *float64 `json:"price,omitempty"`

	Record FundamentalRecord `json:"-"`
}
