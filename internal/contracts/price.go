package contracts

// Recommendation is the price-alert action
type Recommendation string

const (
	RecommendBuy  Recommendation = "BUY"
	RecommendWait Recommendation = "WAIT"
	RecommendSell Recommendation = "SELL"
)

// PriceAlert is the fair-value evaluation for a priced ticker
// ⭐ SSOT: pricing → merge
type PriceAlert struct {
	Ticker        string         `json:"ticker"`
	CurrentPrice  float64        `json:"current_price"`
	FairValue     float64        `json:"fair_value"`
	CeilingPrice  float64        `json:"ceiling_price"`
	SafetyMargin  float64        `json:"safety_margin"`
	MarginPercent float64        `json:"margin_percent"` // (ceiling/current-1)*100
	Action        Recommendation `json:"action"`
}
