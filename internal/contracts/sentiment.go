package contracts

// SentimentLevel classifies the mention-volume ratio
type SentimentLevel string

const (
	SentimentNormal   SentimentLevel = "NORMAL"
	SentimentElevated SentimentLevel = "ELEVATED"
	SentimentHerdRisk SentimentLevel = "HERD_RISK"
)

// SentimentResult is one analyze() observation for a ticker
// ⭐ SSOT: sentiment screener → merge
type SentimentResult struct {
	Ticker   string         `json:"ticker"`
	Mentions int            `json:"mentions"`
	Baseline float64        `json:"baseline"` // pre-update baseline used for the ratio
	Ratio    float64        `json:"ratio"`    // 2 decimals
	Level    SentimentLevel `json:"level"`
	HerdRisk bool           `json:"herd_risk"`
}

// SentimentState is the per-ticker smoothed baseline
type SentimentState struct {
	Ticker       string  `json:"ticker"`
	Baseline     float64 `json:"baseline"`
	LastRatio    float64 `json:"last_ratio"`
	HerdRisk     bool    `json:"herd_risk"`
	Observations int     `json:"observations"`
}
